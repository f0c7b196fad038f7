package mapper

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// timeLayouts lists the timestamp formats sources are known to emit.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime parses a non-empty timestamp string. An empty string yields the
// zero time without error (missing, not malformed).
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, Errorf("unparseable timestamp %q", s)
}

// flexFloat accepts a JSON number, numeric string, or null.
type flexFloat struct {
	val *float64
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Errorf("unparseable number %q", s)
	}
	f.val = &v
	return nil
}

// flexBool accepts a JSON bool, "true"/"false"/"yes"/"no"/"1"/"0" strings,
// or null.
type flexBool struct {
	val bool
}

func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(string(data)), `"`))
	switch s {
	case "true", "yes", "1":
		b.val = true
	case "", "null", "false", "no", "0":
		b.val = false
	default:
		return Errorf("unparseable boolean %q", s)
	}
	return nil
}

// decode unmarshals a payload into dst, converting decode failures into
// mapping errors.
func decode(payload json.RawMessage, dst any) error {
	if len(payload) == 0 {
		return Errorf("empty payload")
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		if IsMappingError(err) {
			return err
		}
		return Errorf("malformed payload: %v", err)
	}
	return nil
}

// coords converts optional flexFloat lat/lon into candidate pointers,
// dropping the pair when either half is missing.
func coords(lat, lon flexFloat) (*float64, *float64) {
	if lat.val == nil || lon.val == nil {
		return nil, nil
	}
	return lat.val, lon.val
}
