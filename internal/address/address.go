// Package address cleans and canonicalizes free-text address fragments
// before geocoding and dedup-key construction. All functions are pure and
// deterministic: identical input always yields identical output.
package address

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// Suite/apt/unit markers confuse geocoders and destabilize dedup keys.
	suiteTrailing = regexp.MustCompile(`(?i),?\s*(Suite|Ste|Apt|Unit|#)\s*[\w-]+\s*\w*$`)
	suiteInline   = regexp.MustCompile(`(?i),?\s*(Suite|Ste|Apt|Unit|#)\s*[\w-]+\s*\w*,`)
	suitePrefix   = regexp.MustCompile(`(?i)^Suite\s+\w+,?\s*`)

	parenthetical = regexp.MustCompile(`\s*\([^)]+\)\s*`)
	areaSuffix    = regexp.MustCompile(`(?i)\s+area$`)
	multiSpace    = regexp.MustCompile(`\s{2,}`)
)

// streetTypos maps common misspellings seen in source data.
var streetTypos = map[*regexp.Regexp]string{
	regexp.MustCompile(`(?i)\bla gange\b`):   "la grange",
	regexp.MustCompile(`(?i)\blincolnway\b`): "lincoln way",
}

// cityCorrections maps known bad city names (typos, renamed municipalities)
// to their canonical form. Keys are lowercase.
var cityCorrections = map[string]string{
	"tuscaloosa":      "Tucson",
	"camden wyoming":  "Camden",
	"shawnee mission": "Overland Park",
}

var titleCaser = cases.Title(language.AmericanEnglish)

// CleanStreet normalizes a street address fragment. A street that reduces to
// nothing after cleaning is returned as the empty string (absent, not an error).
func CleanStreet(street string) string {
	s := collapse(street)
	if s == "" {
		return ""
	}

	for re, fix := range streetTypos {
		s = re.ReplaceAllString(s, fix)
	}

	s = suiteTrailing.ReplaceAllString(s, "")
	s = suiteInline.ReplaceAllString(s, ",")
	s = strings.TrimRight(strings.TrimSpace(s), ",")

	return collapse(s)
}

// CleanCity normalizes a city name: drops parenthetical notes, compound
// separators, suite prefixes, and "area" suffixes, applies known
// corrections, and canonicalizes casing.
func CleanCity(city string) string {
	c := collapse(city)
	if c == "" {
		return ""
	}

	if fix, ok := cityCorrections[strings.ToLower(c)]; ok {
		return fix
	}

	c = parenthetical.ReplaceAllString(c, " ")

	// Compound cities keep the first component: "Boston | Everett" -> "Boston".
	for _, sep := range []string{"|", "/", " & "} {
		if idx := strings.Index(c, sep); idx >= 0 {
			c = c[:idx]
		}
	}

	c = suitePrefix.ReplaceAllString(c, "")
	c = areaSuffix.ReplaceAllString(c, "")
	c = collapse(c)
	if c == "" {
		return ""
	}

	return titleCaser.String(strings.ToLower(c))
}

// NormalizeState maps a state name or abbreviation to its USPS code.
// Unrecognized input is uppercased and trimmed as-is.
func NormalizeState(state string) string {
	s := collapse(state)
	if s == "" {
		return ""
	}
	if abbr, ok := stateToAbbr[strings.ToLower(s)]; ok {
		return abbr
	}
	up := strings.ToUpper(s)
	if _, ok := abbrToState[strings.ToLower(up)]; ok {
		return up
	}
	return up
}

// collapse trims and squeezes interior whitespace.
func collapse(s string) string {
	return strings.TrimSpace(multiSpace.ReplaceAllString(s, " "))
}

// abbrToState maps lowercase USPS abbreviations to lowercase full names.
var abbrToState = map[string]string{
	"al": "alabama", "ak": "alaska", "az": "arizona", "ar": "arkansas",
	"ca": "california", "co": "colorado", "ct": "connecticut", "de": "delaware",
	"fl": "florida", "ga": "georgia", "hi": "hawaii", "id": "idaho",
	"il": "illinois", "in": "indiana", "ia": "iowa", "ks": "kansas",
	"ky": "kentucky", "la": "louisiana", "me": "maine", "md": "maryland",
	"ma": "massachusetts", "mi": "michigan", "mn": "minnesota", "ms": "mississippi",
	"mo": "missouri", "mt": "montana", "ne": "nebraska", "nv": "nevada",
	"nh": "new hampshire", "nj": "new jersey", "nm": "new mexico", "ny": "new york",
	"nc": "north carolina", "nd": "north dakota", "oh": "ohio", "ok": "oklahoma",
	"or": "oregon", "pa": "pennsylvania", "ri": "rhode island", "sc": "south carolina",
	"sd": "south dakota", "tn": "tennessee", "tx": "texas", "ut": "utah",
	"vt": "vermont", "va": "virginia", "wa": "washington", "wv": "west virginia",
	"wi": "wisconsin", "wy": "wyoming", "dc": "district of columbia",
}

// stateToAbbr maps lowercase full names to USPS abbreviations.
var stateToAbbr = func() map[string]string {
	m := make(map[string]string, len(abbrToState))
	for abbr, full := range abbrToState {
		m[full] = strings.ToUpper(abbr)
	}
	return m
}()
