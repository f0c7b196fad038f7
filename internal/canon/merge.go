package canon

import (
	"time"

	"github.com/google/uuid"

	"github.com/hududed/bayanlab/internal/dq"
	"github.com/hududed/bayanlab/internal/model"
)

func businessFromCandidate(c *model.Candidate, dqr *dq.Result, key string, now time.Time) *model.CanonicalBusiness {
	b := &model.CanonicalBusiness{
		BusinessID: uuid.New(),
		DedupKey:   key,
		Region:     c.Region,
		Street:     c.Street,
		City:       c.City,
		State:      c.State,
		Zip:        c.Zip,
		Latitude:   c.Latitude,
		Longitude:  c.Longitude,
		Source:     c.Source,
		SourceRef:  c.SourceRef,
		DQStatus:   dqr.Status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if f := c.Business; f != nil {
		b.Name = f.Name
		b.Category = f.Category
		b.Website = f.Website
		b.Phone = f.Phone
		b.Email = f.Email
		b.MuslimOwned = f.MuslimOwned
		b.HalalCertified = f.HalalCertified
		b.CertifierName = f.CertifierName
		b.CertifierRef = f.CertifierRef
		b.Placekey = f.Placekey
	}
	return b
}

func eventFromCandidate(c *model.Candidate, dqr *dq.Result, key string, now time.Time) *model.CanonicalEvent {
	e := &model.CanonicalEvent{
		EventID:   uuid.New(),
		DedupKey:  key,
		Region:    c.Region,
		Street:    c.Street,
		City:      c.City,
		State:     c.State,
		Zip:       c.Zip,
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
		Source:    c.Source,
		SourceRef: c.SourceRef,
		DQStatus:  dqr.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if f := c.Event; f != nil {
		e.Title = f.Title
		e.Description = f.Description
		e.StartTime = f.StartTime
		e.EndTime = f.EndTime
		e.AllDay = f.AllDay
		e.VenueName = f.VenueName
		e.URL = f.URL
		e.OrganizerName = f.OrganizerName
		e.OrganizerContact = f.OrganizerContact
	}
	return e
}

// changeSet accumulates field-level diffs during a merge.
type changeSet map[string]model.FieldChange

// str applies the string merge rule: a non-empty incoming value replaces
// the existing one when the existing value is empty or the incoming source
// is at least as authoritative.
func (cs changeSet) str(field string, dst *string, incoming string, authoritative bool) {
	if incoming == "" || incoming == *dst {
		return
	}
	if *dst != "" && !authoritative {
		return
	}
	cs[field] = model.FieldChange{Old: *dst, New: incoming}
	*dst = incoming
}

// flag applies the boolean merge rule: false is treated as absent, so
// flags only ever upgrade to true.
func (cs changeSet) flag(field string, dst *bool, incoming bool) {
	if !incoming || *dst {
		return
	}
	cs[field] = model.FieldChange{Old: false, New: true}
	*dst = true
}

// when applies the timestamp merge rule, mirroring str.
func (cs changeSet) when(field string, dst *time.Time, incoming time.Time, authoritative bool) {
	if incoming.IsZero() || incoming.Equal(*dst) {
		return
	}
	if !dst.IsZero() && !authoritative {
		return
	}
	cs[field] = model.FieldChange{Old: *dst, New: incoming}
	*dst = incoming
}

// coords applies the coordinate merge rule: the pair moves together.
func (cs changeSet) coords(lat, lon **float64, c *model.Candidate, authoritative bool) {
	if !c.HasCoordinates() {
		return
	}
	if *lat != nil && *lon != nil {
		if !authoritative || (**lat == *c.Latitude && **lon == *c.Longitude) {
			return
		}
		cs["latitude"] = model.FieldChange{Old: **lat, New: *c.Latitude}
		cs["longitude"] = model.FieldChange{Old: **lon, New: *c.Longitude}
	} else {
		cs["latitude"] = model.FieldChange{Old: nil, New: *c.Latitude}
		cs["longitude"] = model.FieldChange{Old: nil, New: *c.Longitude}
	}
	*lat = c.Latitude
	*lon = c.Longitude
}

func (w *Writer) mergeBusiness(existing *model.CanonicalBusiness, c *model.Candidate, dqr *dq.Result) map[string]model.FieldChange {
	auth := w.outranks(c.Source, existing.Source)
	cs := changeSet{}

	cs.str("street", &existing.Street, c.Street, auth)
	cs.str("city", &existing.City, c.City, auth)
	cs.str("state", &existing.State, c.State, auth)
	cs.str("zip", &existing.Zip, c.Zip, auth)
	cs.coords(&existing.Latitude, &existing.Longitude, c, auth)

	if f := c.Business; f != nil {
		cs.str("name", &existing.Name, f.Name, auth)
		cs.str("website", &existing.Website, f.Website, auth)
		cs.str("phone", &existing.Phone, f.Phone, auth)
		cs.str("email", &existing.Email, f.Email, auth)
		cs.str("certifier_name", &existing.CertifierName, f.CertifierName, auth)
		cs.str("certifier_ref", &existing.CertifierRef, f.CertifierRef, auth)
		cs.str("placekey", &existing.Placekey, f.Placekey, auth)
		cs.flag("muslim_owned", &existing.MuslimOwned, f.MuslimOwned)
		cs.flag("halal_certified", &existing.HalalCertified, f.HalalCertified)

		if f.Category != existing.Category && f.Category != model.CategoryOther && (existing.Category == model.CategoryOther || auth) {
			cs["category"] = model.FieldChange{Old: existing.Category, New: f.Category}
			existing.Category = f.Category
		}
	}

	w.finishMerge(cs, &existing.Source, &existing.SourceRef, &existing.DQStatus, c, dqr)
	return cs
}

func (w *Writer) mergeEvent(existing *model.CanonicalEvent, c *model.Candidate, dqr *dq.Result) map[string]model.FieldChange {
	auth := w.outranks(c.Source, existing.Source)
	cs := changeSet{}

	cs.str("street", &existing.Street, c.Street, auth)
	cs.str("city", &existing.City, c.City, auth)
	cs.str("state", &existing.State, c.State, auth)
	cs.str("zip", &existing.Zip, c.Zip, auth)
	cs.coords(&existing.Latitude, &existing.Longitude, c, auth)

	if f := c.Event; f != nil {
		cs.str("title", &existing.Title, f.Title, auth)
		cs.str("description", &existing.Description, f.Description, auth)
		cs.str("venue_name", &existing.VenueName, f.VenueName, auth)
		cs.str("url", &existing.URL, f.URL, auth)
		cs.str("organizer_name", &existing.OrganizerName, f.OrganizerName, auth)
		cs.str("organizer_contact", &existing.OrganizerContact, f.OrganizerContact, auth)
		cs.when("start_time", &existing.StartTime, f.StartTime, auth)
		cs.when("end_time", &existing.EndTime, f.EndTime, auth)
		cs.flag("all_day", &existing.AllDay, f.AllDay)
	}

	w.finishMerge(cs, &existing.Source, &existing.SourceRef, &existing.DQStatus, c, dqr)
	return cs
}

// finishMerge records the provenance pointer and DQ status updates that
// ride along with any field change.
func (w *Writer) finishMerge(cs changeSet, src *model.Source, srcRef *string, status *model.DQStatus, c *model.Candidate, dqr *dq.Result) {
	if dqr.Status != *status {
		cs["dq_status"] = model.FieldChange{Old: *status, New: dqr.Status}
		*status = dqr.Status
	}
	if len(cs) == 0 {
		return
	}
	if *src != c.Source || *srcRef != c.SourceRef {
		cs["source"] = model.FieldChange{Old: *src, New: c.Source}
		*src = c.Source
		*srcRef = c.SourceRef
	}
}
