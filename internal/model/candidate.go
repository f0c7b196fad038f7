package model

import "time"

// Category is the enumerated business category set served downstream.
type Category string

const (
	CategoryRestaurant Category = "restaurant"
	CategoryService    Category = "service"
	CategoryRetail     Category = "retail"
	CategoryGrocery    Category = "grocery"
	CategoryButcher    Category = "butcher"
	CategoryOther      Category = "other"
)

// Valid reports whether c is a recognized category.
func (c Category) Valid() bool {
	switch c {
	case CategoryRestaurant, CategoryService, CategoryRetail,
		CategoryGrocery, CategoryButcher, CategoryOther:
		return true
	}
	return false
}

// ParseCategory maps a free-text category to the enum, defaulting to "other".
func ParseCategory(s string) Category {
	c := Category(s)
	if c.Valid() {
		return c
	}
	return CategoryOther
}

// EventFields holds the event-specific portion of a candidate.
type EventFields struct {
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	AllDay           bool      `json:"all_day"`
	VenueName        string    `json:"venue_name,omitempty"`
	URL              string    `json:"url,omitempty"`
	OrganizerName    string    `json:"organizer_name,omitempty"`
	OrganizerContact string    `json:"organizer_contact,omitempty"`
}

// BusinessFields holds the business-specific portion of a candidate.
type BusinessFields struct {
	Name           string   `json:"name"`
	Category       Category `json:"category"`
	Website        string   `json:"website,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	Email          string   `json:"email,omitempty"`
	MuslimOwned    bool     `json:"self_identified_muslim_owned"`
	HalalCertified bool     `json:"halal_certified"`
	CertifierName  string   `json:"certifier_name,omitempty"`
	CertifierRef   string   `json:"certifier_ref,omitempty"`
	Placekey       string   `json:"placekey,omitempty"`
}

// Candidate is a normalized record in canonical shape, produced by the field
// mapper and carried through identity resolution, geocoding, DQ evaluation,
// and the canonical writer. Required-field presence is deliberately not
// guaranteed here; the DQ evaluator owns that.
type Candidate struct {
	Kind      EntityKind `json:"entity_kind"`
	Source    Source     `json:"source"`
	SourceRef string     `json:"source_ref,omitempty"`
	Region    string     `json:"region"`

	Street    string   `json:"address_street,omitempty"`
	City      string   `json:"address_city,omitempty"`
	State     string   `json:"address_state,omitempty"`
	Zip       string   `json:"address_zip,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	Event    *EventFields    `json:"event,omitempty"`
	Business *BusinessFields `json:"business,omitempty"`
}

// DisplayName returns the entity's primary name: business name or event title.
func (c *Candidate) DisplayName() string {
	switch {
	case c.Business != nil:
		return c.Business.Name
	case c.Event != nil:
		return c.Event.Title
	}
	return ""
}

// HasCoordinates reports whether both latitude and longitude are set.
func (c *Candidate) HasCoordinates() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// Placekey returns the external stable place identifier, if any.
func (c *Candidate) Placekey() string {
	if c.Business != nil {
		return c.Business.Placekey
	}
	return ""
}
