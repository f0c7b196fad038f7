package model

import (
	"time"

	"github.com/google/uuid"
)

// DQStatus describes completeness/plausibility of a canonical record.
type DQStatus string

const (
	DQOK      DQStatus = "ok"
	DQWarning DQStatus = "warning"
	DQError   DQStatus = "error"
)

// Valid reports whether s is a recognized DQ status.
func (s DQStatus) Valid() bool {
	return s == DQOK || s == DQWarning || s == DQError
}

// CanonicalEvent is a validated, deduplicated event in the served dataset.
type CanonicalEvent struct {
	EventID  uuid.UUID `json:"event_id"`
	DedupKey string    `json:"dedup_key"`
	Region   string    `json:"region"`

	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	AllDay           bool      `json:"all_day"`
	VenueName        string    `json:"venue_name,omitempty"`
	URL              string    `json:"url,omitempty"`
	OrganizerName    string    `json:"organizer_name,omitempty"`
	OrganizerContact string    `json:"organizer_contact,omitempty"`

	Street    string   `json:"address_street,omitempty"`
	City      string   `json:"address_city"`
	State     string   `json:"address_state"`
	Zip       string   `json:"address_zip,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	Source    Source   `json:"source"`
	SourceRef string   `json:"source_ref,omitempty"`
	DQStatus  DQStatus `json:"dq_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanonicalBusiness is a validated, deduplicated business in the served dataset.
type CanonicalBusiness struct {
	BusinessID uuid.UUID `json:"business_id"`
	DedupKey   string    `json:"dedup_key"`
	Region     string    `json:"region"`

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

	Street    string   `json:"address_street,omitempty"`
	City      string   `json:"address_city"`
	State     string   `json:"address_state"`
	Zip       string   `json:"address_zip,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	Source    Source   `json:"source"`
	SourceRef string   `json:"source_ref,omitempty"`
	DQStatus  DQStatus `json:"dq_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
