package mapper

import "github.com/hududed/bayanlab/internal/model"

// icsEventMapper maps calendar-feed payloads staged by the ICS poller.
type icsEventMapper struct{}

type icsPayload struct {
	UID         string   `json:"uid"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	DTStart     string   `json:"dtstart"`
	DTEnd       string   `json:"dtend"`
	AllDay      flexBool `json:"all_day"`
	Location    struct {
		VenueName string `json:"venue_name"`
		Street    string `json:"street"`
		City      string `json:"city"`
		State     string `json:"state"`
		Zip       string `json:"zip"`
	} `json:"location"`
	URL       string `json:"url"`
	Organizer struct {
		Name    string `json:"name"`
		Contact string `json:"contact"`
	} `json:"organizer"`
	Region string `json:"region"`
}

func (m *icsEventMapper) Map(rec *model.RawRecord) (*model.Candidate, error) {
	var p icsPayload
	if err := decode(rec.RawPayload, &p); err != nil {
		return nil, err
	}

	start, err := parseTime(p.DTStart)
	if err != nil {
		return nil, err
	}
	end, err := parseTime(p.DTEnd)
	if err != nil {
		return nil, err
	}

	return &model.Candidate{
		SourceRef: p.UID,
		Region:    p.Region,
		Street:    p.Location.Street,
		City:      p.Location.City,
		State:     p.Location.State,
		Zip:       p.Location.Zip,
		Event: &model.EventFields{
			Title:            p.Summary,
			Description:      p.Description,
			StartTime:        start,
			EndTime:          end,
			AllDay:           p.AllDay.val,
			VenueName:        p.Location.VenueName,
			URL:              p.URL,
			OrganizerName:    p.Organizer.Name,
			OrganizerContact: p.Organizer.Contact,
		},
	}, nil
}

// csvEventMapper maps flat-file event rows staged by the seed loader.
type csvEventMapper struct{}

type csvEventPayload struct {
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	StartTime        string    `json:"start_time"`
	EndTime          string    `json:"end_time"`
	AllDay           flexBool  `json:"all_day"`
	VenueName        string    `json:"venue_name"`
	Street           string    `json:"address_street"`
	City             string    `json:"address_city"`
	State            string    `json:"address_state"`
	Zip              string    `json:"address_zip"`
	Latitude         flexFloat `json:"latitude"`
	Longitude        flexFloat `json:"longitude"`
	URL              string    `json:"url"`
	OrganizerName    string    `json:"organizer_name"`
	OrganizerContact string    `json:"organizer_contact"`
	SourceRef        string    `json:"source_ref"`
	Region           string    `json:"region"`
}

func (m *csvEventMapper) Map(rec *model.RawRecord) (*model.Candidate, error) {
	var p csvEventPayload
	if err := decode(rec.RawPayload, &p); err != nil {
		return nil, err
	}

	start, err := parseTime(p.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseTime(p.EndTime)
	if err != nil {
		return nil, err
	}

	lat, lon := coords(p.Latitude, p.Longitude)

	return &model.Candidate{
		SourceRef: p.SourceRef,
		Region:    p.Region,
		Street:    p.Street,
		City:      p.City,
		State:     p.State,
		Zip:       p.Zip,
		Latitude:  lat,
		Longitude: lon,
		Event: &model.EventFields{
			Title:            p.Title,
			Description:      p.Description,
			StartTime:        start,
			EndTime:          end,
			AllDay:           p.AllDay.val,
			VenueName:        p.VenueName,
			URL:              p.URL,
			OrganizerName:    p.OrganizerName,
			OrganizerContact: p.OrganizerContact,
		},
	}, nil
}
