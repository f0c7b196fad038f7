package mapper

import (
	"fmt"
	"strings"

	"github.com/hududed/bayanlab/internal/model"
)

// csvBusinessMapper maps flat-file business rows staged by the seed loader.
type csvBusinessMapper struct{}

type csvBusinessPayload struct {
	Name           string    `json:"name"`
	Category       string    `json:"category"`
	Street         string    `json:"address_street"`
	City           string    `json:"address_city"`
	State          string    `json:"address_state"`
	Zip            string    `json:"address_zip"`
	Latitude       flexFloat `json:"latitude"`
	Longitude      flexFloat `json:"longitude"`
	Website        string    `json:"website"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email"`
	MuslimOwned    flexBool  `json:"muslim_owned"`
	HalalCertified flexBool  `json:"halal_certified"`
	Placekey       string    `json:"placekey"`
	SourceRef      string    `json:"source_ref"`
	Region         string    `json:"region"`
}

func (m *csvBusinessMapper) Map(rec *model.RawRecord) (*model.Candidate, error) {
	var p csvBusinessPayload
	if err := decode(rec.RawPayload, &p); err != nil {
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
		Business: &model.BusinessFields{
			Name:           p.Name,
			Category:       model.ParseCategory(p.Category),
			Website:        p.Website,
			Phone:          p.Phone,
			Email:          p.Email,
			MuslimOwned:    p.MuslimOwned.val,
			HalalCertified: p.HalalCertified.val,
			Placekey:       p.Placekey,
		},
	}, nil
}

// osmBusinessMapper maps OpenStreetMap elements from the Overpass extract.
// Coordinates come from the node itself or, for ways, the precomputed
// center. Category and halal signals come from tags.
type osmBusinessMapper struct{}

type osmPayload struct {
	Type   string    `json:"type"`
	ID     int64     `json:"id"`
	Lat    flexFloat `json:"lat"`
	Lon    flexFloat `json:"lon"`
	Center struct {
		Lat flexFloat `json:"lat"`
		Lon flexFloat `json:"lon"`
	} `json:"center"`
	Tags   map[string]string `json:"tags"`
	Region string            `json:"region"`
}

func (m *osmBusinessMapper) Map(rec *model.RawRecord) (*model.Candidate, error) {
	var p osmPayload
	if err := decode(rec.RawPayload, &p); err != nil {
		return nil, err
	}

	lat, lon := coords(p.Lat, p.Lon)
	if lat == nil {
		lat, lon = coords(p.Center.Lat, p.Center.Lon)
	}

	tag := func(k string) string { return strings.TrimSpace(p.Tags[k]) }

	street := strings.TrimSpace(tag("addr:housenumber") + " " + tag("addr:street"))

	sourceRef := ""
	if p.Type != "" && p.ID != 0 {
		sourceRef = fmt.Sprintf("%s/%d", p.Type, p.ID)
	}

	return &model.Candidate{
		SourceRef: sourceRef,
		Region:    p.Region,
		Street:    street,
		City:      tag("addr:city"),
		State:     tag("addr:state"),
		Zip:       tag("addr:postcode"),
		Latitude:  lat,
		Longitude: lon,
		Business: &model.BusinessFields{
			Name:           tag("name"),
			Category:       osmCategory(p.Tags),
			Website:        tag("website"),
			Phone:          tag("phone"),
			HalalCertified: osmHalal(p.Tags),
		},
	}, nil
}

// osmCategory maps amenity/shop tags onto the category vocabulary.
func osmCategory(tags map[string]string) model.Category {
	switch tags["amenity"] {
	case "restaurant", "fast_food", "cafe", "food_court":
		return model.CategoryRestaurant
	}
	switch tags["shop"] {
	case "supermarket", "convenience", "greengrocer":
		return model.CategoryGrocery
	case "butcher":
		return model.CategoryButcher
	case "":
	default:
		return model.CategoryRetail
	}
	return model.CategoryOther
}

// osmHalal reports whether the element is tagged halal. diet:halal is the
// canonical tag; a halal cuisine entry counts too.
func osmHalal(tags map[string]string) bool {
	switch tags["diet:halal"] {
	case "yes", "only":
		return true
	}
	for _, c := range strings.Split(tags["cuisine"], ";") {
		if strings.TrimSpace(c) == "halal" {
			return true
		}
	}
	return false
}

// certifierBusinessMapper maps certification-body listings. Every record
// from a certifier is by definition halal certified.
type certifierBusinessMapper struct{}

type certifierPayload struct {
	BusinessName  string    `json:"business_name"`
	Category      string    `json:"category"`
	Street        string    `json:"address_street"`
	City          string    `json:"address_city"`
	State         string    `json:"address_state"`
	Zip           string    `json:"address_zip"`
	Latitude      flexFloat `json:"latitude"`
	Longitude     flexFloat `json:"longitude"`
	Phone         string    `json:"phone"`
	Website       string    `json:"website"`
	CertifierName string    `json:"certifier_name"`
	CertID        string    `json:"cert_id"`
	Region        string    `json:"region"`
}

func (m *certifierBusinessMapper) Map(rec *model.RawRecord) (*model.Candidate, error) {
	var p certifierPayload
	if err := decode(rec.RawPayload, &p); err != nil {
		return nil, err
	}

	lat, lon := coords(p.Latitude, p.Longitude)

	return &model.Candidate{
		SourceRef: p.CertID,
		Region:    p.Region,
		Street:    p.Street,
		City:      p.City,
		State:     p.State,
		Zip:       p.Zip,
		Latitude:  lat,
		Longitude: lon,
		Business: &model.BusinessFields{
			Name:           p.BusinessName,
			Category:       model.ParseCategory(p.Category),
			Website:        p.Website,
			Phone:          p.Phone,
			HalalCertified: true,
			CertifierName:  p.CertifierName,
			CertifierRef:   p.CertID,
		},
	}, nil
}

// claimBusinessMapper maps owner-submitted claim forms. Claims are the
// highest-trust source: the owner attests to their own details.
type claimBusinessMapper struct{}

type claimPayload struct {
	BusinessName   string    `json:"business_name"`
	Category       string    `json:"category"`
	Street         string    `json:"address_street"`
	City           string    `json:"address_city"`
	State          string    `json:"address_state"`
	Zip            string    `json:"address_zip"`
	Latitude       flexFloat `json:"latitude"`
	Longitude      flexFloat `json:"longitude"`
	Website        string    `json:"website"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email"`
	MuslimOwned    flexBool  `json:"muslim_owned"`
	HalalCertified flexBool  `json:"halal_certified"`
	CertifierName  string    `json:"certifier_name"`
	ClaimID        string    `json:"claim_id"`
	Region         string    `json:"region"`
}

func (m *claimBusinessMapper) Map(rec *model.RawRecord) (*model.Candidate, error) {
	var p claimPayload
	if err := decode(rec.RawPayload, &p); err != nil {
		return nil, err
	}

	lat, lon := coords(p.Latitude, p.Longitude)

	return &model.Candidate{
		SourceRef: p.ClaimID,
		Region:    p.Region,
		Street:    p.Street,
		City:      p.City,
		State:     p.State,
		Zip:       p.Zip,
		Latitude:  lat,
		Longitude: lon,
		Business: &model.BusinessFields{
			Name:           p.BusinessName,
			Category:       model.ParseCategory(p.Category),
			Website:        p.Website,
			Phone:          p.Phone,
			Email:          p.Email,
			MuslimOwned:    p.MuslimOwned.val,
			HalalCertified: p.HalalCertified.val,
			CertifierName:  p.CertifierName,
		},
	}, nil
}
