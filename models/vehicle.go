package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Source identifies the classifieds site a record was scraped from.
type Source string

const (
	SourceOtomoto Source = "otomoto"
	SourceOLX     Source = "olx"
)

// VehicleStatus represents the review workflow state of a record.
type VehicleStatus string

const (
	StatusNew           VehicleStatus = "new"
	StatusToContact     VehicleStatus = "to_contact"
	StatusContacted     VehicleStatus = "contacted"
	StatusToVisit       VehicleStatus = "to_visit"
	StatusVisited       VehicleStatus = "visited"
	StatusNotInterested VehicleStatus = "not_interested"
	StatusDeleted       VehicleStatus = "deleted"
)

// SellerInfo is the nested seller block assembled during detail extraction.
type SellerInfo struct {
	Name        string `json:"name"`
	ID          string `json:"id"`
	Type        string `json:"type"`
	Location    string `json:"location"`
	MemberSince string `json:"member_since"`
}

// Params is a free-form key→value map scraped from a listing's spec table.
// It scans both jsonb objects and double-encoded JSON strings, which older
// scrapes produced.
type Params map[string]string

func (p Params) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func (p *Params) Scan(src interface{}) error {
	if src == nil {
		*p = nil
		return nil
	}
	b, err := rawBytes(src)
	if err != nil {
		return err
	}
	if len(b) > 0 && b[0] == '"' {
		// Double-encoded: jsonb holds a JSON string containing the object.
		var inner string
		if err := json.Unmarshal(b, &inner); err != nil {
			return err
		}
		b = []byte(inner)
	}
	return json.Unmarshal(b, p)
}

// Equipment maps an equipment category to its list of features.
type Equipment map[string][]string

func (e Equipment) Value() (driver.Value, error) {
	if e == nil {
		return nil, nil
	}
	return json.Marshal(e)
}

func (e *Equipment) Scan(src interface{}) error {
	if src == nil {
		*e = nil
		return nil
	}
	b, err := rawBytes(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, e)
}

// StringList is a jsonb-backed string slice.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	b, err := rawBytes(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, l)
}

// SellerInfoJSON wraps SellerInfo for jsonb storage.
type SellerInfoJSON struct {
	SellerInfo
}

func (s *SellerInfoJSON) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s.SellerInfo)
}

func (s *SellerInfoJSON) Scan(src interface{}) error {
	if src == nil {
		return nil
	}
	b, err := rawBytes(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, &s.SellerInfo)
}

func rawBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported jsonb source type %T", src)
	}
}

// VehicleRecord is the canonical listing record. It is partial when produced
// by the parser and completed by the ingestion service; enrichment fields
// stay nil until the analysis pipeline fills them.
type VehicleRecord struct {
	ID       uuid.UUID `db:"id" json:"id"`
	Source   Source    `db:"source" json:"source"`
	SourceID string    `db:"source_id" json:"source_id"`
	// SourceURL is the deduplication key; inserts fail on collision.
	SourceURL       string     `db:"source_url" json:"source_url"`
	SourceCreatedAt *time.Time `db:"source_created_at" json:"source_created_at,omitempty"`

	// Raw provenance.
	SourceTitle           string     `db:"source_title" json:"source_title"`
	SourceDescriptionHTML string     `db:"source_description_html" json:"source_description_html"`
	SourceParameters      Params     `db:"source_parameters" json:"source_parameters,omitempty"`
	SourceEquipment       Equipment  `db:"source_equipment" json:"source_equipment,omitempty"`
	SourcePhotos          StringList `db:"source_photos" json:"source_photos,omitempty"`

	// Processed fields.
	Title       string          `db:"title" json:"title"`
	Description *string         `db:"description" json:"description,omitempty"`
	Features    StringList      `db:"features" json:"features"`
	PricePLN    float64         `db:"price_pln" json:"price_pln"`
	PriceEUR    float64         `db:"price_eur" json:"price_eur"`
	Year        int             `db:"year" json:"year"`
	Mileage     int             `db:"mileage" json:"mileage"`
	SellerInfo  *SellerInfoJSON `db:"seller_info" json:"seller_info,omitempty"`
	Photos      StringList      `db:"photos" json:"photos"`

	// AI enrichment, nil until produced.
	PersonalFitScore  *float64 `db:"personal_fit_score" json:"personal_fit_score,omitempty"`
	MarketValueScore  *string  `db:"market_value_score" json:"market_value_score,omitempty"`
	AIPriorityRating  *float64 `db:"ai_priority_rating" json:"ai_priority_rating,omitempty"`
	AIPrioritySummary *string  `db:"ai_priority_summary" json:"ai_priority_summary,omitempty"`
	AIMechanicReport  *string  `db:"ai_mechanic_report" json:"ai_mechanic_report,omitempty"`
	AIDataSanityCheck *string  `db:"ai_data_sanity_check" json:"ai_data_sanity_check,omitempty"`

	// Workflow.
	Status        VehicleStatus `db:"status" json:"status"`
	PersonalNotes *string       `db:"personal_notes" json:"personal_notes,omitempty"`

	ScrapedAt time.Time `db:"scraped_at" json:"scraped_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SearchResultStub is a lightweight pointer to a listing found on a search
// page, used to drive follow-up detail fetches.
type SearchResultStub struct {
	SourceID        string `json:"source_id"`
	SourceURL       string `json:"source_url"`
	SourceTitle     string `json:"source_title"`
	SourceCreatedAt string `json:"source_created_at"`
}

// ComparableRecord is the VehicleRecord subset the market value estimator
// consumes, plus the two weights computed during matching.
type ComparableRecord struct {
	ID               uuid.UUID `db:"id"`
	PriceEUR         float64   `db:"price_eur"`
	Mileage          int       `db:"mileage"`
	Year             int       `db:"year"`
	SourceParameters Params    `db:"source_parameters"`

	EquivalencyWeight float64 `db:"-"`
	AttributeWeight   float64 `db:"-"`
}

// ComparableQuery selects candidate comparables. The repository applies the
// year and mileage windows and excludes soft-deleted records and ExcludeID.
type ComparableQuery struct {
	Source    Source
	Make      string
	Model     string
	Year      int
	Mileage   int
	ExcludeID uuid.UUID
}

// AnalysisUpdate carries the enrichment fields produced for one record; nil
// fields are left untouched by the repository.
type AnalysisUpdate struct {
	Description       *string
	Features          StringList
	PersonalFitScore  *float64
	MarketValueScore  *string
	AIPriorityRating  *float64
	AIPrioritySummary *string
	AIMechanicReport  *string
	AIDataSanityCheck *string
}

// Empty reports whether the update would write nothing.
func (u AnalysisUpdate) Empty() bool {
	return u.Description == nil && u.Features == nil && u.PersonalFitScore == nil &&
		u.MarketValueScore == nil && u.AIPriorityRating == nil && u.AIPrioritySummary == nil &&
		u.AIMechanicReport == nil && u.AIDataSanityCheck == nil
}

// VehicleUpdate carries the user-editable review fields.
type VehicleUpdate struct {
	Status        *VehicleStatus `json:"status,omitempty"`
	PersonalNotes *string        `json:"personal_notes,omitempty"`
}
