package domain

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // claimant zones must resolve on hosts without a zoneinfo database
)

// Category is the insurance product a claim is filed under.
// It is a closed set; rule dispatch is keyed on it.
type Category string

const (
	CategoryMotor        Category = "Motor Insurance"
	CategoryHealth       Category = "Health Insurance"
	CategoryProperty     Category = "Property/Home Insurance"
	CategoryLife         Category = "Life Insurance"
	CategoryBusiness     Category = "Business/Commercial Insurance"
	CategoryMarine       Category = "Marine/Cargo Insurance"
	CategoryAgricultural Category = "Agricultural Insurance"
	CategoryLiability    Category = "Liability Insurance"
)

// Categories lists every supported category in display order.
var Categories = []Category{
	CategoryMotor,
	CategoryHealth,
	CategoryProperty,
	CategoryLife,
	CategoryBusiness,
	CategoryMarine,
	CategoryAgricultural,
	CategoryLiability,
}

var categoryAliases = map[string]Category{
	"motor":        CategoryMotor,
	"health":       CategoryHealth,
	"property":     CategoryProperty,
	"home":         CategoryProperty,
	"life":         CategoryLife,
	"business":     CategoryBusiness,
	"commercial":   CategoryBusiness,
	"marine":       CategoryMarine,
	"cargo":        CategoryMarine,
	"agricultural": CategoryAgricultural,
	"liability":    CategoryLiability,
}

// ParseCategory resolves a wire name or short alias to a Category.
func ParseCategory(s string) (Category, error) {
	trimmed := strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(trimmed, string(c)) {
			return c, nil
		}
	}
	if c, ok := categoryAliases[strings.ToLower(trimmed)]; ok {
		return c, nil
	}
	return "", fmt.Errorf("%w: unknown claim category %q", ErrInvalidInput, s)
}

// Valid reports whether c is one of the supported categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ClaimStatus is the lifecycle state shown to the claimant.
type ClaimStatus string

const (
	StatusPending     ClaimStatus = "Pending"
	StatusApproved    ClaimStatus = "Approved"
	StatusUnderReview ClaimStatus = "Under Review"
	StatusRejected    ClaimStatus = "Rejected"
)

// IncidentDetails describes what happened. Nothing is validated here:
// a short description or a missing date are scoring signals.
//
// A date-only IncidentDate is stored as UTC midnight of that calendar day.
// TimeZone is the claimant's IANA zone, used to decide which calendar day
// "today" is when checking for future dates.
type IncidentDetails struct {
	Description  string     `json:"description"`
	IncidentDate *time.Time `json:"incidentDate,omitempty"`
	TimeZone     string     `json:"timeZone,omitempty"`
	Location     string     `json:"location"`
}

// Zone returns the claimant's location, or nil when none was given.
func (d IncidentDetails) Zone() *time.Location {
	if d.TimeZone == "" {
		return nil
	}
	loc, err := time.LoadLocation(d.TimeZone)
	if err != nil {
		return nil
	}
	return loc
}

// Attachment is an uploaded file reference. Identity is by name only.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Evidence holds the photos and documents attached to a claim, in upload order.
type Evidence struct {
	Photos    []Attachment `json:"photos"`
	Documents []Attachment `json:"documents"`
}

// ClaimRecord is the engine's sole input. It is built once at submission and
// never mutated by scoring.
type ClaimRecord struct {
	ID              string          `json:"id"`
	Category        Category        `json:"claimType"`
	IncidentDetails IncidentDetails `json:"incidentDetails"`
	Evidence        Evidence        `json:"evidence"`
	DamageAnalysis  *DamageAnalysis `json:"damageAnalysis,omitempty"`
	Status          ClaimStatus     `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// ClaimRequest is the API payload for filing a claim.
type ClaimRequest struct {
	ClaimType      string          `json:"claimType"`
	Description    string          `json:"description"`
	IncidentDate   string          `json:"incidentDate,omitempty"`
	TimeZone       string          `json:"timeZone,omitempty"`
	Location       string          `json:"location"`
	Photos         []Attachment    `json:"photos,omitempty"`
	Documents      []Attachment    `json:"documents,omitempty"`
	DamageAnalysis *DamageAnalysis `json:"damageAnalysis,omitempty"`
}

// incidentDateLayouts are tried in order when parsing ClaimRequest.IncidentDate.
var incidentDateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	time.RFC3339Nano,
}

// ToClaim validates the request and converts it to a ClaimRecord.
// The caller assigns the ID.
func (r *ClaimRequest) ToClaim(now time.Time) (*ClaimRecord, error) {
	category, err := ParseCategory(r.ClaimType)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(r.Description) == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	if strings.TrimSpace(r.Location) == "" {
		return nil, fmt.Errorf("%w: location is required", ErrInvalidInput)
	}

	var incidentDate *time.Time
	if strings.TrimSpace(r.IncidentDate) != "" {
		d, err := parseIncidentDate(r.IncidentDate)
		if err != nil {
			return nil, err
		}
		incidentDate = &d
	}

	zone := strings.TrimSpace(r.TimeZone)
	if zone != "" {
		if _, err := time.LoadLocation(zone); err != nil {
			return nil, fmt.Errorf("%w: unknown timeZone %q", ErrInvalidInput, zone)
		}
	}

	photos := r.Photos
	if photos == nil {
		photos = []Attachment{}
	}
	documents := r.Documents
	if documents == nil {
		documents = []Attachment{}
	}

	return &ClaimRecord{
		Category: category,
		IncidentDetails: IncidentDetails{
			Description:  r.Description,
			IncidentDate: incidentDate,
			TimeZone:     zone,
			Location:     r.Location,
		},
		Evidence: Evidence{
			Photos:    photos,
			Documents: documents,
		},
		DamageAnalysis: r.DamageAnalysis,
		Status:         StatusPending,
		CreatedAt:      now.UTC(),
	}, nil
}

func parseIncidentDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range incidentDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: incidentDate %q is not a date (want YYYY-MM-DD)", ErrInvalidInput, s)
}

// ClaimSummary is the dashboard row for a stored claim.
type ClaimSummary struct {
	ID        string      `json:"id"`
	ClaimType Category    `json:"claimType"`
	Status    ClaimStatus `json:"status"`
	RiskScore int         `json:"riskScore"`
	RiskLevel RiskLevel   `json:"riskLevel"`
	CreatedAt time.Time   `json:"createdAt"`
}
