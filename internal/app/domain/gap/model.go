package gap

import "time"

// Severity grades how far an entity's need is from being met.
type Severity string

const (
	SeverityMet      Severity = "met"
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityCritical Severity = "critical"
)

// EntityGap is the computed shortfall for one item at one entity.
type EntityGap struct {
	EntityID  string   `json:"entity_id"`
	Sector    string   `json:"sector"`
	Item      string   `json:"item"`
	Unit      string   `json:"unit"`
	Required  float64  `json:"required"`
	Committed float64  `json:"committed"`
	Delivered float64  `json:"delivered"`
	Gap       float64  `json:"gap"`
	Severity  Severity `json:"severity"`
}

// Report is a cached gap computation for an entity.
type Report struct {
	EntityID   string      `json:"entity_id"`
	Gaps       []EntityGap `json:"gaps"`
	ComputedAt time.Time   `json:"computed_at"`
}

// DonorMatch scores a donor's open pledges against an entity's gaps.
type DonorMatch struct {
	DonorID      string   `json:"donor_id"`
	Score        float64  `json:"score"`
	MatchedItems []string `json:"matched_items"`
}
