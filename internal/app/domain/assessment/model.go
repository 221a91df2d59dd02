package assessment

import "time"

// Sector identifies the survey area of a rapid assessment.
type Sector string

const (
	SectorHealth     Sector = "health"
	SectorWash       Sector = "wash"
	SectorShelter    Sector = "shelter"
	SectorFood       Sector = "food"
	SectorSecurity   Sector = "security"
	SectorPopulation Sector = "population"
)

// Valid reports whether the sector is known.
func (s Sector) Valid() bool {
	switch s {
	case SectorHealth, SectorWash, SectorShelter, SectorFood, SectorSecurity, SectorPopulation:
		return true
	}
	return false
}

// VerificationStatus tracks coordinator review of a record.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// ResourceNeed quantifies a requirement identified by an assessment.
type ResourceNeed struct {
	Item     string  `json:"item"`
	Unit     string  `json:"unit"`
	Quantity float64 `json:"quantity"`
}

// RapidAssessment is a structured field survey tied to an entity within an
// incident. ClientRef is assigned by the field client and used to
// de-duplicate offline submissions.
type RapidAssessment struct {
	ID                 string                 `json:"id"`
	EntityID           string                 `json:"entity_id"`
	IncidentID         string                 `json:"incident_id"`
	AssessorID         string                 `json:"assessor_id"`
	Sector             Sector                 `json:"sector"`
	Data               map[string]interface{} `json:"data,omitempty"`
	Needs              []ResourceNeed         `json:"needs,omitempty"`
	VerificationStatus VerificationStatus     `json:"verification_status"`
	VerifiedBy         string                 `json:"verified_by,omitempty"`
	VerifiedAt         time.Time              `json:"verified_at,omitempty"`
	RejectionReason    string                 `json:"rejection_reason,omitempty"`
	ClientRef          string                 `json:"client_ref,omitempty"`
	CapturedAt         time.Time              `json:"captured_at"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}
