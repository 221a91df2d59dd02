package incident

import "time"

// Type classifies a disaster event.
type Type string

const (
	TypeFlood     Type = "flood"
	TypeFire      Type = "fire"
	TypeLandslide Type = "landslide"
	TypeCyclone   Type = "cyclone"
	TypeConflict  Type = "conflict"
	TypeEpidemic  Type = "epidemic"
	TypeOther     Type = "other"
)

// Valid reports whether the incident type is known.
func (t Type) Valid() bool {
	switch t {
	case TypeFlood, TypeFire, TypeLandslide, TypeCyclone, TypeConflict, TypeEpidemic, TypeOther:
		return true
	}
	return false
}

// Severity grades impact.
type Severity string

const (
	SeverityMinor        Severity = "minor"
	SeverityModerate     Severity = "moderate"
	SeveritySevere       Severity = "severe"
	SeverityCatastrophic Severity = "catastrophic"
)

// Valid reports whether the severity is known.
func (s Severity) Valid() bool {
	switch s {
	case SeverityMinor, SeverityModerate, SeveritySevere, SeverityCatastrophic:
		return true
	}
	return false
}

// Status tracks the incident workflow.
type Status string

const (
	StatusActive    Status = "active"
	StatusContained Status = "contained"
	StatusResolved  Status = "resolved"
)

// CanTransition reports whether the status may move to next along the
// containment workflow. Contained incidents can flare back to active;
// resolved is terminal.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusActive:
		return next == StatusContained || next == StatusResolved
	case StatusContained:
		return next == StatusResolved || next == StatusActive
	case StatusResolved:
		return false
	}
	return false
}

// Incident is a disaster event with affected entities linked to it.
type Incident struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        Type      `json:"type"`
	SubType     string    `json:"sub_type,omitempty"`
	Severity    Severity  `json:"severity"`
	Status      Status    `json:"status"`
	Source      string    `json:"source,omitempty"`
	Description string    `json:"description,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	DeclaredBy  string    `json:"declared_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EntityLink associates an affected entity with an incident.
type EntityLink struct {
	IncidentID string    `json:"incident_id"`
	EntityID   string    `json:"entity_id"`
	LinkedBy   string    `json:"linked_by"`
	LinkedAt   time.Time `json:"linked_at"`
}
