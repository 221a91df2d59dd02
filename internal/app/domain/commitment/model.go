package commitment

import "time"

// Status tracks the pledge workflow.
type Status string

const (
	StatusPledged   Status = "pledged"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// CanTransition reports whether the pledge status may move to next.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPledged:
		return next == StatusInTransit || next == StatusDelivered || next == StatusCancelled
	case StatusInTransit:
		return next == StatusDelivered || next == StatusCancelled
	case StatusDelivered, StatusCancelled:
		return false
	}
	return false
}

// CommittedItem is a quantity of a resource pledged by a donor.
type CommittedItem struct {
	Item     string  `json:"item"`
	Unit     string  `json:"unit"`
	Quantity float64 `json:"quantity"`
}

// DonorCommitment is a pledge of resources to an entity within an incident.
type DonorCommitment struct {
	ID          string          `json:"id"`
	DonorID     string          `json:"donor_id"`
	EntityID    string          `json:"entity_id"`
	IncidentID  string          `json:"incident_id"`
	Items       []CommittedItem `json:"items"`
	Status      Status          `json:"status"`
	Note        string          `json:"note,omitempty"`
	PledgedAt   time.Time       `json:"pledged_at"`
	DeliveredAt time.Time       `json:"delivered_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
