package response

import (
	"time"

	"github.com/aidgrid/platform/internal/app/domain/assessment"
)

// Status tracks the delivery workflow.
type Status string

const (
	StatusPlanned   Status = "planned"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
)

// CanTransition reports whether the delivery status may move to next.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPlanned:
		return next == StatusInTransit || next == StatusDelivered
	case StatusInTransit:
		return next == StatusDelivered
	case StatusDelivered:
		return false
	}
	return false
}

// DeliveryItem is a quantity of a resource included in a delivery.
type DeliveryItem struct {
	Item     string  `json:"item"`
	Unit     string  `json:"unit"`
	Quantity float64 `json:"quantity"`
}

// DeliveryResponse records resources moved to an entity, optionally
// fulfilling a donor commitment.
type DeliveryResponse struct {
	ID                 string                        `json:"id"`
	EntityID           string                        `json:"entity_id"`
	IncidentID         string                        `json:"incident_id"`
	CommitmentID       string                        `json:"commitment_id,omitempty"`
	ResponderID        string                        `json:"responder_id"`
	Items              []DeliveryItem                `json:"items"`
	Status             Status                        `json:"status"`
	VerificationStatus assessment.VerificationStatus `json:"verification_status"`
	VerifiedBy         string                        `json:"verified_by,omitempty"`
	VerifiedAt         time.Time                     `json:"verified_at,omitempty"`
	RejectionReason    string                        `json:"rejection_reason,omitempty"`
	DeliveredAt        time.Time                     `json:"delivered_at,omitempty"`
	CreatedAt          time.Time                     `json:"created_at"`
	UpdatedAt          time.Time                     `json:"updated_at"`
}
