// Package responses manages delivery responses and their verification.
package responses

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aidgrid/platform/internal/app/domain/assessment"
	"github.com/aidgrid/platform/internal/app/domain/commitment"
	"github.com/aidgrid/platform/internal/app/domain/response"
	"github.com/aidgrid/platform/internal/app/events"
	"github.com/aidgrid/platform/internal/app/metrics"
	"github.com/aidgrid/platform/internal/app/storage"
	"github.com/aidgrid/platform/pkg/logger"
)

// Service manages delivery responses.
type Service struct {
	store       storage.ResponseStore
	commitments storage.CommitmentStore
	entities    storage.EntityStore
	incidents   storage.IncidentStore
	bus         *events.Bus
	log         *logger.Logger
}

// New constructs a response service.
func New(store storage.ResponseStore, commitments storage.CommitmentStore, entities storage.EntityStore, incidents storage.IncidentStore, bus *events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("responses")
	}
	return &Service{store: store, commitments: commitments, entities: entities, incidents: incidents, bus: bus, log: log}
}

func (s *Service) publish(eventType string, payload map[string]interface{}) {
	if s.bus != nil {
		s.bus.Publish(eventType, payload)
	}
}

func validateItems(items []response.DeliveryItem) error {
	if len(items) == 0 {
		return fmt.Errorf("at least one delivery item is required")
	}
	for i, item := range items {
		if strings.TrimSpace(item.Item) == "" {
			return fmt.Errorf("items[%d]: item is required", i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("items[%d]: quantity must be positive", i)
		}
	}
	return nil
}

// Plan records a new delivery response in the planned state. When the
// response fulfils a commitment, the commitment must belong to the same
// entity and incident and still be open.
func (s *Service) Plan(ctx context.Context, r response.DeliveryResponse) (response.DeliveryResponse, error) {
	if r.ResponderID == "" {
		return response.DeliveryResponse{}, fmt.Errorf("responder is required")
	}
	if err := validateItems(r.Items); err != nil {
		return response.DeliveryResponse{}, err
	}
	if _, err := s.entities.GetEntity(ctx, r.EntityID); err != nil {
		return response.DeliveryResponse{}, err
	}
	if _, err := s.incidents.GetIncident(ctx, r.IncidentID); err != nil {
		return response.DeliveryResponse{}, err
	}
	if r.CommitmentID != "" {
		c, err := s.commitments.GetCommitment(ctx, r.CommitmentID)
		if err != nil {
			return response.DeliveryResponse{}, err
		}
		if c.EntityID != r.EntityID || c.IncidentID != r.IncidentID {
			return response.DeliveryResponse{}, fmt.Errorf("commitment %s targets a different entity or incident", r.CommitmentID)
		}
		if c.Status == commitment.StatusDelivered || c.Status == commitment.StatusCancelled {
			return response.DeliveryResponse{}, fmt.Errorf("commitment %s is already %s", r.CommitmentID, c.Status)
		}
	}

	r.Status = response.StatusPlanned
	r.VerificationStatus = assessment.VerificationPending
	r.VerifiedBy = ""
	r.VerifiedAt = time.Time{}
	r.RejectionReason = ""
	r.DeliveredAt = time.Time{}

	created, err := s.store.CreateResponse(ctx, r)
	if err != nil {
		return response.DeliveryResponse{}, err
	}
	s.log.WithField("response_id", created.ID).WithField("entity_id", created.EntityID).Info("response planned")
	return created, nil
}

// Get retrieves a response by identifier.
func (s *Service) Get(ctx context.Context, id string) (response.DeliveryResponse, error) {
	return s.store.GetResponse(ctx, id)
}

// List returns responses matching the filter.
func (s *Service) List(ctx context.Context, filter storage.ResponseFilter) ([]response.DeliveryResponse, error) {
	return s.store.ListResponses(ctx, filter)
}

// UpdateStatus moves a response along the delivery workflow. Reaching
// delivered stamps the delivery time and cascades to a fulfilled commitment.
func (s *Service) UpdateStatus(ctx context.Context, id string, next response.Status, actor string) (response.DeliveryResponse, error) {
	r, err := s.store.GetResponse(ctx, id)
	if err != nil {
		return response.DeliveryResponse{}, err
	}
	if r.Status == next {
		return r, nil
	}
	if !r.Status.CanTransition(next) {
		return response.DeliveryResponse{}, fmt.Errorf("cannot transition response from %q to %q", r.Status, next)
	}
	r.Status = next
	if next == response.StatusDelivered {
		r.DeliveredAt = time.Now().UTC()
	}
	updated, err := s.store.UpdateResponse(ctx, r)
	if err != nil {
		return response.DeliveryResponse{}, err
	}
	s.log.WithField("response_id", id).WithField("status", string(next)).WithField("actor", actor).Info("response status changed")

	if next == response.StatusDelivered {
		if updated.CommitmentID != "" {
			if err := s.markCommitmentDelivered(ctx, updated.CommitmentID); err != nil {
				s.log.WithError(err).WithField("commitment_id", updated.CommitmentID).Warn("commitment cascade failed")
			}
		}
		s.publish(events.TypeResponseDelivered, map[string]interface{}{
			"response_id": id,
			"entity_id":   updated.EntityID,
		})
	}
	return updated, nil
}

func (s *Service) markCommitmentDelivered(ctx context.Context, commitmentID string) error {
	c, err := s.commitments.GetCommitment(ctx, commitmentID)
	if err != nil {
		return err
	}
	if c.Status == commitment.StatusDelivered {
		return nil
	}
	if !c.Status.CanTransition(commitment.StatusDelivered) {
		return fmt.Errorf("commitment %s cannot move from %q to delivered", commitmentID, c.Status)
	}
	c.Status = commitment.StatusDelivered
	c.DeliveredAt = time.Now().UTC()
	_, err = s.commitments.UpdateCommitment(ctx, c)
	return err
}

// Verify confirms a delivered response. Only delivered responses can be
// verified, and verification is one-way.
func (s *Service) Verify(ctx context.Context, id, verifierID string) (response.DeliveryResponse, error) {
	r, err := s.store.GetResponse(ctx, id)
	if err != nil {
		return response.DeliveryResponse{}, err
	}
	if r.Status != response.StatusDelivered {
		return response.DeliveryResponse{}, fmt.Errorf("only delivered responses can be verified")
	}
	if r.VerificationStatus != assessment.VerificationPending {
		return response.DeliveryResponse{}, fmt.Errorf("response is already %s", r.VerificationStatus)
	}
	if verifierID == r.ResponderID {
		return response.DeliveryResponse{}, fmt.Errorf("responders cannot verify their own deliveries")
	}
	r.VerificationStatus = assessment.VerificationVerified
	r.VerifiedBy = verifierID
	r.VerifiedAt = time.Now().UTC()

	updated, err := s.store.UpdateResponse(ctx, r)
	if err != nil {
		return response.DeliveryResponse{}, err
	}
	s.log.WithField("response_id", id).WithField("verifier", verifierID).Info("response verified")
	metrics.RecordVerification("response", "verified")
	s.publish(events.TypeResponseVerified, map[string]interface{}{
		"response_id": id,
		"entity_id":   updated.EntityID,
	})
	return updated, nil
}

// Reject marks a delivered response as rejected with a reason.
func (s *Service) Reject(ctx context.Context, id, verifierID, reason string) (response.DeliveryResponse, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return response.DeliveryResponse{}, fmt.Errorf("rejection reason is required")
	}
	r, err := s.store.GetResponse(ctx, id)
	if err != nil {
		return response.DeliveryResponse{}, err
	}
	if r.Status != response.StatusDelivered {
		return response.DeliveryResponse{}, fmt.Errorf("only delivered responses can be rejected")
	}
	if r.VerificationStatus != assessment.VerificationPending {
		return response.DeliveryResponse{}, fmt.Errorf("response is already %s", r.VerificationStatus)
	}
	r.VerificationStatus = assessment.VerificationRejected
	r.VerifiedBy = verifierID
	r.VerifiedAt = time.Now().UTC()
	r.RejectionReason = reason

	updated, err := s.store.UpdateResponse(ctx, r)
	if err != nil {
		return response.DeliveryResponse{}, err
	}
	s.log.WithField("response_id", id).Info("response rejected")
	metrics.RecordVerification("response", "rejected")
	return updated, nil
}
