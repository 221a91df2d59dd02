// Package commitments manages donor pledges.
package commitments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aidgrid/platform/internal/app/domain/commitment"
	"github.com/aidgrid/platform/internal/app/domain/response"
	"github.com/aidgrid/platform/internal/app/events"
	"github.com/aidgrid/platform/internal/app/storage"
	"github.com/aidgrid/platform/pkg/logger"
)

// Service manages donor commitments.
type Service struct {
	store     storage.CommitmentStore
	responses storage.ResponseStore
	entities  storage.EntityStore
	incidents storage.IncidentStore
	bus       *events.Bus
	log       *logger.Logger
}

// New constructs a commitment service.
func New(store storage.CommitmentStore, responses storage.ResponseStore, entities storage.EntityStore, incidents storage.IncidentStore, bus *events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("commitments")
	}
	return &Service{store: store, responses: responses, entities: entities, incidents: incidents, bus: bus, log: log}
}

func (s *Service) publish(eventType string, payload map[string]interface{}) {
	if s.bus != nil {
		s.bus.Publish(eventType, payload)
	}
}

// Pledge records a new donor commitment in the pledged state.
func (s *Service) Pledge(ctx context.Context, c commitment.DonorCommitment) (commitment.DonorCommitment, error) {
	if c.DonorID == "" {
		return commitment.DonorCommitment{}, fmt.Errorf("donor is required")
	}
	if len(c.Items) == 0 {
		return commitment.DonorCommitment{}, fmt.Errorf("at least one committed item is required")
	}
	for i, item := range c.Items {
		if strings.TrimSpace(item.Item) == "" {
			return commitment.DonorCommitment{}, fmt.Errorf("items[%d]: item is required", i)
		}
		if item.Quantity <= 0 {
			return commitment.DonorCommitment{}, fmt.Errorf("items[%d]: quantity must be positive", i)
		}
	}
	if _, err := s.entities.GetEntity(ctx, c.EntityID); err != nil {
		return commitment.DonorCommitment{}, err
	}
	if _, err := s.incidents.GetIncident(ctx, c.IncidentID); err != nil {
		return commitment.DonorCommitment{}, err
	}

	c.Status = commitment.StatusPledged
	if c.PledgedAt.IsZero() {
		c.PledgedAt = time.Now().UTC()
	}
	c.DeliveredAt = time.Time{}

	created, err := s.store.CreateCommitment(ctx, c)
	if err != nil {
		return commitment.DonorCommitment{}, err
	}
	s.log.WithField("commitment_id", created.ID).WithField("donor_id", created.DonorID).Info("commitment pledged")
	s.publish(events.TypeCommitmentPledged, map[string]interface{}{
		"commitment_id": created.ID,
		"entity_id":     created.EntityID,
	})
	return created, nil
}

// Get retrieves a commitment by identifier.
func (s *Service) Get(ctx context.Context, id string) (commitment.DonorCommitment, error) {
	return s.store.GetCommitment(ctx, id)
}

// List returns commitments matching the filter.
func (s *Service) List(ctx context.Context, filter storage.CommitmentFilter) ([]commitment.DonorCommitment, error) {
	return s.store.ListCommitments(ctx, filter)
}

// UpdateStatus moves a commitment along the pledge workflow. Delivered and
// cancelled are terminal.
func (s *Service) UpdateStatus(ctx context.Context, id string, next commitment.Status, actor string) (commitment.DonorCommitment, error) {
	c, err := s.store.GetCommitment(ctx, id)
	if err != nil {
		return commitment.DonorCommitment{}, err
	}
	if c.Status == next {
		return c, nil
	}
	if !c.Status.CanTransition(next) {
		return commitment.DonorCommitment{}, fmt.Errorf("cannot transition commitment from %q to %q", c.Status, next)
	}
	c.Status = next
	if next == commitment.StatusDelivered {
		c.DeliveredAt = time.Now().UTC()
	}
	updated, err := s.store.UpdateCommitment(ctx, c)
	if err != nil {
		return commitment.DonorCommitment{}, err
	}
	s.log.WithField("commitment_id", id).WithField("status", string(next)).WithField("actor", actor).Info("commitment status changed")
	s.publish(events.TypeCommitmentStatus, map[string]interface{}{
		"commitment_id": id,
		"status":        string(next),
	})
	return updated, nil
}

// ConvertToResponse creates a planned delivery response fulfilling the
// commitment and moves the commitment to in_transit.
func (s *Service) ConvertToResponse(ctx context.Context, id, responderID string) (response.DeliveryResponse, error) {
	if responderID == "" {
		return response.DeliveryResponse{}, fmt.Errorf("responder is required")
	}
	c, err := s.store.GetCommitment(ctx, id)
	if err != nil {
		return response.DeliveryResponse{}, err
	}
	if c.Status != commitment.StatusPledged {
		return response.DeliveryResponse{}, fmt.Errorf("only pledged commitments can be converted, commitment is %s", c.Status)
	}

	items := make([]response.DeliveryItem, len(c.Items))
	for i, item := range c.Items {
		items[i] = response.DeliveryItem{Item: item.Item, Unit: item.Unit, Quantity: item.Quantity}
	}
	r, err := s.responses.CreateResponse(ctx, response.DeliveryResponse{
		EntityID:     c.EntityID,
		IncidentID:   c.IncidentID,
		CommitmentID: c.ID,
		ResponderID:  responderID,
		Items:        items,
		Status:       response.StatusPlanned,
	})
	if err != nil {
		return response.DeliveryResponse{}, err
	}

	c.Status = commitment.StatusInTransit
	if _, err := s.store.UpdateCommitment(ctx, c); err != nil {
		return response.DeliveryResponse{}, err
	}
	s.log.WithField("commitment_id", id).WithField("response_id", r.ID).Info("commitment converted to response")
	return r, nil
}
