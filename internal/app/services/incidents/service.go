// Package incidents manages disaster events and their affected entities.
package incidents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aidgrid/platform/internal/app/domain/incident"
	"github.com/aidgrid/platform/internal/app/events"
	"github.com/aidgrid/platform/internal/app/storage"
	"github.com/aidgrid/platform/pkg/logger"
)

// Service manages the incident lifecycle.
type Service struct {
	store    storage.IncidentStore
	entities storage.EntityStore
	bus      *events.Bus
	log      *logger.Logger
}

// New constructs an incident service. The bus may be nil when event
// broadcasting is not needed.
func New(store storage.IncidentStore, entities storage.EntityStore, bus *events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("incidents")
	}
	return &Service{store: store, entities: entities, bus: bus, log: log}
}

func (s *Service) publish(eventType string, payload map[string]interface{}) {
	if s.bus != nil {
		s.bus.Publish(eventType, payload)
	}
}

// Declare opens a new incident in the active state.
func (s *Service) Declare(ctx context.Context, inc incident.Incident) (incident.Incident, error) {
	inc.Name = strings.TrimSpace(inc.Name)
	if inc.Name == "" {
		return incident.Incident{}, fmt.Errorf("name is required")
	}
	if !inc.Type.Valid() {
		return incident.Incident{}, fmt.Errorf("unknown incident type %q", inc.Type)
	}
	if !inc.Severity.Valid() {
		return incident.Incident{}, fmt.Errorf("unknown severity %q", inc.Severity)
	}
	if inc.DeclaredBy == "" {
		return incident.Incident{}, fmt.Errorf("declaring user is required")
	}
	if inc.OccurredAt.IsZero() {
		inc.OccurredAt = time.Now().UTC()
	}
	if inc.OccurredAt.After(time.Now().Add(time.Minute)) {
		return incident.Incident{}, fmt.Errorf("occurred_at cannot be in the future")
	}
	inc.Status = incident.StatusActive

	created, err := s.store.CreateIncident(ctx, inc)
	if err != nil {
		return incident.Incident{}, err
	}
	s.log.WithField("incident_id", created.ID).WithField("type", string(created.Type)).Info("incident declared")
	s.publish(events.TypeIncidentDeclared, map[string]interface{}{
		"incident_id": created.ID,
		"name":        created.Name,
		"severity":    string(created.Severity),
	})
	return created, nil
}

// Get retrieves an incident by identifier.
func (s *Service) Get(ctx context.Context, id string) (incident.Incident, error) {
	return s.store.GetIncident(ctx, id)
}

// List returns incidents, optionally filtered by status and type.
func (s *Service) List(ctx context.Context, status incident.Status, incidentType incident.Type) ([]incident.Incident, error) {
	if incidentType != "" && !incidentType.Valid() {
		return nil, fmt.Errorf("unknown incident type %q", incidentType)
	}
	return s.store.ListIncidents(ctx, status, incidentType)
}

// Update replaces mutable descriptive fields. Status changes go through
// Transition.
func (s *Service) Update(ctx context.Context, id string, severity incident.Severity, subType, source, description *string) (incident.Incident, error) {
	inc, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return incident.Incident{}, err
	}
	if severity != "" {
		if !severity.Valid() {
			return incident.Incident{}, fmt.Errorf("unknown severity %q", severity)
		}
		inc.Severity = severity
	}
	if subType != nil {
		inc.SubType = strings.TrimSpace(*subType)
	}
	if source != nil {
		inc.Source = strings.TrimSpace(*source)
	}
	if description != nil {
		inc.Description = strings.TrimSpace(*description)
	}
	return s.store.UpdateIncident(ctx, inc)
}

// Transition moves the incident along the containment workflow. A resolved
// incident stays resolved.
func (s *Service) Transition(ctx context.Context, id string, next incident.Status, actor string) (incident.Incident, error) {
	inc, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return incident.Incident{}, err
	}
	if inc.Status == next {
		return inc, nil
	}
	if !inc.Status.CanTransition(next) {
		return incident.Incident{}, fmt.Errorf("cannot transition incident from %q to %q", inc.Status, next)
	}
	inc.Status = next
	updated, err := s.store.UpdateIncident(ctx, inc)
	if err != nil {
		return incident.Incident{}, err
	}
	s.log.WithField("incident_id", id).WithField("status", string(next)).WithField("actor", actor).Info("incident status changed")
	s.publish(events.TypeIncidentStatus, map[string]interface{}{
		"incident_id": id,
		"status":      string(next),
	})
	return updated, nil
}

// LinkEntity marks an entity as affected by the incident.
func (s *Service) LinkEntity(ctx context.Context, incidentID, entityID, linkedBy string) (incident.EntityLink, error) {
	inc, err := s.store.GetIncident(ctx, incidentID)
	if err != nil {
		return incident.EntityLink{}, err
	}
	if inc.Status == incident.StatusResolved {
		return incident.EntityLink{}, fmt.Errorf("cannot link entities to a resolved incident")
	}
	if _, err := s.entities.GetEntity(ctx, entityID); err != nil {
		return incident.EntityLink{}, err
	}
	linked, err := s.store.IsEntityLinked(ctx, incidentID, entityID)
	if err != nil {
		return incident.EntityLink{}, err
	}
	if linked {
		return incident.EntityLink{}, fmt.Errorf("entity %s is already linked to incident %s", entityID, incidentID)
	}
	return s.store.LinkEntity(ctx, incident.EntityLink{
		IncidentID: incidentID,
		EntityID:   entityID,
		LinkedBy:   linkedBy,
	})
}

// UnlinkEntity removes an affected-entity link.
func (s *Service) UnlinkEntity(ctx context.Context, incidentID, entityID string) error {
	return s.store.UnlinkEntity(ctx, incidentID, entityID)
}

// Entities lists the entity links of an incident.
func (s *Service) Entities(ctx context.Context, incidentID string) ([]incident.EntityLink, error) {
	if _, err := s.store.GetIncident(ctx, incidentID); err != nil {
		return nil, err
	}
	return s.store.ListIncidentEntities(ctx, incidentID)
}

// RequireLinked returns an error unless the entity is linked to the incident.
func (s *Service) RequireLinked(ctx context.Context, incidentID, entityID string) error {
	linked, err := s.store.IsEntityLinked(ctx, incidentID, entityID)
	if err != nil {
		return err
	}
	if !linked {
		return fmt.Errorf("entity %s is not linked to incident %s", entityID, incidentID)
	}
	return nil
}
