// Package entities manages tracked locations and field assignments.
package entities

import (
	"context"
	"fmt"
	"strings"

	"github.com/aidgrid/platform/internal/app/domain/entity"
	"github.com/aidgrid/platform/internal/app/domain/user"
	"github.com/aidgrid/platform/internal/app/storage"
	"github.com/aidgrid/platform/pkg/logger"
)

// Service manages entities and responder/assessor assignments.
type Service struct {
	store storage.EntityStore
	users storage.UserStore
	log   *logger.Logger
}

// New constructs an entity service.
func New(store storage.EntityStore, users storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("entities")
	}
	return &Service{store: store, users: users, log: log}
}

func validate(e entity.Entity) error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if !e.Type.Valid() {
		return fmt.Errorf("unknown entity type %q", e.Type)
	}
	if e.Latitude < -90 || e.Latitude > 90 {
		return fmt.Errorf("latitude out of range")
	}
	if e.Longitude < -180 || e.Longitude > 180 {
		return fmt.Errorf("longitude out of range")
	}
	if e.Population < 0 || e.Households < 0 {
		return fmt.Errorf("population and households must be non-negative")
	}
	return nil
}

// Create registers a new entity.
func (s *Service) Create(ctx context.Context, e entity.Entity) (entity.Entity, error) {
	e.Name = strings.TrimSpace(e.Name)
	if err := validate(e); err != nil {
		return entity.Entity{}, err
	}
	created, err := s.store.CreateEntity(ctx, e)
	if err != nil {
		return entity.Entity{}, err
	}
	s.log.WithField("entity_id", created.ID).WithField("type", string(created.Type)).Info("entity created")
	return created, nil
}

// Update replaces mutable entity fields.
func (s *Service) Update(ctx context.Context, e entity.Entity) (entity.Entity, error) {
	existing, err := s.store.GetEntity(ctx, e.ID)
	if err != nil {
		return entity.Entity{}, err
	}
	e.Name = strings.TrimSpace(e.Name)
	e.CreatedAt = existing.CreatedAt
	if err := validate(e); err != nil {
		return entity.Entity{}, err
	}
	return s.store.UpdateEntity(ctx, e)
}

// Get retrieves an entity by identifier.
func (s *Service) Get(ctx context.Context, id string) (entity.Entity, error) {
	return s.store.GetEntity(ctx, id)
}

// List returns entities, optionally filtered by type.
func (s *Service) List(ctx context.Context, entityType entity.Type) ([]entity.Entity, error) {
	if entityType != "" && !entityType.Valid() {
		return nil, fmt.Errorf("unknown entity type %q", entityType)
	}
	return s.store.ListEntities(ctx, entityType)
}

// Assign binds a responder or assessor to an entity. Only those two roles
// can hold assignments.
func (s *Service) Assign(ctx context.Context, entityID, userID, assignedBy string) (entity.Assignment, error) {
	if _, err := s.store.GetEntity(ctx, entityID); err != nil {
		return entity.Assignment{}, err
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return entity.Assignment{}, err
	}
	if u.Role != user.RoleResponder && u.Role != user.RoleAssessor {
		return entity.Assignment{}, fmt.Errorf("only responders and assessors can be assigned, got %q", u.Role)
	}

	existing, err := s.store.ListEntityAssignments(ctx, entityID)
	if err != nil {
		return entity.Assignment{}, err
	}
	for _, a := range existing {
		if a.UserID == userID {
			return entity.Assignment{}, fmt.Errorf("user %s is already assigned to entity %s", userID, entityID)
		}
	}

	created, err := s.store.CreateAssignment(ctx, entity.Assignment{
		EntityID:   entityID,
		UserID:     userID,
		Role:       string(u.Role),
		AssignedBy: assignedBy,
	})
	if err != nil {
		return entity.Assignment{}, err
	}
	s.log.WithField("entity_id", entityID).WithField("user_id", userID).Info("assignment created")
	return created, nil
}

// Unassign removes a user's assignment from an entity.
func (s *Service) Unassign(ctx context.Context, entityID, userID string) error {
	return s.store.DeleteAssignment(ctx, entityID, userID)
}

// Assignments lists users assigned to an entity.
func (s *Service) Assignments(ctx context.Context, entityID string) ([]entity.Assignment, error) {
	if _, err := s.store.GetEntity(ctx, entityID); err != nil {
		return nil, err
	}
	return s.store.ListEntityAssignments(ctx, entityID)
}

// UserAssignments lists the entities a user is assigned to.
func (s *Service) UserAssignments(ctx context.Context, userID string) ([]entity.Assignment, error) {
	return s.store.ListUserAssignments(ctx, userID)
}

// IsAssigned reports whether the user holds an assignment to the entity.
func (s *Service) IsAssigned(ctx context.Context, entityID, userID string) (bool, error) {
	assignments, err := s.store.ListEntityAssignments(ctx, entityID)
	if err != nil {
		return false, err
	}
	for _, a := range assignments {
		if a.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}
