// Package assessments manages rapid field assessments and their
// verification workflow.
package assessments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aidgrid/platform/internal/app/domain/assessment"
	"github.com/aidgrid/platform/internal/app/events"
	"github.com/aidgrid/platform/internal/app/metrics"
	"github.com/aidgrid/platform/internal/app/storage"
	"github.com/aidgrid/platform/pkg/logger"
)

// Service manages rapid assessments.
type Service struct {
	store     storage.AssessmentStore
	entities  storage.EntityStore
	incidents storage.IncidentStore
	bus       *events.Bus
	log       *logger.Logger
}

// New constructs an assessment service.
func New(store storage.AssessmentStore, entities storage.EntityStore, incidents storage.IncidentStore, bus *events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("assessments")
	}
	return &Service{store: store, entities: entities, incidents: incidents, bus: bus, log: log}
}

func (s *Service) publish(eventType string, payload map[string]interface{}) {
	if s.bus != nil {
		s.bus.Publish(eventType, payload)
	}
}

func (s *Service) validate(ctx context.Context, a assessment.RapidAssessment) error {
	if !a.Sector.Valid() {
		return fmt.Errorf("unknown sector %q", a.Sector)
	}
	if a.AssessorID == "" {
		return fmt.Errorf("assessor is required")
	}
	if _, err := s.entities.GetEntity(ctx, a.EntityID); err != nil {
		return err
	}
	if _, err := s.incidents.GetIncident(ctx, a.IncidentID); err != nil {
		return err
	}
	for i, need := range a.Needs {
		if strings.TrimSpace(need.Item) == "" {
			return fmt.Errorf("needs[%d]: item is required", i)
		}
		if need.Quantity <= 0 {
			return fmt.Errorf("needs[%d]: quantity must be positive", i)
		}
	}
	return nil
}

// Submit records a new assessment in the pending state. Submissions carrying
// a client reference already seen from the same assessor return the stored
// record instead of creating a duplicate.
func (s *Service) Submit(ctx context.Context, a assessment.RapidAssessment) (assessment.RapidAssessment, bool, error) {
	if a.ClientRef != "" {
		existing, err := s.store.GetAssessmentByClientRef(ctx, a.AssessorID, a.ClientRef)
		if err == nil {
			return existing, true, nil
		}
	}

	if err := s.validate(ctx, a); err != nil {
		return assessment.RapidAssessment{}, false, err
	}
	if a.CapturedAt.IsZero() {
		a.CapturedAt = time.Now().UTC()
	}
	a.VerificationStatus = assessment.VerificationPending
	a.VerifiedBy = ""
	a.VerifiedAt = time.Time{}
	a.RejectionReason = ""

	created, err := s.store.CreateAssessment(ctx, a)
	if err != nil {
		return assessment.RapidAssessment{}, false, err
	}
	s.log.WithField("assessment_id", created.ID).WithField("sector", string(created.Sector)).Info("assessment submitted")
	s.publish(events.TypeAssessmentCreated, map[string]interface{}{
		"assessment_id": created.ID,
		"entity_id":     created.EntityID,
		"sector":        string(created.Sector),
	})
	return created, false, nil
}

// Get retrieves an assessment by identifier.
func (s *Service) Get(ctx context.Context, id string) (assessment.RapidAssessment, error) {
	return s.store.GetAssessment(ctx, id)
}

// List returns assessments matching the filter.
func (s *Service) List(ctx context.Context, filter storage.AssessmentFilter) ([]assessment.RapidAssessment, error) {
	if filter.Sector != "" && !filter.Sector.Valid() {
		return nil, fmt.Errorf("unknown sector %q", filter.Sector)
	}
	return s.store.ListAssessments(ctx, filter)
}

// Verify marks a pending assessment as verified. Verification is one-way.
func (s *Service) Verify(ctx context.Context, id, verifierID string) (assessment.RapidAssessment, error) {
	a, err := s.store.GetAssessment(ctx, id)
	if err != nil {
		return assessment.RapidAssessment{}, err
	}
	if a.VerificationStatus != assessment.VerificationPending {
		return assessment.RapidAssessment{}, fmt.Errorf("assessment is already %s", a.VerificationStatus)
	}
	if verifierID == a.AssessorID {
		return assessment.RapidAssessment{}, fmt.Errorf("assessors cannot verify their own assessments")
	}
	a.VerificationStatus = assessment.VerificationVerified
	a.VerifiedBy = verifierID
	a.VerifiedAt = time.Now().UTC()

	updated, err := s.store.UpdateAssessment(ctx, a)
	if err != nil {
		return assessment.RapidAssessment{}, err
	}
	s.log.WithField("assessment_id", id).WithField("verifier", verifierID).Info("assessment verified")
	metrics.RecordVerification("assessment", "verified")
	s.publish(events.TypeAssessmentVerified, map[string]interface{}{
		"assessment_id": id,
		"entity_id":     updated.EntityID,
	})
	return updated, nil
}

// Reject marks a pending assessment as rejected with a reason.
func (s *Service) Reject(ctx context.Context, id, verifierID, reason string) (assessment.RapidAssessment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return assessment.RapidAssessment{}, fmt.Errorf("rejection reason is required")
	}
	a, err := s.store.GetAssessment(ctx, id)
	if err != nil {
		return assessment.RapidAssessment{}, err
	}
	if a.VerificationStatus != assessment.VerificationPending {
		return assessment.RapidAssessment{}, fmt.Errorf("assessment is already %s", a.VerificationStatus)
	}
	a.VerificationStatus = assessment.VerificationRejected
	a.VerifiedBy = verifierID
	a.VerifiedAt = time.Now().UTC()
	a.RejectionReason = reason

	updated, err := s.store.UpdateAssessment(ctx, a)
	if err != nil {
		return assessment.RapidAssessment{}, err
	}
	s.log.WithField("assessment_id", id).Info("assessment rejected")
	metrics.RecordVerification("assessment", "rejected")
	s.publish(events.TypeAssessmentRejected, map[string]interface{}{
		"assessment_id": id,
		"reason":        reason,
	})
	return updated, nil
}

// LatestVerified returns the most recent verified assessment per sector for
// an entity, keyed by sector.
func (s *Service) LatestVerified(ctx context.Context, entityID string) (map[assessment.Sector]assessment.RapidAssessment, error) {
	list, err := s.store.ListAssessments(ctx, storage.AssessmentFilter{
		EntityID: entityID,
		Status:   assessment.VerificationVerified,
	})
	if err != nil {
		return nil, err
	}
	latest := make(map[assessment.Sector]assessment.RapidAssessment)
	for _, a := range list {
		if cur, ok := latest[a.Sector]; !ok || a.CapturedAt.After(cur.CapturedAt) {
			latest[a.Sector] = a
		}
	}
	return latest, nil
}
