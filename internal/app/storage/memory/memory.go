// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aidgrid/platform/internal/app/domain/assessment"
	"github.com/aidgrid/platform/internal/app/domain/commitment"
	"github.com/aidgrid/platform/internal/app/domain/entity"
	"github.com/aidgrid/platform/internal/app/domain/gap"
	"github.com/aidgrid/platform/internal/app/domain/incident"
	"github.com/aidgrid/platform/internal/app/domain/response"
	"github.com/aidgrid/platform/internal/app/domain/user"
	"github.com/aidgrid/platform/internal/app/storage"
)

// Store implements all storage interfaces in memory.
type Store struct {
	mu     sync.RWMutex
	nextID int64

	users        map[string]user.User
	usersByEmail map[string]string

	entities    map[string]entity.Entity
	assignments map[string]entity.Assignment // key: entityID+"/"+userID

	incidents map[string]incident.Incident
	links     map[string]incident.EntityLink // key: incidentID+"/"+entityID

	assessments            map[string]assessment.RapidAssessment
	assessmentsByClientRef map[string]string // key: assessorID+"/"+clientRef

	responses   map[string]response.DeliveryResponse
	commitments map[string]commitment.DonorCommitment
	gapReports  map[string]gap.Report
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.EntityStore = (*Store)(nil)
var _ storage.IncidentStore = (*Store)(nil)
var _ storage.AssessmentStore = (*Store)(nil)
var _ storage.ResponseStore = (*Store)(nil)
var _ storage.CommitmentStore = (*Store)(nil)
var _ storage.GapStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:                 1,
		users:                  make(map[string]user.User),
		usersByEmail:           make(map[string]string),
		entities:               make(map[string]entity.Entity),
		assignments:            make(map[string]entity.Assignment),
		incidents:              make(map[string]incident.Incident),
		links:                  make(map[string]incident.EntityLink),
		assessments:            make(map[string]assessment.RapidAssessment),
		assessmentsByClientRef: make(map[string]string),
		responses:              make(map[string]response.DeliveryResponse),
		commitments:            make(map[string]commitment.DonorCommitment),
		gapReports:             make(map[string]gap.Report),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = s.nextIDLocked()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, fmt.Errorf("user %s already exists", u.ID)
	}
	if _, exists := s.usersByEmail[u.Email]; exists {
		return user.User{}, fmt.Errorf("email %s already registered", u.Email)
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = u
	s.usersByEmail[u.Email] = u.ID
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[u.ID]
	if !ok {
		return user.User{}, fmt.Errorf("user %s not found", u.ID)
	}
	if existing.Email != u.Email {
		if _, exists := s.usersByEmail[u.Email]; exists {
			return user.User{}, fmt.Errorf("email %s already registered", u.Email)
		}
		delete(s.usersByEmail, existing.Email)
		s.usersByEmail[u.Email] = u.ID
	}

	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %s not found", id)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[email]
	if !ok {
		return user.User{}, fmt.Errorf("user with email %s not found", email)
	}
	return s.users[id], nil
}

func (s *Store) ListUsers(_ context.Context, role user.Role) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		if role != "" && u.Role != role {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// EntityStore implementation --------------------------------------------------

func (s *Store) CreateEntity(_ context.Context, e entity.Entity) (entity.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = s.nextIDLocked()
	} else if _, exists := s.entities[e.ID]; exists {
		return entity.Entity{}, fmt.Errorf("entity %s already exists", e.ID)
	}

	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	s.entities[e.ID] = e
	return e, nil
}

func (s *Store) UpdateEntity(_ context.Context, e entity.Entity) (entity.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.entities[e.ID]
	if !ok {
		return entity.Entity{}, fmt.Errorf("entity %s not found", e.ID)
	}
	e.CreatedAt = existing.CreatedAt
	e.UpdatedAt = time.Now().UTC()
	s.entities[e.ID] = e
	return e, nil
}

func (s *Store) GetEntity(_ context.Context, id string) (entity.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	if !ok {
		return entity.Entity{}, fmt.Errorf("entity %s not found", id)
	}
	return e, nil
}

func (s *Store) ListEntities(_ context.Context, entityType entity.Type) ([]entity.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.Entity, 0, len(s.entities))
	for _, e := range s.entities {
		if entityType != "" && e.Type != entityType {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func assignmentKey(entityID, userID string) string {
	return entityID + "/" + userID
}

func (s *Store) CreateAssignment(_ context.Context, a entity.Assignment) (entity.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := assignmentKey(a.EntityID, a.UserID)
	if _, exists := s.assignments[key]; exists {
		return entity.Assignment{}, fmt.Errorf("user %s already assigned to entity %s", a.UserID, a.EntityID)
	}
	if a.ID == "" {
		a.ID = s.nextIDLocked()
	}
	a.CreatedAt = time.Now().UTC()
	s.assignments[key] = a
	return a, nil
}

func (s *Store) DeleteAssignment(_ context.Context, entityID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := assignmentKey(entityID, userID)
	if _, exists := s.assignments[key]; !exists {
		return fmt.Errorf("assignment not found for entity %s and user %s", entityID, userID)
	}
	delete(s.assignments, key)
	return nil
}

func (s *Store) ListEntityAssignments(_ context.Context, entityID string) ([]entity.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entity.Assignment
	for _, a := range s.assignments {
		if a.EntityID == entityID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListUserAssignments(_ context.Context, userID string) ([]entity.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entity.Assignment
	for _, a := range s.assignments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// IncidentStore implementation ------------------------------------------------

func (s *Store) CreateIncident(_ context.Context, inc incident.Incident) (incident.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inc.ID == "" {
		inc.ID = s.nextIDLocked()
	} else if _, exists := s.incidents[inc.ID]; exists {
		return incident.Incident{}, fmt.Errorf("incident %s already exists", inc.ID)
	}

	now := time.Now().UTC()
	inc.CreatedAt = now
	inc.UpdatedAt = now
	s.incidents[inc.ID] = inc
	return inc, nil
}

func (s *Store) UpdateIncident(_ context.Context, inc incident.Incident) (incident.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.incidents[inc.ID]
	if !ok {
		return incident.Incident{}, fmt.Errorf("incident %s not found", inc.ID)
	}
	inc.CreatedAt = existing.CreatedAt
	inc.UpdatedAt = time.Now().UTC()
	s.incidents[inc.ID] = inc
	return inc, nil
}

func (s *Store) GetIncident(_ context.Context, id string) (incident.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inc, ok := s.incidents[id]
	if !ok {
		return incident.Incident{}, fmt.Errorf("incident %s not found", id)
	}
	return inc, nil
}

func (s *Store) ListIncidents(_ context.Context, status incident.Status, incidentType incident.Type) ([]incident.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]incident.Incident, 0, len(s.incidents))
	for _, inc := range s.incidents {
		if status != "" && inc.Status != status {
			continue
		}
		if incidentType != "" && inc.Type != incidentType {
			continue
		}
		out = append(out, inc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func linkKey(incidentID, entityID string) string {
	return incidentID + "/" + entityID
}

func (s *Store) LinkEntity(_ context.Context, link incident.EntityLink) (incident.EntityLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := linkKey(link.IncidentID, link.EntityID)
	if _, exists := s.links[key]; exists {
		return incident.EntityLink{}, fmt.Errorf("entity %s already linked to incident %s", link.EntityID, link.IncidentID)
	}
	link.LinkedAt = time.Now().UTC()
	s.links[key] = link
	return link, nil
}

func (s *Store) UnlinkEntity(_ context.Context, incidentID, entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := linkKey(incidentID, entityID)
	if _, exists := s.links[key]; !exists {
		return fmt.Errorf("entity %s not linked to incident %s", entityID, incidentID)
	}
	delete(s.links, key)
	return nil
}

func (s *Store) ListIncidentEntities(_ context.Context, incidentID string) ([]incident.EntityLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []incident.EntityLink
	for _, link := range s.links {
		if link.IncidentID == incidentID {
			out = append(out, link)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LinkedAt.Before(out[j].LinkedAt) })
	return out, nil
}

func (s *Store) IsEntityLinked(_ context.Context, incidentID, entityID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.links[linkKey(incidentID, entityID)]
	return ok, nil
}

// AssessmentStore implementation ----------------------------------------------

func clientRefKey(assessorID, clientRef string) string {
	return assessorID + "/" + clientRef
}

func (s *Store) CreateAssessment(_ context.Context, a assessment.RapidAssessment) (assessment.RapidAssessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ClientRef != "" {
		if _, exists := s.assessmentsByClientRef[clientRefKey(a.AssessorID, a.ClientRef)]; exists {
			return assessment.RapidAssessment{}, fmt.Errorf("client ref %s already submitted by assessor %s", a.ClientRef, a.AssessorID)
		}
	}
	if a.ID == "" {
		a.ID = s.nextIDLocked()
	} else if _, exists := s.assessments[a.ID]; exists {
		return assessment.RapidAssessment{}, fmt.Errorf("assessment %s already exists", a.ID)
	}

	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	s.assessments[a.ID] = a
	if a.ClientRef != "" {
		s.assessmentsByClientRef[clientRefKey(a.AssessorID, a.ClientRef)] = a.ID
	}
	return a, nil
}

func (s *Store) UpdateAssessment(_ context.Context, a assessment.RapidAssessment) (assessment.RapidAssessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.assessments[a.ID]
	if !ok {
		return assessment.RapidAssessment{}, fmt.Errorf("assessment %s not found", a.ID)
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = time.Now().UTC()
	s.assessments[a.ID] = a
	return a, nil
}

func (s *Store) GetAssessment(_ context.Context, id string) (assessment.RapidAssessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assessments[id]
	if !ok {
		return assessment.RapidAssessment{}, fmt.Errorf("assessment %s not found", id)
	}
	return a, nil
}

func (s *Store) GetAssessmentByClientRef(_ context.Context, assessorID, clientRef string) (assessment.RapidAssessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.assessmentsByClientRef[clientRefKey(assessorID, clientRef)]
	if !ok {
		return assessment.RapidAssessment{}, fmt.Errorf("assessment with client ref %s not found", clientRef)
	}
	return s.assessments[id], nil
}

func (s *Store) ListAssessments(_ context.Context, filter storage.AssessmentFilter) ([]assessment.RapidAssessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []assessment.RapidAssessment
	for _, a := range s.assessments {
		if filter.EntityID != "" && a.EntityID != filter.EntityID {
			continue
		}
		if filter.IncidentID != "" && a.IncidentID != filter.IncidentID {
			continue
		}
		if filter.AssessorID != "" && a.AssessorID != filter.AssessorID {
			continue
		}
		if filter.Status != "" && a.VerificationStatus != filter.Status {
			continue
		}
		if filter.Sector != "" && a.Sector != filter.Sector {
			continue
		}
		if !filter.Since.IsZero() && a.CreatedAt.Before(filter.Since) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ResponseStore implementation ------------------------------------------------

func (s *Store) CreateResponse(_ context.Context, r response.DeliveryResponse) (response.DeliveryResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = s.nextIDLocked()
	} else if _, exists := s.responses[r.ID]; exists {
		return response.DeliveryResponse{}, fmt.Errorf("response %s already exists", r.ID)
	}

	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	s.responses[r.ID] = r
	return r, nil
}

func (s *Store) UpdateResponse(_ context.Context, r response.DeliveryResponse) (response.DeliveryResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.responses[r.ID]
	if !ok {
		return response.DeliveryResponse{}, fmt.Errorf("response %s not found", r.ID)
	}
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = time.Now().UTC()
	s.responses[r.ID] = r
	return r, nil
}

func (s *Store) GetResponse(_ context.Context, id string) (response.DeliveryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.responses[id]
	if !ok {
		return response.DeliveryResponse{}, fmt.Errorf("response %s not found", id)
	}
	return r, nil
}

func (s *Store) ListResponses(_ context.Context, filter storage.ResponseFilter) ([]response.DeliveryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []response.DeliveryResponse
	for _, r := range s.responses {
		if filter.EntityID != "" && r.EntityID != filter.EntityID {
			continue
		}
		if filter.IncidentID != "" && r.IncidentID != filter.IncidentID {
			continue
		}
		if filter.ResponderID != "" && r.ResponderID != filter.ResponderID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.VerificationStatus != "" && r.VerificationStatus != filter.VerificationStatus {
			continue
		}
		if !filter.Since.IsZero() && r.CreatedAt.Before(filter.Since) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// CommitmentStore implementation ----------------------------------------------

func (s *Store) CreateCommitment(_ context.Context, c commitment.DonorCommitment) (commitment.DonorCommitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = s.nextIDLocked()
	} else if _, exists := s.commitments[c.ID]; exists {
		return commitment.DonorCommitment{}, fmt.Errorf("commitment %s already exists", c.ID)
	}

	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	s.commitments[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCommitment(_ context.Context, c commitment.DonorCommitment) (commitment.DonorCommitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.commitments[c.ID]
	if !ok {
		return commitment.DonorCommitment{}, fmt.Errorf("commitment %s not found", c.ID)
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	s.commitments[c.ID] = c
	return c, nil
}

func (s *Store) GetCommitment(_ context.Context, id string) (commitment.DonorCommitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.commitments[id]
	if !ok {
		return commitment.DonorCommitment{}, fmt.Errorf("commitment %s not found", id)
	}
	return c, nil
}

func (s *Store) ListCommitments(_ context.Context, filter storage.CommitmentFilter) ([]commitment.DonorCommitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []commitment.DonorCommitment
	for _, c := range s.commitments {
		if filter.DonorID != "" && c.DonorID != filter.DonorID {
			continue
		}
		if filter.EntityID != "" && c.EntityID != filter.EntityID {
			continue
		}
		if filter.IncidentID != "" && c.IncidentID != filter.IncidentID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && c.CreatedAt.Before(filter.Since) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PledgedAt.Equal(out[j].PledgedAt) {
			return strings.Compare(out[i].ID, out[j].ID) < 0
		}
		return out[i].PledgedAt.Before(out[j].PledgedAt)
	})
	return out, nil
}

// GapStore implementation -----------------------------------------------------

func (s *Store) SaveGapReport(_ context.Context, report gap.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gapReports[report.EntityID] = report
	return nil
}

func (s *Store) GetGapReport(_ context.Context, entityID string) (gap.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.gapReports[entityID]
	if !ok {
		return gap.Report{}, fmt.Errorf("no gap report for entity %s", entityID)
	}
	return report, nil
}
