package storage

import (
	"context"
	"time"

	"github.com/aidgrid/platform/internal/app/domain/assessment"
	"github.com/aidgrid/platform/internal/app/domain/commitment"
	"github.com/aidgrid/platform/internal/app/domain/entity"
	"github.com/aidgrid/platform/internal/app/domain/gap"
	"github.com/aidgrid/platform/internal/app/domain/incident"
	"github.com/aidgrid/platform/internal/app/domain/response"
	"github.com/aidgrid/platform/internal/app/domain/user"
)

// AssessmentFilter narrows assessment listings. Zero values match everything.
type AssessmentFilter struct {
	EntityID   string
	IncidentID string
	AssessorID string
	Status     assessment.VerificationStatus
	Sector     assessment.Sector
	Since      time.Time
}

// ResponseFilter narrows delivery response listings.
type ResponseFilter struct {
	EntityID           string
	IncidentID         string
	ResponderID        string
	Status             response.Status
	VerificationStatus assessment.VerificationStatus
	Since              time.Time
}

// CommitmentFilter narrows donor commitment listings.
type CommitmentFilter struct {
	DonorID    string
	EntityID   string
	IncidentID string
	Status     commitment.Status
	Since      time.Time
}

// UserStore persists platform accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	ListUsers(ctx context.Context, role user.Role) ([]user.User, error)
}

// EntityStore persists entities and responder/assessor assignments.
type EntityStore interface {
	CreateEntity(ctx context.Context, e entity.Entity) (entity.Entity, error)
	UpdateEntity(ctx context.Context, e entity.Entity) (entity.Entity, error)
	GetEntity(ctx context.Context, id string) (entity.Entity, error)
	ListEntities(ctx context.Context, entityType entity.Type) ([]entity.Entity, error)

	CreateAssignment(ctx context.Context, a entity.Assignment) (entity.Assignment, error)
	DeleteAssignment(ctx context.Context, entityID, userID string) error
	ListEntityAssignments(ctx context.Context, entityID string) ([]entity.Assignment, error)
	ListUserAssignments(ctx context.Context, userID string) ([]entity.Assignment, error)
}

// IncidentStore persists incidents and affected-entity links.
type IncidentStore interface {
	CreateIncident(ctx context.Context, inc incident.Incident) (incident.Incident, error)
	UpdateIncident(ctx context.Context, inc incident.Incident) (incident.Incident, error)
	GetIncident(ctx context.Context, id string) (incident.Incident, error)
	ListIncidents(ctx context.Context, status incident.Status, incidentType incident.Type) ([]incident.Incident, error)

	LinkEntity(ctx context.Context, link incident.EntityLink) (incident.EntityLink, error)
	UnlinkEntity(ctx context.Context, incidentID, entityID string) error
	ListIncidentEntities(ctx context.Context, incidentID string) ([]incident.EntityLink, error)
	IsEntityLinked(ctx context.Context, incidentID, entityID string) (bool, error)
}

// AssessmentStore persists rapid assessments.
type AssessmentStore interface {
	CreateAssessment(ctx context.Context, a assessment.RapidAssessment) (assessment.RapidAssessment, error)
	UpdateAssessment(ctx context.Context, a assessment.RapidAssessment) (assessment.RapidAssessment, error)
	GetAssessment(ctx context.Context, id string) (assessment.RapidAssessment, error)
	GetAssessmentByClientRef(ctx context.Context, assessorID, clientRef string) (assessment.RapidAssessment, error)
	ListAssessments(ctx context.Context, filter AssessmentFilter) ([]assessment.RapidAssessment, error)
}

// ResponseStore persists delivery responses.
type ResponseStore interface {
	CreateResponse(ctx context.Context, r response.DeliveryResponse) (response.DeliveryResponse, error)
	UpdateResponse(ctx context.Context, r response.DeliveryResponse) (response.DeliveryResponse, error)
	GetResponse(ctx context.Context, id string) (response.DeliveryResponse, error)
	ListResponses(ctx context.Context, filter ResponseFilter) ([]response.DeliveryResponse, error)
}

// CommitmentStore persists donor commitments.
type CommitmentStore interface {
	CreateCommitment(ctx context.Context, c commitment.DonorCommitment) (commitment.DonorCommitment, error)
	UpdateCommitment(ctx context.Context, c commitment.DonorCommitment) (commitment.DonorCommitment, error)
	GetCommitment(ctx context.Context, id string) (commitment.DonorCommitment, error)
	ListCommitments(ctx context.Context, filter CommitmentFilter) ([]commitment.DonorCommitment, error)
}

// GapStore caches computed gap reports per entity.
type GapStore interface {
	SaveGapReport(ctx context.Context, report gap.Report) error
	GetGapReport(ctx context.Context, entityID string) (gap.Report, error)
}
