// Package sync ingests batches of offline-captured assessments from field
// clients.
package sync

import (
	"context"

	"github.com/aidgrid/platform/internal/app/domain/assessment"
	"github.com/aidgrid/platform/internal/app/metrics"
	"github.com/aidgrid/platform/internal/app/services/assessments"
	"github.com/aidgrid/platform/pkg/logger"
)

// Item outcome codes returned per batch entry.
const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeInvalid   = "invalid"
)

// BatchItem is one offline submission. ClientRef must be unique per
// assessor and is used to de-duplicate retried uploads.
type BatchItem struct {
	ClientRef  string                    `json:"client_ref"`
	EntityID   string                    `json:"entity_id"`
	IncidentID string                    `json:"incident_id"`
	Sector     assessment.Sector         `json:"sector"`
	Data       map[string]interface{}    `json:"data,omitempty"`
	Needs      []assessment.ResourceNeed `json:"needs,omitempty"`
	CapturedAt string                    `json:"captured_at,omitempty"`
}

// ItemResult reports the outcome of one batch entry.
type ItemResult struct {
	ClientRef    string `json:"client_ref"`
	Outcome      string `json:"outcome"`
	AssessmentID string `json:"assessment_id,omitempty"`
	Error        string `json:"error,omitempty"`
}

// BatchResult summarizes a processed batch.
type BatchResult struct {
	Created    int          `json:"created"`
	Duplicates int          `json:"duplicates"`
	Invalid    int          `json:"invalid"`
	Results    []ItemResult `json:"results"`
}

// Service processes offline sync batches.
type Service struct {
	assessments *assessments.Service
	log         *logger.Logger
}

// New constructs a sync service.
func New(assessmentSvc *assessments.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("sync")
	}
	return &Service{assessments: assessmentSvc, log: log}
}

// ProcessBatch submits each item on behalf of the assessor. Items are
// processed independently so one invalid entry never fails the batch.
func (s *Service) ProcessBatch(ctx context.Context, assessorID string, items []BatchItem) BatchResult {
	result := BatchResult{Results: make([]ItemResult, 0, len(items))}

	for _, item := range items {
		ir := ItemResult{ClientRef: item.ClientRef}

		if item.ClientRef == "" {
			ir.Outcome = OutcomeInvalid
			ir.Error = "client_ref is required"
			result.Invalid++
			metrics.RecordSyncItem(ir.Outcome)
			result.Results = append(result.Results, ir)
			continue
		}

		a := assessment.RapidAssessment{
			EntityID:   item.EntityID,
			IncidentID: item.IncidentID,
			AssessorID: assessorID,
			Sector:     item.Sector,
			Data:       item.Data,
			Needs:      item.Needs,
			ClientRef:  item.ClientRef,
		}
		if item.CapturedAt != "" {
			if t, err := parseTimestamp(item.CapturedAt); err == nil {
				a.CapturedAt = t
			}
		}

		created, duplicate, err := s.assessments.Submit(ctx, a)
		switch {
		case err != nil:
			ir.Outcome = OutcomeInvalid
			ir.Error = err.Error()
			result.Invalid++
		case duplicate:
			ir.Outcome = OutcomeDuplicate
			ir.AssessmentID = created.ID
			result.Duplicates++
		default:
			ir.Outcome = OutcomeCreated
			ir.AssessmentID = created.ID
			result.Created++
		}
		metrics.RecordSyncItem(ir.Outcome)
		result.Results = append(result.Results, ir)
	}

	s.log.WithField("assessor_id", assessorID).
		WithField("created", result.Created).
		WithField("duplicates", result.Duplicates).
		WithField("invalid", result.Invalid).
		Info("sync batch processed")
	return result
}
