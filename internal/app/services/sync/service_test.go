package sync

import (
	"context"
	"testing"

	"github.com/aidgrid/platform/internal/app/domain/assessment"
	"github.com/aidgrid/platform/internal/app/domain/entity"
	"github.com/aidgrid/platform/internal/app/domain/incident"
	"github.com/aidgrid/platform/internal/app/services/assessments"
	"github.com/aidgrid/platform/internal/app/storage/memory"
)

func setup(t *testing.T) (*Service, entity.Entity, incident.Incident) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	e, err := store.CreateEntity(ctx, entity.Entity{Name: "Camp A", Type: entity.TypeCamp})
	if err != nil {
		t.Fatalf("seed entity: %v", err)
	}
	inc, err := store.CreateIncident(ctx, incident.Incident{
		Name: "Flood", Type: incident.TypeFlood, Severity: incident.SeveritySevere,
		Status: incident.StatusActive, DeclaredBy: "c1",
	})
	if err != nil {
		t.Fatalf("seed incident: %v", err)
	}
	return New(assessments.New(store, store, store, nil, nil), nil), e, inc
}

func TestProcessBatchOutcomes(t *testing.T) {
	svc, e, inc := setup(t)
	ctx := context.Background()

	items := []BatchItem{
		{ClientRef: "dev1-001", EntityID: e.ID, IncidentID: inc.ID, Sector: assessment.SectorWash},
		{ClientRef: "dev1-001", EntityID: e.ID, IncidentID: inc.ID, Sector: assessment.SectorWash},
		{ClientRef: "dev1-002", EntityID: "999", IncidentID: inc.ID, Sector: assessment.SectorWash},
		{EntityID: e.ID, IncidentID: inc.ID, Sector: assessment.SectorFood},
	}

	result := svc.ProcessBatch(ctx, "assessor-1", items)

	if result.Created != 1 || result.Duplicates != 1 || result.Invalid != 2 {
		t.Fatalf("unexpected summary: %+v", result)
	}
	if len(result.Results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(result.Results))
	}

	if result.Results[0].Outcome != OutcomeCreated || result.Results[0].AssessmentID == "" {
		t.Fatalf("item 0: %+v", result.Results[0])
	}
	if result.Results[1].Outcome != OutcomeDuplicate {
		t.Fatalf("item 1: %+v", result.Results[1])
	}
	if result.Results[1].AssessmentID != result.Results[0].AssessmentID {
		t.Fatal("duplicate should reference the original record")
	}
	if result.Results[2].Outcome != OutcomeInvalid || result.Results[2].Error == "" {
		t.Fatalf("item 2: %+v", result.Results[2])
	}
	if result.Results[3].Outcome != OutcomeInvalid {
		t.Fatalf("item 3: %+v", result.Results[3])
	}
}

func TestProcessBatchParsesCapturedAt(t *testing.T) {
	svc, e, inc := setup(t)

	result := svc.ProcessBatch(context.Background(), "assessor-1", []BatchItem{
		{
			ClientRef:  "dev1-010",
			EntityID:   e.ID,
			IncidentID: inc.ID,
			Sector:     assessment.SectorHealth,
			CapturedAt: "2026-08-12T09:30:00Z",
		},
	})
	if result.Created != 1 {
		t.Fatalf("expected created, got %+v", result)
	}
}

func TestParseTimestamp(t *testing.T) {
	for _, s := range []string{
		"2026-08-12T09:30:00Z",
		"2026-08-12T09:30:00.123456789Z",
		"2026-08-12 09:30:00",
	} {
		if _, err := parseTimestamp(s); err != nil {
			t.Errorf("parse %q: %v", s, err)
		}
	}
	if _, err := parseTimestamp("last tuesday"); err == nil {
		t.Error("expected error for garbage timestamp")
	}
}
