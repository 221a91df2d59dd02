package gapanalysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidgrid/platform/internal/app/domain/assessment"
	"github.com/aidgrid/platform/internal/app/domain/commitment"
	"github.com/aidgrid/platform/internal/app/domain/entity"
	"github.com/aidgrid/platform/internal/app/domain/gap"
	"github.com/aidgrid/platform/internal/app/domain/incident"
	"github.com/aidgrid/platform/internal/app/domain/response"
	"github.com/aidgrid/platform/internal/app/storage/memory"
)

func TestSeverityFor(t *testing.T) {
	cases := []struct {
		name     string
		required float64
		supplied float64
		want     gap.Severity
	}{
		{"nothing required", 0, 0, gap.SeverityMet},
		{"fully covered", 100, 100, gap.SeverityMet},
		{"over supplied", 100, 150, gap.SeverityMet},
		{"low gap", 100, 80, gap.SeverityLow},
		{"low boundary", 100, 75, gap.SeverityLow},
		{"moderate gap", 100, 50, gap.SeverityModerate},
		{"moderate boundary", 100, 40, gap.SeverityModerate},
		{"critical gap", 100, 30, gap.SeverityCritical},
		{"no supply", 100, 0, gap.SeverityCritical},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, severityFor(tc.required, tc.supplied))
		})
	}
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	entity   entity.Entity
	incident incident.Incident
}

func setup(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	e, err := store.CreateEntity(ctx, entity.Entity{Name: "Camp A", Type: entity.TypeCamp})
	require.NoError(t, err)
	inc, err := store.CreateIncident(ctx, incident.Incident{
		Name: "Flood", Type: incident.TypeFlood, Severity: incident.SeveritySevere,
		Status: incident.StatusActive, DeclaredBy: "c1",
	})
	require.NoError(t, err)

	return fixture{
		svc:      New(store, store, store, store, store, nil),
		store:    store,
		entity:   e,
		incident: inc,
	}
}

func (f fixture) seedVerifiedNeed(t *testing.T, sector assessment.Sector, item, unit string, qty float64, capturedAt time.Time) {
	t.Helper()
	_, err := f.store.CreateAssessment(context.Background(), assessment.RapidAssessment{
		EntityID:           f.entity.ID,
		IncidentID:         f.incident.ID,
		AssessorID:         "assessor-1",
		Sector:             sector,
		Needs:              []assessment.ResourceNeed{{Item: item, Unit: unit, Quantity: qty}},
		VerificationStatus: assessment.VerificationVerified,
		CapturedAt:         capturedAt,
	})
	require.NoError(t, err)
}

func TestComputeEntity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Now().UTC()

	f.seedVerifiedNeed(t, assessment.SectorWash, "water", "litre", 1000, now)
	f.seedVerifiedNeed(t, assessment.SectorFood, "rice", "kg", 400, now)

	_, err := f.store.CreateCommitment(ctx, commitment.DonorCommitment{
		DonorID: "donor-1", EntityID: f.entity.ID, IncidentID: f.incident.ID,
		Items:  []commitment.CommittedItem{{Item: "water", Unit: "litre", Quantity: 300}},
		Status: commitment.StatusPledged,
	})
	require.NoError(t, err)

	_, err = f.store.CreateResponse(ctx, response.DeliveryResponse{
		EntityID: f.entity.ID, IncidentID: f.incident.ID, ResponderID: "r1",
		Items:  []response.DeliveryItem{{Item: "water", Unit: "litre", Quantity: 200}},
		Status: response.StatusDelivered,
	})
	require.NoError(t, err)

	report, err := f.svc.ComputeEntity(ctx, f.entity.ID)
	require.NoError(t, err)
	require.Len(t, report.Gaps, 2)

	byItem := make(map[string]gap.EntityGap)
	for _, g := range report.Gaps {
		byItem[g.Item] = g
	}

	water := byItem["water"]
	assert.Equal(t, 1000.0, water.Required)
	assert.Equal(t, 300.0, water.Committed)
	assert.Equal(t, 200.0, water.Delivered)
	assert.Equal(t, 500.0, water.Gap)
	assert.Equal(t, gap.SeverityModerate, water.Severity)

	rice := byItem["rice"]
	assert.Equal(t, 400.0, rice.Required)
	assert.Equal(t, 400.0, rice.Gap)
	assert.Equal(t, gap.SeverityCritical, rice.Severity)

	// Gaps sort largest first.
	assert.Equal(t, "water", report.Gaps[0].Item)

	cached, err := f.store.GetGapReport(ctx, f.entity.ID)
	require.NoError(t, err)
	assert.False(t, cached.ComputedAt.IsZero())
}

func TestComputeEntityUsesLatestVerifiedOnly(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Now().UTC()

	f.seedVerifiedNeed(t, assessment.SectorWash, "water", "litre", 1000, now.Add(-2*time.Hour))
	f.seedVerifiedNeed(t, assessment.SectorWash, "water", "litre", 600, now)

	// Pending assessments never contribute requirements.
	_, err := f.store.CreateAssessment(ctx, assessment.RapidAssessment{
		EntityID: f.entity.ID, IncidentID: f.incident.ID, AssessorID: "a1",
		Sector:             assessment.SectorFood,
		Needs:              []assessment.ResourceNeed{{Item: "rice", Unit: "kg", Quantity: 99}},
		VerificationStatus: assessment.VerificationPending,
		CapturedAt:         now,
	})
	require.NoError(t, err)

	report, err := f.svc.ComputeEntity(ctx, f.entity.ID)
	require.NoError(t, err)
	require.Len(t, report.Gaps, 1)
	assert.Equal(t, 600.0, report.Gaps[0].Required)
}

func TestOverSupplyClampsToZero(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.seedVerifiedNeed(t, assessment.SectorFood, "rice", "kg", 100, time.Now().UTC())
	_, err := f.store.CreateResponse(ctx, response.DeliveryResponse{
		EntityID: f.entity.ID, IncidentID: f.incident.ID, ResponderID: "r1",
		Items:  []response.DeliveryItem{{Item: "rice", Unit: "kg", Quantity: 250}},
		Status: response.StatusDelivered,
	})
	require.NoError(t, err)

	report, err := f.svc.ComputeEntity(ctx, f.entity.ID)
	require.NoError(t, err)
	require.Len(t, report.Gaps, 1)
	assert.Equal(t, 0.0, report.Gaps[0].Gap)
	assert.Equal(t, gap.SeverityMet, report.Gaps[0].Severity)
}

func TestMatchDonors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Now().UTC()

	f.seedVerifiedNeed(t, assessment.SectorWash, "water", "litre", 1000, now)
	f.seedVerifiedNeed(t, assessment.SectorFood, "rice", "kg", 200, now)

	other, err := f.store.CreateEntity(ctx, entity.Entity{Name: "Camp B", Type: entity.TypeCamp})
	require.NoError(t, err)

	// Donor 1 fully covers rice and half the water, pledged elsewhere.
	_, err = f.store.CreateCommitment(ctx, commitment.DonorCommitment{
		DonorID: "donor-1", EntityID: other.ID, IncidentID: f.incident.ID,
		Items: []commitment.CommittedItem{
			{Item: "rice", Unit: "kg", Quantity: 500},
			{Item: "water", Unit: "litre", Quantity: 500},
		},
		Status: commitment.StatusPledged,
	})
	require.NoError(t, err)

	// Donor 2 covers a quarter of the water only.
	_, err = f.store.CreateCommitment(ctx, commitment.DonorCommitment{
		DonorID: "donor-2", EntityID: other.ID, IncidentID: f.incident.ID,
		Items:  []commitment.CommittedItem{{Item: "water", Unit: "litre", Quantity: 250}},
		Status: commitment.StatusPledged,
	})
	require.NoError(t, err)

	// Cancelled pledges never match.
	_, err = f.store.CreateCommitment(ctx, commitment.DonorCommitment{
		DonorID: "donor-3", EntityID: other.ID, IncidentID: f.incident.ID,
		Items:  []commitment.CommittedItem{{Item: "water", Unit: "litre", Quantity: 9999}},
		Status: commitment.StatusCancelled,
	})
	require.NoError(t, err)

	matches, err := f.svc.MatchDonors(ctx, f.entity.ID)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "donor-1", matches[0].DonorID)
	assert.InDelta(t, 0.75, matches[0].Score, 1e-9)
	assert.Equal(t, []string{"rice", "water"}, matches[0].MatchedItems)

	assert.Equal(t, "donor-2", matches[1].DonorID)
	assert.InDelta(t, 0.125, matches[1].Score, 1e-9)
	assert.Equal(t, []string{"water"}, matches[1].MatchedItems)
}

func TestMatchDonorsNoOpenGaps(t *testing.T) {
	f := setup(t)
	matches, err := f.svc.MatchDonors(context.Background(), f.entity.ID)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestComputeIncident(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.store.LinkEntity(ctx, incident.EntityLink{
		IncidentID: f.incident.ID, EntityID: f.entity.ID, LinkedBy: "c1",
	})
	require.NoError(t, err)
	f.seedVerifiedNeed(t, assessment.SectorWash, "water", "litre", 100, time.Now().UTC())

	reports, err := f.svc.ComputeIncident(ctx, f.incident.ID)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Len(t, reports[f.entity.ID].Gaps, 1)
}
