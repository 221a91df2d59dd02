package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/aidgrid/platform/internal/app/domain/assessment"
	"github.com/aidgrid/platform/internal/app/domain/commitment"
	"github.com/aidgrid/platform/internal/app/domain/response"
	"github.com/aidgrid/platform/internal/app/domain/user"
	"github.com/aidgrid/platform/internal/app/storage/memory"
)

func setup(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return New(store, store, store, store, nil), store
}

func seedDonor(t *testing.T, store *memory.Store, name string) user.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), user.User{
		Email: name + "@example.org", Name: name, Role: user.RoleDonor,
	})
	if err != nil {
		t.Fatalf("seed donor: %v", err)
	}
	return u
}

func seedCommitment(t *testing.T, store *memory.Store, donorID string, qty float64, status commitment.Status) {
	t.Helper()
	_, err := store.CreateCommitment(context.Background(), commitment.DonorCommitment{
		DonorID: donorID, EntityID: "e1", IncidentID: "i1",
		Items:  []commitment.CommittedItem{{Item: "rice", Unit: "kg", Quantity: qty}},
		Status: status,
	})
	if err != nil {
		t.Fatalf("seed commitment: %v", err)
	}
}

func TestLeaderboardRanksByDelivered(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	alpha := seedDonor(t, store, "Alpha")
	beta := seedDonor(t, store, "Beta")

	seedCommitment(t, store, alpha.ID, 100, commitment.StatusDelivered)
	seedCommitment(t, store, alpha.ID, 100, commitment.StatusPledged)
	seedCommitment(t, store, beta.ID, 300, commitment.StatusDelivered)
	seedCommitment(t, store, beta.ID, 50, commitment.StatusCancelled)

	entries, err := svc.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	if entries[0].DonorID != beta.ID || entries[0].Rank != 1 {
		t.Fatalf("expected beta first, got %+v", entries[0])
	}
	if entries[0].Delivered != 300 || entries[0].Pledged != 300 {
		t.Fatalf("cancelled pledge counted: %+v", entries[0])
	}
	if entries[0].FulfilmentRate != 1 {
		t.Fatalf("expected full fulfilment, got %f", entries[0].FulfilmentRate)
	}

	if entries[1].DonorID != alpha.ID {
		t.Fatalf("expected alpha second, got %+v", entries[1])
	}
	if entries[1].FulfilmentRate != 0.5 {
		t.Fatalf("expected 0.5 fulfilment, got %f", entries[1].FulfilmentRate)
	}
	if entries[1].DonorName != "Alpha" {
		t.Fatalf("expected donor name resolved, got %q", entries[1].DonorName)
	}
}

func TestTrendsBucketsByDay(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	if _, err := store.CreateAssessment(ctx, assessment.RapidAssessment{
		EntityID: "e1", IncidentID: "i1", AssessorID: "a1",
		Sector:             assessment.SectorWash,
		VerificationStatus: assessment.VerificationVerified,
		CapturedAt:         time.Now(),
	}); err != nil {
		t.Fatalf("seed assessment: %v", err)
	}
	if _, err := store.CreateResponse(ctx, response.DeliveryResponse{
		EntityID: "e1", IncidentID: "i1", ResponderID: "r1",
		Items:  []response.DeliveryItem{{Item: "rice", Unit: "kg", Quantity: 5}},
		Status: response.StatusDelivered,
	}); err != nil {
		t.Fatalf("seed response: %v", err)
	}

	points, err := svc.Trends(ctx)
	if err != nil {
		t.Fatalf("trends: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected one bucket, got %d", len(points))
	}
	p := points[0]
	if p.Period != time.Now().UTC().Format("2006-01-02") {
		t.Fatalf("unexpected period %q", p.Period)
	}
	if p.Assessments != 1 || p.Verified != 1 || p.Responses != 1 || p.Delivered != 1 {
		t.Fatalf("unexpected counts: %+v", p)
	}
}

func TestSnapshotCaching(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	first, err := svc.Snapshot(ctx, time.Minute)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	donor := seedDonor(t, store, "Late")
	seedCommitment(t, store, donor.ID, 10, commitment.StatusDelivered)

	cached, err := svc.Snapshot(ctx, time.Minute)
	if err != nil {
		t.Fatalf("cached snapshot: %v", err)
	}
	if !cached.ComputedAt.Equal(first.ComputedAt) {
		t.Fatal("expected cached snapshot to be reused")
	}

	refreshed, err := svc.Refresh(ctx)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(refreshed.Leaderboard) != 1 {
		t.Fatalf("expected refreshed leaderboard, got %d entries", len(refreshed.Leaderboard))
	}
}
