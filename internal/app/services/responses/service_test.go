package responses

import (
	"context"
	"testing"

	"github.com/aidgrid/platform/internal/app/domain/assessment"
	"github.com/aidgrid/platform/internal/app/domain/commitment"
	"github.com/aidgrid/platform/internal/app/domain/entity"
	"github.com/aidgrid/platform/internal/app/domain/incident"
	"github.com/aidgrid/platform/internal/app/domain/response"
	"github.com/aidgrid/platform/internal/app/storage/memory"
)

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
	return fixture{svc: New(store, store, store, store, nil, nil), store: store, entity: e, incident: inc}
}

func (f fixture) plan(t *testing.T, commitmentID string) response.DeliveryResponse {
	t.Helper()
	r, err := f.svc.Plan(context.Background(), response.DeliveryResponse{
		EntityID:     f.entity.ID,
		IncidentID:   f.incident.ID,
		CommitmentID: commitmentID,
		ResponderID:  "responder-1",
		Items:        []response.DeliveryItem{{Item: "water", Unit: "litre", Quantity: 300}},
	})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	return r
}

func TestPlanStartsPlannedPending(t *testing.T) {
	f := setup(t)
	r := f.plan(t, "")
	if r.Status != response.StatusPlanned {
		t.Fatalf("expected planned, got %s", r.Status)
	}
	if r.VerificationStatus != assessment.VerificationPending {
		t.Fatalf("expected pending verification, got %s", r.VerificationStatus)
	}
}

func TestPlanValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if _, err := f.svc.Plan(ctx, response.DeliveryResponse{
		EntityID: f.entity.ID, IncidentID: f.incident.ID, ResponderID: "r",
	}); err == nil {
		t.Fatal("expected empty items to be rejected")
	}
	if _, err := f.svc.Plan(ctx, response.DeliveryResponse{
		EntityID: "999", IncidentID: f.incident.ID, ResponderID: "r",
		Items: []response.DeliveryItem{{Item: "rice", Unit: "kg", Quantity: 10}},
	}); err == nil {
		t.Fatal("expected unknown entity to be rejected")
	}
}

func TestDeliveryWorkflow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	r := f.plan(t, "")

	r, err := f.svc.UpdateStatus(ctx, r.ID, response.StatusInTransit, "responder-1")
	if err != nil {
		t.Fatalf("in transit: %v", err)
	}
	r, err = f.svc.UpdateStatus(ctx, r.ID, response.StatusDelivered, "responder-1")
	if err != nil {
		t.Fatalf("delivered: %v", err)
	}
	if r.DeliveredAt.IsZero() {
		t.Fatal("expected delivered_at stamp")
	}
	if _, err := f.svc.UpdateStatus(ctx, r.ID, response.StatusPlanned, "responder-1"); err == nil {
		t.Fatal("expected delivered to be terminal")
	}
}

func TestDeliveredCascadesToCommitment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	c, err := f.store.CreateCommitment(ctx, commitment.DonorCommitment{
		DonorID: "donor-1", EntityID: f.entity.ID, IncidentID: f.incident.ID,
		Items:  []commitment.CommittedItem{{Item: "water", Unit: "litre", Quantity: 300}},
		Status: commitment.StatusInTransit,
	})
	if err != nil {
		t.Fatalf("seed commitment: %v", err)
	}
	r := f.plan(t, c.ID)

	if _, err := f.svc.UpdateStatus(ctx, r.ID, response.StatusDelivered, "responder-1"); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	updated, err := f.store.GetCommitment(ctx, c.ID)
	if err != nil {
		t.Fatalf("get commitment: %v", err)
	}
	if updated.Status != commitment.StatusDelivered {
		t.Fatalf("expected commitment delivered, got %s", updated.Status)
	}
	if updated.DeliveredAt.IsZero() {
		t.Fatal("expected commitment delivered_at stamp")
	}
}

func TestPlanRejectsForeignCommitment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	other, err := f.store.CreateEntity(ctx, entity.Entity{Name: "Camp B", Type: entity.TypeCamp})
	if err != nil {
		t.Fatalf("seed entity: %v", err)
	}
	c, err := f.store.CreateCommitment(ctx, commitment.DonorCommitment{
		DonorID: "donor-1", EntityID: other.ID, IncidentID: f.incident.ID,
		Items:  []commitment.CommittedItem{{Item: "water", Unit: "litre", Quantity: 100}},
		Status: commitment.StatusPledged,
	})
	if err != nil {
		t.Fatalf("seed commitment: %v", err)
	}

	if _, err := f.svc.Plan(ctx, response.DeliveryResponse{
		EntityID: f.entity.ID, IncidentID: f.incident.ID, CommitmentID: c.ID,
		ResponderID: "responder-1",
		Items:       []response.DeliveryItem{{Item: "water", Unit: "litre", Quantity: 100}},
	}); err == nil {
		t.Fatal("expected commitment targeting another entity to be rejected")
	}
}

func TestVerifyOnlyDelivered(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	r := f.plan(t, "")

	if _, err := f.svc.Verify(ctx, r.ID, "coordinator-1"); err == nil {
		t.Fatal("expected planned response verification to be rejected")
	}

	if _, err := f.svc.UpdateStatus(ctx, r.ID, response.StatusDelivered, "responder-1"); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if _, err := f.svc.Verify(ctx, r.ID, "responder-1"); err == nil {
		t.Fatal("expected self-verification to be rejected")
	}

	verified, err := f.svc.Verify(ctx, r.ID, "coordinator-1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if verified.VerificationStatus != assessment.VerificationVerified {
		t.Fatalf("expected verified, got %s", verified.VerificationStatus)
	}
	if _, err := f.svc.Reject(ctx, r.ID, "coordinator-2", "wrong count"); err == nil {
		t.Fatal("expected rejection after verification to fail")
	}
}
