package commitments

import (
	"context"
	"testing"

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

func (f fixture) pledge(t *testing.T) commitment.DonorCommitment {
	t.Helper()
	c, err := f.svc.Pledge(context.Background(), commitment.DonorCommitment{
		DonorID:    "donor-1",
		EntityID:   f.entity.ID,
		IncidentID: f.incident.ID,
		Items:      []commitment.CommittedItem{{Item: "rice", Unit: "kg", Quantity: 200}},
	})
	if err != nil {
		t.Fatalf("pledge: %v", err)
	}
	return c
}

func TestPledgeStartsPledged(t *testing.T) {
	f := setup(t)
	c := f.pledge(t)
	if c.Status != commitment.StatusPledged {
		t.Fatalf("expected pledged, got %s", c.Status)
	}
	if c.PledgedAt.IsZero() {
		t.Fatal("expected pledged_at stamp")
	}
}

func TestPledgeValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	cases := []struct {
		name string
		c    commitment.DonorCommitment
	}{
		{"no donor", commitment.DonorCommitment{EntityID: f.entity.ID, IncidentID: f.incident.ID, Items: []commitment.CommittedItem{{Item: "rice", Quantity: 1}}}},
		{"no items", commitment.DonorCommitment{DonorID: "d", EntityID: f.entity.ID, IncidentID: f.incident.ID}},
		{"zero quantity", commitment.DonorCommitment{DonorID: "d", EntityID: f.entity.ID, IncidentID: f.incident.ID, Items: []commitment.CommittedItem{{Item: "rice", Quantity: 0}}}},
		{"unknown entity", commitment.DonorCommitment{DonorID: "d", EntityID: "999", IncidentID: f.incident.ID, Items: []commitment.CommittedItem{{Item: "rice", Quantity: 1}}}},
	}
	for _, tc := range cases {
		if _, err := f.svc.Pledge(ctx, tc.c); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestStatusWorkflow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.pledge(t)

	c, err := f.svc.UpdateStatus(ctx, c.ID, commitment.StatusInTransit, "donor-1")
	if err != nil {
		t.Fatalf("in transit: %v", err)
	}
	c, err = f.svc.UpdateStatus(ctx, c.ID, commitment.StatusDelivered, "donor-1")
	if err != nil {
		t.Fatalf("delivered: %v", err)
	}
	if c.DeliveredAt.IsZero() {
		t.Fatal("expected delivered_at stamp")
	}
	if _, err := f.svc.UpdateStatus(ctx, c.ID, commitment.StatusCancelled, "donor-1"); err == nil {
		t.Fatal("expected delivered to be terminal")
	}
}

func TestCancelFromPledged(t *testing.T) {
	f := setup(t)
	c := f.pledge(t)

	c, err := f.svc.UpdateStatus(context.Background(), c.ID, commitment.StatusCancelled, "donor-1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if c.Status != commitment.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", c.Status)
	}
}

func TestConvertToResponse(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.pledge(t)

	r, err := f.svc.ConvertToResponse(ctx, c.ID, "responder-1")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if r.Status != response.StatusPlanned {
		t.Fatalf("expected planned response, got %s", r.Status)
	}
	if r.CommitmentID != c.ID {
		t.Fatalf("expected response bound to commitment %s", c.ID)
	}
	if len(r.Items) != 1 || r.Items[0].Item != "rice" || r.Items[0].Quantity != 200 {
		t.Fatalf("expected items carried over, got %+v", r.Items)
	}

	updated, err := f.svc.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("get commitment: %v", err)
	}
	if updated.Status != commitment.StatusInTransit {
		t.Fatalf("expected in_transit, got %s", updated.Status)
	}

	if _, err := f.svc.ConvertToResponse(ctx, c.ID, "responder-1"); err == nil {
		t.Fatal("expected second conversion to be rejected")
	}
}
