package entities

import (
	"context"
	"testing"

	"github.com/aidgrid/platform/internal/app/domain/entity"
	"github.com/aidgrid/platform/internal/app/domain/user"
	"github.com/aidgrid/platform/internal/app/storage/memory"
)

func setup(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return New(store, store, nil), store
}

func seedUser(t *testing.T, store *memory.Store, role user.Role) user.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), user.User{
		Email: string(role) + "@example.org",
		Name:  string(role),
		Role:  role,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestCreateValidation(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	cases := []struct {
		name string
		e    entity.Entity
	}{
		{"empty name", entity.Entity{Type: entity.TypeCamp}},
		{"bad type", entity.Entity{Name: "X", Type: entity.Type("planet")}},
		{"bad latitude", entity.Entity{Name: "X", Type: entity.TypeCamp, Latitude: 91}},
		{"bad longitude", entity.Entity{Name: "X", Type: entity.TypeCamp, Longitude: -181}},
		{"negative population", entity.Entity{Name: "X", Type: entity.TypeCamp, Population: -1}},
	}
	for _, tc := range cases {
		if _, err := svc.Create(ctx, tc.e); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}

	e, err := svc.Create(ctx, entity.Entity{Name: "Gwoza Camp", Type: entity.TypeCamp, Population: 1200, Households: 240})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.ID == "" {
		t.Fatal("expected an assigned ID")
	}
}

func TestAssignRoleGate(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	e, err := svc.Create(ctx, entity.Entity{Name: "Ward 4", Type: entity.TypeCommunity})
	if err != nil {
		t.Fatalf("create entity: %v", err)
	}
	assessor := seedUser(t, store, user.RoleAssessor)
	donor := seedUser(t, store, user.RoleDonor)
	admin := seedUser(t, store, user.RoleAdmin)

	if _, err := svc.Assign(ctx, e.ID, assessor.ID, admin.ID); err != nil {
		t.Fatalf("assign assessor: %v", err)
	}
	if _, err := svc.Assign(ctx, e.ID, donor.ID, admin.ID); err == nil {
		t.Fatal("expected donor assignment to be rejected")
	}
	if _, err := svc.Assign(ctx, e.ID, assessor.ID, admin.ID); err == nil {
		t.Fatal("expected duplicate assignment to be rejected")
	}

	ok, err := svc.IsAssigned(ctx, e.ID, assessor.ID)
	if err != nil || !ok {
		t.Fatalf("expected assessor to be assigned, ok=%v err=%v", ok, err)
	}
}

func TestUnassign(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	e, _ := svc.Create(ctx, entity.Entity{Name: "Clinic", Type: entity.TypeFacility})
	responder := seedUser(t, store, user.RoleResponder)
	admin := seedUser(t, store, user.RoleAdmin)

	if _, err := svc.Assign(ctx, e.ID, responder.ID, admin.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := svc.Unassign(ctx, e.ID, responder.ID); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	ok, _ := svc.IsAssigned(ctx, e.ID, responder.ID)
	if ok {
		t.Fatal("expected assignment to be removed")
	}
}

func TestListByType(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, _ = svc.Create(ctx, entity.Entity{Name: "Camp A", Type: entity.TypeCamp})
	_, _ = svc.Create(ctx, entity.Entity{Name: "Clinic B", Type: entity.TypeFacility})

	camps, err := svc.List(ctx, entity.TypeCamp)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(camps) != 1 || camps[0].Name != "Camp A" {
		t.Fatalf("unexpected listing: %+v", camps)
	}
	if _, err := svc.List(ctx, entity.Type("moon")); err == nil {
		t.Fatal("expected unknown type to be rejected")
	}
}
