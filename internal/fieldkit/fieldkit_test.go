package fieldkit

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "drafts.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleDraft(ref string) Draft {
	return Draft{
		ClientRef:  ref,
		EntityID:   "e1",
		IncidentID: "i1",
		Sector:     "wash",
		Data:       map[string]interface{}{"households_affected": 40.0},
		Needs:      []Need{{Item: "water", Unit: "litre", Quantity: 500}},
	}
}

func TestSaveAndGetDraft(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	saved, err := store.SaveDraft(ctx, sampleDraft(""))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ClientRef == "" {
		t.Fatal("expected assigned client ref")
	}
	if saved.State != StateDraft {
		t.Fatalf("expected draft state, got %s", saved.State)
	}

	got, err := store.GetDraft(ctx, saved.ClientRef)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.EntityID != "e1" || got.Sector != "wash" {
		t.Fatalf("unexpected draft: %+v", got)
	}
	if len(got.Needs) != 1 || got.Needs[0].Quantity != 500 {
		t.Fatalf("needs not round-tripped: %+v", got.Needs)
	}
	if got.Data["households_affected"] != 40.0 {
		t.Fatalf("data not round-tripped: %+v", got.Data)
	}
}

func TestQueueAndStateChanges(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	d, _ := store.SaveDraft(ctx, sampleDraft("ref-1"))
	if err := store.Queue(ctx, d.ClientRef); err != nil {
		t.Fatalf("queue: %v", err)
	}

	queued, err := store.ListDrafts(ctx, StateQueued)
	if err != nil || len(queued) != 1 {
		t.Fatalf("expected one queued draft, got %d err=%v", len(queued), err)
	}

	if err := store.MarkSynced(ctx, d.ClientRef); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	n, err := store.DeleteSynced(ctx)
	if err != nil || n != 1 {
		t.Fatalf("delete synced: n=%d err=%v", n, err)
	}

	if err := store.Queue(ctx, "missing"); err == nil {
		t.Fatal("expected error for unknown draft")
	}
}

func TestBackoffFor(t *testing.T) {
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{1, 15 * time.Second},
		{2, 30 * time.Second},
		{3, time.Minute},
		{6, 8 * time.Minute},
		{7, 10 * time.Minute},
		{20, 10 * time.Minute},
	}
	for _, tc := range cases {
		if got := backoffFor(tc.attempts); got != tc.want {
			t.Errorf("backoffFor(%d) = %s, want %s", tc.attempts, got, tc.want)
		}
	}
}

type fakeUploader struct {
	fail    bool
	results map[string]ItemResult
	calls   int
}

func (f *fakeUploader) Upload(_ context.Context, drafts []Draft) ([]ItemResult, error) {
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("connection refused")
	}
	out := make([]ItemResult, 0, len(drafts))
	for _, d := range drafts {
		if r, ok := f.results[d.ClientRef]; ok {
			out = append(out, r)
		} else {
			out = append(out, ItemResult{ClientRef: d.ClientRef, Outcome: "created", AssessmentID: "a-" + d.ClientRef})
		}
	}
	return out, nil
}

func TestSyncOnceMarksSynced(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	d, _ := store.SaveDraft(ctx, sampleDraft("ref-1"))
	_ = store.Queue(ctx, d.ClientRef)

	up := &fakeUploader{}
	engine := NewEngine(store, up, time.Second, nil)

	if err := engine.SyncOnce(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}
	got, err := store.GetDraft(ctx, d.ClientRef)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != StateSynced {
		t.Fatalf("expected synced, got %s", got.State)
	}
}

func TestSyncOnceBacksOffOnNetworkFailure(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	d, _ := store.SaveDraft(ctx, sampleDraft("ref-1"))
	_ = store.Queue(ctx, d.ClientRef)

	up := &fakeUploader{fail: true}
	engine := NewEngine(store, up, time.Second, nil)

	if err := engine.SyncOnce(ctx); err == nil {
		t.Fatal("expected upload error")
	}
	got, _ := store.GetDraft(ctx, d.ClientRef)
	if got.State != StateQueued || got.Attempts != 1 {
		t.Fatalf("expected requeued with 1 attempt, got %+v", got)
	}

	// The draft is backed off, so an immediate pass skips it.
	if err := engine.SyncOnce(ctx); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if up.calls != 1 {
		t.Fatalf("expected backoff to skip upload, calls=%d", up.calls)
	}
}

func TestSyncOnceInvalidDraftFails(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	d, _ := store.SaveDraft(ctx, sampleDraft("ref-1"))
	_ = store.Queue(ctx, d.ClientRef)

	up := &fakeUploader{results: map[string]ItemResult{
		"ref-1": {ClientRef: "ref-1", Outcome: "invalid", Error: "unknown sector"},
	}}
	engine := NewEngine(store, up, time.Second, nil)

	if err := engine.SyncOnce(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}
	got, _ := store.GetDraft(ctx, d.ClientRef)
	if got.State != StateFailed {
		t.Fatalf("expected failed, got %s", got.State)
	}
	if got.LastError != "unknown sector" {
		t.Fatalf("expected error recorded, got %q", got.LastError)
	}
}

func TestSyncOnceDuplicateCountsAsSynced(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	d, _ := store.SaveDraft(ctx, sampleDraft("ref-1"))
	_ = store.Queue(ctx, d.ClientRef)

	up := &fakeUploader{results: map[string]ItemResult{
		"ref-1": {ClientRef: "ref-1", Outcome: "duplicate", AssessmentID: "a-1"},
	}}
	engine := NewEngine(store, up, time.Second, nil)

	if err := engine.SyncOnce(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}
	got, _ := store.GetDraft(ctx, d.ClientRef)
	if got.State != StateSynced {
		t.Fatalf("expected synced, got %s", got.State)
	}
}
