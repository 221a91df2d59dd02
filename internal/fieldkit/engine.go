package fieldkit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aidgrid/platform/pkg/logger"
)

// Retry policy for failed uploads.
const (
	retryBase   = 15 * time.Second
	retryCap    = 10 * time.Minute
	maxAttempts = 8
)

// Uploader sends drafts to the server. Satisfied by *Client.
type Uploader interface {
	Upload(ctx context.Context, drafts []Draft) ([]ItemResult, error)
}

// Engine drains the queued drafts in the background, retrying failures
// with exponential backoff until maxAttempts is reached.
type Engine struct {
	store    *Store
	uploader Uploader
	interval time.Duration
	log      *logger.Logger

	mu          sync.Mutex
	nextAttempt map[string]time.Time

	stop chan struct{}
	done chan struct{}
}

// NewEngine creates a sync engine polling at the given interval.
func NewEngine(store *Store, uploader Uploader, interval time.Duration, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.NewDefault("fieldkit-sync")
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Engine{
		store:       store,
		uploader:    uploader,
		interval:    interval,
		log:         log,
		nextAttempt: make(map[string]time.Time),
	}
}

// Name implements system.Service.
func (e *Engine) Name() string { return "fieldkit-sync" }

// Start implements system.Service.
func (e *Engine) Start(_ context.Context) error {
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	go e.loop()
	e.log.WithField("interval", e.interval.String()).Info("sync engine started")
	return nil
}

// Stop implements system.Service.
func (e *Engine) Stop(ctx context.Context) error {
	if e.stop == nil {
		return nil
	}
	close(e.stop)
	select {
	case <-e.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	e.log.Info("sync engine stopped")
	return nil
}

func (e *Engine) loop() {
	defer close(e.done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if err := e.SyncOnce(ctx); err != nil {
				e.log.WithError(err).Warn("sync pass failed")
			}
			cancel()
		case <-e.stop:
			return
		}
	}
}

// backoffFor returns the wait before retrying a draft that has failed
// attempts times: base doubled per failure, capped.
func backoffFor(attempts int) time.Duration {
	d := retryBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= retryCap {
			return retryCap
		}
	}
	return d
}

// SyncOnce uploads every queued draft that is due and reconciles draft
// states from the per-item results.
func (e *Engine) SyncOnce(ctx context.Context) error {
	queued, err := e.store.ListDrafts(ctx, StateQueued)
	if err != nil {
		return fmt.Errorf("list queued drafts: %w", err)
	}

	now := time.Now()
	due := make([]Draft, 0, len(queued))
	e.mu.Lock()
	for _, d := range queued {
		if next, ok := e.nextAttempt[d.ClientRef]; ok && now.Before(next) {
			continue
		}
		due = append(due, d)
	}
	e.mu.Unlock()
	if len(due) == 0 {
		return nil
	}

	results, err := e.uploader.Upload(ctx, due)
	if err != nil {
		// Whole batch failed, likely offline. Back every draft off.
		e.mu.Lock()
		for _, d := range due {
			attempts := d.Attempts + 1
			e.nextAttempt[d.ClientRef] = now.Add(backoffFor(attempts))
			if attempts >= maxAttempts {
				if ferr := e.store.MarkFailed(ctx, d.ClientRef, attempts, err.Error()); ferr != nil {
					e.log.WithError(ferr).WithField("client_ref", d.ClientRef).Warn("mark failed")
				}
			} else if rerr := e.store.Requeue(ctx, d.ClientRef, attempts); rerr != nil {
				e.log.WithError(rerr).WithField("client_ref", d.ClientRef).Warn("requeue")
			}
		}
		e.mu.Unlock()
		return err
	}

	byRef := make(map[string]ItemResult, len(results))
	for _, r := range results {
		byRef[r.ClientRef] = r
	}

	for _, d := range due {
		r, ok := byRef[d.ClientRef]
		if !ok {
			continue
		}
		switch r.Outcome {
		case "created", "duplicate":
			if err := e.store.MarkSynced(ctx, d.ClientRef); err != nil {
				e.log.WithError(err).WithField("client_ref", d.ClientRef).Warn("mark synced")
				continue
			}
			e.mu.Lock()
			delete(e.nextAttempt, d.ClientRef)
			e.mu.Unlock()
			e.log.WithField("client_ref", d.ClientRef).WithField("outcome", r.Outcome).Debug("draft synced")
		default:
			// Invalid drafts never become valid by retrying.
			if err := e.store.MarkFailed(ctx, d.ClientRef, d.Attempts+1, r.Error); err != nil {
				e.log.WithError(err).WithField("client_ref", d.ClientRef).Warn("mark failed")
			}
			e.mu.Lock()
			delete(e.nextAttempt, d.ClientRef)
			e.mu.Unlock()
			e.log.WithField("client_ref", d.ClientRef).WithField("error", r.Error).Warn("draft rejected")
		}
	}
	return nil
}
