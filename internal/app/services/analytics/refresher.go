package analytics

import (
	"context"
	"time"

	"github.com/aidgrid/platform/pkg/logger"
)

// Refresher keeps the analytics snapshot warm in the background.
type Refresher struct {
	service  *Service
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	log      *logger.Logger
}

// NewRefresher creates the background runner.
func NewRefresher(service *Service, interval time.Duration, log *logger.Logger) *Refresher {
	if log == nil {
		log = logger.NewDefault("analytics-refresher")
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Refresher{service: service, interval: interval, log: log}
}

// Name implements system.Service.
func (r *Refresher) Name() string { return "analytics-refresher" }

// Start implements system.Service.
func (r *Refresher) Start(_ context.Context) error {
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go r.loop()
	r.log.WithField("interval", r.interval.String()).Info("analytics refresher started")
	return nil
}

// Stop implements system.Service.
func (r *Refresher) Stop(ctx context.Context) error {
	if r.stop == nil {
		return nil
	}
	close(r.stop)
	select {
	case <-r.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	r.log.Info("analytics refresher stopped")
	return nil
}

func (r *Refresher) loop() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.refresh()
	for {
		select {
		case <-ticker.C:
			r.refresh()
		case <-r.stop:
			return
		}
	}
}

func (r *Refresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := r.service.Refresh(ctx); err != nil {
		r.log.WithError(err).Error("analytics refresh failed")
	}
}
