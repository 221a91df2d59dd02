package gapanalysis

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/aidgrid/platform/internal/app/domain/incident"
	"github.com/aidgrid/platform/internal/app/storage"
	"github.com/aidgrid/platform/pkg/logger"
)

// Recomputer periodically refreshes cached gap reports for every entity
// linked to an active or contained incident.
type Recomputer struct {
	service   *Service
	incidents storage.IncidentStore
	schedule  string
	cron      *cron.Cron
	log       *logger.Logger
}

// NewRecomputer creates the background runner. schedule uses cron syntax,
// including "@every" descriptors.
func NewRecomputer(service *Service, incidents storage.IncidentStore, schedule string, log *logger.Logger) *Recomputer {
	if log == nil {
		log = logger.NewDefault("gap-recomputer")
	}
	if schedule == "" {
		schedule = "@every 5m"
	}
	return &Recomputer{service: service, incidents: incidents, schedule: schedule, log: log}
}

// Name implements system.Service.
func (r *Recomputer) Name() string { return "gap-recomputer" }

// Start implements system.Service.
func (r *Recomputer) Start(_ context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(r.schedule, r.runOnce); err != nil {
		return fmt.Errorf("invalid gap recompute schedule %q: %w", r.schedule, err)
	}
	r.cron = c
	c.Start()
	r.log.WithField("schedule", r.schedule).Info("gap recomputer started")
	return nil
}

// Stop implements system.Service.
func (r *Recomputer) Stop(ctx context.Context) error {
	if r.cron == nil {
		return nil
	}
	done := r.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	r.log.Info("gap recomputer stopped")
	return nil
}

func (r *Recomputer) runOnce() {
	ctx := context.Background()

	seen := make(map[string]bool)
	for _, status := range []incident.Status{incident.StatusActive, incident.StatusContained} {
		incidents, err := r.incidents.ListIncidents(ctx, status, "")
		if err != nil {
			r.log.WithError(err).Error("list incidents for gap recompute")
			return
		}
		for _, inc := range incidents {
			links, err := r.incidents.ListIncidentEntities(ctx, inc.ID)
			if err != nil {
				r.log.WithError(err).WithField("incident_id", inc.ID).Error("list incident entities")
				continue
			}
			for _, link := range links {
				if seen[link.EntityID] {
					continue
				}
				seen[link.EntityID] = true
				if _, err := r.service.ComputeEntity(ctx, link.EntityID); err != nil {
					r.log.WithError(err).WithField("entity_id", link.EntityID).Error("gap recompute failed")
				}
			}
		}
	}
	r.log.WithField("entities", len(seen)).Debug("gap recompute pass complete")
}
