// Package app wires the storage layer, domain services and background
// runners into one application.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/aidgrid/platform/internal/app/events"
	"github.com/aidgrid/platform/internal/app/services/analytics"
	"github.com/aidgrid/platform/internal/app/services/assessments"
	"github.com/aidgrid/platform/internal/app/services/commitments"
	"github.com/aidgrid/platform/internal/app/services/entities"
	"github.com/aidgrid/platform/internal/app/services/gapanalysis"
	"github.com/aidgrid/platform/internal/app/services/incidents"
	"github.com/aidgrid/platform/internal/app/services/responses"
	syncsvc "github.com/aidgrid/platform/internal/app/services/sync"
	"github.com/aidgrid/platform/internal/app/services/users"
	"github.com/aidgrid/platform/internal/app/storage"
	"github.com/aidgrid/platform/internal/app/storage/memory"
	"github.com/aidgrid/platform/internal/app/system"
	"github.com/aidgrid/platform/internal/config"
	"github.com/aidgrid/platform/pkg/logger"
)

// Stores groups the persistence interfaces the application needs. Nil
// fields default to a shared in-memory store, which keeps tests and local
// development setup-free.
type Stores struct {
	Users       storage.UserStore
	Entities    storage.EntityStore
	Incidents   storage.IncidentStore
	Assessments storage.AssessmentStore
	Responses   storage.ResponseStore
	Commitments storage.CommitmentStore
	Gaps        storage.GapStore
}

func (s *Stores) fillDefaults() {
	var mem *memory.Store
	lazy := func() *memory.Store {
		if mem == nil {
			mem = memory.New()
		}
		return mem
	}
	if s.Users == nil {
		s.Users = lazy()
	}
	if s.Entities == nil {
		s.Entities = lazy()
	}
	if s.Incidents == nil {
		s.Incidents = lazy()
	}
	if s.Assessments == nil {
		s.Assessments = lazy()
	}
	if s.Responses == nil {
		s.Responses = lazy()
	}
	if s.Commitments == nil {
		s.Commitments = lazy()
	}
	if s.Gaps == nil {
		s.Gaps = lazy()
	}
}

// Application bundles the configured services and their background runners.
type Application struct {
	Config *config.Config
	Log    *logger.Logger
	Bus    *events.Bus

	Users       *users.Service
	Entities    *entities.Service
	Incidents   *incidents.Service
	Assessments *assessments.Service
	Responses   *responses.Service
	Commitments *commitments.Service
	Gaps        *gapanalysis.Service
	Analytics   *analytics.Service
	Sync        *syncsvc.Service

	manager *system.Manager
}

// New assembles the application from configuration and stores.
func New(cfg *config.Config, stores Stores, log *logger.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.NewDefault("app")
	}
	stores.fillDefaults()

	bus := events.NewBus(64)
	secret := []byte(cfg.Auth.JWTSecret)

	userSvc := users.New(stores.Users, secret, cfg.Auth.TokenTTLDuration(), log.WithField("service", "users"))
	entitySvc := entities.New(stores.Entities, stores.Users, log.WithField("service", "entities"))
	incidentSvc := incidents.New(stores.Incidents, stores.Entities, bus, log.WithField("service", "incidents"))
	assessmentSvc := assessments.New(stores.Assessments, stores.Entities, stores.Incidents, bus, log.WithField("service", "assessments"))
	responseSvc := responses.New(stores.Responses, stores.Commitments, stores.Entities, stores.Incidents, bus, log.WithField("service", "responses"))
	commitmentSvc := commitments.New(stores.Commitments, stores.Responses, stores.Entities, stores.Incidents, bus, log.WithField("service", "commitments"))
	gapSvc := gapanalysis.New(stores.Gaps, stores.Assessments, stores.Responses, stores.Commitments, stores.Incidents, log.WithField("service", "gapanalysis"))
	analyticsSvc := analytics.New(stores.Assessments, stores.Responses, stores.Commitments, stores.Users, log.WithField("service", "analytics"))
	syncSvc := syncsvc.New(assessmentSvc, log.WithField("service", "sync"))

	manager := system.NewManager()
	recomputer := gapanalysis.NewRecomputer(gapSvc, stores.Incidents, cfg.Jobs.GapRecomputeSchedule, log.WithField("service", "gap-recomputer"))
	if err := manager.Register(recomputer); err != nil {
		return nil, fmt.Errorf("register gap recomputer: %w", err)
	}
	refresher := analytics.NewRefresher(analyticsSvc, time.Duration(cfg.Jobs.AnalyticsInterval)*time.Second, log.WithField("service", "analytics-refresher"))
	if err := manager.Register(refresher); err != nil {
		return nil, fmt.Errorf("register analytics refresher: %w", err)
	}

	return &Application{
		Config:      cfg,
		Log:         log,
		Bus:         bus,
		Users:       userSvc,
		Entities:    entitySvc,
		Incidents:   incidentSvc,
		Assessments: assessmentSvc,
		Responses:   responseSvc,
		Commitments: commitmentSvc,
		Gaps:        gapSvc,
		Analytics:   analyticsSvc,
		Sync:        syncSvc,
		manager:     manager,
	}, nil
}

// Start launches the background runners.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop shuts the background runners down in reverse order.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
