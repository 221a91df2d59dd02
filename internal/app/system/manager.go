package system

import (
	"context"
	"fmt"
	"sync"
)

// Manager starts registered services in order and stops them in reverse.
type Manager struct {
	mu       sync.Mutex
	services []Service
	names    map[string]bool
	started  bool
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{names: make(map[string]bool)}
}

// Register adds a service. Names must be unique and registration must happen
// before Start.
func (m *Manager) Register(svc Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("cannot register %s: manager already started", svc.Name())
	}
	if svc.Name() == "" {
		return fmt.Errorf("service name must not be empty")
	}
	if m.names[svc.Name()] {
		return fmt.Errorf("service %s already registered", svc.Name())
	}
	m.names[svc.Name()] = true
	m.services = append(m.services, svc)
	return nil
}

// Start starts all services in registration order. On failure the services
// already started are stopped in reverse order.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	services := make([]Service, len(m.services))
	copy(services, m.services)
	m.mu.Unlock()

	for i, svc := range services {
		if err := svc.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = services[j].Stop(ctx)
			}
			m.mu.Lock()
			m.started = false
			m.mu.Unlock()
			return fmt.Errorf("start %s: %w", svc.Name(), err)
		}
	}
	return nil
}

// Stop stops all services in reverse registration order, collecting the
// first error encountered.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	services := make([]Service, len(m.services))
	copy(services, m.services)
	m.mu.Unlock()

	var firstErr error
	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Stop(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop %s: %w", services[i].Name(), err)
		}
	}
	return firstErr
}
