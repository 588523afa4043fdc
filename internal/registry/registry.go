// Package registry holds the in-memory catalog of monitored services.
package registry

import (
	"sync"
	"time"

	"github.com/miradorstack/mirador-remediate/internal/models"
	"github.com/miradorstack/mirador-remediate/internal/utils"
)

// Registry is the thread-safe catalog of monitored services and their
// last-known status. Services are mutated only through its methods; callers
// always receive copies.
type Registry struct {
	mu       sync.RWMutex
	services map[string]*models.Service
	order    []string
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{services: make(map[string]*models.Service)}
}

// Register adds or replaces a service. Registration order is preserved for List.
func (r *Registry) Register(svc models.Service) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.services[svc.ID]; !ok {
		r.order = append(r.order, svc.ID)
	}
	copied := svc
	r.services[svc.ID] = &copied
}

// Get returns a copy of the service or ErrNotFound.
func (r *Registry) Get(id string) (models.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	svc, ok := r.services[id]
	if !ok {
		return models.Service{}, utils.ErrNotFound
	}
	return *svc, nil
}

// List returns all services in registration order.
func (r *Registry) List() []models.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Service, 0, len(r.order))
	for _, id := range r.order {
		if svc, ok := r.services[id]; ok {
			out = append(out, *svc)
		}
	}
	return out
}

// UpdateStatus records a probe outcome for the service.
func (r *Registry) UpdateStatus(id string, status models.ServiceStatus, checkedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc, ok := r.services[id]
	if !ok {
		return utils.ErrNotFound
	}
	svc.Status = status
	ts := checkedAt
	svc.LastCheck = &ts
	return nil
}

// IncrementRestartCount bumps the restart counter consumed by the
// too-many-recent-restarts safety gate.
func (r *Registry) IncrementRestartCount(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc, ok := r.services[id]
	if !ok {
		return utils.ErrNotFound
	}
	svc.Metadata.RestartCount++
	return nil
}

// Context returns the decision-engine safety-gate view of a service.
func (r *Registry) Context(id string) (models.ServiceContext, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	svc, ok := r.services[id]
	if !ok {
		return models.ServiceContext{}, utils.ErrNotFound
	}
	return models.ServiceContext{
		RecentRestarts: svc.Metadata.RestartCount,
		UptimeHours:    svc.Metadata.UptimeHours,
	}, nil
}
