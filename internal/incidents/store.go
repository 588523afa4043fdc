// Package incidents owns incident records and enforces lifecycle transitions.
package incidents

import (
	"fmt"
	"sync"
	"time"

	"github.com/miradorstack/mirador-remediate/internal/models"
	"github.com/miradorstack/mirador-remediate/internal/utils"
)

// validNext encodes the forward-only lifecycle. detected may also resolve
// directly when a later health probe finds the service healthy before
// analysis runs.
var validNext = map[models.IncidentStatus]map[models.IncidentStatus]bool{
	models.IncidentDetected: {
		models.IncidentAnalyzed: true,
		models.IncidentResolved: true,
	},
	models.IncidentAnalyzed: {
		models.IncidentActionTaken: true,
	},
	models.IncidentActionTaken: {
		models.IncidentResolved: true,
	},
	models.IncidentResolved: {},
}

// TransitionFields are applied atomically with a status change.
type TransitionFields struct {
	Analysis    *models.Analysis
	ActionTaken models.ActionType
	ResolvedAt  *time.Time
}

// Store is the thread-safe owner of incident records.
type Store struct {
	mu        sync.RWMutex
	incidents map[string]*models.Incident
	order     []string
}

// NewStore constructs an empty incident store.
func NewStore() *Store {
	return &Store{incidents: make(map[string]*models.Incident)}
}

// Create inserts a new incident. The caller supplies the id; duplicates and
// out-of-range severities are rejected.
func (s *Store) Create(inc models.Incident) error {
	if inc.ID == "" {
		return utils.NewAppError("incidents.Create", "incident id is required", nil)
	}
	if inc.Severity < 0 || inc.Severity > 1 {
		return utils.NewAppError("incidents.Create", fmt.Sprintf("severity %.2f outside [0,1]", inc.Severity), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.incidents[inc.ID]; ok {
		return fmt.Errorf("incident %s: %w", inc.ID, utils.ErrDuplicateID)
	}

	if inc.Status == "" {
		inc.Status = models.IncidentDetected
	}
	// Snapshot is immutable after detection; keep our own copy.
	if inc.Metrics != nil {
		snapshot := make(map[string]float64, len(inc.Metrics))
		for k, v := range inc.Metrics {
			snapshot[k] = v
		}
		inc.Metrics = snapshot
	}

	copied := inc
	s.incidents[inc.ID] = &copied
	s.order = append(s.order, inc.ID)
	return nil
}

// Get returns a copy of the incident or ErrNotFound.
func (s *Store) Get(id string) (models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inc, ok := s.incidents[id]
	if !ok {
		return models.Incident{}, utils.ErrNotFound
	}
	return *inc, nil
}

// List returns all incidents in creation order.
func (s *Store) List() []models.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(*models.Incident) bool { return true })
}

// ListByService returns all incidents for one service in creation order.
func (s *Store) ListByService(serviceID string) []models.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(inc *models.Incident) bool { return inc.ServiceID == serviceID })
}

// ListActive returns incidents whose status is not resolved.
func (s *Store) ListActive() []models.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(inc *models.Incident) bool { return inc.Status != models.IncidentResolved })
}

// FindOpen returns the unresolved incident for the serviceID+type dedup key,
// if one exists. The orchestrator consults it before creating, so a condition
// persisting across cycles does not accumulate duplicate records.
func (s *Store) FindOpen(serviceID string, incidentType models.IncidentType) (models.Incident, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		inc := s.incidents[id]
		if inc.ServiceID == serviceID && inc.Type == incidentType && inc.Status != models.IncidentResolved {
			return *inc, true
		}
	}
	return models.Incident{}, false
}

// Transition moves an incident to newStatus, applying fields atomically.
// Backward or skip-state moves fail with ErrInvalidTransition. Re-resolving an
// already-resolved incident is a no-op and never double-sets ResolvedAt.
func (s *Store) Transition(id string, newStatus models.IncidentStatus, fields TransitionFields) (models.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.incidents[id]
	if !ok {
		return models.Incident{}, utils.ErrNotFound
	}

	if inc.Status == models.IncidentResolved && newStatus == models.IncidentResolved {
		return *inc, nil
	}

	allowed, ok := validNext[inc.Status]
	if !ok || !allowed[newStatus] {
		return models.Incident{}, fmt.Errorf("%s -> %s: %w", inc.Status, newStatus, utils.ErrInvalidTransition)
	}

	inc.Status = newStatus
	if fields.Analysis != nil && inc.Analysis == nil {
		analysis := *fields.Analysis
		inc.Analysis = &analysis
	}
	if fields.ActionTaken != "" {
		inc.ActionTaken = fields.ActionTaken
	}
	if newStatus == models.IncidentResolved {
		resolvedAt := time.Now().UTC()
		if fields.ResolvedAt != nil {
			resolvedAt = *fields.ResolvedAt
		}
		inc.ResolvedAt = &resolvedAt
	}
	return *inc, nil
}

func (s *Store) collect(keep func(*models.Incident) bool) []models.Incident {
	out := make([]models.Incident, 0, len(s.order))
	for _, id := range s.order {
		if inc, ok := s.incidents[id]; ok && keep(inc) {
			out = append(out, *inc)
		}
	}
	return out
}
