package statuslog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
)

// memoryRepository implements Repository in memory for unit tests.
type memoryRepository struct {
	nextID   int
	entries  map[string]*domain.StatusLogEntry
	services map[string]*memoryService
}

type memoryService struct {
	cachedStatus domain.ServiceStatus
	createdAt    time.Time
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		entries:  make(map[string]*domain.StatusLogEntry),
		services: make(map[string]*memoryService),
	}
}

func (m *memoryRepository) addService(id string, status domain.ServiceStatus, createdAt time.Time) {
	m.services[id] = &memoryService{cachedStatus: status, createdAt: createdAt}
}

func (m *memoryRepository) addEntry(serviceID string, status domain.ServiceStatus, startedAt time.Time, endedAt *time.Time) string {
	m.nextID++
	id := fmt.Sprintf("entry-%d", m.nextID)
	m.entries[id] = &domain.StatusLogEntry{
		ID:        id,
		ServiceID: serviceID,
		Status:    status,
		StartedAt: startedAt,
		EndedAt:   endedAt,
	}
	return id
}

func (m *memoryRepository) serviceEntries(serviceID string) []domain.StatusLogEntry {
	var out []domain.StatusLogEntry
	for _, e := range m.entries {
		if e.ServiceID == serviceID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func (m *memoryRepository) TransitionStatus(_ context.Context, serviceID string, status domain.ServiceStatus, at time.Time) (Transition, error) {
	svc, ok := m.services[serviceID]
	if !ok {
		return Transition{}, ErrServiceNotFound
	}

	var open *domain.StatusLogEntry
	for _, e := range m.entries {
		if e.ServiceID == serviceID && e.EndedAt == nil {
			open = e
		}
	}
	if open == nil {
		id := m.addEntry(serviceID, domain.ServiceStatusOperational, svc.createdAt, nil)
		open = m.entries[id]
	}

	result := Transition{From: open.Status, To: status, At: at}
	if open.Status == status {
		return result, nil
	}

	endedAt := at
	open.EndedAt = &endedAt
	m.addEntry(serviceID, status, at, nil)
	svc.cachedStatus = status
	result.Changed = true
	return result, nil
}

func (m *memoryRepository) GetOpenEntry(_ context.Context, serviceID string) (*domain.StatusLogEntry, error) {
	var latest *domain.StatusLogEntry
	for _, e := range m.entries {
		if e.ServiceID == serviceID && e.EndedAt == nil {
			if latest == nil || e.StartedAt.After(latest.StartedAt) {
				latest = e
			}
		}
	}
	if latest == nil {
		return nil, ErrNoOpenEntry
	}
	entry := *latest
	return &entry, nil
}

func (m *memoryRepository) ListEntriesOverlapping(_ context.Context, serviceID string, from, to time.Time) ([]domain.StatusLogEntry, error) {
	var out []domain.StatusLogEntry
	for _, e := range m.serviceEntries(serviceID) {
		if !e.StartedAt.Before(to) {
			continue
		}
		if e.EndedAt != nil && !e.EndedAt.After(from) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memoryRepository) ListOpenEntries(_ context.Context, serviceID string) ([]domain.StatusLogEntry, error) {
	var out []domain.StatusLogEntry
	for _, e := range m.serviceEntries(serviceID) {
		if e.EndedAt == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryRepository) FindServicesWithMultipleOpenEntries(_ context.Context) ([]string, error) {
	counts := make(map[string]int)
	for _, e := range m.entries {
		if e.EndedAt == nil {
			counts[e.ServiceID]++
		}
	}
	var out []string
	for sid, n := range counts {
		if n > 1 {
			out = append(out, sid)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memoryRepository) CloseEntry(_ context.Context, entryID string, at time.Time) error {
	e, ok := m.entries[entryID]
	if !ok {
		return fmt.Errorf("entry %s not found", entryID)
	}
	endedAt := at
	e.EndedAt = &endedAt
	return nil
}

func (m *memoryRepository) ListServiceIDs(_ context.Context) ([]string, error) {
	var out []string
	for id := range m.services {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memoryRepository) GetCachedStatus(_ context.Context, serviceID string) (domain.ServiceStatus, error) {
	svc, ok := m.services[serviceID]
	if !ok {
		return "", ErrServiceNotFound
	}
	return svc.cachedStatus, nil
}

func (m *memoryRepository) SetCachedStatus(_ context.Context, serviceID string, status domain.ServiceStatus) error {
	svc, ok := m.services[serviceID]
	if !ok {
		return ErrServiceNotFound
	}
	svc.cachedStatus = status
	return nil
}

// memorySource implements ActiveSource in memory.
type memorySource struct {
	incidents    map[string][]*domain.Incident
	maintenances map[string][]*domain.ScheduledMaintenance
}

func newMemorySource() *memorySource {
	return &memorySource{
		incidents:    make(map[string][]*domain.Incident),
		maintenances: make(map[string][]*domain.ScheduledMaintenance),
	}
}

func (m *memorySource) ListOpenIncidentsForService(_ context.Context, serviceID string) ([]*domain.Incident, error) {
	var open []*domain.Incident
	for _, inc := range m.incidents[serviceID] {
		if inc.IsOpen() {
			open = append(open, inc)
		}
	}
	return open, nil
}

func (m *memorySource) ListMaintenancesForService(_ context.Context, serviceID string) ([]*domain.ScheduledMaintenance, error) {
	return m.maintenances[serviceID], nil
}
