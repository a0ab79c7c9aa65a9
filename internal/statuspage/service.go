// Package statuspage assembles the public status feed for an organization.
package statuspage

import (
	"context"
	"fmt"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/events"
	"github.com/bissquit/status-garden/internal/pkg/ctxlog"
	"github.com/jellydator/ttlcache/v3"
)

// DefaultCacheTTL bounds staleness of the cached feed between invalidations.
const DefaultCacheTTL = 30 * time.Second

// CatalogReader resolves organizations and services. Implemented by
// catalog.Service.
type CatalogReader interface {
	GetOrganizationBySlug(ctx context.Context, slug string) (*domain.Organization, error)
	GetOrganization(ctx context.Context, id string) (*domain.Organization, error)
	GetService(ctx context.Context, id string) (*domain.Service, error)
	ListServices(ctx context.Context, organizationID string) ([]*domain.Service, error)
}

// EventsReader lists incidents and maintenances. Implemented by
// events.Service.
type EventsReader interface {
	ListIncidents(ctx context.Context, filter events.IncidentFilter) ([]*domain.Incident, error)
	ListIncidentUpdates(ctx context.Context, incidentID string) ([]*domain.IncidentUpdate, error)
	ListMaintenances(ctx context.Context, filter events.MaintenanceFilter) ([]*domain.ScheduledMaintenance, error)
}

// StatusProjector derives a service's live status. Implemented by
// statuslog.Projector.
type StatusProjector interface {
	Project(ctx context.Context, serviceID string) (domain.ServiceStatus, error)
}

// OverallStatus summarizes the whole page.
type OverallStatus struct {
	Indicator   string `json:"indicator"`
	Description string `json:"description"`
}

// ServiceView is one service with its effective status.
type ServiceView struct {
	ID     string               `json:"id"`
	Name   string               `json:"name"`
	Status domain.ServiceStatus `json:"status"`
}

// IncidentView is an open incident with its updates, newest first.
type IncidentView struct {
	Incident *domain.Incident         `json:"incident"`
	Updates  []*domain.IncidentUpdate `json:"updates"`
}

// MaintenanceView is a maintenance with its derived phase.
type MaintenanceView struct {
	Maintenance *domain.ScheduledMaintenance `json:"maintenance"`
	Phase       domain.MaintenancePhase      `json:"phase"`
}

// StatusPage is the public feed for one organization.
type StatusPage struct {
	Organization          *domain.Organization `json:"organization"`
	Status                OverallStatus        `json:"status"`
	Services              []ServiceView        `json:"services"`
	Incidents             []IncidentView       `json:"incidents"`
	ScheduledMaintenances []MaintenanceView    `json:"scheduled_maintenances"`
	GeneratedAt           time.Time            `json:"generated_at"`
}

// Service assembles and caches status pages.
type Service struct {
	catalog   CatalogReader
	events    EventsReader
	projector StatusProjector
	cache     *ttlcache.Cache[string, *StatusPage]
	now       func() time.Time
}

// NewService creates a new statuspage service.
func NewService(catalog CatalogReader, eventsReader EventsReader, projector StatusProjector) *Service {
	cache := ttlcache.New[string, *StatusPage](
		ttlcache.WithTTL[string, *StatusPage](DefaultCacheTTL),
	)
	go cache.Start()

	return &Service{
		catalog:   catalog,
		events:    eventsReader,
		projector: projector,
		cache:     cache,
		now:       time.Now,
	}
}

// GetStatusPage returns the feed for an organization, building it on cache
// miss.
func (s *Service) GetStatusPage(ctx context.Context, orgSlug string) (*StatusPage, error) {
	if item := s.cache.Get(orgSlug); item != nil {
		return item.Value(), nil
	}

	page, err := s.buildStatusPage(ctx, orgSlug)
	if err != nil {
		return nil, err
	}

	s.cache.Set(orgSlug, page, ttlcache.DefaultTTL)
	return page, nil
}

// ListServicesWithStatus returns the organization's services with their live
// derived status.
func (s *Service) ListServicesWithStatus(ctx context.Context, orgSlug string) ([]ServiceView, error) {
	org, err := s.catalog.GetOrganizationBySlug(ctx, orgSlug)
	if err != nil {
		return nil, err
	}
	return s.serviceViews(ctx, org.ID)
}

// OnStatusChange implements statuslog.ChangeListener: a committed transition
// invalidates the owning organization's cached page.
func (s *Service) OnStatusChange(ctx context.Context, serviceID string, _, _ domain.ServiceStatus) {
	service, err := s.catalog.GetService(ctx, serviceID)
	if err != nil {
		// Cannot map the service to its page; drop everything cached.
		ctxlog.FromContext(ctx).Warn("cache invalidation fallback to full flush",
			"service_id", serviceID,
			"error", err,
		)
		s.cache.DeleteAll()
		return
	}

	org, err := s.catalog.GetOrganization(ctx, service.OrganizationID)
	if err != nil {
		s.cache.DeleteAll()
		return
	}

	s.cache.Delete(org.Slug)
}

// Invalidate drops the cached page for one organization.
func (s *Service) Invalidate(orgSlug string) {
	s.cache.Delete(orgSlug)
}

func (s *Service) buildStatusPage(ctx context.Context, orgSlug string) (*StatusPage, error) {
	org, err := s.catalog.GetOrganizationBySlug(ctx, orgSlug)
	if err != nil {
		return nil, err
	}

	views, err := s.serviceViews(ctx, org.ID)
	if err != nil {
		return nil, err
	}

	incidents, err := s.openIncidents(ctx, org.ID)
	if err != nil {
		return nil, err
	}

	maintenances, err := s.upcomingMaintenances(ctx, org.ID)
	if err != nil {
		return nil, err
	}

	return &StatusPage{
		Organization:          org,
		Status:                overallStatus(views),
		Services:              views,
		Incidents:             incidents,
		ScheduledMaintenances: maintenances,
		GeneratedAt:           s.now(),
	}, nil
}

func (s *Service) serviceViews(ctx context.Context, organizationID string) ([]ServiceView, error) {
	services, err := s.catalog.ListServices(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}

	views := make([]ServiceView, 0, len(services))
	for _, service := range services {
		status, err := s.projector.Project(ctx, service.ID)
		if err != nil {
			// Serve the cached column rather than failing the whole page.
			ctxlog.FromContext(ctx).Warn("live projection failed, using cached status",
				"service_id", service.ID,
				"error", err,
			)
			status = service.CurrentStatus
		}
		views = append(views, ServiceView{
			ID:     service.ID,
			Name:   service.Name,
			Status: status,
		})
	}
	return views, nil
}

func (s *Service) openIncidents(ctx context.Context, organizationID string) ([]IncidentView, error) {
	incidents, err := s.events.ListIncidents(ctx, events.IncidentFilter{
		OrganizationID: organizationID,
		OpenOnly:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("list open incidents: %w", err)
	}

	views := make([]IncidentView, 0, len(incidents))
	for _, incident := range incidents {
		updates, err := s.events.ListIncidentUpdates(ctx, incident.ID)
		if err != nil {
			return nil, fmt.Errorf("list incident updates: %w", err)
		}
		views = append(views, IncidentView{Incident: incident, Updates: updates})
	}
	return views, nil
}

func (s *Service) upcomingMaintenances(ctx context.Context, organizationID string) ([]MaintenanceView, error) {
	maintenances, err := s.events.ListMaintenances(ctx, events.MaintenanceFilter{
		OrganizationID: organizationID,
		ActiveOnly:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("list maintenances: %w", err)
	}

	now := s.now()
	views := make([]MaintenanceView, 0, len(maintenances))
	for _, m := range maintenances {
		phase := m.Phase(now)
		if phase == domain.MaintenancePhaseCompleted {
			continue
		}
		views = append(views, MaintenanceView{Maintenance: m, Phase: phase})
	}
	return views, nil
}

func overallStatus(views []ServiceView) OverallStatus {
	worst := domain.ServiceStatusOperational
	for _, v := range views {
		worst = domain.WorstServiceStatus(worst, v.Status)
	}

	if worst == domain.ServiceStatusOperational {
		return OverallStatus{
			Indicator:   "ok",
			Description: "All Systems Operational",
		}
	}
	// The indicator stays binary; the description carries the severity.
	return OverallStatus{
		Indicator:   "error",
		Description: worst.Label(),
	}
}
