package statuslog

import (
	"context"
	"fmt"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/pkg/ctxlog"
)

// ChangeListener observes committed status transitions. Listener failures are
// logged and never propagate to the caller.
type ChangeListener interface {
	OnStatusChange(ctx context.Context, serviceID string, from, to domain.ServiceStatus)
}

// ChangeListenerFunc adapts a function to the ChangeListener interface.
type ChangeListenerFunc func(ctx context.Context, serviceID string, from, to domain.ServiceStatus)

// OnStatusChange implements ChangeListener.
func (f ChangeListenerFunc) OnStatusChange(ctx context.Context, serviceID string, from, to domain.ServiceStatus) {
	f(ctx, serviceID, from, to)
}

// Projector derives a service's current status from the set of open incidents
// and in-progress maintenances affecting it, and writes transitions to the
// status log.
type Projector struct {
	repo      Repository
	source    ActiveSource
	listeners []ChangeListener
	now       func() time.Time
}

// NewProjector creates a projector.
func NewProjector(repo Repository, source ActiveSource) *Projector {
	return &Projector{
		repo:   repo,
		source: source,
		now:    time.Now,
	}
}

// AddListener registers a listener for committed transitions.
func (p *Projector) AddListener(l ChangeListener) {
	p.listeners = append(p.listeners, l)
}

// Recompute projects the service's status from all currently relevant
// incidents and maintenances and, when it differs from the cached status,
// writes a new log interval and updates the cache. Returns the projected
// status.
func (p *Projector) Recompute(ctx context.Context, serviceID string) (domain.ServiceStatus, error) {
	projected, err := p.Project(ctx, serviceID)
	if err != nil {
		return "", err
	}

	transition, err := p.repo.TransitionStatus(ctx, serviceID, projected, p.now())
	if err != nil {
		return "", fmt.Errorf("transition status for %s: %w", serviceID, err)
	}

	if transition.Changed {
		ctxlog.FromContext(ctx).Info("service status changed",
			"service_id", serviceID,
			"from", transition.From,
			"to", transition.To,
		)
		recordStatusTransition(string(transition.From), string(transition.To))

		for _, l := range p.listeners {
			l.OnStatusChange(ctx, serviceID, transition.From, transition.To)
		}
	}

	return projected, nil
}

// RecomputeAll recomputes a set of services, continuing past individual
// failures so one bad service cannot block the rest of the chain.
func (p *Projector) RecomputeAll(ctx context.Context, serviceIDs []string) {
	for _, sid := range serviceIDs {
		if _, err := p.Recompute(ctx, sid); err != nil {
			ctxlog.FromContext(ctx).Error("recompute failed",
				"service_id", sid,
				"error", err,
			)
		}
	}
}

// Override writes a manual status transition, bypassing projection. The next
// Recompute will fold the override back into the derived status.
func (p *Projector) Override(ctx context.Context, serviceID string, to domain.ServiceStatus) (Transition, error) {
	if !to.IsValid() {
		return Transition{}, fmt.Errorf("override status for %s: %w", serviceID, domain.ErrInvalidServiceStatus)
	}

	transition, err := p.repo.TransitionStatus(ctx, serviceID, to, p.now())
	if err != nil {
		return Transition{}, fmt.Errorf("override status for %s: %w", serviceID, err)
	}

	if transition.Changed {
		ctxlog.FromContext(ctx).Info("service status overridden",
			"service_id", serviceID,
			"from", transition.From,
			"to", transition.To,
		)
		recordStatusTransition(string(transition.From), string(transition.To))

		for _, l := range p.listeners {
			l.OnStatusChange(ctx, serviceID, transition.From, transition.To)
		}
	}

	return transition, nil
}

// Project computes the worst-case status implied by everything currently
// affecting the service, without any side effects.
func (p *Projector) Project(ctx context.Context, serviceID string) (domain.ServiceStatus, error) {
	incidents, err := p.source.ListOpenIncidentsForService(ctx, serviceID)
	if err != nil {
		return "", fmt.Errorf("list open incidents: %w", err)
	}

	maintenances, err := p.source.ListMaintenancesForService(ctx, serviceID)
	if err != nil {
		return "", fmt.Errorf("list maintenances: %w", err)
	}

	now := p.now()
	projected := domain.ServiceStatusOperational

	for _, inc := range incidents {
		// Open incidents are never in a terminal phase.
		projected = domain.WorstServiceStatus(projected, inc.Impact.ServiceStatus())
	}

	for _, m := range maintenances {
		projected = domain.WorstServiceStatus(projected,
			domain.ResolveMaintenanceStatus(m.Impact, m.Phase(now)))
	}

	return projected, nil
}
