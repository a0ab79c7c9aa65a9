package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/pkg/ctxlog"
	"github.com/jackc/pgx/v5"
)

// StatusProjector recomputes derived service status after a transition.
// Implemented by statuslog.Projector.
type StatusProjector interface {
	RecomputeAll(ctx context.Context, serviceIDs []string)
}

// UpdateNotifier fans out notifications for a persisted incident update.
// Implemented by notifications.Notifier. Failures are best-effort: they never
// roll back the lifecycle transition.
type UpdateNotifier interface {
	OnIncidentUpdate(ctx context.Context, incident *domain.Incident, update *domain.IncidentUpdate) error
}

// ServiceValidator checks that the affected services exist and belong to the
// organization. Implemented by catalog.Service.
type ServiceValidator interface {
	ValidateServicesExist(ctx context.Context, organizationID string, serviceIDs []string) (missing []string, err error)
}

// Service implements incident and maintenance lifecycle logic.
type Service struct {
	repo      Repository
	projector StatusProjector
	notifier  UpdateNotifier
	validator ServiceValidator
	now       func() time.Time
}

// NewService creates a new events service. The notifier may be nil when
// notifications are disabled.
func NewService(repo Repository, projector StatusProjector, validator ServiceValidator, notifier UpdateNotifier) *Service {
	return &Service{
		repo:      repo,
		projector: projector,
		notifier:  notifier,
		validator: validator,
		now:       time.Now,
	}
}

// CreateIncidentInput holds data for reporting an incident.
type CreateIncidentInput struct {
	OrganizationID string
	Title          string
	Description    string
	Impact         domain.Impact
	Phase          domain.IncidentPhase
	Message        string
	ServiceIDs     []string
}

// CreateIncident reports a new incident with its first update, associates the
// affected services, recomputes their status and notifies subscribers.
func (s *Service) CreateIncident(ctx context.Context, input CreateIncidentInput, createdBy string) (*domain.Incident, error) {
	if !input.Impact.IsValid() {
		return nil, ErrInvalidImpact
	}
	if input.Phase == "" {
		input.Phase = domain.IncidentPhaseInvestigating
	}
	if !input.Phase.IsValid() {
		return nil, ErrInvalidPhase
	}

	if err := s.validateAffectedServices(ctx, input.OrganizationID, input.ServiceIDs); err != nil {
		return nil, err
	}

	incident := &domain.Incident{
		OrganizationID: input.OrganizationID,
		Title:          input.Title,
		Description:    input.Description,
		Impact:         input.Impact,
		ServiceIDs:     input.ServiceIDs,
		CreatedBy:      createdBy,
	}

	var update *domain.IncidentUpdate

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.repo.CreateIncidentTx(ctx, tx, incident); err != nil {
			return fmt.Errorf("create incident: %w", err)
		}

		update = &domain.IncidentUpdate{
			IncidentID: incident.ID,
			Phase:      input.Phase,
			Message:    input.Message,
			CreatedBy:  createdBy,
		}
		if err := s.repo.CreateIncidentUpdateTx(ctx, tx, update); err != nil {
			return fmt.Errorf("create initial update: %w", err)
		}

		if input.Phase.IsTerminal() {
			now := s.now()
			if err := s.repo.SetIncidentResolvedTx(ctx, tx, incident.ID, now); err != nil {
				return fmt.Errorf("set resolved: %w", err)
			}
			incident.ResolvedAt = &now
		}

		if len(input.ServiceIDs) > 0 {
			if err := s.repo.AssociateIncidentServicesTx(ctx, tx, incident.ID, input.ServiceIDs); err != nil {
				return fmt.Errorf("associate services: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, incident, update)
	return incident, nil
}

// AddIncidentUpdateInput holds data for appending an incident update.
type AddIncidentUpdateInput struct {
	IncidentID string
	Phase      domain.IncidentPhase
	Message    string
}

// AddIncidentUpdate appends an update to an open incident. Any phase may
// follow any other; resolution is terminal and stamps resolved_at exactly
// once.
func (s *Service) AddIncidentUpdate(ctx context.Context, input AddIncidentUpdateInput, createdBy string) (*domain.IncidentUpdate, error) {
	if !input.Phase.IsValid() {
		return nil, ErrInvalidPhase
	}

	incident, err := s.repo.GetIncident(ctx, input.IncidentID)
	if err != nil {
		return nil, fmt.Errorf("get incident: %w", err)
	}

	if !incident.IsOpen() {
		return nil, ErrIncidentResolved
	}

	update := &domain.IncidentUpdate{
		IncidentID: incident.ID,
		Phase:      input.Phase,
		Message:    input.Message,
		CreatedBy:  createdBy,
	}

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.repo.CreateIncidentUpdateTx(ctx, tx, update); err != nil {
			return fmt.Errorf("create update: %w", err)
		}

		if input.Phase.IsTerminal() {
			now := s.now()
			if err := s.repo.SetIncidentResolvedTx(ctx, tx, incident.ID, now); err != nil {
				return fmt.Errorf("set resolved: %w", err)
			}
			incident.ResolvedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, incident, update)
	return update, nil
}

// GetIncident retrieves an incident by ID.
func (s *Service) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	return s.repo.GetIncident(ctx, id)
}

// ListIncidents retrieves incidents matching the filter.
func (s *Service) ListIncidents(ctx context.Context, filter IncidentFilter) ([]*domain.Incident, error) {
	return s.repo.ListIncidents(ctx, filter)
}

// ListIncidentUpdates retrieves all updates for an incident, newest first.
func (s *Service) ListIncidentUpdates(ctx context.Context, incidentID string) ([]*domain.IncidentUpdate, error) {
	if _, err := s.repo.GetIncident(ctx, incidentID); err != nil {
		return nil, err
	}
	return s.repo.ListIncidentUpdates(ctx, incidentID)
}

// DeleteIncident removes an incident and its service associations. History in
// the status log is untouched; the previously affected services are
// recomputed immediately since the incident may have been the sole
// contributor to their non-operational status.
func (s *Service) DeleteIncident(ctx context.Context, id string) error {
	incident, err := s.repo.GetIncident(ctx, id)
	if err != nil {
		return fmt.Errorf("get incident: %w", err)
	}

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		return s.repo.DeleteIncidentTx(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.projector.RecomputeAll(ctx, incident.ServiceIDs)
	return nil
}

// CreateMaintenanceInput holds data for scheduling a maintenance.
type CreateMaintenanceInput struct {
	OrganizationID string
	Title          string
	Description    string
	Impact         domain.Impact
	StartTime      time.Time
	EndTime        time.Time
	ServiceIDs     []string
}

// CreateMaintenance schedules a maintenance window.
func (s *Service) CreateMaintenance(ctx context.Context, input CreateMaintenanceInput, createdBy string) (*domain.ScheduledMaintenance, error) {
	if !input.Impact.IsValid() {
		return nil, ErrInvalidImpact
	}
	if !input.EndTime.After(input.StartTime) {
		return nil, ErrInvalidWindow
	}

	if err := s.validateAffectedServices(ctx, input.OrganizationID, input.ServiceIDs); err != nil {
		return nil, err
	}

	m := &domain.ScheduledMaintenance{
		OrganizationID: input.OrganizationID,
		Title:          input.Title,
		Description:    input.Description,
		Impact:         input.Impact,
		StartTime:      input.StartTime,
		EndTime:        input.EndTime,
		ServiceIDs:     input.ServiceIDs,
		CreatedBy:      createdBy,
	}

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.repo.CreateMaintenanceTx(ctx, tx, m); err != nil {
			return fmt.Errorf("create maintenance: %w", err)
		}
		if len(input.ServiceIDs) > 0 {
			if err := s.repo.AssociateMaintenanceServicesTx(ctx, tx, m.ID, input.ServiceIDs); err != nil {
				return fmt.Errorf("associate services: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// A window created already in progress affects status right away.
	s.projector.RecomputeAll(ctx, m.ServiceIDs)
	return m, nil
}

// StartMaintenanceNow begins a maintenance early by rewriting its start time
// to now. Legal only while the maintenance is still scheduled.
func (s *Service) StartMaintenanceNow(ctx context.Context, id string) (*domain.ScheduledMaintenance, error) {
	m, err := s.repo.GetMaintenance(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get maintenance: %w", err)
	}

	now := s.now()
	if m.Phase(now) != domain.MaintenancePhaseScheduled {
		return nil, ErrMaintenanceNotScheduled
	}

	m.StartTime = now
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		return s.repo.UpdateMaintenanceWindowTx(ctx, tx, m.ID, m.StartTime, m.EndTime)
	})
	if err != nil {
		return nil, err
	}

	s.projector.RecomputeAll(ctx, m.ServiceIDs)
	return m, nil
}

// CompleteMaintenanceNow ends a maintenance early by rewriting its end time
// to now. Legal only while the maintenance is in progress.
func (s *Service) CompleteMaintenanceNow(ctx context.Context, id string) (*domain.ScheduledMaintenance, error) {
	m, err := s.repo.GetMaintenance(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get maintenance: %w", err)
	}

	now := s.now()
	if m.Phase(now) != domain.MaintenancePhaseInProgress {
		return nil, ErrMaintenanceNotInProgress
	}

	m.EndTime = now
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		return s.repo.UpdateMaintenanceWindowTx(ctx, tx, m.ID, m.StartTime, m.EndTime)
	})
	if err != nil {
		return nil, err
	}

	s.projector.RecomputeAll(ctx, m.ServiceIDs)
	return m, nil
}

// AddMaintenanceUpdate appends commentary to a maintenance. It never changes
// the derived phase.
func (s *Service) AddMaintenanceUpdate(ctx context.Context, maintenanceID, message, createdBy string) (*domain.MaintenanceUpdate, error) {
	if _, err := s.repo.GetMaintenance(ctx, maintenanceID); err != nil {
		return nil, fmt.Errorf("get maintenance: %w", err)
	}

	update := &domain.MaintenanceUpdate{
		MaintenanceID: maintenanceID,
		Message:       message,
		CreatedBy:     createdBy,
	}
	if err := s.repo.CreateMaintenanceUpdate(ctx, update); err != nil {
		return nil, fmt.Errorf("create maintenance update: %w", err)
	}
	return update, nil
}

// GetMaintenance retrieves a maintenance by ID.
func (s *Service) GetMaintenance(ctx context.Context, id string) (*domain.ScheduledMaintenance, error) {
	return s.repo.GetMaintenance(ctx, id)
}

// ListMaintenances retrieves maintenances matching the filter.
func (s *Service) ListMaintenances(ctx context.Context, filter MaintenanceFilter) ([]*domain.ScheduledMaintenance, error) {
	return s.repo.ListMaintenances(ctx, filter)
}

// ListMaintenanceUpdates retrieves all updates for a maintenance, newest first.
func (s *Service) ListMaintenanceUpdates(ctx context.Context, maintenanceID string) ([]*domain.MaintenanceUpdate, error) {
	if _, err := s.repo.GetMaintenance(ctx, maintenanceID); err != nil {
		return nil, err
	}
	return s.repo.ListMaintenanceUpdates(ctx, maintenanceID)
}

// DeleteMaintenance removes a maintenance and its associations, then
// recomputes the previously affected services.
func (s *Service) DeleteMaintenance(ctx context.Context, id string) error {
	m, err := s.repo.GetMaintenance(ctx, id)
	if err != nil {
		return fmt.Errorf("get maintenance: %w", err)
	}

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		return s.repo.DeleteMaintenanceTx(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.projector.RecomputeAll(ctx, m.ServiceIDs)
	return nil
}

// SweepMaintenanceBoundaries recomputes services whose maintenances crossed a
// phase boundary inside (from, to]. Invoked periodically so time-derived
// transitions reach the status log without any manual action.
func (s *Service) SweepMaintenanceBoundaries(ctx context.Context, from, to time.Time) error {
	serviceIDs, err := s.repo.ListMaintenanceServiceIDsCrossing(ctx, from, to)
	if err != nil {
		return fmt.Errorf("list boundary crossings: %w", err)
	}
	s.projector.RecomputeAll(ctx, serviceIDs)
	return nil
}

// afterTransition runs the recompute and notification chain for a committed
// incident transition. Failures here are isolated: the transition is already
// durable.
func (s *Service) afterTransition(ctx context.Context, incident *domain.Incident, update *domain.IncidentUpdate) {
	s.projector.RecomputeAll(ctx, incident.ServiceIDs)

	if s.notifier == nil || update == nil {
		return
	}
	if err := s.notifier.OnIncidentUpdate(ctx, incident, update); err != nil {
		ctxlog.FromContext(ctx).Error("notification dispatch failed",
			"incident_id", incident.ID,
			"update_id", update.ID,
			"error", err,
		)
	}
}

func (s *Service) validateAffectedServices(ctx context.Context, organizationID string, serviceIDs []string) error {
	if len(serviceIDs) == 0 {
		return nil
	}
	missing, err := s.validator.ValidateServicesExist(ctx, organizationID, serviceIDs)
	if err != nil {
		return fmt.Errorf("validate services: %w", err)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrAffectedServiceNotFound, missing[0])
	}
	return nil
}

func (s *Service) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			ctxlog.FromContext(ctx).Error("failed to rollback transaction", "error", err)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
