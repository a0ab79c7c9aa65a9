// Package postgres provides the PostgreSQL implementation of the events
// repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/events"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements events.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL events repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// BeginTx starts a transaction.
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

// GetIncident retrieves an incident with its affected service IDs.
func (r *Repository) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	var inc domain.Incident
	err := r.db.QueryRow(ctx,
		`SELECT id, organization_id, title, description, impact, created_by, created_at, updated_at, resolved_at
		 FROM incidents WHERE id = $1`,
		id,
	).Scan(&inc.ID, &inc.OrganizationID, &inc.Title, &inc.Description, &inc.Impact,
		&inc.CreatedBy, &inc.CreatedAt, &inc.UpdatedAt, &inc.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}

	inc.ServiceIDs, err = r.incidentServiceIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

// ListIncidents retrieves incidents matching the filter, newest first.
func (r *Repository) ListIncidents(ctx context.Context, filter events.IncidentFilter) ([]*domain.Incident, error) {
	query := `SELECT id, organization_id, title, description, impact, created_by, created_at, updated_at, resolved_at
		 FROM incidents WHERE organization_id = $1`
	if filter.OpenOnly {
		query += ` AND resolved_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	args := []any{filter.OrganizationID}
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]*domain.Incident, 0)
	for rows.Next() {
		var inc domain.Incident
		if err := rows.Scan(&inc.ID, &inc.OrganizationID, &inc.Title, &inc.Description, &inc.Impact,
			&inc.CreatedBy, &inc.CreatedAt, &inc.UpdatedAt, &inc.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		incidents = append(incidents, &inc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, inc := range incidents {
		if inc.ServiceIDs, err = r.incidentServiceIDs(ctx, inc.ID); err != nil {
			return nil, err
		}
	}
	return incidents, nil
}

// ListIncidentUpdates retrieves updates for an incident, newest first.
func (r *Repository) ListIncidentUpdates(ctx context.Context, incidentID string) ([]*domain.IncidentUpdate, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, incident_id, phase, message, created_by, created_at
		 FROM incident_updates WHERE incident_id = $1
		 ORDER BY created_at DESC`,
		incidentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list incident updates: %w", err)
	}
	defer rows.Close()

	updates := make([]*domain.IncidentUpdate, 0)
	for rows.Next() {
		var u domain.IncidentUpdate
		if err := rows.Scan(&u.ID, &u.IncidentID, &u.Phase, &u.Message, &u.CreatedBy, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan incident update: %w", err)
		}
		updates = append(updates, &u)
	}
	return updates, rows.Err()
}

// CreateIncidentTx inserts an incident.
func (r *Repository) CreateIncidentTx(ctx context.Context, tx pgx.Tx, incident *domain.Incident) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO incidents (organization_id, title, description, impact, created_by)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		incident.OrganizationID, incident.Title, incident.Description, incident.Impact, incident.CreatedBy,
	).Scan(&incident.ID, &incident.CreatedAt, &incident.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

// CreateIncidentUpdateTx inserts an incident update.
func (r *Repository) CreateIncidentUpdateTx(ctx context.Context, tx pgx.Tx, update *domain.IncidentUpdate) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO incident_updates (incident_id, phase, message, created_by)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		update.IncidentID, update.Phase, update.Message, update.CreatedBy,
	).Scan(&update.ID, &update.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert incident update: %w", err)
	}
	return nil
}

// SetIncidentResolvedTx stamps resolved_at once; a second resolution attempt
// leaves the original timestamp.
func (r *Repository) SetIncidentResolvedTx(ctx context.Context, tx pgx.Tx, incidentID string, at time.Time) error {
	_, err := tx.Exec(ctx,
		`UPDATE incidents SET resolved_at = $2, updated_at = now()
		 WHERE id = $1 AND resolved_at IS NULL`,
		incidentID, at,
	)
	if err != nil {
		return fmt.Errorf("set resolved: %w", err)
	}
	return nil
}

// AssociateIncidentServicesTx links services to an incident.
func (r *Repository) AssociateIncidentServicesTx(ctx context.Context, tx pgx.Tx, incidentID string, serviceIDs []string) error {
	for _, sid := range serviceIDs {
		_, err := tx.Exec(ctx,
			`INSERT INTO incident_services (incident_id, service_id)
			 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			incidentID, sid,
		)
		if err != nil {
			return fmt.Errorf("associate service %s: %w", sid, err)
		}
	}
	return nil
}

// DeleteIncidentTx removes an incident; associations and updates are removed
// via CASCADE. Status log history is untouched.
func (r *Repository) DeleteIncidentTx(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM incidents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete incident: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrIncidentNotFound
	}
	return nil
}

// GetMaintenance retrieves a maintenance with its affected service IDs.
func (r *Repository) GetMaintenance(ctx context.Context, id string) (*domain.ScheduledMaintenance, error) {
	var m domain.ScheduledMaintenance
	err := r.db.QueryRow(ctx,
		`SELECT id, organization_id, title, description, impact, start_time, end_time, created_by, created_at, updated_at
		 FROM maintenances WHERE id = $1`,
		id,
	).Scan(&m.ID, &m.OrganizationID, &m.Title, &m.Description, &m.Impact,
		&m.StartTime, &m.EndTime, &m.CreatedBy, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrMaintenanceNotFound
		}
		return nil, fmt.Errorf("get maintenance: %w", err)
	}

	m.ServiceIDs, err = r.maintenanceServiceIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMaintenances retrieves maintenances matching the filter, soonest first.
func (r *Repository) ListMaintenances(ctx context.Context, filter events.MaintenanceFilter) ([]*domain.ScheduledMaintenance, error) {
	query := `SELECT id, organization_id, title, description, impact, start_time, end_time, created_by, created_at, updated_at
		 FROM maintenances WHERE organization_id = $1`
	if filter.ActiveOnly {
		query += ` AND end_time > now()`
	}
	query += ` ORDER BY start_time`

	args := []any{filter.OrganizationID}
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list maintenances: %w", err)
	}
	defer rows.Close()

	maintenances := make([]*domain.ScheduledMaintenance, 0)
	for rows.Next() {
		var m domain.ScheduledMaintenance
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.Title, &m.Description, &m.Impact,
			&m.StartTime, &m.EndTime, &m.CreatedBy, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan maintenance: %w", err)
		}
		maintenances = append(maintenances, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, m := range maintenances {
		if m.ServiceIDs, err = r.maintenanceServiceIDs(ctx, m.ID); err != nil {
			return nil, err
		}
	}
	return maintenances, nil
}

// ListMaintenanceUpdates retrieves updates for a maintenance, newest first.
func (r *Repository) ListMaintenanceUpdates(ctx context.Context, maintenanceID string) ([]*domain.MaintenanceUpdate, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, maintenance_id, message, created_by, created_at
		 FROM maintenance_updates WHERE maintenance_id = $1
		 ORDER BY created_at DESC`,
		maintenanceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list maintenance updates: %w", err)
	}
	defer rows.Close()

	updates := make([]*domain.MaintenanceUpdate, 0)
	for rows.Next() {
		var u domain.MaintenanceUpdate
		if err := rows.Scan(&u.ID, &u.MaintenanceID, &u.Message, &u.CreatedBy, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan maintenance update: %w", err)
		}
		updates = append(updates, &u)
	}
	return updates, rows.Err()
}

// CreateMaintenanceUpdate inserts a maintenance update.
func (r *Repository) CreateMaintenanceUpdate(ctx context.Context, update *domain.MaintenanceUpdate) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO maintenance_updates (maintenance_id, message, created_by)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		update.MaintenanceID, update.Message, update.CreatedBy,
	).Scan(&update.ID, &update.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert maintenance update: %w", err)
	}
	return nil
}

// CreateMaintenanceTx inserts a maintenance.
func (r *Repository) CreateMaintenanceTx(ctx context.Context, tx pgx.Tx, m *domain.ScheduledMaintenance) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO maintenances (organization_id, title, description, impact, start_time, end_time, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		m.OrganizationID, m.Title, m.Description, m.Impact, m.StartTime, m.EndTime, m.CreatedBy,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert maintenance: %w", err)
	}
	return nil
}

// AssociateMaintenanceServicesTx links services to a maintenance.
func (r *Repository) AssociateMaintenanceServicesTx(ctx context.Context, tx pgx.Tx, maintenanceID string, serviceIDs []string) error {
	for _, sid := range serviceIDs {
		_, err := tx.Exec(ctx,
			`INSERT INTO maintenance_services (maintenance_id, service_id)
			 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			maintenanceID, sid,
		)
		if err != nil {
			return fmt.Errorf("associate service %s: %w", sid, err)
		}
	}
	return nil
}

// UpdateMaintenanceWindowTx rewrites the maintenance window.
func (r *Repository) UpdateMaintenanceWindowTx(ctx context.Context, tx pgx.Tx, maintenanceID string, start, end time.Time) error {
	tag, err := tx.Exec(ctx,
		`UPDATE maintenances SET start_time = $2, end_time = $3, updated_at = now() WHERE id = $1`,
		maintenanceID, start, end,
	)
	if err != nil {
		return fmt.Errorf("update maintenance window: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrMaintenanceNotFound
	}
	return nil
}

// DeleteMaintenanceTx removes a maintenance; associations and updates are
// removed via CASCADE.
func (r *Repository) DeleteMaintenanceTx(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM maintenances WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete maintenance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrMaintenanceNotFound
	}
	return nil
}

// ListOpenIncidentsForService returns unresolved incidents affecting the
// service.
func (r *Repository) ListOpenIncidentsForService(ctx context.Context, serviceID string) ([]*domain.Incident, error) {
	rows, err := r.db.Query(ctx,
		`SELECT i.id, i.organization_id, i.title, i.description, i.impact, i.created_by, i.created_at, i.updated_at, i.resolved_at
		 FROM incidents i
		 JOIN incident_services isv ON isv.incident_id = i.id
		 WHERE isv.service_id = $1 AND i.resolved_at IS NULL
		 ORDER BY i.created_at`,
		serviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list open incidents for service: %w", err)
	}
	defer rows.Close()

	incidents := make([]*domain.Incident, 0)
	for rows.Next() {
		var inc domain.Incident
		if err := rows.Scan(&inc.ID, &inc.OrganizationID, &inc.Title, &inc.Description, &inc.Impact,
			&inc.CreatedBy, &inc.CreatedAt, &inc.UpdatedAt, &inc.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		incidents = append(incidents, &inc)
	}
	return incidents, rows.Err()
}

// ListMaintenancesForService returns maintenances affecting the service whose
// window has not long passed. Phase derivation happens in the caller.
func (r *Repository) ListMaintenancesForService(ctx context.Context, serviceID string) ([]*domain.ScheduledMaintenance, error) {
	rows, err := r.db.Query(ctx,
		`SELECT m.id, m.organization_id, m.title, m.description, m.impact, m.start_time, m.end_time, m.created_by, m.created_at, m.updated_at
		 FROM maintenances m
		 JOIN maintenance_services ms ON ms.maintenance_id = m.id
		 WHERE ms.service_id = $1 AND m.end_time > now() - interval '1 day'
		 ORDER BY m.start_time`,
		serviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list maintenances for service: %w", err)
	}
	defer rows.Close()

	maintenances := make([]*domain.ScheduledMaintenance, 0)
	for rows.Next() {
		var m domain.ScheduledMaintenance
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.Title, &m.Description, &m.Impact,
			&m.StartTime, &m.EndTime, &m.CreatedBy, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan maintenance: %w", err)
		}
		maintenances = append(maintenances, &m)
	}
	return maintenances, rows.Err()
}

// ListMaintenanceServiceIDsCrossing returns services whose maintenances start
// or end inside (from, to].
func (r *Repository) ListMaintenanceServiceIDsCrossing(ctx context.Context, from, to time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT ms.service_id
		 FROM maintenances m
		 JOIN maintenance_services ms ON ms.maintenance_id = m.id
		 WHERE (m.start_time > $1 AND m.start_time <= $2)
		    OR (m.end_time > $1 AND m.end_time <= $2)`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list boundary crossings: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan service id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) incidentServiceIDs(ctx context.Context, incidentID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT service_id FROM incident_services WHERE incident_id = $1 ORDER BY service_id`,
		incidentID,
	)
	if err != nil {
		return nil, fmt.Errorf("get incident services: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan service id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) maintenanceServiceIDs(ctx context.Context, maintenanceID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT service_id FROM maintenance_services WHERE maintenance_id = $1 ORDER BY service_id`,
		maintenanceID,
	)
	if err != nil {
		return nil, fmt.Errorf("get maintenance services: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan service id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
