// Package postgres provides the PostgreSQL implementation of the status log
// repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/pkg/ctxlog"
	"github.com/bissquit/status-garden/internal/statuslog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements statuslog.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL status log repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// TransitionStatus writes a status transition in a single transaction. The
// service row lock serializes concurrent recomputes for the same service, so
// at most one open interval can exist at any time.
func (r *Repository) TransitionStatus(ctx context.Context, serviceID string, status domain.ServiceStatus, at time.Time) (statuslog.Transition, error) {
	var result statuslog.Transition

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			ctxlog.FromContext(ctx).Error("failed to rollback transaction", "error", err)
		}
	}()

	var cachedStatus domain.ServiceStatus
	var createdAt time.Time
	err = tx.QueryRow(ctx,
		`SELECT current_status, created_at FROM services WHERE id = $1 FOR UPDATE`,
		serviceID,
	).Scan(&cachedStatus, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return result, statuslog.ErrServiceNotFound
		}
		return result, fmt.Errorf("lock service row: %w", err)
	}

	var openStatus domain.ServiceStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM status_log
		 WHERE service_id = $1 AND ended_at IS NULL
		 ORDER BY started_at DESC LIMIT 1`,
		serviceID,
	).Scan(&openStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		// First-ever write: seed an operational interval at service creation.
		openStatus = domain.ServiceStatusOperational
		_, err = tx.Exec(ctx,
			`INSERT INTO status_log (service_id, status, started_at) VALUES ($1, $2, $3)`,
			serviceID, openStatus, createdAt,
		)
	}
	if err != nil {
		return result, fmt.Errorf("read open interval: %w", err)
	}

	result = statuslog.Transition{From: openStatus, To: status, At: at}
	if openStatus == status {
		if err := tx.Commit(ctx); err != nil {
			return result, fmt.Errorf("commit: %w", err)
		}
		return result, nil
	}

	_, err = tx.Exec(ctx,
		`UPDATE status_log SET ended_at = $2 WHERE service_id = $1 AND ended_at IS NULL`,
		serviceID, at,
	)
	if err != nil {
		return result, fmt.Errorf("close open interval: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO status_log (service_id, status, started_at) VALUES ($1, $2, $3)`,
		serviceID, status, at,
	)
	if err != nil {
		return result, fmt.Errorf("open new interval: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE services SET current_status = $2, updated_at = now() WHERE id = $1`,
		serviceID, status,
	)
	if err != nil {
		return result, fmt.Errorf("update cached status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("commit: %w", err)
	}

	result.Changed = true
	return result, nil
}

// GetOpenEntry returns the open interval for the service.
func (r *Repository) GetOpenEntry(ctx context.Context, serviceID string) (*domain.StatusLogEntry, error) {
	var entry domain.StatusLogEntry
	err := r.db.QueryRow(ctx,
		`SELECT id, service_id, status, started_at, ended_at FROM status_log
		 WHERE service_id = $1 AND ended_at IS NULL
		 ORDER BY started_at DESC LIMIT 1`,
		serviceID,
	).Scan(&entry.ID, &entry.ServiceID, &entry.Status, &entry.StartedAt, &entry.EndedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, statuslog.ErrNoOpenEntry
		}
		return nil, fmt.Errorf("get open entry: %w", err)
	}
	return &entry, nil
}

// ListEntriesOverlapping returns intervals overlapping [from, to].
func (r *Repository) ListEntriesOverlapping(ctx context.Context, serviceID string, from, to time.Time) ([]domain.StatusLogEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, service_id, status, started_at, ended_at FROM status_log
		 WHERE service_id = $1
		   AND started_at < $3
		   AND (ended_at IS NULL OR ended_at > $2)
		 ORDER BY started_at`,
		serviceID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list overlapping entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ListOpenEntries returns every open interval for the service.
func (r *Repository) ListOpenEntries(ctx context.Context, serviceID string) ([]domain.StatusLogEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, service_id, status, started_at, ended_at FROM status_log
		 WHERE service_id = $1 AND ended_at IS NULL
		 ORDER BY started_at`,
		serviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list open entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// FindServicesWithMultipleOpenEntries returns services violating the
// single-open-interval invariant.
func (r *Repository) FindServicesWithMultipleOpenEntries(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT service_id FROM status_log
		 WHERE ended_at IS NULL
		 GROUP BY service_id
		 HAVING count(*) > 1`,
	)
	if err != nil {
		return nil, fmt.Errorf("find double-open services: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// CloseEntry sets ended_at on the given entry.
func (r *Repository) CloseEntry(ctx context.Context, entryID string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE status_log SET ended_at = $2 WHERE id = $1`,
		entryID, at,
	)
	if err != nil {
		return fmt.Errorf("close entry: %w", err)
	}
	return nil
}

// ListServiceIDs returns all service IDs.
func (r *Repository) ListServiceIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM services`)
	if err != nil {
		return nil, fmt.Errorf("list service ids: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// GetCachedStatus returns services.current_status.
func (r *Repository) GetCachedStatus(ctx context.Context, serviceID string) (domain.ServiceStatus, error) {
	var status domain.ServiceStatus
	err := r.db.QueryRow(ctx,
		`SELECT current_status FROM services WHERE id = $1`,
		serviceID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", statuslog.ErrServiceNotFound
		}
		return "", fmt.Errorf("get cached status: %w", err)
	}
	return status, nil
}

// SetCachedStatus overwrites services.current_status.
func (r *Repository) SetCachedStatus(ctx context.Context, serviceID string, status domain.ServiceStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE services SET current_status = $2, updated_at = now() WHERE id = $1`,
		serviceID, status,
	)
	if err != nil {
		return fmt.Errorf("set cached status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return statuslog.ErrServiceNotFound
	}
	return nil
}

func scanEntries(rows pgx.Rows) ([]domain.StatusLogEntry, error) {
	entries := make([]domain.StatusLogEntry, 0)
	for rows.Next() {
		var e domain.StatusLogEntry
		if err := rows.Scan(&e.ID, &e.ServiceID, &e.Status, &e.StartedAt, &e.EndedAt); err != nil {
			return nil, fmt.Errorf("scan status log entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanIDs(rows pgx.Rows) ([]string, error) {
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
