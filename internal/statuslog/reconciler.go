package statuslog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/status-garden/internal/pkg/ctxlog"
)

// Reconciler repairs status log invariant violations and realigns the cached
// current_status with the latest open interval. It runs periodically; the
// write path keeps the invariants on its own, so repairs indicate a crash
// mid-transition or an out-of-band write.
type Reconciler struct {
	repo Repository
}

// NewReconciler creates a reconciler.
func NewReconciler(repo Repository) *Reconciler {
	return &Reconciler{repo: repo}
}

// Run executes reconciliation on the given interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Reconcile(ctx); err != nil {
				ctxlog.FromContext(ctx).Error("reconciliation failed", "error", err)
			}
		}
	}
}

// Reconcile performs a single reconciliation pass.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	var errs []error

	if err := r.repairDoubleOpenIntervals(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := r.realignCachedStatuses(ctx); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// repairDoubleOpenIntervals closes elder open intervals at the start time of
// the youngest one, leaving exactly one open interval per service.
func (r *Reconciler) repairDoubleOpenIntervals(ctx context.Context) error {
	serviceIDs, err := r.repo.FindServicesWithMultipleOpenEntries(ctx)
	if err != nil {
		return fmt.Errorf("find double-open services: %w", err)
	}

	logger := ctxlog.FromContext(ctx)

	for _, sid := range serviceIDs {
		open, err := r.repo.ListOpenEntries(ctx, sid)
		if err != nil {
			return fmt.Errorf("list open entries for %s: %w", sid, err)
		}
		if len(open) < 2 {
			continue
		}

		// Entries are ordered by started_at ascending; the youngest stays open.
		youngest := open[len(open)-1]
		for _, elder := range open[:len(open)-1] {
			if err := r.repo.CloseEntry(ctx, elder.ID, youngest.StartedAt); err != nil {
				return fmt.Errorf("close entry %s: %w", elder.ID, err)
			}
			logger.Warn("repaired double-open status interval",
				"service_id", sid,
				"entry_id", elder.ID,
				"closed_at", youngest.StartedAt,
			)
			recordReconcilerRepair("double_open")
		}
	}

	return nil
}

// realignCachedStatuses makes services.current_status agree with the open
// interval of the status log.
func (r *Reconciler) realignCachedStatuses(ctx context.Context) error {
	serviceIDs, err := r.repo.ListServiceIDs(ctx)
	if err != nil {
		return fmt.Errorf("list services: %w", err)
	}

	logger := ctxlog.FromContext(ctx)

	for _, sid := range serviceIDs {
		open, err := r.repo.GetOpenEntry(ctx, sid)
		if err != nil {
			if errors.Is(err, ErrNoOpenEntry) {
				continue
			}
			return fmt.Errorf("get open entry for %s: %w", sid, err)
		}

		cached, err := r.repo.GetCachedStatus(ctx, sid)
		if err != nil {
			return fmt.Errorf("get cached status for %s: %w", sid, err)
		}

		if cached == open.Status {
			continue
		}

		if err := r.repo.SetCachedStatus(ctx, sid, open.Status); err != nil {
			return fmt.Errorf("set cached status for %s: %w", sid, err)
		}
		logger.Warn("realigned cached service status",
			"service_id", sid,
			"from", cached,
			"to", open.Status,
		)
		recordReconcilerRepair("stale_cache")
	}

	return nil
}
