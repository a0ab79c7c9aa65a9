package statuslog

import (
	"context"
	"testing"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconciler_RepairsDoubleOpenIntervals(t *testing.T) {
	repo := newMemoryRepository()
	repo.addService("svc-1", domain.ServiceStatusDegraded, fixedNow().Add(-48*time.Hour))

	elderStart := fixedNow().Add(-2 * time.Hour)
	youngerStart := fixedNow().Add(-time.Hour)
	repo.addEntry("svc-1", domain.ServiceStatusOperational, elderStart, nil)
	repo.addEntry("svc-1", domain.ServiceStatusDegraded, youngerStart, nil)

	r := NewReconciler(repo)
	require.NoError(t, r.Reconcile(context.Background()))

	open, err := repo.ListOpenEntries(context.Background(), "svc-1")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, youngerStart, open[0].StartedAt)

	// The elder interval is closed at the younger one's start time.
	entries := repo.serviceEntries("svc-1")
	require.Len(t, entries, 2)
	require.NotNil(t, entries[0].EndedAt)
	assert.Equal(t, youngerStart, *entries[0].EndedAt)
}

func TestReconciler_RealignsStaleCachedStatus(t *testing.T) {
	repo := newMemoryRepository()
	repo.addService("svc-1", domain.ServiceStatusOperational, fixedNow().Add(-48*time.Hour))
	repo.addEntry("svc-1", domain.ServiceStatusMajorOutage, fixedNow().Add(-time.Hour), nil)

	r := NewReconciler(repo)
	require.NoError(t, r.Reconcile(context.Background()))

	cached, err := repo.GetCachedStatus(context.Background(), "svc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ServiceStatusMajorOutage, cached)
}

func TestReconciler_NoopOnHealthyState(t *testing.T) {
	repo := newMemoryRepository()
	repo.addService("svc-1", domain.ServiceStatusOperational, fixedNow().Add(-48*time.Hour))
	repo.addEntry("svc-1", domain.ServiceStatusOperational, fixedNow().Add(-48*time.Hour), nil)

	r := NewReconciler(repo)
	require.NoError(t, r.Reconcile(context.Background()))

	open, err := repo.ListOpenEntries(context.Background(), "svc-1")
	require.NoError(t, err)
	assert.Len(t, open, 1)

	cached, err := repo.GetCachedStatus(context.Background(), "svc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ServiceStatusOperational, cached)
}

func TestReconciler_SkipsServicesWithoutEntries(t *testing.T) {
	repo := newMemoryRepository()
	repo.addService("svc-1", domain.ServiceStatusOperational, fixedNow())

	r := NewReconciler(repo)
	assert.NoError(t, r.Reconcile(context.Background()))
}
