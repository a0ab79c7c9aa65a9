package statuslog

import (
	"context"
	"testing"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAggregator(repo Repository, now time.Time) *Aggregator {
	a := NewAggregator(repo, time.UTC, time.Minute)
	a.now = func() time.Time { return now }
	return a
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func at(y int, m time.Month, d, hour, minute int) time.Time {
	return time.Date(y, m, d, hour, minute, 0, 0, time.UTC)
}

func closedEntry(repo *memoryRepository, serviceID string, status domain.ServiceStatus, start, end time.Time) {
	repo.addEntry(serviceID, status, start, &end)
}

func TestAggregator_DailyDowntime_ZeroLogService(t *testing.T) {
	repo := newMemoryRepository()
	now := at(2025, 6, 10, 12, 0)
	a := newTestAggregator(repo, now)
	defer a.Stop()

	from, to := day(2025, 6, 1), day(2025, 6, 8)

	downtime, err := a.DailyDowntime(context.Background(), "svc-1", from, to)
	require.NoError(t, err)

	require.Len(t, downtime, 7)
	for d, minutes := range downtime {
		assert.Zero(t, minutes, "day %s", d)
	}

	pct, err := a.UptimePercentage(context.Background(), "svc-1", from, to)
	require.NoError(t, err)
	assert.Equal(t, 100.0, pct)
}

func TestAggregator_DailyDowntime_OverlappingIncidentsSpan(t *testing.T) {
	// Incident I (major) at 09:00, incident J (critical) at 10:00 resolved at
	// 11:00, I resolved at 12:00. The full non-operational span counts as
	// downtime regardless of severity level.
	repo := newMemoryRepository()
	now := at(2025, 6, 2, 0, 0)
	a := newTestAggregator(repo, now)
	defer a.Stop()

	closedEntry(repo, "svc-1", domain.ServiceStatusOperational, day(2025, 6, 1), at(2025, 6, 1, 9, 0))
	closedEntry(repo, "svc-1", domain.ServiceStatusPartialOutage, at(2025, 6, 1, 9, 0), at(2025, 6, 1, 10, 0))
	closedEntry(repo, "svc-1", domain.ServiceStatusMajorOutage, at(2025, 6, 1, 10, 0), at(2025, 6, 1, 11, 0))
	closedEntry(repo, "svc-1", domain.ServiceStatusPartialOutage, at(2025, 6, 1, 11, 0), at(2025, 6, 1, 12, 0))
	repo.addEntry("svc-1", domain.ServiceStatusOperational, at(2025, 6, 1, 12, 0), nil)

	downtime, err := a.DailyDowntime(context.Background(), "svc-1", day(2025, 6, 1), day(2025, 6, 2))
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"2025-06-01": 180}, downtime)
}

func TestAggregator_DailyDowntime_EntrySpanningMultipleDays(t *testing.T) {
	repo := newMemoryRepository()
	now := at(2025, 6, 5, 0, 0)
	a := newTestAggregator(repo, now)
	defer a.Stop()

	// Outage from day 1 22:00 to day 2 02:00: split 120/120.
	closedEntry(repo, "svc-1", domain.ServiceStatusMajorOutage,
		at(2025, 6, 1, 22, 0), at(2025, 6, 2, 2, 0))

	downtime, err := a.DailyDowntime(context.Background(), "svc-1", day(2025, 6, 1), day(2025, 6, 3))
	require.NoError(t, err)

	assert.Equal(t, map[string]int{
		"2025-06-01": 120,
		"2025-06-02": 120,
	}, downtime)
}

func TestAggregator_DailyDowntime_OpenEntryClampedToNow(t *testing.T) {
	repo := newMemoryRepository()
	now := at(2025, 6, 1, 10, 30)
	a := newTestAggregator(repo, now)
	defer a.Stop()

	// Ongoing outage since 10:00, now 10:30: 30 minutes so far.
	repo.addEntry("svc-1", domain.ServiceStatusDegraded, at(2025, 6, 1, 10, 0), nil)

	downtime, err := a.DailyDowntime(context.Background(), "svc-1", day(2025, 6, 1), day(2025, 6, 2))
	require.NoError(t, err)
	assert.Equal(t, 30, downtime["2025-06-01"])
}

func TestAggregator_DailyDowntime_OpenEntryClampedToWindowEnd(t *testing.T) {
	repo := newMemoryRepository()
	now := at(2025, 6, 10, 0, 0)
	a := newTestAggregator(repo, now)
	defer a.Stop()

	// Outage opened on day 1 and never closed; querying only day 1 must not
	// leak downtime past the window end.
	repo.addEntry("svc-1", domain.ServiceStatusMajorOutage, at(2025, 6, 1, 23, 0), nil)

	downtime, err := a.DailyDowntime(context.Background(), "svc-1", day(2025, 6, 1), day(2025, 6, 2))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"2025-06-01": 60}, downtime)
}

func TestAggregator_DailyDowntime_Idempotent(t *testing.T) {
	repo := newMemoryRepository()
	now := at(2025, 6, 10, 0, 0)
	a := newTestAggregator(repo, now)
	defer a.Stop()

	closedEntry(repo, "svc-1", domain.ServiceStatusPartialOutage,
		at(2025, 6, 1, 9, 0), at(2025, 6, 1, 12, 0))

	first, err := a.DailyDowntime(context.Background(), "svc-1", day(2025, 6, 1), day(2025, 6, 3))
	require.NoError(t, err)
	second, err := a.DailyDowntime(context.Background(), "svc-1", day(2025, 6, 1), day(2025, 6, 3))
	require.NoError(t, err)

	assert.Equal(t, first, second)

	// Sum of daily downtime equals total downtime computed from intervals.
	var total int
	for _, minutes := range first {
		total += minutes
	}
	assert.Equal(t, 180, total)
}

func TestAggregator_UptimePercentage(t *testing.T) {
	repo := newMemoryRepository()
	now := at(2025, 6, 10, 0, 0)
	a := newTestAggregator(repo, now)
	defer a.Stop()

	// 6 hours down in a single day window: 75% uptime.
	closedEntry(repo, "svc-1", domain.ServiceStatusMajorOutage,
		at(2025, 6, 1, 6, 0), at(2025, 6, 1, 12, 0))

	pct, err := a.UptimePercentage(context.Background(), "svc-1", day(2025, 6, 1), day(2025, 6, 2))
	require.NoError(t, err)
	assert.InDelta(t, 75.0, pct, 0.0001)
}

func TestAggregator_InvalidRange(t *testing.T) {
	a := newTestAggregator(newMemoryRepository(), at(2025, 6, 10, 0, 0))
	defer a.Stop()

	_, err := a.DailyDowntime(context.Background(), "svc-1", day(2025, 6, 2), day(2025, 6, 1))
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = a.UptimePercentage(context.Background(), "svc-1", day(2025, 6, 1), day(2025, 6, 1))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestAggregator_DailyDowntime_CancelledContext(t *testing.T) {
	repo := newMemoryRepository()
	a := newTestAggregator(repo, at(2025, 6, 10, 0, 0))
	defer a.Stop()

	closedEntry(repo, "svc-1", domain.ServiceStatusDegraded,
		at(2025, 6, 1, 9, 0), at(2025, 6, 1, 10, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.DailyDowntime(ctx, "svc-1", day(2025, 6, 1), day(2025, 6, 3))
	assert.ErrorIs(t, err, context.Canceled)
}
