package statuslog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/jellydator/ttlcache/v3"
)

// ErrInvalidRange is returned when the aggregation window is empty or inverted.
var ErrInvalidRange = errors.New("invalid aggregation range")

// DayFormat is the key format of DailyDowntime results.
const DayFormat = "2006-01-02"

// Aggregator computes per-day downtime and uptime percentages from the
// status log. It is read-only and safe for concurrent use.
type Aggregator struct {
	repo Repository
	loc  *time.Location
	now  func() time.Time

	// dayCache memoizes downtime minutes for days that are fully in the past
	// and fully contained in the query window, keyed "serviceID/2006-01-02".
	dayCache *ttlcache.Cache[string, int]
}

// NewAggregator creates an aggregator operating in the given timezone.
// A nil location defaults to UTC.
func NewAggregator(repo Repository, loc *time.Location, cacheTTL time.Duration) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}

	cache := ttlcache.New[string, int](
		ttlcache.WithTTL[string, int](cacheTTL),
	)
	go cache.Start()

	return &Aggregator{
		repo:     repo,
		loc:      loc,
		now:      time.Now,
		dayCache: cache,
	}
}

// Stop stops the cache eviction loop.
func (a *Aggregator) Stop() {
	a.dayCache.Stop()
}

// DailyDowntime returns non-operational minutes per calendar day for the
// service over [from, to]. Every day touched by the window is present in the
// result, zero for days without downtime. Entries spanning multiple days are
// split per day; an open entry is treated as ending now, clamped to the
// window end.
func (a *Aggregator) DailyDowntime(ctx context.Context, serviceID string, from, to time.Time) (map[string]int, error) {
	if !to.After(from) {
		return nil, ErrInvalidRange
	}

	days := a.enumerateDays(from, to)

	result := make(map[string]int, len(days))
	allCached := true
	for _, day := range days {
		if v, ok := a.cachedDay(serviceID, day, from, to); ok {
			result[day.Format(DayFormat)] = v
		} else {
			allCached = false
		}
	}
	if allCached {
		return result, nil
	}

	entries, err := a.repo.ListEntriesOverlapping(ctx, serviceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list status log entries: %w", err)
	}

	now := a.now()
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dayEnd := day.AddDate(0, 0, 1)
		downtime := overlapDowntime(entries, maxTime(day, from), minTime(dayEnd, to), now)
		minutes := int(downtime / time.Minute)
		result[day.Format(DayFormat)] = minutes

		if a.cacheableDay(day, dayEnd, from, to, now) {
			a.dayCache.Set(serviceID+"/"+day.Format(DayFormat), minutes, ttlcache.DefaultTTL)
		}
	}

	return result, nil
}

// UptimePercentage returns the percentage of [from, to] the service spent
// operational, clamped to [0, 100]. A service with no log entries has 100%
// uptime.
func (a *Aggregator) UptimePercentage(ctx context.Context, serviceID string, from, to time.Time) (float64, error) {
	if !to.After(from) {
		return 0, ErrInvalidRange
	}

	entries, err := a.repo.ListEntriesOverlapping(ctx, serviceID, from, to)
	if err != nil {
		return 0, fmt.Errorf("list status log entries: %w", err)
	}

	downtime := overlapDowntime(entries, from, to, a.now())
	period := to.Sub(from)

	pct := 100 * (1 - float64(downtime)/float64(period))
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct, nil
}

// overlapDowntime sums the overlap of all non-operational entries with
// [windowStart, windowEnd]. Open entries end at now, clamped to the window.
func overlapDowntime(entries []domain.StatusLogEntry, windowStart, windowEnd, now time.Time) time.Duration {
	var total time.Duration
	for _, e := range entries {
		if e.Status == domain.ServiceStatusOperational {
			continue
		}

		end := now
		if e.EndedAt != nil {
			end = *e.EndedAt
		}

		start := maxTime(e.StartedAt, windowStart)
		end = minTime(end, windowEnd)
		if end.After(start) {
			total += end.Sub(start)
		}
	}
	return total
}

// enumerateDays lists the local midnights of every calendar day touched by
// [from, to].
func (a *Aggregator) enumerateDays(from, to time.Time) []time.Time {
	var days []time.Time
	day := startOfDay(from, a.loc)
	for day.Before(to) {
		days = append(days, day)
		day = day.AddDate(0, 0, 1)
	}
	return days
}

func (a *Aggregator) cachedDay(serviceID string, day, from, to time.Time) (int, bool) {
	dayEnd := day.AddDate(0, 0, 1)
	if !a.cacheableDay(day, dayEnd, from, to, a.now()) {
		return 0, false
	}
	item := a.dayCache.Get(serviceID + "/" + day.Format(DayFormat))
	if item == nil {
		return 0, false
	}
	return item.Value(), true
}

// cacheableDay reports whether the day's downtime is immutable: the day is
// fully contained in the window and fully in the past.
func (a *Aggregator) cacheableDay(day, dayEnd, from, to, now time.Time) bool {
	return !day.Before(from) && !dayEnd.After(to) && dayEnd.Before(now)
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
