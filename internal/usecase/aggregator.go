// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"github.com/ymgch/github-pokedex/internal/domain"
	"github.com/ymgch/github-pokedex/internal/gateway"
)

const (
	// maxEvents matches the upstream cap on the events endpoint.
	maxEvents = 300
	// activityWindowDays is the trailing window for "recent" stats.
	activityWindowDays = 30

	dayLayout = "2006-01-02"
)

// PartialDataError reports that some upstream sources were unavailable and
// the corresponding stat bundles were degraded to zero values.
type PartialDataError struct {
	Sources []string
}

func (e *PartialDataError) Error() string {
	return "partial data: " + strings.Join(e.Sources, ", ") + " unavailable"
}

// Aggregator is the use case for aggregating GitHub activity into the four
// stat bundles consumed by the renderer.
type Aggregator struct {
	fetcher gateway.Fetcher
	logger  *log.Logger
	now     func() time.Time
}

// NewAggregator creates a new Aggregator instance.
func NewAggregator(fetcher gateway.Fetcher, logger *log.Logger) *Aggregator {
	return &Aggregator{
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
	}
}

// Aggregate fetches all required data concurrently and derives the stat
// bundles. A source that fails is logged and degraded to zero values rather
// than aborting the run; the returned error is a *PartialDataError in that
// case, and the stats are always usable.
func (a *Aggregator) Aggregate(ctx context.Context, user string) (*domain.PokedexStats, error) {
	a.logger.Println("Usecase: Starting data aggregation...")

	var (
		events []domain.ActivityEvent
		cal    *domain.ContributionCalendar

		issuesClosed, issuesOpened        int
		prsMerged, prsOpened, prsReviewed int

		eventsErr, calErr, issuesErr, prsErr, reviewedErr error
	)

	// Recoverable failures are collected per source instead of being
	// propagated, so one throttled endpoint cannot cancel the others.
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		events, eventsErr = a.fetcher.FetchRecentEvents(egCtx, user, maxEvents)
		return nil
	})

	eg.Go(func() error {
		cal, calErr = a.fetcher.FetchContributions(egCtx, user)
		return nil
	})

	eg.Go(func() error {
		issuesClosed, issuesErr = a.fetcher.SearchIssues(egCtx, user, gateway.IssueStateClosed)
		if issuesErr != nil {
			return nil
		}
		issuesOpened, issuesErr = a.fetcher.SearchIssues(egCtx, user, gateway.IssueStateAll)
		return nil
	})

	eg.Go(func() error {
		prsMerged, prsErr = a.fetcher.SearchPullRequests(egCtx, user, gateway.PullRequestStateMerged)
		if prsErr != nil {
			return nil
		}
		prsOpened, prsErr = a.fetcher.SearchPullRequests(egCtx, user, gateway.PullRequestStateAll)
		return nil
	})

	eg.Go(func() error {
		prsReviewed, reviewedErr = a.fetcher.FetchReviewedPRs(egCtx, user)
		return nil
	})

	_ = eg.Wait()

	var failed []string
	degrade := func(source string, err error) bool {
		if err == nil {
			return false
		}
		a.logger.Printf("Usecase: %s fetch failed, rendering zeroed stats for it: %v\n", source, err)
		failed = append(failed, source)
		return true
	}
	eventsDown := degrade("events", eventsErr)
	calDown := degrade("contributions", calErr)
	issuesDown := degrade("issues", issuesErr)
	prsDown := degrade("pull requests", prsErr)
	reviewsDown := degrade("reviews", reviewedErr)

	today := toUTCDate(a.now())

	// The contribution calendar is the preferred day source; the bounded
	// event window is the fallback. Both are documented lower bounds.
	var days map[string]int
	switch {
	case !calDown:
		days = cal.Days
	case !eventsDown:
		days = dayCountsFromEvents(events)
	}

	result := &domain.PokedexStats{
		Streak: computeStreaks(days, today),
	}
	if !calDown || !eventsDown {
		if calDown {
			cal = nil
		}
		if eventsDown {
			events = nil
		}
		result.Commits = computeCommitStats(cal, events, today)
	}
	if !issuesDown {
		result.Issues = computeIssueStats(issuesClosed, issuesOpened)
	}
	if !prsDown {
		result.PullRequests.MergedCount = prsMerged
		result.PullRequests.OpenedCount = prsOpened
	}
	if !reviewsDown {
		result.PullRequests.ReviewedEstimate = prsReviewed
	}

	a.logDiagnostics(days, today)

	if len(failed) > 0 {
		return result, &PartialDataError{Sources: failed}
	}
	a.logger.Println("Usecase: Aggregation complete.")
	return result, nil
}

// logDiagnostics reports summary figures over the trailing activity window.
func (a *Aggregator) logDiagnostics(days map[string]int, today time.Time) {
	counts := activeDayCounts(days, today)
	if len(counts) == 0 {
		return
	}
	mean, err := stats.Mean(counts)
	if err != nil {
		return
	}
	peak, err := stats.Max(counts)
	if err != nil {
		return
	}
	a.logger.Printf("Usecase: trailing %d days: %d active days, mean %.1f contributions/day, peak %.0f\n",
		activityWindowDays, len(counts), mean, peak)
}

// toUTCDate truncates a time to its UTC calendar date.
func toUTCDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// dayCountsFromEvents groups events by UTC calendar day.
func dayCountsFromEvents(events []domain.ActivityEvent) map[string]int {
	days := make(map[string]int, len(events))
	for _, ev := range events {
		days[ev.CreatedAt.UTC().Format(dayLayout)]++
	}
	return days
}

// activeDays returns the sorted dates with at least one contribution, with
// future-dated entries (possible around midnight skew) dropped.
func activeDays(days map[string]int, today time.Time) []time.Time {
	dates := make([]time.Time, 0, len(days))
	for key, count := range days {
		if count <= 0 {
			continue
		}
		d, err := time.ParseInLocation(dayLayout, key, time.UTC)
		if err != nil || d.After(today) {
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// activeDayCounts returns the contribution counts of the active days inside
// the trailing activity window, for diagnostics.
func activeDayCounts(days map[string]int, today time.Time) []float64 {
	windowStart := today.AddDate(0, 0, -activityWindowDays)
	var counts []float64
	for _, d := range activeDays(days, today) {
		if d.Before(windowStart) {
			continue
		}
		counts = append(counts, float64(days[d.Format(dayLayout)]))
	}
	return counts
}

// computeStreaks derives the streak bundle from per-day activity counts.
// The current streak is the run of consecutive active days ending today, or
// yesterday when today has no activity yet. Because the day sources are
// capped windows, both streak values are lower bounds.
func computeStreaks(days map[string]int, today time.Time) domain.StreakStats {
	if len(days) == 0 {
		return domain.StreakStats{}
	}

	var s domain.StreakStats

	day := today
	if days[day.Format(dayLayout)] == 0 {
		day = day.AddDate(0, 0, -1)
	}
	for days[day.Format(dayLayout)] > 0 {
		s.CurrentStreak++
		day = day.AddDate(0, 0, -1)
	}

	windowStart := today.AddDate(0, 0, -activityWindowDays)
	run := 0
	var prev time.Time
	for i, d := range activeDays(days, today) {
		if i > 0 && d.Sub(prev) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > s.LongestStreak {
			s.LongestStreak = run
		}
		if !d.Before(windowStart) {
			s.DaysActive++
		}
		prev = d
	}

	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	return s
}

// computeIssueStats derives issue counts from the closed and total search
// results. The success rate is closed/(closed+open), 0 when both are 0.
func computeIssueStats(closed, opened int) domain.IssueStats {
	open := opened - closed
	if open < 0 {
		open = 0
	}
	s := domain.IssueStats{ClosedCount: closed, OpenCount: open}
	if total := closed + open; total > 0 {
		s.SuccessRate = float64(closed) / float64(total)
	}
	return s
}

// computeCommitStats derives the commit estimate. The contribution calendar
// is authoritative-ish when present; otherwise push events in the bounded
// window are counted. Either way the result is an estimate.
func computeCommitStats(cal *domain.ContributionCalendar, events []domain.ActivityEvent, today time.Time) domain.CommitStats {
	windowStart := today.AddDate(0, 0, -activityWindowDays)

	if cal != nil {
		s := domain.CommitStats{TotalEstimate: cal.TotalCommits}
		for _, d := range activeDays(cal.Days, today) {
			if !d.Before(windowStart) {
				s.Recent30d += cal.Days[d.Format(dayLayout)]
			}
		}
		return s
	}

	var s domain.CommitStats
	for _, ev := range events {
		if ev.Type != "PushEvent" {
			continue
		}
		s.TotalEstimate++
		if !toUTCDate(ev.CreatedAt).Before(windowStart) {
			s.Recent30d++
		}
	}
	return s
}
