package usecase

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ymgch/github-pokedex/internal/domain"
	"github.com/ymgch/github-pokedex/internal/gateway"
)

// mockFetcher is a mock implementation of the gateway.Fetcher interface.
// It allows us to simulate the behavior of the GitHub gateway without making real API calls.
type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchRecentEvents(ctx context.Context, user string, limit int) ([]domain.ActivityEvent, error) {
	args := m.Called(ctx, user, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ActivityEvent), args.Error(1)
}

func (m *mockFetcher) FetchContributions(ctx context.Context, user string) (*domain.ContributionCalendar, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ContributionCalendar), args.Error(1)
}

func (m *mockFetcher) SearchIssues(ctx context.Context, user string, state gateway.IssueState) (int, error) {
	args := m.Called(ctx, user, state)
	return args.Int(0), args.Error(1)
}

func (m *mockFetcher) SearchPullRequests(ctx context.Context, user string, state gateway.PullRequestState) (int, error) {
	args := m.Called(ctx, user, state)
	return args.Int(0), args.Error(1)
}

func (m *mockFetcher) FetchReviewedPRs(ctx context.Context, user string) (int, error) {
	args := m.Called(ctx, user)
	return args.Int(0), args.Error(1)
}

// testToday is the fixed clock used by the aggregation tests.
var testToday = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

func day(offset int) string {
	return testToday.AddDate(0, 0, offset).Format(dayLayout)
}

// TestAggregator_Aggregate uses a table-driven approach to test the aggregator.
func TestAggregator_Aggregate(t *testing.T) {
	testCases := []struct {
		name string

		mockEvents    []domain.ActivityEvent
		mockEventsErr error
		mockCal       *domain.ContributionCalendar
		mockCalErr    error

		mockIssuesClosed int
		mockIssuesAll    int
		mockIssuesErr    error

		mockPRsMerged   int
		mockPRsAll      int
		mockPRsErr      error
		mockReviewed    int
		mockReviewedErr error

		expected       domain.PokedexStats
		expectedFailed []string
	}{
		{
			name:       "happy path - calendar preferred over events",
			mockEvents: []domain.ActivityEvent{},
			mockCal: &domain.ContributionCalendar{
				TotalCommits: 120,
				Days: map[string]int{
					day(0):  3,
					day(-1): 1,
					day(-5): 2,
				},
			},
			mockIssuesClosed: 7,
			mockIssuesAll:    10,
			mockPRsMerged:    5,
			mockPRsAll:       8,
			mockReviewed:     12,
			expected: domain.PokedexStats{
				Streak:       domain.StreakStats{CurrentStreak: 2, LongestStreak: 2, DaysActive: 3},
				Issues:       domain.IssueStats{ClosedCount: 7, OpenCount: 3, SuccessRate: 0.7},
				Commits:      domain.CommitStats{TotalEstimate: 120, Recent30d: 6},
				PullRequests: domain.PullRequestStats{MergedCount: 5, OpenedCount: 8, ReviewedEstimate: 12},
			},
		},
		{
			name:          "degraded - rate limited events and contributions still renders issue and PR stats",
			mockEventsErr: &gateway.RateLimitedError{RetryAfter: time.Minute},
			mockCalErr:    &gateway.RateLimitedError{RetryAfter: time.Minute},

			mockIssuesClosed: 7,
			mockIssuesAll:    10,
			mockPRsMerged:    5,
			mockPRsAll:       8,
			mockReviewed:     12,
			expected: domain.PokedexStats{
				Streak:       domain.StreakStats{},
				Issues:       domain.IssueStats{ClosedCount: 7, OpenCount: 3, SuccessRate: 0.7},
				Commits:      domain.CommitStats{},
				PullRequests: domain.PullRequestStats{MergedCount: 5, OpenedCount: 8, ReviewedEstimate: 12},
			},
			expectedFailed: []string{"events", "contributions"},
		},
		{
			name: "fallback - events fill in when the calendar is unavailable",
			mockEvents: []domain.ActivityEvent{
				{Type: "PushEvent", CreatedAt: testToday, Repo: "org/repo-a"},
				{Type: "PushEvent", CreatedAt: testToday.Add(-time.Hour), Repo: "org/repo-a"},
				{Type: "PushEvent", CreatedAt: testToday.AddDate(0, 0, -1), Repo: "org/repo-b"},
				{Type: "IssuesEvent", CreatedAt: testToday.AddDate(0, 0, -1), Repo: "org/repo-b"},
				{Type: "PushEvent", CreatedAt: testToday.AddDate(0, 0, -40), Repo: "org/repo-c"},
			},
			mockCalErr: &gateway.TransientError{Err: io.ErrUnexpectedEOF},

			expected: domain.PokedexStats{
				Streak:  domain.StreakStats{CurrentStreak: 2, LongestStreak: 2, DaysActive: 2},
				Commits: domain.CommitStats{TotalEstimate: 4, Recent30d: 3},
			},
			expectedFailed: []string{"contributions"},
		},
		{
			name:       "empty case - no activity anywhere yields zero-valued bundles",
			mockEvents: []domain.ActivityEvent{},
			mockCal:    &domain.ContributionCalendar{Days: map[string]int{}},
			expected:   domain.PokedexStats{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			logger := log.New(io.Discard, "", 0)
			fetcher := new(mockFetcher)

			fetcher.On("FetchRecentEvents", mock.Anything, "any-user", maxEvents).Return(tc.mockEvents, tc.mockEventsErr)
			fetcher.On("FetchContributions", mock.Anything, "any-user").Return(tc.mockCal, tc.mockCalErr)
			fetcher.On("SearchIssues", mock.Anything, "any-user", gateway.IssueStateClosed).Return(tc.mockIssuesClosed, tc.mockIssuesErr)
			if tc.mockIssuesErr == nil {
				fetcher.On("SearchIssues", mock.Anything, "any-user", gateway.IssueStateAll).Return(tc.mockIssuesAll, nil)
			}
			fetcher.On("SearchPullRequests", mock.Anything, "any-user", gateway.PullRequestStateMerged).Return(tc.mockPRsMerged, tc.mockPRsErr)
			if tc.mockPRsErr == nil {
				fetcher.On("SearchPullRequests", mock.Anything, "any-user", gateway.PullRequestStateAll).Return(tc.mockPRsAll, nil)
			}
			fetcher.On("FetchReviewedPRs", mock.Anything, "any-user").Return(tc.mockReviewed, tc.mockReviewedErr)

			aggregator := NewAggregator(fetcher, logger)
			aggregator.now = func() time.Time { return testToday }

			result, err := aggregator.Aggregate(ctx, "any-user")

			if len(tc.expectedFailed) > 0 {
				var partial *PartialDataError
				assert.ErrorAs(t, err, &partial)
				assert.ElementsMatch(t, tc.expectedFailed, partial.Sources)
			} else {
				assert.NoError(t, err)
			}
			// Even a degraded run must return usable stats.
			assert.NotNil(t, result)
			assert.Equal(t, tc.expected, *result)

			fetcher.AssertExpectations(t)
		})
	}
}

func TestComputeStreaks(t *testing.T) {
	testCases := []struct {
		name     string
		days     map[string]int
		expected domain.StreakStats
	}{
		{
			name: "activity on T, T-1, T-2, T-5, T-6",
			days: map[string]int{
				day(0): 1, day(-1): 2, day(-2): 1, day(-5): 1, day(-6): 3,
			},
			expected: domain.StreakStats{CurrentStreak: 3, LongestStreak: 3, DaysActive: 5},
		},
		{
			name:     "streak may end yesterday when today is quiet so far",
			days:     map[string]int{day(-1): 1, day(-2): 1},
			expected: domain.StreakStats{CurrentStreak: 2, LongestStreak: 2, DaysActive: 2},
		},
		{
			name:     "gap yesterday breaks the current streak but not the longest",
			days:     map[string]int{day(-2): 1, day(-3): 1, day(-4): 1},
			expected: domain.StreakStats{CurrentStreak: 0, LongestStreak: 3, DaysActive: 3},
		},
		{
			name:     "old activity counts toward longest but not the window",
			days:     map[string]int{day(-40): 1, day(-41): 1, day(-42): 1, day(-43): 1, day(0): 1},
			expected: domain.StreakStats{CurrentStreak: 1, LongestStreak: 4, DaysActive: 1},
		},
		{
			name:     "zero-count days are not active",
			days:     map[string]int{day(0): 0, day(-1): 1},
			expected: domain.StreakStats{CurrentStreak: 1, LongestStreak: 1, DaysActive: 1},
		},
		{
			name:     "empty input",
			days:     map[string]int{},
			expected: domain.StreakStats{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := computeStreaks(tc.days, toUTCDate(testToday))
			assert.Equal(t, tc.expected, got)
			assert.GreaterOrEqual(t, got.LongestStreak, got.CurrentStreak)
		})
	}
}

func TestComputeIssueStats(t *testing.T) {
	testCases := []struct {
		name           string
		closed, opened int
		expected       domain.IssueStats
	}{
		{
			name:   "closed 7 of 10 gives a 0.7 success rate",
			closed: 7, opened: 10,
			expected: domain.IssueStats{ClosedCount: 7, OpenCount: 3, SuccessRate: 0.7},
		},
		{
			name:   "zero denominator guard",
			closed: 0, opened: 0,
			expected: domain.IssueStats{},
		},
		{
			name:   "search caps can make closed exceed opened",
			closed: 5, opened: 3,
			expected: domain.IssueStats{ClosedCount: 5, OpenCount: 0, SuccessRate: 1},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := computeIssueStats(tc.closed, tc.opened)
			assert.Equal(t, tc.expected, got)
			assert.GreaterOrEqual(t, got.SuccessRate, 0.0)
			assert.LessOrEqual(t, got.SuccessRate, 1.0)
		})
	}
}

func TestComputeCommitStats(t *testing.T) {
	today := toUTCDate(testToday)

	t.Run("calendar sums recent contributions", func(t *testing.T) {
		cal := &domain.ContributionCalendar{
			TotalCommits: 200,
			Days:         map[string]int{day(0): 4, day(-10): 2, day(-60): 9},
		}
		got := computeCommitStats(cal, nil, today)
		assert.Equal(t, domain.CommitStats{TotalEstimate: 200, Recent30d: 6}, got)
	})

	t.Run("event fallback counts push events only", func(t *testing.T) {
		events := []domain.ActivityEvent{
			{Type: "PushEvent", CreatedAt: testToday},
			{Type: "PushEvent", CreatedAt: testToday.AddDate(0, 0, -40)},
			{Type: "PullRequestEvent", CreatedAt: testToday},
		}
		got := computeCommitStats(nil, events, today)
		assert.Equal(t, domain.CommitStats{TotalEstimate: 2, Recent30d: 1}, got)
	})

	t.Run("no sources at all is zero-valued", func(t *testing.T) {
		got := computeCommitStats(nil, nil, today)
		assert.Equal(t, domain.CommitStats{}, got)
	})
}
