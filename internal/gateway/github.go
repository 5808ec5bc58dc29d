// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/ymgch/github-pokedex/internal/domain"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
)

// IssueState filters issue searches.
type IssueState string

const (
	IssueStateAll    IssueState = "all"
	IssueStateClosed IssueState = "closed"
)

// PullRequestState filters pull request searches.
type PullRequestState string

const (
	PullRequestStateAll    PullRequestState = "all"
	PullRequestStateMerged PullRequestState = "merged"
)

// retryDelay is the pause before the single retry on a transient failure.
// It is a variable so tests can shrink it.
var retryDelay = 2 * time.Second

// Fetcher defines the behavior of a gateway for fetching information from GitHub.
// All result sets are bounded by the upstream APIs: the events endpoint caps
// history at roughly 300 entries and the search API caps its total counts, so
// everything fetched here is an estimate, not an authoritative record.
type Fetcher interface {
	FetchRecentEvents(ctx context.Context, user string, limit int) ([]domain.ActivityEvent, error)
	FetchContributions(ctx context.Context, user string) (*domain.ContributionCalendar, error)
	SearchIssues(ctx context.Context, user string, state IssueState) (int, error)
	SearchPullRequests(ctx context.Context, user string, state PullRequestState) (int, error)
	FetchReviewedPRs(ctx context.Context, user string) (int, error)
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *log.Logger
}

// contributionsQuery mirrors the contributionsCollection shape: total commit
// contributions plus the per-day contribution calendar.
type contributionsQuery struct {
	User struct {
		ContributionsCollection struct {
			TotalCommitContributions githubv4.Int
			ContributionCalendar     struct {
				TotalContributions githubv4.Int
				Weeks              []struct {
					ContributionDays []struct {
						ContributionCount githubv4.Int
						Date              githubv4.Date
					}
				}
			}
		}
	} `graphql:"user(login: $login)"`
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(token string, logger *log.Logger) (Fetcher, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(5*time.Minute, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}
	return &GitHubGateway{
		restClient:    github.NewClient(httpClient),
		graphqlClient: githubv4.NewClient(httpClient),
		logger:        logger,
	}, nil
}

// FetchRecentEvents returns the user's most recent activity events, newest
// first, up to limit entries or the upstream history cap, whichever is lower.
func (g *GitHubGateway) FetchRecentEvents(ctx context.Context, user string, limit int) ([]domain.ActivityEvent, error) {
	g.logger.Println("[1/5] Fetching recent activity events using REST API...")
	var events []domain.ActivityEvent
	err := g.doWithRetry(ctx, "list user events", func() error {
		events = events[:0]
		opts := &github.ListOptions{PerPage: 100}
		for {
			raw, resp, err := g.restClient.Activity.ListEventsPerformedByUser(ctx, user, false, opts)
			if err != nil {
				return classify("failed to list user events", err)
			}
			for _, ev := range raw {
				events = append(events, domain.ActivityEvent{
					Type:      ev.GetType(),
					CreatedAt: ev.GetCreatedAt().Time.UTC(),
					Repo:      ev.GetRepo().GetName(),
				})
				if len(events) >= limit {
					return nil
				}
			}
			if resp.NextPage == 0 {
				return nil
			}
			opts.Page = resp.NextPage
			g.logger.Println("  Fetching next page of events...")
		}
	})
	if err != nil {
		return nil, err
	}
	g.logger.Printf("Completed fetching %d events.\n", len(events))
	return events, nil
}

// FetchContributions returns the user's contribution calendar via GraphQL.
// The calendar covers roughly the trailing year.
func (g *GitHubGateway) FetchContributions(ctx context.Context, user string) (*domain.ContributionCalendar, error) {
	g.logger.Println("[2/5] Fetching contribution calendar using GraphQL API...")
	variables := map[string]interface{}{"login": githubv4.String(user)}

	var cal *domain.ContributionCalendar
	err := g.doWithRetry(ctx, "fetch contributions", func() error {
		var q contributionsQuery
		if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
			return classify("failed to execute contributions GraphQL query", err)
		}
		cal = &domain.ContributionCalendar{
			TotalCommits: int(q.User.ContributionsCollection.TotalCommitContributions),
			Days:         make(map[string]int),
		}
		for _, week := range q.User.ContributionsCollection.ContributionCalendar.Weeks {
			for _, day := range week.ContributionDays {
				cal.Days[day.Date.Format("2006-01-02")] = int(day.ContributionCount)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	g.logger.Printf("Completed fetching contribution calendar (%d days).\n", len(cal.Days))
	return cal, nil
}

// SearchIssues returns the number of issues authored by the user in the
// given state, capped by the search API's result-count ceiling.
func (g *GitHubGateway) SearchIssues(ctx context.Context, user string, state IssueState) (int, error) {
	g.logger.Printf("[3/5] Fetching issue count (state=%s)...\n", state)
	query := fmt.Sprintf("author:%s type:issue", user)
	if state == IssueStateClosed {
		query += " is:closed"
	}
	return g.searchCount(ctx, query)
}

// SearchPullRequests returns the number of pull requests authored by the
// user in the given state.
func (g *GitHubGateway) SearchPullRequests(ctx context.Context, user string, state PullRequestState) (int, error) {
	g.logger.Printf("[4/5] Fetching pull request count (state=%s)...\n", state)
	query := fmt.Sprintf("author:%s type:pr", user)
	if state == PullRequestStateMerged {
		query += " is:merged"
	}
	return g.searchCount(ctx, query)
}

// FetchReviewedPRs returns the number of pull requests the user has reviewed,
// including PRs authored by others.
func (g *GitHubGateway) FetchReviewedPRs(ctx context.Context, user string) (int, error) {
	g.logger.Println("[5/5] Fetching reviewed pull request count...")
	return g.searchCount(ctx, fmt.Sprintf("reviewed-by:%s type:pr", user))
}

// searchCount runs an issue-search query and returns only the total count.
func (g *GitHubGateway) searchCount(ctx context.Context, query string) (int, error) {
	var total int
	err := g.doWithRetry(ctx, fmt.Sprintf("search %q", query), func() error {
		opts := &github.SearchOptions{ListOptions: github.ListOptions{PerPage: 1}}
		result, _, err := g.restClient.Search.Issues(ctx, query, opts)
		if err != nil {
			return classify(fmt.Sprintf("failed to search %q", query), err)
		}
		total = result.GetTotal()
		return nil
	})
	if err != nil {
		return 0, err
	}
	g.logger.Printf("Completed search %q: %d results.\n", query, total)
	return total, nil
}

// doWithRetry runs fn, retrying exactly once after a short pause when the
// failure is transient. Rate limits and other errors are not retried here.
func (g *GitHubGateway) doWithRetry(ctx context.Context, op string, fn func() error) error {
	err := fn()
	var transient *TransientError
	if !errors.As(err, &transient) {
		return err
	}
	g.logger.Printf("  %s failed transiently, retrying once: %v\n", op, err)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(retryDelay):
	}
	return fn()
}
