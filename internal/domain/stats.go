// Package domain contains the core data structures and domain logic for the application.
package domain

import "time"

// ActivityEvent is a single recorded GitHub activity item (push, issue, PR).
// Events are fetched fresh each run and never persisted.
type ActivityEvent struct {
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Repo      string    `json:"repo"`
}

// ContributionCalendar holds the per-day contribution counts from the
// GraphQL contributionsCollection, keyed by UTC date ("2006-01-02").
// The window is capped upstream (roughly one trailing year).
type ContributionCalendar struct {
	TotalCommits int            `json:"total_commits"`
	Days         map[string]int `json:"days"`
}

// StreakStats describes runs of consecutive calendar days with activity.
// All values are lower bounds: the event and calendar windows are capped.
type StreakStats struct {
	CurrentStreak int `json:"current_streak"`
	LongestStreak int `json:"longest_streak"`
	DaysActive    int `json:"days_active"`
}

// IssueStats holds issue counts for the user.
// SuccessRate is closed/(closed+open), 0 when both counts are 0.
type IssueStats struct {
	ClosedCount int     `json:"closed_count"`
	OpenCount   int     `json:"open_count"`
	SuccessRate float64 `json:"success_rate"`
}

// CommitStats is an estimate derived from a capped window, not an
// authoritative count.
type CommitStats struct {
	TotalEstimate int `json:"total_estimate"`
	Recent30d     int `json:"recent_30d"`
}

// PullRequestStats holds PR counts; ReviewedEstimate is capped by the
// search API's result-count ceiling.
type PullRequestStats struct {
	MergedCount      int `json:"merged_count"`
	OpenedCount      int `json:"opened_count"`
	ReviewedEstimate int `json:"reviewed_estimate"`
}

// PokedexStats bundles the four stat aggregates consumed by the renderer.
type PokedexStats struct {
	Streak       StreakStats      `json:"streak"`
	Issues       IssueStats       `json:"issues"`
	Commits      CommitStats      `json:"commits"`
	PullRequests PullRequestStats `json:"pull_requests"`
}

// RenderedPanel is one themed ASCII block within the composite SVG.
// Every line has the same rune width, borders included.
type RenderedPanel struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
}
