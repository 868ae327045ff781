// Package domain contains the core data structures and domain logic for the application.
package domain

import "time"

// ReviewComment is a single remark left inside a pull request review.
type ReviewComment struct {
	User      string    `json:"user"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Review identifies one review session on a pull request.
type Review struct {
	ID       int64
	Reviewer string
}

// PullRequest is the per-PR summary returned in a StatsReport.
// It is the core domain entity of this application.
type PullRequest struct {
	Title          string          `json:"title"`
	Number         int             `json:"number"`
	CreatedBy      string          `json:"created_by"`
	URL            string          `json:"url"`
	State          string          `json:"state"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	ClosedAt       *time.Time      `json:"closed_at"`
	ReviewComments []ReviewComment `json:"reviewComments"`
}

// StatsReport is the aggregated result for one set of authors and start date.
type StatsReport struct {
	TotalPRs      int            `json:"totalPRs"`
	TotalComments int            `json:"totalComments"`
	TeamPRs       []*PullRequest `json:"teamPrs"`
	Summary       *Summary       `json:"summary,omitempty"`
}

// Summary describes the distribution of review comments per pull request.
type Summary struct {
	MeanComments   float64 `json:"meanComments"`
	MedianComments float64 `json:"medianComments"`
	MaxComments    float64 `json:"maxComments"`
}
