// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/team-pr-stats/internal/domain"
	"github.com/naka-gawa/team-pr-stats/internal/gateway"
)

// ErrFetchPRs is returned for any failure during aggregation.
var ErrFetchPRs = errors.New("failed to fetch PRs")

// DefaultConcurrency bounds the per-PR review fetches when none is configured.
const DefaultConcurrency = 10

// Options tunes a single aggregation.
type Options struct {
	IncludeSummary bool
}

// Aggregator is the use case for aggregating GitHub stats.
// It orchestrates the fetching and combining of data.
type Aggregator struct {
	fetcher     gateway.Fetcher
	logger      *slog.Logger
	concurrency int
}

// NewAggregator creates a new Aggregator instance. A concurrency below 1
// falls back to DefaultConcurrency.
func NewAggregator(fetcher gateway.Fetcher, logger *slog.Logger, concurrency int) *Aggregator {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Aggregator{
		fetcher:     fetcher,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Aggregate performs the main business logic.
// PRs are searched one page at a time, user by user, then the first review's
// comments of every PR are fetched concurrently. Any failure aborts the whole
// aggregation with ErrFetchPRs.
func (a *Aggregator) Aggregate(ctx context.Context, usernames []string, startDate string, opts Options) (*domain.StatsReport, error) {
	a.logger.Debug("usecase: starting aggregation", slog.Any("usernames", usernames), slog.String("start_date", startDate))

	prs, err := a.collect(ctx, usernames, startDate)
	if err != nil {
		a.logger.Error("error searching PRs", slog.Any("err", err))
		return nil, ErrFetchPRs
	}
	a.logger.Debug("usecase: search complete", slog.Int("prs", len(prs)))

	// Each goroutine writes only its own index, so no locking is needed.
	counts := make([]int, len(prs))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(a.concurrency)
	for i, pr := range prs {
		i, pr := i, pr
		eg.Go(func() error {
			comments, err := a.firstReviewComments(egCtx, pr.Number)
			if err != nil {
				return err
			}
			pr.ReviewComments = comments
			counts[i] = len(comments)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		a.logger.Error("error searching PRs", slog.Any("err", err))
		return nil, ErrFetchPRs
	}

	report := &domain.StatsReport{
		TotalPRs: len(prs),
		TeamPRs:  prs,
	}
	for _, n := range counts {
		report.TotalComments += n
	}
	if opts.IncludeSummary {
		report.Summary = summarize(counts)
	}

	a.logger.Debug("usecase: aggregation complete",
		slog.Int("total_prs", report.TotalPRs),
		slog.Int("total_comments", report.TotalComments),
	)
	return report, nil
}

// collect pages through the search results of every user in order until a
// page comes back empty.
func (a *Aggregator) collect(ctx context.Context, usernames []string, startDate string) ([]*domain.PullRequest, error) {
	prs := make([]*domain.PullRequest, 0)
	for _, username := range usernames {
		for page := 1; ; page++ {
			items, err := a.fetcher.SearchPullRequests(ctx, username, startDate, page)
			if err != nil {
				return nil, err
			}
			if len(items) == 0 {
				break
			}
			prs = append(prs, items...)
		}
	}
	return prs, nil
}

// firstReviewComments returns the comments of the first review only, or an
// empty slice when the PR has no reviews.
func (a *Aggregator) firstReviewComments(ctx context.Context, pullNumber int) ([]domain.ReviewComment, error) {
	reviews, err := a.fetcher.ListReviews(ctx, pullNumber)
	if err != nil {
		return nil, err
	}
	if len(reviews) == 0 {
		return []domain.ReviewComment{}, nil
	}
	comments, err := a.fetcher.ListReviewComments(ctx, pullNumber, reviews[0].ID)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []domain.ReviewComment{}
	}
	return comments, nil
}

func summarize(counts []int) *domain.Summary {
	summary := &domain.Summary{}
	if len(counts) == 0 {
		return summary
	}
	data := stats.LoadRawData(counts)
	// Errors only occur on empty input, which is handled above.
	summary.MeanComments, _ = stats.Mean(data)
	summary.MedianComments, _ = stats.Median(data)
	summary.MaxComments, _ = stats.Max(data)
	return summary
}
