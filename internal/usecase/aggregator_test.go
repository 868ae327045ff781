package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/team-pr-stats/internal/domain"
	"github.com/naka-gawa/team-pr-stats/internal/gateway"
)

// mockFetcher is a mock implementation of the gateway.Fetcher interface.
// It allows us to simulate the behavior of the GitHub gateway without making real API calls.
type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) SearchPullRequests(ctx context.Context, author, startDate string, page int) ([]*domain.PullRequest, error) {
	args := m.Called(ctx, author, startDate, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PullRequest), args.Error(1)
}

func (m *mockFetcher) ListReviews(ctx context.Context, pullNumber int) ([]domain.Review, error) {
	args := m.Called(ctx, pullNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Review), args.Error(1)
}

func (m *mockFetcher) ListReviewComments(ctx context.Context, pullNumber int, reviewID int64) ([]domain.ReviewComment, error) {
	args := m.Called(ctx, pullNumber, reviewID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ReviewComment), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makePRs(author string, from, n int) []*domain.PullRequest {
	prs := make([]*domain.PullRequest, 0, n)
	for i := 0; i < n; i++ {
		prs = append(prs, &domain.PullRequest{Number: from + i, CreatedBy: author})
	}
	return prs
}

func comments(n int) []domain.ReviewComment {
	out := make([]domain.ReviewComment, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.ReviewComment{User: "reviewer", Body: "comment"})
	}
	return out
}

func assertReportInvariants(t *testing.T, report *domain.StatsReport) {
	t.Helper()
	assert.Equal(t, len(report.TeamPRs), report.TotalPRs)
	sum := 0
	for _, pr := range report.TeamPRs {
		assert.NotNil(t, pr.ReviewComments)
		sum += len(pr.ReviewComments)
	}
	assert.Equal(t, sum, report.TotalComments)
}

func TestAggregator_Aggregate_Pagination(t *testing.T) {
	fetcher := new(mockFetcher)
	fetcher.On("SearchPullRequests", mock.Anything, "alice", "2024-01-01", 1).Return(makePRs("alice", 1, 100), nil).Once()
	fetcher.On("SearchPullRequests", mock.Anything, "alice", "2024-01-01", 2).Return([]*domain.PullRequest{}, nil).Once()
	fetcher.On("ListReviews", mock.Anything, mock.AnythingOfType("int")).Return([]domain.Review{}, nil)

	aggregator := NewAggregator(fetcher, discardLogger(), 5)
	report, err := aggregator.Aggregate(context.Background(), []string{"alice"}, "2024-01-01", Options{})

	require.NoError(t, err)
	assert.Equal(t, 100, report.TotalPRs)
	assert.Equal(t, 0, report.TotalComments)
	assertReportInvariants(t, report)
	fetcher.AssertNumberOfCalls(t, "SearchPullRequests", 2)
	fetcher.AssertNumberOfCalls(t, "ListReviews", 100)
	fetcher.AssertNotCalled(t, "ListReviewComments", mock.Anything, mock.Anything, mock.Anything)
	fetcher.AssertExpectations(t)
}

func TestAggregator_Aggregate(t *testing.T) {
	fetchErr := errors.New("github api error")

	testCases := []struct {
		name            string
		usernames       []string
		setup           func(f *mockFetcher)
		expectedNumbers []int
		expectedTotal   int
		expectError     bool
	}{
		{
			name:      "scenario - one PR with one review and two comments",
			usernames: []string{"alice"},
			setup: func(f *mockFetcher) {
				f.On("SearchPullRequests", mock.Anything, "alice", "2024-01-01", 1).Return(makePRs("alice", 42, 1), nil)
				f.On("SearchPullRequests", mock.Anything, "alice", "2024-01-01", 2).Return([]*domain.PullRequest{}, nil)
				f.On("ListReviews", mock.Anything, 42).Return([]domain.Review{{ID: 7}}, nil)
				f.On("ListReviewComments", mock.Anything, 42, int64(7)).Return(comments(2), nil)
			},
			expectedNumbers: []int{42},
			expectedTotal:   2,
		},
		{
			name:      "only the first review's comments are used",
			usernames: []string{"alice"},
			setup: func(f *mockFetcher) {
				f.On("SearchPullRequests", mock.Anything, "alice", "2024-01-01", 1).Return(makePRs("alice", 10, 1), nil)
				f.On("SearchPullRequests", mock.Anything, "alice", "2024-01-01", 2).Return([]*domain.PullRequest{}, nil)
				f.On("ListReviews", mock.Anything, 10).Return([]domain.Review{{ID: 100}, {ID: 200}, {ID: 300}}, nil)
				f.On("ListReviewComments", mock.Anything, 10, int64(100)).Return(comments(3), nil).Once()
			},
			expectedNumbers: []int{10},
			expectedTotal:   3,
		},
		{
			name:      "users are searched in order and results keep that order",
			usernames: []string{"alice", "bob"},
			setup: func(f *mockFetcher) {
				f.On("SearchPullRequests", mock.Anything, "alice", "2024-01-01", 1).Return(makePRs("alice", 1, 2), nil)
				f.On("SearchPullRequests", mock.Anything, "alice", "2024-01-01", 2).Return([]*domain.PullRequest{}, nil)
				f.On("SearchPullRequests", mock.Anything, "bob", "2024-01-01", 1).Return(makePRs("bob", 50, 1), nil)
				f.On("SearchPullRequests", mock.Anything, "bob", "2024-01-01", 2).Return([]*domain.PullRequest{}, nil)
				f.On("ListReviews", mock.Anything, 1).Return([]domain.Review{{ID: 1}}, nil)
				f.On("ListReviews", mock.Anything, 2).Return([]domain.Review{}, nil)
				f.On("ListReviews", mock.Anything, 50).Return([]domain.Review{{ID: 5}}, nil)
				f.On("ListReviewComments", mock.Anything, 1, int64(1)).Return(comments(1), nil)
				f.On("ListReviewComments", mock.Anything, 50, int64(5)).Return(comments(4), nil)
			},
			expectedNumbers: []int{1, 2, 50},
			expectedTotal:   5,
		},
		{
			name:      "empty case - no PRs found",
			usernames: []string{"alice"},
			setup: func(f *mockFetcher) {
				f.On("SearchPullRequests", mock.Anything, "alice", "2024-01-01", 1).Return([]*domain.PullRequest{}, nil)
			},
			expectedNumbers: []int{},
			expectedTotal:   0,
		},
		{
			name:      "error case - search fails",
			usernames: []string{"alice"},
			setup: func(f *mockFetcher) {
				f.On("SearchPullRequests", mock.Anything, "alice", "2024-01-01", 1).Return(nil, gateway.ErrSearchPRs)
			},
			expectError: true,
		},
		{
			name:      "error case - reviews fail for one PR",
			usernames: []string{"alice"},
			setup: func(f *mockFetcher) {
				f.On("SearchPullRequests", mock.Anything, "alice", "2024-01-01", 1).Return(makePRs("alice", 1, 2), nil)
				f.On("SearchPullRequests", mock.Anything, "alice", "2024-01-01", 2).Return([]*domain.PullRequest{}, nil)
				f.On("ListReviews", mock.Anything, 1).Return([]domain.Review{}, nil).Maybe()
				f.On("ListReviews", mock.Anything, 2).Return(nil, gateway.ErrFetchReviews)
			},
			expectError: true,
		},
		{
			name:      "error case - comment fetch fails for one PR",
			usernames: []string{"alice"},
			setup: func(f *mockFetcher) {
				f.On("SearchPullRequests", mock.Anything, "alice", "2024-01-01", 1).Return(makePRs("alice", 1, 2), nil)
				f.On("SearchPullRequests", mock.Anything, "alice", "2024-01-01", 2).Return([]*domain.PullRequest{}, nil)
				f.On("ListReviews", mock.Anything, 1).Return([]domain.Review{{ID: 11}}, nil).Maybe()
				f.On("ListReviews", mock.Anything, 2).Return([]domain.Review{{ID: 22}}, nil)
				f.On("ListReviewComments", mock.Anything, 1, int64(11)).Return(comments(1), nil).Maybe()
				f.On("ListReviewComments", mock.Anything, 2, int64(22)).Return(nil, fetchErr)
			},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fetcher := new(mockFetcher)
			tc.setup(fetcher)

			aggregator := NewAggregator(fetcher, discardLogger(), 0)
			report, err := aggregator.Aggregate(context.Background(), tc.usernames, "2024-01-01", Options{})

			if tc.expectError {
				assert.ErrorIs(t, err, ErrFetchPRs)
				assert.Nil(t, report)
			} else {
				require.NoError(t, err)
				numbers := make([]int, 0, len(report.TeamPRs))
				for _, pr := range report.TeamPRs {
					numbers = append(numbers, pr.Number)
				}
				assert.Equal(t, tc.expectedNumbers, numbers)
				assert.Equal(t, tc.expectedTotal, report.TotalComments)
				assert.Nil(t, report.Summary)
				assertReportInvariants(t, report)
			}

			fetcher.AssertExpectations(t)
		})
	}
}

func TestAggregator_Aggregate_Summary(t *testing.T) {
	fetcher := new(mockFetcher)
	fetcher.On("SearchPullRequests", mock.Anything, "alice", "2024-01-01", 1).Return(makePRs("alice", 1, 3), nil)
	fetcher.On("SearchPullRequests", mock.Anything, "alice", "2024-01-01", 2).Return([]*domain.PullRequest{}, nil)
	fetcher.On("ListReviews", mock.Anything, 1).Return([]domain.Review{{ID: 1}}, nil)
	fetcher.On("ListReviews", mock.Anything, 2).Return([]domain.Review{{ID: 2}}, nil)
	fetcher.On("ListReviews", mock.Anything, 3).Return([]domain.Review{}, nil)
	fetcher.On("ListReviewComments", mock.Anything, 1, int64(1)).Return(comments(1), nil)
	fetcher.On("ListReviewComments", mock.Anything, 2, int64(2)).Return(comments(5), nil)

	aggregator := NewAggregator(fetcher, discardLogger(), 2)
	report, err := aggregator.Aggregate(context.Background(), []string{"alice"}, "2024-01-01", Options{IncludeSummary: true})

	require.NoError(t, err)
	require.NotNil(t, report.Summary)
	assert.InDelta(t, 2.0, report.Summary.MeanComments, 1e-9)
	assert.InDelta(t, 1.0, report.Summary.MedianComments, 1e-9)
	assert.InDelta(t, 5.0, report.Summary.MaxComments, 1e-9)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, &domain.Summary{}, summarize(nil))
}

// slowFetcher records how many review fetches run at the same time.
type slowFetcher struct {
	prs      int
	inFlight atomic.Int32
	mu       sync.Mutex
	peak     int32
}

func (f *slowFetcher) SearchPullRequests(_ context.Context, author, _ string, page int) ([]*domain.PullRequest, error) {
	if page > 1 {
		return nil, nil
	}
	return makePRs(author, 1, f.prs), nil
}

func (f *slowFetcher) ListReviews(_ context.Context, _ int) ([]domain.Review, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	f.mu.Lock()
	if n > f.peak {
		f.peak = n
	}
	f.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
	return nil, nil
}

func (f *slowFetcher) ListReviewComments(_ context.Context, _ int, _ int64) ([]domain.ReviewComment, error) {
	return nil, errors.New("unexpected call")
}

func TestAggregator_Aggregate_BoundedConcurrency(t *testing.T) {
	fetcher := &slowFetcher{prs: 20}
	aggregator := NewAggregator(fetcher, discardLogger(), 3)

	report, err := aggregator.Aggregate(context.Background(), []string{"alice"}, "2024-01-01", Options{})

	require.NoError(t, err)
	assert.Equal(t, 20, report.TotalPRs)
	assertReportInvariants(t, report)
	assert.LessOrEqual(t, fetcher.peak, int32(3))
	assert.GreaterOrEqual(t, fetcher.peak, int32(1))
}
