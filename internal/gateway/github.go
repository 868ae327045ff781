// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/naka-gawa/team-pr-stats/internal/domain"
)

// SearchPageSize is the number of search results requested per page.
const SearchPageSize = 100

// Errors returned to callers. The underlying cause is logged, never returned.
var (
	ErrFetchReviews        = errors.New("failed to fetch reviews")
	ErrFetchReviewComments = errors.New("failed to fetch review comments")
	ErrSearchPRs           = errors.New("failed to search pull requests")
)

// Fetcher defines the behavior of a gateway for fetching information from GitHub.
type Fetcher interface {
	// SearchPullRequests returns one page of PRs in the configured repository
	// authored by author and created on or after startDate.
	SearchPullRequests(ctx context.Context, author, startDate string, page int) ([]*domain.PullRequest, error)
	ListReviews(ctx context.Context, pullNumber int) ([]domain.Review, error)
	ListReviewComments(ctx context.Context, pullNumber int, reviewID int64) ([]domain.ReviewComment, error)
}

// Options configures NewGitHubGateway.
type Options struct {
	Token string
	Owner string
	Repo  string
	// BaseURL is the GitHub Enterprise root, e.g. https://ghe.example.com/. Empty means github.com.
	BaseURL         string
	WaitOnRateLimit bool
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	owner         string
	repo          string
	logger        *slog.Logger
}

var _ Fetcher = (*GitHubGateway)(nil)

// repositoryQuery resolves the configured repository through GraphQL.
type repositoryQuery struct {
	Repository struct {
		NameWithOwner string
		IsArchived    bool
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(opts Options, logger *slog.Logger) (*GitHubGateway, error) {
	var base http.RoundTripper = http.DefaultTransport
	if opts.WaitOnRateLimit {
		rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
		}
		base = rateLimitWaiter
	}

	httpClient := &http.Client{Transport: base}
	if opts.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		httpClient.Transport = &oauth2.Transport{
			Base:   base,
			Source: ts,
		}
	}

	restClient := github.NewClient(httpClient)
	graphqlClient := githubv4.NewClient(httpClient)
	if opts.BaseURL != "" {
		var err error
		restClient, err = restClient.WithEnterpriseURLs(opts.BaseURL, opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to set enterprise URL: %w", err)
		}
		graphqlClient = githubv4.NewEnterpriseClient(enterpriseGraphQLURL(opts.BaseURL), httpClient)
	}

	return &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		owner:         opts.Owner,
		repo:          opts.Repo,
		logger:        logger,
	}, nil
}

func enterpriseGraphQLURL(baseURL string) string {
	root := strings.TrimSuffix(baseURL, "/")
	root = strings.TrimSuffix(root, "/api/v3")
	return root + "/api/graphql"
}

// SearchQuery builds the issue search query for one author.
func (g *GitHubGateway) SearchQuery(author, startDate string) string {
	return fmt.Sprintf("repo:%s/%s is:pr created:>=%s author:%s", g.owner, g.repo, startDate, author)
}

func (g *GitHubGateway) SearchPullRequests(ctx context.Context, author, startDate string, page int) ([]*domain.PullRequest, error) {
	query := g.SearchQuery(author, startDate)
	opts := &github.SearchOptions{
		Sort:        "created",
		Order:       "asc",
		ListOptions: github.ListOptions{Page: page, PerPage: SearchPageSize},
	}
	g.logger.Debug("searching pull requests", slog.String("query", query), slog.Int("page", page))

	result, _, err := g.restClient.Search.Issues(ctx, query, opts)
	if err != nil {
		g.logger.Error("error searching pull requests",
			slog.String("author", author),
			slog.Int("page", page),
			slog.Any("err", err),
		)
		return nil, ErrSearchPRs
	}

	prs := make([]*domain.PullRequest, 0, len(result.Issues))
	for _, issue := range result.Issues {
		prs = append(prs, toPullRequest(issue))
	}
	return prs, nil
}

// ListReviews fetches the reviews of a pull request. Only the API's default
// first page is requested.
func (g *GitHubGateway) ListReviews(ctx context.Context, pullNumber int) ([]domain.Review, error) {
	reviews, _, err := g.restClient.PullRequests.ListReviews(ctx, g.owner, g.repo, pullNumber, nil)
	if err != nil {
		g.logger.Error("error listing reviews",
			slog.Int("pull_number", pullNumber),
			slog.Any("err", err),
		)
		return nil, ErrFetchReviews
	}

	out := make([]domain.Review, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, domain.Review{ID: r.GetID(), Reviewer: r.GetUser().GetLogin()})
	}
	return out, nil
}

// ListReviewComments fetches the comments of a single review. Only the API's
// default first page is requested.
func (g *GitHubGateway) ListReviewComments(ctx context.Context, pullNumber int, reviewID int64) ([]domain.ReviewComment, error) {
	comments, _, err := g.restClient.PullRequests.ListReviewComments(ctx, g.owner, g.repo, pullNumber, reviewID, nil)
	if err != nil {
		g.logger.Error("error listing review comments",
			slog.Int("pull_number", pullNumber),
			slog.Int64("review_id", reviewID),
			slog.Any("err", err),
		)
		return nil, ErrFetchReviewComments
	}

	out := make([]domain.ReviewComment, 0, len(comments))
	for _, c := range comments {
		out = append(out, domain.ReviewComment{
			User:      c.GetUser().GetLogin(),
			Body:      c.GetBody(),
			CreatedAt: c.GetCreatedAt().Time,
			UpdatedAt: c.GetUpdatedAt().Time,
		})
	}
	return out, nil
}

// VerifyRepository checks through GraphQL that the configured repository exists
// and is visible with the configured token.
func (g *GitHubGateway) VerifyRepository(ctx context.Context) error {
	if g.owner == "" || g.repo == "" {
		return fmt.Errorf("repository owner and name must be set, got %q/%q", g.owner, g.repo)
	}
	variables := map[string]interface{}{
		"owner": githubv4.String(g.owner),
		"name":  githubv4.String(g.repo),
	}
	var q repositoryQuery
	if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
		return fmt.Errorf("failed to execute GraphQL query for repository: %w", err)
	}
	if q.Repository.NameWithOwner == "" {
		return fmt.Errorf("repository %s/%s not found", g.owner, g.repo)
	}
	if q.Repository.IsArchived {
		g.logger.Warn("repository is archived", slog.String("repository", q.Repository.NameWithOwner))
	}
	g.logger.Info("repository verified", slog.String("repository", q.Repository.NameWithOwner))
	return nil
}

func toPullRequest(issue *github.Issue) *domain.PullRequest {
	pr := &domain.PullRequest{
		Title:     issue.GetTitle(),
		Number:    issue.GetNumber(),
		CreatedBy: issue.GetUser().GetLogin(),
		URL:       issue.GetHTMLURL(),
		State:     issue.GetState(),
		CreatedAt: issue.GetCreatedAt().Time,
		UpdatedAt: issue.GetUpdatedAt().Time,
	}
	if issue.ClosedAt != nil {
		closedAt := issue.ClosedAt.Time
		pr.ClosedAt = &closedAt
	}
	return pr
}
