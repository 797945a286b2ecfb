// internal/github/client.go
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"github-trend-analytics/internal/model"
)

const (
	// Maximum attempts for a single search call before the category is
	// declared failed.
	maxRetries = 3

	// One page of the maximum size; search relevance drops off sharply
	// after the first hundred results.
	perPage = 100
)

// Base delay for exponential backoff between retries. A variable so tests
// can shrink it.
var retryBaseDelay = 500 * time.Millisecond

// Client is a wrapper around the go-github client that exposes the two
// search shapes the pipeline needs: per-language and per-topic.
type Client struct {
	gh     *github.Client
	logger *slog.Logger
}

// NewClient creates and configures a new Client instance.
// The provided token is used to create an authenticated http.Client.
func NewClient(token string, logger *slog.Logger) *Client {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	return &Client{
		gh:     github.NewClient(tc),
		logger: logger,
	}
}

// OverrideBaseURL points the client at a different API endpoint. Used by
// tests that stand in for the GitHub API with a local server.
func (c *Client) OverrideBaseURL(rawURL string) error {
	base, err := url.Parse(rawURL + "/")
	if err != nil {
		return err
	}
	c.gh.BaseURL = base
	return nil
}

// SearchByLanguage fetches the top repositories for one language, restricted
// to those pushed on or after the given date, sorted by stars.
func (c *Client) SearchByLanguage(ctx context.Context, language string, pushedSince time.Time) ([]model.RepositoryRecord, error) {
	query := fmt.Sprintf("language:%s pushed:>=%s", language, pushedSince.Format("2006-01-02"))
	return c.search(ctx, query, language, model.CategoryKindLanguage)
}

// SearchByTopic fetches the top repositories tagged with the given topic.
func (c *Client) SearchByTopic(ctx context.Context, topic string) ([]model.RepositoryRecord, error) {
	query := fmt.Sprintf("topic:%s", topic)
	return c.search(ctx, query, topic, model.CategoryKindEcosystem)
}

// search runs one search query with bounded retries. Transient failures
// (5xx, rate limits, network errors) are retried with exponential backoff;
// anything else aborts immediately.
func (c *Client) search(ctx context.Context, query, category string, kind model.CategoryKind) ([]model.RepositoryRecord, error) {
	opts := &github.SearchOptions{
		Sort:  "stars",
		Order: "desc",
		ListOptions: github.ListOptions{
			PerPage: perPage,
		},
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			c.logger.Debug("Retrying search", "query", query, "attempt", attempt+1, "delay", delay)
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}
		}

		result, _, err := c.gh.Search.Repositories(ctx, query, opts)
		if err == nil {
			records := make([]model.RepositoryRecord, 0, len(result.Repositories))
			for _, repo := range result.Repositories {
				records = append(records, toRecord(repo, category, kind))
			}
			return records, nil
		}

		var rateErr *github.RateLimitError
		if errors.As(err, &rateErr) {
			wait := time.Until(rateErr.Rate.Reset.Time)
			if wait < 0 {
				wait = 0
			}
			c.logger.Warn("Rate limited by GitHub, waiting for reset", "query", query, "wait", wait)
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
			lastErr = err
			continue
		}

		var abuseErr *github.AbuseRateLimitError
		if errors.As(err, &abuseErr) {
			wait := retryBaseDelay
			if abuseErr.RetryAfter != nil {
				wait = *abuseErr.RetryAfter
			}
			c.logger.Warn("Secondary rate limit hit, backing off", "query", query, "wait", wait)
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
			lastErr = err
			continue
		}

		if !isTransient(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// isTransient reports whether an error is worth retrying: server-side
// failures and anything that never produced an HTTP response.
func isTransient(err error) bool {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		return ghErr.Response != nil && ghErr.Response.StatusCode >= http.StatusInternalServerError
	}
	// Network-level errors carry no ErrorResponse.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// toRecord translates a github.Repository object to our internal record.
func toRecord(r *github.Repository, category string, kind model.CategoryKind) model.RepositoryRecord {
	return model.RepositoryRecord{
		FullName:     r.GetFullName(),
		URL:          r.GetHTMLURL(),
		Language:     r.GetLanguage(),
		Description:  r.GetDescription(),
		Stars:        r.GetStargazersCount(),
		Category:     category,
		CategoryKind: kind,
		CreatedAt:    r.GetCreatedAt().Time,
		UpdatedAt:    r.GetUpdatedAt().Time,
	}
}
