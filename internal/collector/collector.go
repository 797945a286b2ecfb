// internal/collector/collector.go
package collector

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	custom_errors "github-trend-analytics/internal/errors"
	"github-trend-analytics/internal/model"
)

// Fetcher is the external fetch capability consumed by the collector.
type Fetcher interface {
	SearchByLanguage(ctx context.Context, language string, pushedSince time.Time) ([]model.RepositoryRecord, error)
	SearchByTopic(ctx context.Context, topic string) ([]model.RepositoryRecord, error)
}

// Collector fans out one fetch per category and joins the results.
type Collector struct {
	fetcher      Fetcher
	logger       *slog.Logger
	fetchTimeout time.Duration
	windowDays   int
}

// New creates a Collector. fetchTimeout bounds each individual category
// fetch; windowDays restricts language searches to recently pushed repos.
func New(fetcher Fetcher, logger *slog.Logger, fetchTimeout time.Duration, windowDays int) *Collector {
	return &Collector{
		fetcher:      fetcher,
		logger:       logger,
		fetchTimeout: fetchTimeout,
		windowDays:   windowDays,
	}
}

// Collect fetches every category concurrently and returns the deduplicated
// records plus the categories that failed. A failed category never aborts
// the others; callers decide what to do with partial results.
func (c *Collector) Collect(ctx context.Context, categories []model.Category) ([]model.RepositoryRecord, []model.CategoryFailure) {
	if len(categories) == 0 {
		return nil, nil
	}

	results := make([][]model.RepositoryRecord, len(categories))
	errs := make([]error, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(categories))

	for i, cat := range categories {
		i, cat := i, cat
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gctx, c.fetchTimeout)
			defer cancel()

			records, err := c.fetchCategory(fetchCtx, cat)
			if err != nil {
				c.logger.Error("Category fetch failed", "category", cat.Name, "kind", cat.Kind, "error", err)
				errs[i] = &custom_errors.ErrCategoryFailed{Category: cat.Name, Cause: err}
				return nil
			}
			c.logger.Info("Category fetched", "category", cat.Name, "count", len(records))
			results[i] = records
			return nil
		})
	}
	// Goroutines only record failures, never return them.
	_ = g.Wait()

	var failures []model.CategoryFailure
	var collected []model.RepositoryRecord
	for i, cat := range categories {
		if errs[i] != nil {
			failures = append(failures, model.CategoryFailure{Category: cat, Err: errs[i]})
			continue
		}
		collected = append(collected, results[i]...)
	}

	return dedupe(collected), failures
}

func (c *Collector) fetchCategory(ctx context.Context, cat model.Category) ([]model.RepositoryRecord, error) {
	if cat.Kind == model.CategoryKindEcosystem {
		return c.fetcher.SearchByTopic(ctx, cat.Name)
	}
	pushedSince := time.Now().UTC().AddDate(0, 0, -c.windowDays)
	return c.fetcher.SearchByLanguage(ctx, cat.Name, pushedSince)
}

// dedupe keeps the first occurrence of each repository identity, so a repo
// surfacing in several categories is counted once, under the category it was
// first seen in. Input order follows the configured category order.
func dedupe(records []model.RepositoryRecord) []model.RepositoryRecord {
	seen := make(map[string]struct{}, len(records))
	unique := records[:0:0]
	for _, r := range records {
		if r.FullName == "" {
			continue
		}
		if _, ok := seen[r.FullName]; ok {
			continue
		}
		seen[r.FullName] = struct{}{}
		unique = append(unique, r)
	}
	return unique
}
