// internal/collector/collector_test.go
package collector

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	custom_errors "github-trend-analytics/internal/errors"
	"github-trend-analytics/internal/model"
)

type fakeFetcher struct {
	byLanguage map[string][]model.RepositoryRecord
	byTopic    map[string][]model.RepositoryRecord
	langErrs   map[string]error
	delay      time.Duration
}

func (f *fakeFetcher) SearchByLanguage(ctx context.Context, language string, pushedSince time.Time) ([]model.RepositoryRecord, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := f.langErrs[language]; ok {
		return nil, err
	}
	return f.byLanguage[language], nil
}

func (f *fakeFetcher) SearchByTopic(ctx context.Context, topic string) ([]model.RepositoryRecord, error) {
	return f.byTopic[topic], nil
}

func record(fullName, category string, kind model.CategoryKind) model.RepositoryRecord {
	return model.RepositoryRecord{
		FullName:     fullName,
		URL:          "https://github.com/" + fullName,
		Stars:        10,
		Category:     category,
		CategoryKind: kind,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestCollector_Collect(t *testing.T) {
	categories := []model.Category{
		{Name: "Go", Kind: model.CategoryKindLanguage},
		{Name: "Python", Kind: model.CategoryKindLanguage},
		{Name: "render", Kind: model.CategoryKindEcosystem},
	}

	t.Run("joins all categories and deduplicates keeping first occurrence", func(t *testing.T) {
		fetcher := &fakeFetcher{
			byLanguage: map[string][]model.RepositoryRecord{
				"Go":     {record("acme/widget", "Go", model.CategoryKindLanguage)},
				"Python": {record("org/snake", "Python", model.CategoryKindLanguage)},
			},
			byTopic: map[string][]model.RepositoryRecord{
				// Same repo surfaced again via the ecosystem topic.
				"render": {record("acme/widget", "render", model.CategoryKindEcosystem)},
			},
		}
		c := New(fetcher, testLogger(), time.Second, 30)

		records, failures := c.Collect(context.Background(), categories)

		require.Empty(t, failures)
		require.Len(t, records, 2)
		assert.Equal(t, "acme/widget", records[0].FullName)
		assert.Equal(t, "Go", records[0].Category, "first-seen category wins")
		assert.Equal(t, "org/snake", records[1].FullName)
	})

	t.Run("one failing category does not abort the others", func(t *testing.T) {
		fetcher := &fakeFetcher{
			byLanguage: map[string][]model.RepositoryRecord{
				"Python": {record("org/snake", "Python", model.CategoryKindLanguage)},
			},
			langErrs: map[string]error{"Go": errors.New("upstream down")},
			byTopic: map[string][]model.RepositoryRecord{
				"render": {record("acme/widget", "render", model.CategoryKindEcosystem)},
			},
		}
		c := New(fetcher, testLogger(), time.Second, 30)

		records, failures := c.Collect(context.Background(), categories)

		require.Len(t, failures, 1)
		assert.Equal(t, "Go", failures[0].Category.Name)
		var catErr *custom_errors.ErrCategoryFailed
		assert.ErrorAs(t, failures[0].Err, &catErr)
		assert.Len(t, records, 2)
	})

	t.Run("slow category hits its own timeout and is reported failed", func(t *testing.T) {
		fetcher := &fakeFetcher{
			byLanguage: map[string][]model.RepositoryRecord{
				"Go": {record("acme/widget", "Go", model.CategoryKindLanguage)},
			},
			delay: 200 * time.Millisecond,
			byTopic: map[string][]model.RepositoryRecord{
				"render": {record("org/other", "render", model.CategoryKindEcosystem)},
			},
		}
		c := New(fetcher, testLogger(), 20*time.Millisecond, 30)

		records, failures := c.Collect(context.Background(), categories)

		// Both language fetches time out; the topic fetch has no delay.
		require.Len(t, failures, 2)
		assert.Len(t, records, 1)
		assert.Equal(t, "org/other", records[0].FullName)
	})

	t.Run("all categories failing yields no records and all failures", func(t *testing.T) {
		fetcher := &fakeFetcher{
			langErrs: map[string]error{
				"Go":     errors.New("boom"),
				"Python": errors.New("boom"),
			},
		}
		c := New(fetcher, testLogger(), time.Second, 30)

		records, failures := c.Collect(context.Background(), categories[:2])

		assert.Empty(t, records)
		assert.Len(t, failures, 2)
	})
}

func TestDedupe_SkipsEmptyIdentity(t *testing.T) {
	records := []model.RepositoryRecord{
		{FullName: ""},
		record("a/b", "Go", model.CategoryKindLanguage),
		record("a/b", "Python", model.CategoryKindLanguage),
	}
	unique := dedupe(records)
	require.Len(t, unique, 1)
	assert.Equal(t, "Go", unique[0].Category)
}
