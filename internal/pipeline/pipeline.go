// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github-trend-analytics/internal/database"
	"github-trend-analytics/internal/model"
	"github-trend-analytics/internal/scoring"
	"github-trend-analytics/internal/staging"
)

// Collector yields fresh repository records per category with independent
// failure domains.
type Collector interface {
	Collect(ctx context.Context, categories []model.Category) ([]model.RepositoryRecord, []model.CategoryFailure)
}

// DimensionLoader writes one run's dimension and fact rows atomically.
type DimensionLoader interface {
	Load(ctx context.Context, staged []model.StagingRepository, scores map[string]float64, snapshotDate time.Time) (model.LoadResult, error)
}

// Runner is the pipeline entry point the external scheduler invokes.
type Runner struct {
	queries          database.Querier
	collector        Collector
	loader           DimensionLoader
	logger           *slog.Logger
	categories       []model.Category
	interval         time.Duration
	qualityThreshold float64
	now              func() time.Time
}

// NewRunner wires the pipeline together. qualityThreshold is the minimum
// staging data-quality score a row needs to reach scoring and loading.
func NewRunner(q database.Querier, c Collector, l DimensionLoader, logger *slog.Logger, categories []model.Category, interval time.Duration, qualityThreshold float64) *Runner {
	return &Runner{
		queries:          q,
		collector:        c,
		loader:           l,
		logger:           logger,
		categories:       categories,
		interval:         interval,
		qualityThreshold: qualityThreshold,
		now:              time.Now,
	}
}

// BuildCategories assembles the fetch partitions: one per target language
// plus the ecosystem topic, in configured order.
func BuildCategories(languages []string, ecosystemTopic string) []model.Category {
	categories := make([]model.Category, 0, len(languages)+1)
	for _, lang := range languages {
		categories = append(categories, model.Category{Name: lang, Kind: model.CategoryKindLanguage})
	}
	if ecosystemTopic != "" {
		categories = append(categories, model.Category{Name: ecosystemTopic, Kind: model.CategoryKindEcosystem})
	}
	return categories
}

// Start runs one pass immediately, then one per interval until the context
// is cancelled.
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("Starting pipeline scheduler", "interval", r.interval.String(), "categories", len(r.categories))
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.runAndLog(ctx)

	for {
		select {
		case <-ticker.C:
			r.runAndLog(ctx)
		case <-ctx.Done():
			r.logger.Info("Pipeline scheduler shutting down", "reason", ctx.Err())
			return
		}
	}
}

func (r *Runner) runAndLog(ctx context.Context) {
	result, err := r.RunOnce(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Error("Pipeline run failed", "error", err)
		return
	}
	r.logger.Info("Pipeline run finished",
		"snapshot_date", result.SnapshotDate.Format("2006-01-02"),
		"repos", result.RepositoriesProcessed,
		"failed_categories", result.FailedCategories,
		"duration", result.Duration.String())
}

// RunOnce executes one full pipeline pass: collect, store raw, transform to
// staging, score, and load the dimensional model. Category failures produce
// a partial run; a load failure rolls everything back and fails the run.
func (r *Runner) RunOnce(ctx context.Context) (model.PipelineResult, error) {
	// Postgres stores microseconds; truncate so the fetched_at round-trip
	// comparison in the raw-layer read does not lose this run's rows.
	start := r.now().UTC().Truncate(time.Microsecond)
	snapshotDate := start.Truncate(24 * time.Hour)
	logger := r.logger.With("snapshot_date", snapshotDate.Format("2006-01-02"))
	logger.Info("Starting pipeline run")

	records, failures := r.collector.Collect(ctx, r.categories)

	result := model.PipelineResult{
		SnapshotDate:     snapshotDate,
		FailedCategories: categoryNames(failures),
	}
	result.SucceededCategories = succeededNames(r.categories, result.FailedCategories)

	if len(records) == 0 {
		result.Duration = r.now().UTC().Sub(start)
		if len(failures) > 0 {
			return result, fmt.Errorf("no categories produced data: %d of %d failed", len(failures), len(r.categories))
		}
		logger.Info("Nothing collected, skipping load")
		return result, nil
	}
	result.RepositoriesProcessed = len(records)

	if err := r.saveRaw(ctx, records, start); err != nil {
		result.Duration = r.now().UTC().Sub(start)
		return result, fmt.Errorf("save raw layer: %w", err)
	}

	rawRows, err := r.queries.ListRawRepositoriesFetchedSince(ctx, start)
	if err != nil {
		result.Duration = r.now().UTC().Sub(start)
		return result, fmt.Errorf("read raw layer: %w", err)
	}

	staged := staging.Transform(toModelRaw(rawRows), start)
	if err := r.saveStaging(ctx, staged); err != nil {
		result.Duration = r.now().UTC().Sub(start)
		return result, fmt.Errorf("save staging layer: %w", err)
	}

	qualified := filterByQuality(staged, r.qualityThreshold)
	logger.Info("Staged repositories", "total", len(staged), "above_quality_threshold", len(qualified))

	scores := momentumScores(qualified, start)
	loadResult, err := r.loader.Load(ctx, qualified, scores, snapshotDate)
	if err != nil {
		result.Duration = r.now().UTC().Sub(start)
		return result, fmt.Errorf("load analytics layer: %w", err)
	}
	logger.Info("Dimensional load complete",
		"dimension_inserts", loadResult.DimensionInserts,
		"dimension_updates", loadResult.DimensionUpdates,
		"fact_rows", loadResult.FactRows)

	result.Duration = r.now().UTC().Sub(start)
	if err := r.queries.InsertPipelineRun(ctx, database.InsertPipelineRunParams{
		SnapshotDate:        snapshotDate,
		DurationSeconds:     result.Duration.Seconds(),
		ReposProcessed:      int32(result.RepositoriesProcessed),
		CategoriesSucceeded: result.SucceededCategories,
		CategoriesFailed:    result.FailedCategories,
	}); err != nil {
		// Stats are bookkeeping; the run itself succeeded.
		logger.Warn("Failed to record pipeline run stats", "error", err)
	}

	return result, nil
}

func (r *Runner) saveRaw(ctx context.Context, records []model.RepositoryRecord, fetchedAt time.Time) error {
	for _, rec := range records {
		err := r.queries.UpsertRawRepository(ctx, database.UpsertRawRepositoryParams{
			RepoFullName:  rec.FullName,
			RepoUrl:       rec.URL,
			Language:      rec.Language,
			Description:   rec.Description,
			Stars:         int32(rec.Stars),
			Category:      rec.Category,
			CategoryKind:  string(rec.CategoryKind),
			RepoCreatedAt: toTimestamptz(rec.CreatedAt),
			RepoUpdatedAt: toTimestamptz(rec.UpdatedAt),
			FetchedAt:     fetchedAt,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) saveStaging(ctx context.Context, staged []model.StagingRepository) error {
	for _, s := range staged {
		err := r.queries.UpsertStagingRepository(ctx, database.UpsertStagingRepositoryParams{
			RepoFullName:     s.FullName,
			RepoUrl:          s.URL,
			Language:         s.Language,
			Description:      s.Description,
			Stars:            int32(s.Stars),
			Category:         s.Category,
			RepoCreatedAt:    s.CreatedAt,
			RepoUpdatedAt:    toTimestamptz(s.UpdatedAt),
			DataQualityScore: s.DataQualityScore,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// momentumScores computes each repository's momentum against its own
// category as the reference population.
func momentumScores(staged []model.StagingRepository, asOf time.Time) map[string]float64 {
	populations := make(map[string][]model.StagingRepository)
	for _, s := range staged {
		populations[s.Category] = append(populations[s.Category], s)
	}
	scores := make(map[string]float64, len(staged))
	for _, s := range staged {
		scores[s.FullName] = scoring.Momentum(s, populations[s.Category], asOf)
	}
	return scores
}

func filterByQuality(staged []model.StagingRepository, threshold float64) []model.StagingRepository {
	qualified := staged[:0:0]
	for _, s := range staged {
		if s.DataQualityScore >= threshold {
			qualified = append(qualified, s)
		}
	}
	return qualified
}

func toModelRaw(rows []database.RawRepository) []model.RawRepository {
	raw := make([]model.RawRepository, 0, len(rows))
	for _, row := range rows {
		raw = append(raw, model.RawRepository{
			FullName:     row.RepoFullName,
			URL:          row.RepoUrl,
			Language:     row.Language,
			Description:  row.Description,
			Stars:        int(row.Stars),
			Category:     row.Category,
			CategoryKind: model.CategoryKind(row.CategoryKind),
			CreatedAt:    fromTimestamptz(row.RepoCreatedAt),
			UpdatedAt:    fromTimestamptz(row.RepoUpdatedAt),
			FetchedAt:    row.FetchedAt,
		})
	}
	return raw
}

func categoryNames(failures []model.CategoryFailure) []string {
	if len(failures) == 0 {
		return nil
	}
	names := make([]string, 0, len(failures))
	for _, f := range failures {
		names = append(names, f.Category.Name)
	}
	return names
}

func succeededNames(categories []model.Category, failed []string) []string {
	failedSet := make(map[string]struct{}, len(failed))
	for _, name := range failed {
		failedSet[name] = struct{}{}
	}
	var names []string
	for _, c := range categories {
		if _, ok := failedSet[c.Name]; !ok {
			names = append(names, c.Name)
		}
	}
	return names
}

func toTimestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func fromTimestamptz(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}
	return ts.Time
}
