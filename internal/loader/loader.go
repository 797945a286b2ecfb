// internal/loader/loader.go
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github-trend-analytics/internal/database"
	"github-trend-analytics/internal/model"
	"github-trend-analytics/internal/scoring"
)

// Namespace for the per-snapshot-date advisory lock, so the key space does
// not collide with other advisory lock users on the same database.
const lockNamespace int64 = 0x7472656e64 // "trend"

// Loader writes one run's dimension versions and fact snapshots in a single
// transaction, serialized per snapshot date.
type Loader struct {
	dbpool *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Loader backed by the given pool.
func New(dbpool *pgxpool.Pool, logger *slog.Logger) *Loader {
	return &Loader{dbpool: dbpool, logger: logger}
}

// Load upserts the repository dimension (SCD Type 2) and the dated fact
// snapshot for every staged repository. Either every write commits or none
// does; a mid-load failure leaves no partial state.
func (l *Loader) Load(ctx context.Context, staged []model.StagingRepository, scores map[string]float64, snapshotDate time.Time) (model.LoadResult, error) {
	tx, err := l.dbpool.Begin(ctx)
	if err != nil {
		return model.LoadResult{}, fmt.Errorf("begin load transaction: %w", err)
	}
	defer tx.Rollback(ctx) // Rollback is a no-op if the transaction is already committed.

	qtx := database.New(tx)
	result, err := l.loadTx(ctx, qtx, staged, scores, snapshotDate)
	if err != nil {
		return model.LoadResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.LoadResult{}, fmt.Errorf("commit load transaction: %w", err)
	}
	return result, nil
}

// loadTx runs the load against an open transaction. Overlapping runs for
// the same snapshot date queue up on the advisory lock, so dimension closes
// and inserts never interleave.
func (l *Loader) loadTx(ctx context.Context, q database.Querier, staged []model.StagingRepository, scores map[string]float64, snapshotDate time.Time) (model.LoadResult, error) {
	if err := q.AcquireSnapshotLock(ctx, snapshotLockKey(snapshotDate)); err != nil {
		return model.LoadResult{}, fmt.Errorf("acquire snapshot lock: %w", err)
	}

	var result model.LoadResult
	for _, s := range staged {
		inserted, updated, err := l.upsertDimension(ctx, q, s, snapshotDate)
		if err != nil {
			return model.LoadResult{}, fmt.Errorf("dimension upsert for %s: %w", s.FullName, err)
		}
		if inserted {
			result.DimensionInserts++
		}
		if updated {
			result.DimensionUpdates++
		}
	}

	overall, perCategory := ranks(staged, scores)
	for _, s := range staged {
		err := q.UpsertFactSnapshot(ctx, database.UpsertFactSnapshotParams{
			RepoFullName:   s.FullName,
			SnapshotDate:   snapshotDate,
			Stars:          int32(s.Stars),
			MomentumScore:  scores[s.FullName],
			RankOverall:    int32(overall[s.FullName]),
			RankInLanguage: int32(perCategory[s.FullName]),
		})
		if err != nil {
			return model.LoadResult{}, fmt.Errorf("fact upsert for %s: %w", s.FullName, err)
		}
		result.FactRows++
	}

	return result, nil
}

// upsertDimension applies SCD Type 2 semantics for one repository:
// first sighting inserts a current row; a change in a tracked attribute
// closes the old version and inserts a new one; no change writes nothing.
func (l *Loader) upsertDimension(ctx context.Context, q database.Querier, s model.StagingRepository, snapshotDate time.Time) (inserted, updated bool, err error) {
	current, err := q.GetCurrentDimension(ctx, s.FullName)
	if errors.Is(err, pgx.ErrNoRows) {
		_, err := q.InsertDimension(ctx, insertParams(s, snapshotDate))
		if err != nil {
			return false, false, err
		}
		return true, false, nil
	}
	if err != nil {
		return false, false, err
	}

	if !trackedAttributesChanged(current, s) {
		return false, false, nil
	}

	l.logger.Debug("Tracked attributes changed, versioning dimension row",
		"repo", s.FullName, "repo_key", current.RepoKey)

	if err := q.CloseDimension(ctx, database.CloseDimensionParams{
		RepoKey: current.RepoKey,
		ValidTo: snapshotDate,
	}); err != nil {
		return false, false, err
	}
	if _, err := q.InsertDimension(ctx, insertParams(s, snapshotDate)); err != nil {
		return false, false, err
	}
	return false, true, nil
}

func insertParams(s model.StagingRepository, validFrom time.Time) database.InsertDimensionParams {
	return database.InsertDimensionParams{
		RepoFullName:  s.FullName,
		RepoUrl:       s.URL,
		Description:   s.Description,
		Language:      s.Language,
		Category:      s.Category,
		RepoCreatedAt: s.CreatedAt,
		ValidFrom:     validFrom,
	}
}

func trackedAttributesChanged(current database.DimRepository, s model.StagingRepository) bool {
	return current.Description != s.Description ||
		current.Language != s.Language ||
		current.Category != s.Category ||
		current.RepoUrl != s.URL
}

func ranks(staged []model.StagingRepository, scores map[string]float64) (map[string]int, map[string]int) {
	entries := make([]scoring.Entry, 0, len(staged))
	for _, s := range staged {
		entries = append(entries, scoring.Entry{
			FullName: s.FullName,
			Category: s.Category,
			Stars:    s.Stars,
			Score:    scores[s.FullName],
		})
	}
	return scoring.Ranks(entries)
}

// snapshotLockKey maps a snapshot date to a stable advisory lock key.
func snapshotLockKey(snapshotDate time.Time) int64 {
	days := snapshotDate.UTC().Unix() / 86400
	return lockNamespace<<16 ^ days
}
