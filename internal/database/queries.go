// internal/database/queries.go
package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const upsertRawRepository = `
INSERT INTO raw_repositories
    (repo_full_name, repo_url, language, description, stars, category,
     category_kind, repo_created_at, repo_updated_at, fetched_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (repo_full_name) DO UPDATE SET
    repo_url = EXCLUDED.repo_url,
    language = EXCLUDED.language,
    description = EXCLUDED.description,
    stars = EXCLUDED.stars,
    category = EXCLUDED.category,
    category_kind = EXCLUDED.category_kind,
    repo_created_at = EXCLUDED.repo_created_at,
    repo_updated_at = EXCLUDED.repo_updated_at,
    fetched_at = EXCLUDED.fetched_at
`

type UpsertRawRepositoryParams struct {
	RepoFullName  string
	RepoUrl       string
	Language      string
	Description   string
	Stars         int32
	Category      string
	CategoryKind  string
	RepoCreatedAt pgtype.Timestamptz
	RepoUpdatedAt pgtype.Timestamptz
	FetchedAt     time.Time
}

func (q *Queries) UpsertRawRepository(ctx context.Context, arg UpsertRawRepositoryParams) error {
	_, err := q.db.Exec(ctx, upsertRawRepository,
		arg.RepoFullName, arg.RepoUrl, arg.Language, arg.Description,
		arg.Stars, arg.Category, arg.CategoryKind,
		arg.RepoCreatedAt, arg.RepoUpdatedAt, arg.FetchedAt)
	return err
}

const listRawRepositoriesFetchedSince = `
SELECT repo_full_name, repo_url, language, description, stars, category,
       category_kind, repo_created_at, repo_updated_at, fetched_at
FROM raw_repositories
WHERE fetched_at >= $1
ORDER BY repo_full_name
`

func (q *Queries) ListRawRepositoriesFetchedSince(ctx context.Context, fetchedSince time.Time) ([]RawRepository, error) {
	rows, err := q.db.Query(ctx, listRawRepositoriesFetchedSince, fetchedSince)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []RawRepository
	for rows.Next() {
		var r RawRepository
		if err := rows.Scan(
			&r.RepoFullName, &r.RepoUrl, &r.Language, &r.Description,
			&r.Stars, &r.Category, &r.CategoryKind,
			&r.RepoCreatedAt, &r.RepoUpdatedAt, &r.FetchedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const upsertStagingRepository = `
INSERT INTO staging_repositories
    (repo_full_name, repo_url, language, description, stars, category,
     repo_created_at, repo_updated_at, data_quality_score, loaded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
ON CONFLICT (repo_full_name) DO UPDATE SET
    repo_url = EXCLUDED.repo_url,
    language = EXCLUDED.language,
    description = EXCLUDED.description,
    stars = EXCLUDED.stars,
    category = EXCLUDED.category,
    repo_created_at = EXCLUDED.repo_created_at,
    repo_updated_at = EXCLUDED.repo_updated_at,
    data_quality_score = EXCLUDED.data_quality_score,
    loaded_at = NOW()
`

type UpsertStagingRepositoryParams struct {
	RepoFullName     string
	RepoUrl          string
	Language         string
	Description      string
	Stars            int32
	Category         string
	RepoCreatedAt    time.Time
	RepoUpdatedAt    pgtype.Timestamptz
	DataQualityScore float64
}

func (q *Queries) UpsertStagingRepository(ctx context.Context, arg UpsertStagingRepositoryParams) error {
	_, err := q.db.Exec(ctx, upsertStagingRepository,
		arg.RepoFullName, arg.RepoUrl, arg.Language, arg.Description,
		arg.Stars, arg.Category, arg.RepoCreatedAt, arg.RepoUpdatedAt,
		arg.DataQualityScore)
	return err
}

const acquireSnapshotLock = `SELECT pg_advisory_xact_lock($1)`

// AcquireSnapshotLock serializes load transactions for one snapshot date.
// It must be called inside an open transaction; the lock releases on
// commit or rollback.
func (q *Queries) AcquireSnapshotLock(ctx context.Context, lockKey int64) error {
	_, err := q.db.Exec(ctx, acquireSnapshotLock, lockKey)
	return err
}

const getCurrentDimension = `
SELECT repo_key, repo_full_name, repo_url, description, language, category,
       repo_created_at, valid_from, valid_to, is_current
FROM dim_repositories
WHERE repo_full_name = $1 AND is_current
`

func (q *Queries) GetCurrentDimension(ctx context.Context, repoFullName string) (DimRepository, error) {
	row := q.db.QueryRow(ctx, getCurrentDimension, repoFullName)
	var d DimRepository
	err := row.Scan(
		&d.RepoKey, &d.RepoFullName, &d.RepoUrl, &d.Description,
		&d.Language, &d.Category, &d.RepoCreatedAt,
		&d.ValidFrom, &d.ValidTo, &d.IsCurrent,
	)
	return d, err
}

const insertDimension = `
INSERT INTO dim_repositories
    (repo_full_name, repo_url, description, language, category,
     repo_created_at, valid_from, valid_to, is_current)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, TRUE)
RETURNING repo_key
`

type InsertDimensionParams struct {
	RepoFullName  string
	RepoUrl       string
	Description   string
	Language      string
	Category      string
	RepoCreatedAt time.Time
	ValidFrom     time.Time
}

func (q *Queries) InsertDimension(ctx context.Context, arg InsertDimensionParams) (int64, error) {
	row := q.db.QueryRow(ctx, insertDimension,
		arg.RepoFullName, arg.RepoUrl, arg.Description, arg.Language,
		arg.Category, arg.RepoCreatedAt, arg.ValidFrom)
	var repoKey int64
	err := row.Scan(&repoKey)
	return repoKey, err
}

const closeDimension = `
UPDATE dim_repositories
SET valid_to = $2, is_current = FALSE
WHERE repo_key = $1
`

type CloseDimensionParams struct {
	RepoKey int64
	ValidTo time.Time
}

func (q *Queries) CloseDimension(ctx context.Context, arg CloseDimensionParams) error {
	_, err := q.db.Exec(ctx, closeDimension, arg.RepoKey, arg.ValidTo)
	return err
}

const upsertFactSnapshot = `
INSERT INTO fact_repo_snapshots
    (repo_full_name, snapshot_date, stars, momentum_score,
     rank_overall, rank_in_language)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (repo_full_name, snapshot_date) DO UPDATE SET
    stars = EXCLUDED.stars,
    momentum_score = EXCLUDED.momentum_score,
    rank_overall = EXCLUDED.rank_overall,
    rank_in_language = EXCLUDED.rank_in_language
`

type UpsertFactSnapshotParams struct {
	RepoFullName   string
	SnapshotDate   time.Time
	Stars          int32
	MomentumScore  float64
	RankOverall    int32
	RankInLanguage int32
}

func (q *Queries) UpsertFactSnapshot(ctx context.Context, arg UpsertFactSnapshotParams) error {
	_, err := q.db.Exec(ctx, upsertFactSnapshot,
		arg.RepoFullName, arg.SnapshotDate, arg.Stars,
		arg.MomentumScore, arg.RankOverall, arg.RankInLanguage)
	return err
}

const insertPipelineRun = `
INSERT INTO fact_pipeline_runs
    (snapshot_date, duration_seconds, repos_processed,
     categories_succeeded, categories_failed)
VALUES ($1, $2, $3, $4, $5)
`

type InsertPipelineRunParams struct {
	SnapshotDate        time.Time
	DurationSeconds     float64
	ReposProcessed      int32
	CategoriesSucceeded []string
	CategoriesFailed    []string
}

func (q *Queries) InsertPipelineRun(ctx context.Context, arg InsertPipelineRunParams) error {
	// The array columns are NOT NULL; nil slices would encode as SQL NULL.
	if arg.CategoriesSucceeded == nil {
		arg.CategoriesSucceeded = []string{}
	}
	if arg.CategoriesFailed == nil {
		arg.CategoriesFailed = []string{}
	}
	_, err := q.db.Exec(ctx, insertPipelineRun,
		arg.SnapshotDate, arg.DurationSeconds, arg.ReposProcessed,
		arg.CategoriesSucceeded, arg.CategoriesFailed)
	return err
}

const listLeaderboard = `
SELECT repo_full_name, repo_url, description, language, category,
       snapshot_date, stars, momentum_score, rank_overall, rank_in_language
FROM analytics_leaderboard
ORDER BY rank_overall
LIMIT $1
`

func (q *Queries) ListLeaderboard(ctx context.Context, limit int32) ([]LeaderboardRow, error) {
	rows, err := q.db.Query(ctx, listLeaderboard, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLeaderboard(rows)
}

const listLanguageLeaderboard = `
SELECT repo_full_name, repo_url, description, language, category,
       snapshot_date, stars, momentum_score, rank_overall, rank_in_language
FROM analytics_language_leaderboard
WHERE language = $1 AND rank_in_language <= $2
ORDER BY rank_in_language
`

type ListLanguageLeaderboardParams struct {
	Language string
	Limit    int32
}

func (q *Queries) ListLanguageLeaderboard(ctx context.Context, arg ListLanguageLeaderboardParams) ([]LeaderboardRow, error) {
	rows, err := q.db.Query(ctx, listLanguageLeaderboard, arg.Language, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLeaderboard(rows)
}

func scanLeaderboard(rows pgx.Rows) ([]LeaderboardRow, error) {
	var items []LeaderboardRow
	for rows.Next() {
		var r LeaderboardRow
		if err := rows.Scan(
			&r.RepoFullName, &r.RepoUrl, &r.Description, &r.Language,
			&r.Category, &r.SnapshotDate, &r.Stars, &r.MomentumScore,
			&r.RankOverall, &r.RankInLanguage,
		); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
