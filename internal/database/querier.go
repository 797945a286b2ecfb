// internal/database/querier.go
package database

import (
	"context"
	"time"
)

// Querier is the query surface of the three-layer store. Loader and API
// depend on this interface so tests can substitute a mock.
type Querier interface {
	UpsertRawRepository(ctx context.Context, arg UpsertRawRepositoryParams) error
	ListRawRepositoriesFetchedSince(ctx context.Context, fetchedSince time.Time) ([]RawRepository, error)
	UpsertStagingRepository(ctx context.Context, arg UpsertStagingRepositoryParams) error
	AcquireSnapshotLock(ctx context.Context, lockKey int64) error
	GetCurrentDimension(ctx context.Context, repoFullName string) (DimRepository, error)
	InsertDimension(ctx context.Context, arg InsertDimensionParams) (int64, error)
	CloseDimension(ctx context.Context, arg CloseDimensionParams) error
	UpsertFactSnapshot(ctx context.Context, arg UpsertFactSnapshotParams) error
	InsertPipelineRun(ctx context.Context, arg InsertPipelineRunParams) error
	ListLeaderboard(ctx context.Context, limit int32) ([]LeaderboardRow, error)
	ListLanguageLeaderboard(ctx context.Context, arg ListLanguageLeaderboardParams) ([]LeaderboardRow, error)
}

var _ Querier = (*Queries)(nil)
