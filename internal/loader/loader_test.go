// internal/loader/loader_test.go
package loader

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github-trend-analytics/internal/database"
	"github-trend-analytics/internal/model"
)

// MockQuerier is a mock of the database.Querier interface.
type MockQuerier struct {
	mock.Mock
}

func (m *MockQuerier) UpsertRawRepository(ctx context.Context, arg database.UpsertRawRepositoryParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}
func (m *MockQuerier) ListRawRepositoriesFetchedSince(ctx context.Context, fetchedSince time.Time) ([]database.RawRepository, error) {
	args := m.Called(ctx, fetchedSince)
	return args.Get(0).([]database.RawRepository), args.Error(1)
}
func (m *MockQuerier) UpsertStagingRepository(ctx context.Context, arg database.UpsertStagingRepositoryParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}
func (m *MockQuerier) AcquireSnapshotLock(ctx context.Context, lockKey int64) error {
	args := m.Called(ctx, lockKey)
	return args.Error(0)
}
func (m *MockQuerier) GetCurrentDimension(ctx context.Context, repoFullName string) (database.DimRepository, error) {
	args := m.Called(ctx, repoFullName)
	return args.Get(0).(database.DimRepository), args.Error(1)
}
func (m *MockQuerier) InsertDimension(ctx context.Context, arg database.InsertDimensionParams) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockQuerier) CloseDimension(ctx context.Context, arg database.CloseDimensionParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}
func (m *MockQuerier) UpsertFactSnapshot(ctx context.Context, arg database.UpsertFactSnapshotParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}
func (m *MockQuerier) InsertPipelineRun(ctx context.Context, arg database.InsertPipelineRunParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}
func (m *MockQuerier) ListLeaderboard(ctx context.Context, limit int32) ([]database.LeaderboardRow, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]database.LeaderboardRow), args.Error(1)
}
func (m *MockQuerier) ListLanguageLeaderboard(ctx context.Context, arg database.ListLanguageLeaderboardParams) ([]database.LeaderboardRow, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).([]database.LeaderboardRow), args.Error(1)
}

var snapshotDate = time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

func testLoader() *Loader {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return &Loader{logger: logger}
}

func stagedRepo(fullName, description string) model.StagingRepository {
	return model.StagingRepository{
		FullName:    fullName,
		URL:         "https://github.com/" + fullName,
		Language:    "Go",
		Description: description,
		Stars:       100,
		Category:    "Go",
		CreatedAt:   snapshotDate.AddDate(0, 0, -10),
	}
}

func currentDim(repoKey int64, s model.StagingRepository) database.DimRepository {
	return database.DimRepository{
		RepoKey:      repoKey,
		RepoFullName: s.FullName,
		RepoUrl:      s.URL,
		Description:  s.Description,
		Language:     s.Language,
		Category:     s.Category,
		IsCurrent:    true,
	}
}

func TestLoader_UpsertDimension(t *testing.T) {
	ctx := context.Background()
	l := testLoader()

	t.Run("first sighting inserts a current row", func(t *testing.T) {
		mockQ := new(MockQuerier)
		s := stagedRepo("acme/widget", "a widget")

		mockQ.On("GetCurrentDimension", ctx, "acme/widget").Return(database.DimRepository{}, pgx.ErrNoRows).Once()
		mockQ.On("InsertDimension", ctx, mock.MatchedBy(func(arg database.InsertDimensionParams) bool {
			return arg.RepoFullName == "acme/widget" && arg.ValidFrom.Equal(snapshotDate)
		})).Return(int64(1), nil).Once()

		inserted, updated, err := l.upsertDimension(ctx, mockQ, s, snapshotDate)

		require.NoError(t, err)
		assert.True(t, inserted)
		assert.False(t, updated)
		mockQ.AssertExpectations(t)
	})

	t.Run("changed description closes old version and inserts new", func(t *testing.T) {
		mockQ := new(MockQuerier)
		old := stagedRepo("acme/widget", "old")
		updatedRepo := stagedRepo("acme/widget", "new")

		mockQ.On("GetCurrentDimension", ctx, "acme/widget").Return(currentDim(7, old), nil).Once()
		mockQ.On("CloseDimension", ctx, database.CloseDimensionParams{RepoKey: 7, ValidTo: snapshotDate}).Return(nil).Once()
		mockQ.On("InsertDimension", ctx, mock.MatchedBy(func(arg database.InsertDimensionParams) bool {
			return arg.Description == "new"
		})).Return(int64(8), nil).Once()

		inserted, updatedFlag, err := l.upsertDimension(ctx, mockQ, updatedRepo, snapshotDate)

		require.NoError(t, err)
		assert.False(t, inserted)
		assert.True(t, updatedFlag)
		mockQ.AssertExpectations(t)
	})

	t.Run("unchanged attributes write nothing", func(t *testing.T) {
		mockQ := new(MockQuerier)
		s := stagedRepo("acme/widget", "same")

		mockQ.On("GetCurrentDimension", ctx, "acme/widget").Return(currentDim(7, s), nil).Once()

		inserted, updated, err := l.upsertDimension(ctx, mockQ, s, snapshotDate)

		require.NoError(t, err)
		assert.False(t, inserted)
		assert.False(t, updated)
		mockQ.AssertExpectations(t)
		mockQ.AssertNotCalled(t, "CloseDimension")
		mockQ.AssertNotCalled(t, "InsertDimension")
	})

	t.Run("returns an error if dimension lookup fails unexpectedly", func(t *testing.T) {
		mockQ := new(MockQuerier)
		dbErr := errors.New("unexpected database error")

		mockQ.On("GetCurrentDimension", ctx, "acme/widget").Return(database.DimRepository{}, dbErr).Once()

		_, _, err := l.upsertDimension(ctx, mockQ, stagedRepo("acme/widget", "x"), snapshotDate)

		assert.ErrorIs(t, err, dbErr)
		mockQ.AssertNotCalled(t, "InsertDimension")
		mockQ.AssertNotCalled(t, "CloseDimension")
	})
}

func TestLoader_LoadTx(t *testing.T) {
	ctx := context.Background()
	l := testLoader()

	newRepo := func(fullName string, stars int) model.StagingRepository {
		s := stagedRepo(fullName, "desc")
		s.Stars = stars
		return s
	}

	t.Run("takes the snapshot lock, versions dimensions and writes ranked facts", func(t *testing.T) {
		mockQ := new(MockQuerier)
		staged := []model.StagingRepository{
			newRepo("a/low", 10),
			newRepo("a/high", 50),
		}
		scores := map[string]float64{"a/low": 0.2, "a/high": 0.9}

		mockQ.On("AcquireSnapshotLock", ctx, snapshotLockKey(snapshotDate)).Return(nil).Once()
		mockQ.On("GetCurrentDimension", ctx, mock.Anything).Return(database.DimRepository{}, pgx.ErrNoRows).Twice()
		mockQ.On("InsertDimension", ctx, mock.Anything).Return(int64(1), nil).Twice()
		mockQ.On("UpsertFactSnapshot", ctx, mock.MatchedBy(func(arg database.UpsertFactSnapshotParams) bool {
			return arg.RepoFullName == "a/high" && arg.RankOverall == 1 && arg.RankInLanguage == 1
		})).Return(nil).Once()
		mockQ.On("UpsertFactSnapshot", ctx, mock.MatchedBy(func(arg database.UpsertFactSnapshotParams) bool {
			return arg.RepoFullName == "a/low" && arg.RankOverall == 2 && arg.RankInLanguage == 2
		})).Return(nil).Once()

		result, err := l.loadTx(ctx, mockQ, staged, scores, snapshotDate)

		require.NoError(t, err)
		assert.Equal(t, 2, result.DimensionInserts)
		assert.Equal(t, 0, result.DimensionUpdates)
		assert.Equal(t, 2, result.FactRows)
		mockQ.AssertExpectations(t)
	})

	t.Run("fact write failure aborts the whole load", func(t *testing.T) {
		mockQ := new(MockQuerier)
		staged := []model.StagingRepository{newRepo("a/one", 10)}
		dbErr := errors.New("disk full")

		mockQ.On("AcquireSnapshotLock", ctx, mock.Anything).Return(nil).Once()
		mockQ.On("GetCurrentDimension", ctx, mock.Anything).Return(database.DimRepository{}, pgx.ErrNoRows).Once()
		mockQ.On("InsertDimension", ctx, mock.Anything).Return(int64(1), nil).Once()
		mockQ.On("UpsertFactSnapshot", ctx, mock.Anything).Return(dbErr).Once()

		_, err := l.loadTx(ctx, mockQ, staged, map[string]float64{"a/one": 0.5}, snapshotDate)

		assert.ErrorIs(t, err, dbErr)
	})

	t.Run("lock failure aborts before any write", func(t *testing.T) {
		mockQ := new(MockQuerier)
		lockErr := errors.New("lock timeout")

		mockQ.On("AcquireSnapshotLock", ctx, mock.Anything).Return(lockErr).Once()

		_, err := l.loadTx(ctx, mockQ, []model.StagingRepository{newRepo("a/one", 1)}, nil, snapshotDate)

		assert.ErrorIs(t, err, lockErr)
		mockQ.AssertNotCalled(t, "GetCurrentDimension")
		mockQ.AssertNotCalled(t, "UpsertFactSnapshot")
	})

	t.Run("empty staged set is a no-op load", func(t *testing.T) {
		mockQ := new(MockQuerier)
		mockQ.On("AcquireSnapshotLock", ctx, mock.Anything).Return(nil).Once()

		result, err := l.loadTx(ctx, mockQ, nil, nil, snapshotDate)

		require.NoError(t, err)
		assert.Zero(t, result.FactRows)
	})
}

func TestSnapshotLockKey_StablePerDate(t *testing.T) {
	sameDay := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, snapshotLockKey(snapshotDate), snapshotLockKey(sameDay))
	assert.NotEqual(t, snapshotLockKey(snapshotDate), snapshotLockKey(snapshotDate.AddDate(0, 0, 1)))
}
