// internal/database/models.go
package database

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// RawRepository mirrors the raw_repositories table: the last-seen payload
// per repository, stored unvalidated.
type RawRepository struct {
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

// StagingRepository mirrors the staging_repositories table.
type StagingRepository struct {
	RepoFullName     string
	RepoUrl          string
	Language         string
	Description      string
	Stars            int32
	Category         string
	RepoCreatedAt    time.Time
	RepoUpdatedAt    pgtype.Timestamptz
	DataQualityScore float64
	LoadedAt         time.Time
}

// DimRepository mirrors dim_repositories, the SCD Type 2 dimension.
type DimRepository struct {
	RepoKey       int64
	RepoFullName  string
	RepoUrl       string
	Description   string
	Language      string
	Category      string
	RepoCreatedAt time.Time
	ValidFrom     time.Time
	ValidTo       pgtype.Timestamptz
	IsCurrent     bool
}

// FactSnapshot mirrors fact_repo_snapshots, one row per repo per date.
type FactSnapshot struct {
	RepoFullName   string
	SnapshotDate   time.Time
	Stars          int32
	MomentumScore  float64
	RankOverall    int32
	RankInLanguage int32
	CreatedAt      time.Time
}

// LeaderboardRow is the shape of the analytics views the dashboard reads.
type LeaderboardRow struct {
	RepoFullName   string    `json:"repo_full_name"`
	RepoUrl        string    `json:"repo_url"`
	Description    string    `json:"description"`
	Language       string    `json:"language"`
	Category       string    `json:"category"`
	SnapshotDate   time.Time `json:"snapshot_date"`
	Stars          int32     `json:"stars"`
	MomentumScore  float64   `json:"momentum_score"`
	RankOverall    int32     `json:"rank_overall"`
	RankInLanguage int32     `json:"rank_in_language"`
}
