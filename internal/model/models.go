// internal/model/models.go
package model

import (
	"time"
)

// CategoryKind distinguishes language-based fetch partitions from the
// special ecosystem grouping.
type CategoryKind string

const (
	CategoryKindLanguage  CategoryKind = "language"
	CategoryKindEcosystem CategoryKind = "ecosystem"
)

// Category is a single fetch partition: one target language, or the
// ecosystem topic.
type Category struct {
	Name string
	Kind CategoryKind
}

// CategoryFailure records a category whose collection failed entirely.
type CategoryFailure struct {
	Category Category
	Err      error
}

// RepositoryRecord is the normalized shape of a freshly fetched repository,
// produced by the collector on every run. Identity is FullName ("owner/name").
type RepositoryRecord struct {
	FullName     string
	URL          string
	Language     string
	Description  string
	Stars        int
	Category     string
	CategoryKind CategoryKind
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RawRepository is a raw-layer row: the most recent fetched payload for one
// repository, stored exactly as seen. No validation has been applied.
type RawRepository struct {
	FullName     string
	URL          string
	Language     string
	Description  string
	Stars        int
	Category     string
	CategoryKind CategoryKind
	CreatedAt    time.Time
	UpdatedAt    time.Time
	FetchedAt    time.Time
}

// StagingRepository is a validated, defaulted staging-layer row. Every field
// has a defined value; UpdatedAt is the zero time when freshness is unknown.
type StagingRepository struct {
	FullName         string
	URL              string
	Language         string
	Description      string
	Stars            int
	Category         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DataQualityScore float64
}

// LoadResult summarizes one dimensional load.
type LoadResult struct {
	DimensionInserts int
	DimensionUpdates int
	FactRows         int
}

// PipelineResult is returned to the external trigger for every run.
type PipelineResult struct {
	SnapshotDate          time.Time
	SucceededCategories   []string
	FailedCategories      []string
	RepositoriesProcessed int
	Duration              time.Duration
}
