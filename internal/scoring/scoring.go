// internal/scoring/scoring.go
//
// Pure momentum scoring and ranking. No I/O, no mutation of inputs, so the
// whole package is testable without a database.
package scoring

import (
	"sort"
	"time"

	"github-trend-analytics/internal/model"
)

// Momentum combines a population-relative star measure with a recency
// measure. The weights are product constants, not tunables.
const (
	WeightStars   = 0.5
	WeightRecency = 0.5
)

// Recency step function over age since creation, in days. Repositories
// older than recencyFarDays earn no recency credit at all.
const (
	recencyNearDays = 30
	recencyMidDays  = 60
	recencyFarDays  = 90
)

// Momentum computes the momentum score for one staged repository against
// its reference population (the staged repositories sharing its category).
// The result is always finite and within [0,1].
func Momentum(repo model.StagingRepository, population []model.StagingRepository, asOf time.Time) float64 {
	return WeightStars*starComponent(repo.Stars, population) +
		WeightRecency*recencyComponent(repo.CreatedAt, asOf)
}

// starComponent normalizes a star count against the maximum star count in
// the reference population. A single-entry population scores 1.0 so that a
// lone ecosystem repo is not punished for having no peers; an all-zero
// population scores 0 rather than dividing by zero.
func starComponent(stars int, population []model.StagingRepository) float64 {
	if len(population) <= 1 {
		return 1.0
	}
	maxStars := 0
	for _, p := range population {
		if p.Stars > maxStars {
			maxStars = p.Stars
		}
	}
	if maxStars == 0 {
		return 0
	}
	c := float64(stars) / float64(maxStars)
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// recencyComponent steps down with repository age. Negative ages (clock
// skew, bad creation timestamps) land in the newest bucket; a missing
// creation timestamp earns nothing.
func recencyComponent(createdAt time.Time, asOf time.Time) float64 {
	if createdAt.IsZero() {
		return 0
	}
	ageDays := int(asOf.Sub(createdAt).Hours() / 24)
	switch {
	case ageDays <= recencyNearDays:
		return 1.0
	case ageDays <= recencyMidDays:
		return 0.75
	case ageDays <= recencyFarDays:
		return 0.5
	default:
		return 0
	}
}

// Entry is one ranking candidate.
type Entry struct {
	FullName string
	Category string
	Stars    int
	Score    float64
}

// Ranks assigns rank_overall across all entries and rank_in_language within
// each category. Ordering is momentum score descending, ties broken by
// higher star count, then by identity ascending, which makes both rankings
// total and fully deterministic: overall ranks are a permutation of 1..N.
func Ranks(entries []Entry) (overall map[string]int, perCategory map[string]int) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		if sorted[i].Stars != sorted[j].Stars {
			return sorted[i].Stars > sorted[j].Stars
		}
		return sorted[i].FullName < sorted[j].FullName
	})

	overall = make(map[string]int, len(sorted))
	perCategory = make(map[string]int, len(sorted))
	nextInCategory := make(map[string]int)
	for i, e := range sorted {
		overall[e.FullName] = i + 1
		nextInCategory[e.Category]++
		perCategory[e.FullName] = nextInCategory[e.Category]
	}
	return overall, perCategory
}
