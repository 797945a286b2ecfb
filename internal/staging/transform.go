// internal/staging/transform.go
package staging

import (
	"sort"
	"time"

	"github-trend-analytics/internal/model"
)

// UnknownLanguage is the sentinel assigned to rows with no usable language.
const UnknownLanguage = "Unknown"

// Data-quality weighting. Completeness counts key fields being present,
// freshness rewards a recent usable update timestamp, consistency deducts
// for contradictory raw values. Each component is bounded to [0,1], so the
// weighted sum is too.
const (
	weightCompleteness = 0.4
	weightFreshness    = 0.3
	weightConsistency  = 0.3
)

// Transform cleans and validates raw rows into staging rows. It is a pure
// function of its input and asOf; persistence is the caller's job.
//
// Rules:
//   - one row per identity, the most recently fetched raw row wins
//   - star counts clamp to >= 0
//   - empty language defaults to UnknownLanguage, empty description to ""
//   - an updated_at earlier than created_at is dropped (unknown freshness)
func Transform(raw []model.RawRepository, asOf time.Time) []model.StagingRepository {
	latest := make(map[string]model.RawRepository, len(raw))
	order := make([]string, 0, len(raw))
	for _, r := range raw {
		if r.FullName == "" {
			continue
		}
		prev, ok := latest[r.FullName]
		if !ok {
			order = append(order, r.FullName)
			latest[r.FullName] = r
			continue
		}
		if r.FetchedAt.After(prev.FetchedAt) {
			latest[r.FullName] = r
		}
	}
	sort.Strings(order)

	staged := make([]model.StagingRepository, 0, len(order))
	for _, name := range order {
		staged = append(staged, transformOne(latest[name], asOf))
	}
	return staged
}

func transformOne(r model.RawRepository, asOf time.Time) model.StagingRepository {
	s := model.StagingRepository{
		FullName:    r.FullName,
		URL:         r.URL,
		Language:    r.Language,
		Description: r.Description,
		Stars:       r.Stars,
		Category:    r.Category,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}

	if s.Stars < 0 {
		s.Stars = 0
	}
	if s.Language == "" {
		s.Language = UnknownLanguage
	}
	if s.Category == "" {
		s.Category = UnknownLanguage
	}
	// Contradictory ordering means the update timestamp cannot be trusted.
	if !s.UpdatedAt.IsZero() && !s.CreatedAt.IsZero() && s.UpdatedAt.Before(s.CreatedAt) {
		s.UpdatedAt = time.Time{}
	}

	s.DataQualityScore = qualityScore(r, s, asOf)
	return s
}

// qualityScore combines completeness, freshness and consistency into [0,1].
// It inspects the raw row for contradictions (the staged row has already
// been repaired) and the staged row for what survived validation.
func qualityScore(raw model.RawRepository, s model.StagingRepository, asOf time.Time) float64 {
	score := weightCompleteness*completeness(s) +
		weightFreshness*freshness(s, asOf) +
		weightConsistency*consistency(raw)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func completeness(s model.StagingRepository) float64 {
	present := 0
	if s.Description != "" {
		present++
	}
	if s.Language != UnknownLanguage {
		present++
	}
	if s.URL != "" {
		present++
	}
	if !s.CreatedAt.IsZero() {
		present++
	}
	return float64(present) / 4.0
}

// freshness follows a step table over days since the last usable update.
func freshness(s model.StagingRepository, asOf time.Time) float64 {
	if s.UpdatedAt.IsZero() {
		return 0.5
	}
	days := int(asOf.Sub(s.UpdatedAt).Hours() / 24)
	switch {
	case days <= 1:
		return 1.0
	case days <= 7:
		return 0.9
	case days <= 30:
		return 0.7
	case days <= 90:
		return 0.5
	default:
		return 0.3
	}
}

func consistency(raw model.RawRepository) float64 {
	score := 1.0
	if raw.Stars < 0 {
		score -= 0.3
	}
	if !raw.UpdatedAt.IsZero() && !raw.CreatedAt.IsZero() && raw.UpdatedAt.Before(raw.CreatedAt) {
		score -= 0.2
	}
	if raw.Language == "" {
		score -= 0.1
	}
	if score < 0 {
		return 0
	}
	return score
}
