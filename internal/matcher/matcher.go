// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package matcher ranks candidate media identities for an analyzed item
// against the local catalog and the metadata provider.
package matcher

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/importarr/internal/metadata"
	"github.com/autobrr/importarr/internal/models"
	"github.com/autobrr/importarr/pkg/stringutils"
)

// Confidence orders candidates: an exact title+year hit outranks an exact
// title with an adjacent year, which outranks a fuzzy title hit.
type Confidence string

const (
	ConfidenceExact        Confidence = "exact"
	ConfidenceYearAdjacent Confidence = "year_adjacent"
	ConfidenceFuzzy        Confidence = "fuzzy"
)

func (c Confidence) rank() int {
	switch c {
	case ConfidenceExact:
		return 0
	case ConfidenceYearAdjacent:
		return 1
	default:
		return 2
	}
}

// Match is one ranked candidate. MediaID is set when the candidate already
// exists in the catalog; provider-only candidates carry just the external id.
type Match struct {
	MediaID    *int64          `json:"mediaId,omitempty"`
	Provider   string          `json:"provider,omitempty"`
	ExternalID string          `json:"externalId,omitempty"`
	Title      string          `json:"title"`
	Year       int             `json:"year,omitempty"`
	MetaType   models.MetaType `json:"metaType"`
	Poster     string          `json:"poster,omitempty"`
	Confidence Confidence      `json:"confidence"`
	Popularity float64         `json:"popularity,omitempty"`
	Rating     float64         `json:"rating,omitempty"`
	Genres     []string        `json:"genres,omitempty"`
	Cast       []string        `json:"cast,omitempty"`

	catalogedAt time.Time
}

// Service matches parsed titles against the catalog and provider.
type Service struct {
	catalog  *models.CatalogStore
	provider *metadata.Client
}

// NewService creates a matcher over the given catalog store and provider
// client.
func NewService(catalog *models.CatalogStore, provider *metadata.Client) *Service {
	return &Service{catalog: catalog, provider: provider}
}

// Match returns ranked candidates for a parsed title. Exact (title, year)
// hits rank first, then exact title with year within one, then fuzzy title
// hits. Ties break on popularity, then most recently catalogued. An empty
// result means the caller falls back to manual import.
//
// The matcher never selects for the caller; see AutoSelect for the one
// zero-ambiguity shortcut.
func (s *Service) Match(ctx context.Context, title string, year int, metaType models.MetaType) ([]Match, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil
	}

	candidates, err := s.gather(ctx, title, year, metaType)
	if err != nil {
		return nil, err
	}

	normalized := stringutils.NormalizeForMatching(title)
	var matches []Match
	for _, c := range candidates {
		c.Confidence = classify(normalized, year, c)
		if c.Confidence == "" {
			continue
		}
		matches = append(matches, c)
	}

	// Exact hits suppress the fuzzy tail; fuzzy candidates only surface when
	// nothing matched exactly.
	if hasExact(matches) {
		matches = filterExact(matches)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Confidence.rank() != b.Confidence.rank() {
			return a.Confidence.rank() < b.Confidence.rank()
		}
		if a.Popularity != b.Popularity {
			return a.Popularity > b.Popularity
		}
		return a.catalogedAt.After(b.catalogedAt)
	})

	log.Debug().
		Str("title", title).
		Int("year", year).
		Int("candidates", len(candidates)).
		Int("matches", len(matches)).
		Msg("Matched title")

	return matches, nil
}

// AutoSelect applies the strict zero-ambiguity auto-accept rule: exactly one
// exact match and no force override in play. Everything else returns nil and
// selection stays with the human.
func AutoSelect(matches []Match, forceImport bool) *Match {
	if forceImport {
		return nil
	}
	exact := filterExact(matches)
	if len(exact) == 1 && exact[0].Confidence == ConfidenceExact {
		return &exact[0]
	}
	return nil
}

// gather pulls the candidate pool from the catalog and, when configured, the
// metadata provider. Provider-only candidates are deduplicated against
// catalog rows by external id.
func (s *Service) gather(ctx context.Context, title string, year int, metaType models.MetaType) ([]Match, error) {
	var candidates []Match
	seen := map[string]bool{}

	catalogRows, err := s.catalog.SearchMedia(ctx, searchStem(title), metaType, 50)
	if err != nil {
		return nil, err
	}
	for _, m := range catalogRows {
		id := m.ID
		candidates = append(candidates, Match{
			MediaID:     &id,
			Provider:    m.Provider,
			ExternalID:  m.ExternalID,
			Title:       m.Title,
			Year:        m.Year,
			MetaType:    m.MetaType,
			Poster:      m.Poster,
			Popularity:  m.Popularity,
			catalogedAt: m.CreatedAt,
		})
		if m.ExternalID != "" {
			seen[m.Provider+":"+m.ExternalID] = true
		}
	}

	if s.provider != nil && s.provider.Enabled() {
		results, err := s.provider.Search(ctx, title, year, metaType)
		if err != nil {
			// The provider being down degrades matching to catalog-only; it
			// does not fail the pipeline.
			log.Warn().Err(err).Str("title", title).Msg("Metadata provider lookup failed")
		}
		for _, r := range results {
			if seen[r.Provider+":"+r.ExternalID] {
				continue
			}
			candidates = append(candidates, Match{
				Provider:   r.Provider,
				ExternalID: r.ExternalID,
				Title:      r.Title,
				Year:       r.Year,
				MetaType:   r.MetaType,
				Poster:     r.Poster,
				Popularity: r.Popularity,
				Rating:     r.Rating,
				Genres:     r.Genres,
				Cast:       r.Cast,
			})
		}
	}

	return candidates, nil
}

// classify assigns a confidence, or "" when the candidate is no match at all.
func classify(normalizedTitle string, year int, c Match) Confidence {
	candidate := stringutils.NormalizeForMatching(c.Title)
	if candidate == normalizedTitle {
		if year > 0 && c.Year > 0 {
			diff := year - c.Year
			if diff == 0 {
				return ConfidenceExact
			}
			if diff >= -1 && diff <= 1 {
				return ConfidenceYearAdjacent
			}
			return ConfidenceFuzzy
		}
		return ConfidenceExact
	}

	if fuzzy.MatchNormalizedFold(normalizedTitle, candidate) ||
		fuzzy.MatchNormalizedFold(candidate, normalizedTitle) {
		return ConfidenceFuzzy
	}
	return ""
}

func hasExact(matches []Match) bool {
	for _, m := range matches {
		if m.Confidence != ConfidenceFuzzy {
			return true
		}
	}
	return false
}

func filterExact(matches []Match) []Match {
	var exact []Match
	for _, m := range matches {
		if m.Confidence != ConfidenceFuzzy {
			exact = append(exact, m)
		}
	}
	return exact
}

// searchStem widens the catalog LIKE query: the longest word of the title
// still hits when punctuation or subtitle differences defeat a full-title
// substring match.
func searchStem(title string) string {
	words := strings.Fields(stringutils.NormalizeForMatching(title))
	if len(words) == 0 {
		return title
	}
	longest := words[0]
	for _, w := range words[1:] {
		if len(w) > len(longest) {
			longest = w
		}
	}
	return longest
}
