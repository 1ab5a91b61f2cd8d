// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package importer

import (
	"context"
	"fmt"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/autobrr/importarr/internal/analysis"
	"github.com/autobrr/importarr/internal/matcher"
	"github.com/autobrr/importarr/internal/models"
	"github.com/autobrr/importarr/pkg/stringutils"
)

// Policy holds the tunable validation thresholds.
type Policy struct {
	// TitleSimilarityThreshold is the minimum normalized similarity between
	// the parsed title and the matched metadata title, 0..1.
	TitleSimilarityThreshold float64
	// MaxFileCount flags sources with implausibly many files.
	MaxFileCount int
	// MinFileSize flags video files with implausibly small sizes, in bytes.
	// Stream-URL sources have no size and are exempt.
	MinFileSize int64
}

// DefaultPolicy returns the thresholds used when the config does not set any.
func DefaultPolicy() Policy {
	return Policy{
		TitleSimilarityThreshold: 0.5,
		MaxFileCount:             500,
		MinFileSize:              1 << 20,
	}
}

// Validate applies the policy rules in order. The returned outcome is nil
// when the item may proceed to commit.
//
// Rule order: the duplicate check is terminal and not overridable; the
// annotation check branches to more input rather than failing; the soft
// checks produce one entry per violated rule. forceImport waives only the
// violations the client echoes back in acknowledged. Every rule is a pure
// function of its inputs, so an identical payload reproduces identical
// errors; a changed payload produces violations outside the acknowledged
// set and fails validation again.
func (s *Service) Validate(ctx context.Context, item *analysis.Item, match *matcher.Match, forceImport bool, acknowledged []ValidationError) (*Outcome, error) {
	existing, err := s.catalog.FindStreamByContentID(ctx, item.ContentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &Outcome{
			Status:    StatusError,
			ContentID: item.ContentID,
			Message:   "content already imported",
			Errors: []ValidationError{{
				Type:    ErrTypeDuplicateContent,
				Message: fmt.Sprintf("content identity %s is already in the catalog", item.ContentID),
			}},
		}, nil
	}

	if needsAnnotation(item) {
		return &Outcome{
			Status:    StatusNeedsAnnotation,
			ContentID: item.ContentID,
			Message:   "season/episode assignment required",
			Files:     item.Files,
		}, nil
	}

	violations := s.softChecks(item, match)
	if forceImport {
		violations = unacknowledged(violations, acknowledged)
	}
	if len(violations) > 0 {
		return &Outcome{
			Status:    StatusValidationFailed,
			ContentID: item.ContentID,
			Message:   "validation failed",
			Errors:    violations,
			Files:     item.Files,
		}, nil
	}

	return nil, nil
}

// unacknowledged returns the violations not covered by the client's echoed
// error set. Matching is exact on type and message.
func unacknowledged(violations, acknowledged []ValidationError) []ValidationError {
	var remaining []ValidationError
	for _, v := range violations {
		seen := false
		for _, a := range acknowledged {
			if a == v {
				seen = true
				break
			}
		}
		if !seen {
			remaining = append(remaining, v)
		}
	}
	return remaining
}

// needsAnnotation reports whether a series source still has included files
// without season/episode markers. A nil file list means the files are not
// known yet (unresolved magnet), which never demands annotation.
func needsAnnotation(item *analysis.Item) bool {
	if item.MetaType != models.MetaTypeSeries || item.Files == nil {
		return false
	}
	for _, f := range item.Files {
		if f.Included && (f.Season == nil || f.Episode == nil) {
			return true
		}
	}
	return false
}

// softChecks runs the overridable policy rules.
func (s *Service) softChecks(item *analysis.Item, match *matcher.Match) []ValidationError {
	var violations []ValidationError

	if match != nil && item.Title != "" {
		similarity := titleSimilarity(item.Title, match.Title)
		if similarity < s.policy.TitleSimilarityThreshold {
			violations = append(violations, ValidationError{
				Type: ErrTypeTitleMismatch,
				Message: fmt.Sprintf("parsed title %q is dissimilar to matched title %q (similarity %.2f)",
					item.Title, match.Title, similarity),
			})
		}
	}

	included := item.IncludedFiles()
	if s.policy.MaxFileCount > 0 && len(included) > s.policy.MaxFileCount {
		violations = append(violations, ValidationError{
			Type:    ErrTypeSuspiciousFileCount,
			Message: fmt.Sprintf("source contains %d files, more than the %d allowed", len(included), s.policy.MaxFileCount),
		})
	}

	if s.policy.MinFileSize > 0 && item.StreamURL == "" {
		for _, f := range included {
			if f.Size > 0 && f.Size < s.policy.MinFileSize {
				violations = append(violations, ValidationError{
					Type:    ErrTypeSuspiciousSize,
					Message: fmt.Sprintf("file %q is only %d bytes", f.Name, f.Size),
				})
				break
			}
		}
	}

	return violations
}

// titleSimilarity computes a normalized edit-distance ratio between two
// titles after matching normalization, 1 meaning identical.
func titleSimilarity(a, b string) float64 {
	na := stringutils.NormalizeForMatching(a)
	nb := stringutils.NormalizeForMatching(b)
	if na == nb {
		return 1
	}
	longest := max(len(na), len(nb))
	if longest == 0 {
		return 1
	}
	distance := fuzzy.LevenshteinDistance(na, nb)
	return 1 - float64(distance)/float64(longest)
}
