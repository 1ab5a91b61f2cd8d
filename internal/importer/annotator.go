// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package importer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/autobrr/importarr/internal/analysis"
	"github.com/autobrr/importarr/pkg/stringutils"
)

// AnnotationMode selects how a multi-season distribution assigns episodes.
type AnnotationMode string

const (
	// AnnotationModeAuto splits the included files evenly across the listed
	// seasons in filename order.
	AnnotationModeAuto AnnotationMode = "auto"
	// AnnotationModeManual assigns a fixed episode count per season,
	// sequentially.
	AnnotationModeManual AnnotationMode = "manual"
)

// FileOverride is an explicit per-file annotation. It always wins over bulk
// and distribution assignment for its file.
type FileOverride struct {
	Index      int   `json:"index"`
	Season     *int  `json:"season,omitempty"`
	Episode    *int  `json:"episode,omitempty"`
	EpisodeEnd *int  `json:"episodeEnd,omitempty"`
	Included   *bool `json:"included,omitempty"`
}

// Annotation carries the client's season/episode assignment choices. The
// three mechanisms compose within one call: bulk season, multi-season
// distribution, and per-file overrides.
type Annotation struct {
	// BulkSeason applies one season number to every included file.
	BulkSeason *int `json:"bulkSeason,omitempty"`
	// Seasons is a season list with range syntax, e.g. "1-3,5".
	Seasons string `json:"seasons,omitempty"`
	// Mode selects auto or manual distribution across Seasons.
	Mode AnnotationMode `json:"mode,omitempty"`
	// EpisodesPerSeason gives the episode count per listed season for
	// manual distribution.
	EpisodesPerSeason []int `json:"episodesPerSeason,omitempty"`
	// Overrides are explicit per-file assignments.
	Overrides []FileOverride `json:"overrides,omitempty"`
}

// ParseSeasonSpec expands a season list with range syntax ("1-3,5" means
// seasons 1, 2, 3, and 5) into an ordered slice.
func ParseSeasonSpec(spec string) ([]int, error) {
	var seasons []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return nil, fmt.Errorf("invalid season range %q", part)
			}
			end, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil || end < start {
				return nil, fmt.Errorf("invalid season range %q", part)
			}
			for n := start; n <= end; n++ {
				seasons = append(seasons, n)
			}
			continue
		}

		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid season number %q", part)
		}
		seasons = append(seasons, n)
	}

	if len(seasons) == 0 {
		return nil, fmt.Errorf("empty season list")
	}
	return seasons, nil
}

// Annotate applies the annotation to the file list and returns the full list,
// excluded files included, so the client can re-include them without
// re-uploading. Assignment order is natural numeric filename sort, so
// "Episode 2" comes before "Episode 10".
func Annotate(files []analysis.FileEntry, annotation Annotation) ([]analysis.FileEntry, error) {
	out := make([]analysis.FileEntry, len(files))
	copy(out, files)

	// Inclusion changes first, so the distribution only sees files that are
	// actually going to be imported.
	for _, o := range annotation.Overrides {
		if o.Index < 0 || o.Index >= len(out) {
			return nil, fmt.Errorf("file override index %d out of range", o.Index)
		}
		if o.Included != nil {
			out[o.Index].Included = *o.Included
		}
	}

	included := includedIndices(out)

	if annotation.BulkSeason != nil {
		season := *annotation.BulkSeason
		for _, idx := range included {
			out[idx].Season = &season
		}
	}

	if annotation.Seasons != "" {
		seasons, err := ParseSeasonSpec(annotation.Seasons)
		if err != nil {
			return nil, err
		}
		if err := distribute(out, included, seasons, annotation); err != nil {
			return nil, err
		}
	}

	// Explicit per-file assignments always win.
	for _, o := range annotation.Overrides {
		if o.Season != nil {
			out[o.Index].Season = o.Season
		}
		if o.Episode != nil {
			out[o.Index].Episode = o.Episode
		}
		if o.EpisodeEnd != nil {
			out[o.Index].EpisodeEnd = o.EpisodeEnd
		}
	}

	return out, nil
}

// distribute assigns seasons and sequential episode numbers across the
// included files, either evenly (auto) or by fixed per-season counts
// (manual).
func distribute(files []analysis.FileEntry, included []int, seasons []int, annotation Annotation) error {
	if len(included) == 0 {
		return nil
	}

	counts := make([]int, len(seasons))
	switch annotation.Mode {
	case AnnotationModeManual:
		if len(annotation.EpisodesPerSeason) != len(seasons) {
			return fmt.Errorf("manual distribution needs one episode count per season (%d seasons, %d counts)",
				len(seasons), len(annotation.EpisodesPerSeason))
		}
		copy(counts, annotation.EpisodesPerSeason)
	case AnnotationModeAuto, "":
		base := len(included) / len(seasons)
		extra := len(included) % len(seasons)
		for i := range counts {
			counts[i] = base
			if i < extra {
				counts[i]++
			}
		}
	default:
		return fmt.Errorf("unknown distribution mode %q", annotation.Mode)
	}

	pos := 0
	for si, season := range seasons {
		season := season
		episode := 0
		for n := 0; n < counts[si] && pos < len(included); n++ {
			episode++
			idx := included[pos]
			ep := episode
			files[idx].Season = &season
			files[idx].Episode = &ep
			files[idx].EpisodeEnd = nil
			pos++
		}
	}

	return nil
}

// includedIndices returns the indices of included files in natural filename
// order.
func includedIndices(files []analysis.FileEntry) []int {
	var included []int
	for i := range files {
		if files[i].Included {
			included = append(included, i)
		}
	}
	sort.SliceStable(included, func(a, b int) bool {
		return stringutils.NaturalLess(files[included[a]].Name, files[included[b]].Name)
	})
	return included
}
