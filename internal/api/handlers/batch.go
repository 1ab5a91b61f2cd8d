// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/importarr/internal/analysis"
	"github.com/autobrr/importarr/internal/importer"
	"github.com/autobrr/importarr/internal/jobs"
	"github.com/autobrr/importarr/internal/models"
)

// batchItem pairs one analyzed item with its per-item pipeline options.
type batchItem struct {
	item *analysis.Item
	opts importer.Options
}

// processingResponse is the fast answer every batch submission returns; the
// client polls the job id for progress.
type processingResponse struct {
	Status importer.OutcomeStatus `json:"status"`
	JobID  string                 `json:"jobId"`
	Total  int                    `json:"total"`
}

// submitBatch schedules the items as one background job. Item failures are
// recorded in the job stats, never abort the batch.
func submitBatch(ctx context.Context, runner *jobs.Runner, imp *importer.Service, sourceType string, work []batchItem) (*models.ImportJob, error) {
	return runner.Submit(ctx, sourceType, len(work), nil, func(ctx context.Context, report *jobs.Reporter) error {
		for _, b := range work {
			outcome, err := imp.Process(ctx, b.item, b.opts)
			if err != nil {
				log.Error().Err(err).Str("contentId", b.item.ContentID).Msg("Batch import failed")
				report.Record(ctx, string(importer.ResultFailed))
				continue
			}
			result := importer.ResultItemFor(b.item.ContentID, outcome)
			report.Record(ctx, string(result.Status))
		}
		return nil
	}, nil)
}
