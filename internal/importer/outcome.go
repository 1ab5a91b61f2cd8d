// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package importer runs the back half of the import pipeline: validation,
// annotation, and the idempotent catalog commit.
package importer

import (
	"github.com/autobrr/importarr/internal/analysis"
	"github.com/autobrr/importarr/internal/matcher"
)

// OutcomeStatus is the typed status field every import response carries.
type OutcomeStatus string

const (
	StatusSuccess          OutcomeStatus = "success"
	StatusNeedsAnnotation  OutcomeStatus = "needs_annotation"
	StatusValidationFailed OutcomeStatus = "validation_failed"
	StatusWarning          OutcomeStatus = "warning"
	StatusProcessing       OutcomeStatus = "processing"
	StatusError            OutcomeStatus = "error"
)

// Validation error types.
const (
	ErrTypeDuplicateContent    = "duplicate_content"
	ErrTypeTitleMismatch       = "title_mismatch"
	ErrTypeSuspiciousFileCount = "suspicious_file_count"
	ErrTypeSuspiciousSize      = "suspicious_size"
)

// ValidationError is one violated policy rule.
type ValidationError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Outcome is the result of pushing one item through the pipeline. Adapter
// and validator failures are expressed here as a status, never as an error
// escalating past the pipeline boundary.
type Outcome struct {
	Status    OutcomeStatus        `json:"status"`
	Message   string               `json:"message,omitempty"`
	Errors    []ValidationError    `json:"errors,omitempty"`
	ContentID string               `json:"contentId,omitempty"`
	Matches   []matcher.Match      `json:"matches,omitempty"`
	Files     []analysis.FileEntry `json:"files,omitempty"`
	MediaID   int64                `json:"mediaId,omitempty"`
	StreamID  int64                `json:"streamId,omitempty"`
	JobID     string               `json:"jobId,omitempty"`
}

// ResultItemStatus classifies one item of a batch import.
type ResultItemStatus string

const (
	ResultSuccess ResultItemStatus = "success"
	ResultFailed  ResultItemStatus = "failed"
	ResultSkipped ResultItemStatus = "skipped"
)

// ResultItem reports one item's outcome inside a batch, so batches return a
// heterogeneous array instead of an all-or-nothing result.
type ResultItem struct {
	ContentID string           `json:"contentId"`
	Status    ResultItemStatus `json:"status"`
	Message   string           `json:"message,omitempty"`
}

// ResultItemFor collapses a pipeline outcome into the batch item status:
// duplicates are skips, anything else non-successful is a failure.
func ResultItemFor(contentID string, outcome *Outcome) ResultItem {
	item := ResultItem{ContentID: contentID, Message: outcome.Message}
	switch {
	case outcome.Status == StatusSuccess:
		item.Status = ResultSuccess
	case isDuplicate(outcome):
		item.Status = ResultSkipped
	default:
		item.Status = ResultFailed
	}
	return item
}

func isDuplicate(outcome *Outcome) bool {
	for _, e := range outcome.Errors {
		if e.Type == ErrTypeDuplicateContent {
			return true
		}
	}
	return false
}
