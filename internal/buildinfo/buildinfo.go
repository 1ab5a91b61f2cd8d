// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package buildinfo exposes version information stamped at build time.
package buildinfo

import (
	"encoding/json"
	"fmt"
	"runtime"
)

var (
	// Version is the release version, overridden via ldflags.
	Version = "dev"
	// Commit is the git commit hash the binary was built from.
	Commit = ""
	// Date is the build timestamp.
	Date = ""

	// UserAgent identifies outbound HTTP requests made by importarr.
	UserAgent string
)

func init() {
	UserAgent = fmt.Sprintf("importarr/%s (%s %s)", Version, runtime.GOOS, runtime.GOARCH)
}

// String returns a human-readable multi-line version summary.
func String() string {
	return fmt.Sprintf("Version: %s\nCommit: %s\nBuild date: %s\nGo: %s", Version, Commit, Date, runtime.Version())
}

// JSON returns the version information as a JSON document.
func JSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"version": Version,
		"commit":  Commit,
		"date":    Date,
	})
}
