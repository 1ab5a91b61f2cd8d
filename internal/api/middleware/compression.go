// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package middleware holds the HTTP middleware shared by the API server.
package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

type compressionAlgorithm int

const (
	algorithmNone compressionAlgorithm = iota
	algorithmGzip
	algorithmBrotli
	algorithmZstd
)

// compressibleTypes are the content types worth compressing. Media payloads
// never pass through this API, so the list stays short.
func compressible(contentType string) bool {
	return strings.Contains(contentType, "application/json") ||
		strings.Contains(contentType, "text/") ||
		strings.Contains(contentType, "application/xml")
}

// compressionWriter defers the encoder setup until enough bytes arrived to
// make compression worthwhile.
type compressionWriter struct {
	http.ResponseWriter

	algorithm   compressionAlgorithm
	level       int
	minSize     int
	writer      io.Writer
	size        int
	wroteHeader bool
	decided     bool
}

func (w *compressionWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	if w.size == 0 {
		w.Header().Del("Content-Length")
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *compressionWriter) Write(data []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}

	w.size += len(data)
	if !w.decided && w.size >= w.minSize {
		w.decided = true
		if compressible(w.Header().Get("Content-Type")) {
			w.initEncoder()
		}
	}
	if w.writer == nil {
		w.writer = w.ResponseWriter
	}
	return w.writer.Write(data)
}

func (w *compressionWriter) initEncoder() {
	switch w.algorithm {
	case algorithmZstd:
		encoder, err := zstd.NewWriter(w.ResponseWriter, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(w.level)))
		if err != nil {
			return
		}
		w.Header().Set("Content-Encoding", "zstd")
		w.writer = encoder
	case algorithmBrotli:
		w.Header().Set("Content-Encoding", "br")
		w.writer = brotli.NewWriterLevel(w.ResponseWriter, w.level)
	case algorithmGzip:
		encoder, err := gzip.NewWriterLevel(w.ResponseWriter, w.level)
		if err != nil {
			return
		}
		w.Header().Set("Content-Encoding", "gzip")
		w.writer = encoder
	}
}

func (w *compressionWriter) Close() error {
	if closer, ok := w.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (w *compressionWriter) Flush() {
	if flusher, ok := w.writer.(interface{ Flush() }); ok {
		flusher.Flush()
	}
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// negotiateAlgorithm picks the strongest encoding the client accepts.
func negotiateAlgorithm(acceptEncoding string) compressionAlgorithm {
	accepted := parseAcceptEncoding(acceptEncoding)
	switch {
	case accepted["zstd"] > 0:
		return algorithmZstd
	case accepted["br"] > 0:
		return algorithmBrotli
	case accepted["gzip"] > 0:
		return algorithmGzip
	default:
		return algorithmNone
	}
}

// parseAcceptEncoding maps each offered encoding to its quality value.
func parseAcceptEncoding(header string) map[string]float64 {
	accepted := make(map[string]float64)
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		encoding := part
		quality := 1.0
		if idx := strings.Index(part, ";q="); idx != -1 {
			encoding = strings.TrimSpace(part[:idx])
			if q, err := strconv.ParseFloat(strings.TrimSpace(part[idx+3:]), 64); err == nil {
				quality = q
			}
		}

		if encoding == "*" {
			for _, e := range []string{"zstd", "br", "gzip"} {
				accepted[e] = quality
			}
			continue
		}
		accepted[encoding] = quality
	}
	return accepted
}

// Compress negotiates a response encoding per request and compresses bodies
// above minSize bytes.
func Compress(minSize, level int) func(http.Handler) http.Handler {
	if minSize < 0 {
		minSize = 1024
	}
	if level < 1 {
		level = 1
	}
	if level > 9 {
		level = 9
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			algorithm := negotiateAlgorithm(r.Header.Get("Accept-Encoding"))
			if algorithm == algorithmNone {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Vary", "Accept-Encoding")
			wrapped := &compressionWriter{
				ResponseWriter: w,
				algorithm:      algorithm,
				level:          level,
				minSize:        minSize,
			}
			next.ServeHTTP(wrapped, r)
			wrapped.Close()
		})
	}
}
