// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package stringutils provides string normalization used when matching
// parsed release titles against catalogued metadata titles.
package stringutils

import (
	"strings"
	"time"
	"unicode"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const normalizerTTL = 5 * time.Minute

// normalizer caches transformed results so hot matching paths do not
// repeatedly run unicode transforms over the same titles.
type normalizer struct {
	cache     *ttlcache.Cache[string, string]
	transform func(string) string
}

func newNormalizer(transform func(string) string) *normalizer {
	return &normalizer{
		cache:     ttlcache.New(ttlcache.Options[string, string]{}.SetDefaultTTL(normalizerTTL)),
		transform: transform,
	}
}

func (n *normalizer) normalize(s string) string {
	if cached, ok := n.cache.Get(s); ok {
		return cached
	}
	out := n.transform(s)
	n.cache.Set(s, out, ttlcache.DefaultTTL)
	return out
}

var (
	unicodeNormalizer  = newNormalizer(normalizeUnicodeInner)
	matchingNormalizer = newNormalizer(normalizeForMatchingInner)
)

// ligatures that NFKD does not decompose to ASCII (distinct letters in
// Nordic/Germanic alphabets, not composed characters).
var ligatureReplacer = strings.NewReplacer(
	"æ", "ae", "Æ", "AE",
	"œ", "oe", "Œ", "OE",
	"ø", "o", "Ø", "O",
	"ß", "ss",
	"ð", "d", "Ð", "D",
	"þ", "th", "Þ", "TH",
)

func normalizeUnicodeInner(s string) string {
	s = ligatureReplacer.Replace(s)

	// transform.Chain is not safe for concurrent reuse; build per call and
	// rely on the cache to keep this off hot paths.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

var punctReplacer = strings.NewReplacer(
	"'", "", "’", "", "‘", "", "`", "",
	":", "",
	"&", " and ",
	"-", " ",
)

func normalizeForMatchingInner(s string) string {
	s = unicodeNormalizer.normalize(s)
	s = strings.ToLower(strings.TrimSpace(s))
	s = punctReplacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeUnicode removes diacritics and decomposes ligatures.
// Examples: "Shōgun" → "Shogun", "Amélie" → "Amelie", "Björk" → "Bjork".
func NormalizeUnicode(s string) string {
	return unicodeNormalizer.normalize(s)
}

// NormalizeForMatching returns the canonical form used for title
// comparison: unicode-normalized, lowercased, apostrophes and colons
// stripped, "&" spelled out, hyphens converted to spaces, whitespace
// collapsed.
// Examples: "Bob's Burgers" → "bobs burgers", "CSI: Miami" → "csi miami".
func NormalizeForMatching(s string) string {
	return matchingNormalizer.normalize(s)
}
