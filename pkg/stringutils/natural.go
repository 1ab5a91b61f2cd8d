// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package stringutils

import "unicode"

// NaturalLess compares two strings treating digit runs as numbers, so
// "Episode 2" sorts before "Episode 10". Comparison is case-insensitive.
func NaturalLess(a, b string) bool {
	ra, rb := []rune(a), []rune(b)
	i, j := 0, 0

	for i < len(ra) && j < len(rb) {
		ca, cb := ra[i], rb[j]

		if unicode.IsDigit(ca) && unicode.IsDigit(cb) {
			// Compare the full digit runs numerically.
			startA, startB := i, j
			for i < len(ra) && unicode.IsDigit(ra[i]) {
				i++
			}
			for j < len(rb) && unicode.IsDigit(rb[j]) {
				j++
			}

			numA := trimLeadingZeros(ra[startA:i])
			numB := trimLeadingZeros(rb[startB:j])
			if len(numA) != len(numB) {
				return len(numA) < len(numB)
			}
			for k := range numA {
				if numA[k] != numB[k] {
					return numA[k] < numB[k]
				}
			}
			continue
		}

		la, lb := unicode.ToLower(ca), unicode.ToLower(cb)
		if la != lb {
			return la < lb
		}
		i++
		j++
	}

	return len(ra)-i < len(rb)-j
}

func trimLeadingZeros(digits []rune) []rune {
	for len(digits) > 1 && digits[0] == '0' {
		digits = digits[1:]
	}
	return digits
}
