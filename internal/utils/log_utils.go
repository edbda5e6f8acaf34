// Package utils holds small helpers shared across packages
package utils

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxLogStringLength defines the maximum length for wire-supplied strings in logs
const MaxLogStringLength = 200

// unprintable matches anything that is not a letter, number, punctuation, symbol or space
var unprintable = regexp.MustCompile(`[^\p{L}\p{N}\p{P}\p{S}\p{Z}]`)

// SanitizeLogString cleans a string that arrived from the transport or an HTTP
// caller before it becomes a log attribute. Control characters turn into
// spaces, other unprintable runes are dropped and long values are cut on a
// rune boundary.
func SanitizeLogString(input string) string {
	if input == "" {
		return ""
	}

	truncated := false
	if len(input) > MaxLogStringLength {
		cut := MaxLogStringLength
		for cut > 0 && !utf8.RuneStart(input[cut]) {
			cut--
		}
		input = input[:cut]
		truncated = true
	}

	// Pre-process CRLF to avoid double spaces
	input = strings.ReplaceAll(input, "\r\n", "\n")

	sanitized := strings.Map(func(r rune) rune {
		if r == utf8.RuneError {
			return -1
		}
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, input)

	sanitized = unprintable.ReplaceAllString(sanitized, "")

	if truncated {
		sanitized += "... (truncated)"
	}
	return sanitized
}
