// Package env reads process settings that must be known before config.Load runs.
package env

import (
	"os"
	"strings"
)

// First returns the first non-blank value among keys, in order.
func First(keys ...string) (string, bool) {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v, true
		}
	}
	return "", false
}

// FirstOr is First with a fallback.
func FirstOr(fallback string, keys ...string) string {
	if v, ok := First(keys...); ok {
		return v
	}
	return fallback
}
