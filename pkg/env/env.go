// Package env reads the few settings needed before config.Load runs, such as
// the log format of the bootstrap logger.
package env

import (
	"os"
	"strings"
)

// Prefix namespaces storefront variables. It matches config.EnvPrefix.
const Prefix = "STOREFRONT_"

// Get returns the first non-blank value of Prefix+key and key, trimmed, or
// fallback when both are blank.
func Get(key, fallback string) string {
	for _, name := range []string{Prefix + key, key} {
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			return val
		}
	}
	return fallback
}

// OneOf is Get restricted to allowed values, compared case-insensitively.
// Anything else yields fallback.
func OneOf(key, fallback string, allowed ...string) string {
	val := Get(key, fallback)
	for _, a := range allowed {
		if strings.EqualFold(val, a) {
			return a
		}
	}
	return fallback
}
