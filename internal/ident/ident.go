// Package ident validates SQL identifiers and connection-target descriptors
// before they are allowed anywhere near generated SQL text.
package ident

import (
	"net/url"
	"regexp"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsValid reports whether name is safe to embed literally into SQL as an
// identifier (table, schema, column, function, index, extension name).
// Only catalog-safe names pass; everything else must be rejected before
// any query is built.
func IsValid(name string) bool {
	return identifierPattern.MatchString(name)
}

// IsValidTarget reports whether descriptor parses as a postgres:// or
// postgresql:// connection URI. Malformed input returns false, never panics.
func IsValidTarget(descriptor string) bool {
	u, err := url.Parse(descriptor)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		return true
	}
	return false
}
