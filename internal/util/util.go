// Package util provides common helpers shared by the locomotive core and its host glue.
package util

import (
	"strconv"
	"strings"
)

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArg normalizes a raw host argument: surrounding quotes removed, escaped quotes fixed.
func CleanArg(s string) string {
	return FixEscapeQuotes(TrimQuotes(strings.TrimSpace(s)))
}

// ParseFloatArg parses a host numeric argument. Host booleans "true"/"false" map to 1/0.
func ParseFloatArg(s string) (float64, error) {
	s = CleanArg(s)
	switch strings.ToLower(s) {
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// ParseBoolArg parses a host boolean argument ("true", "false", "1", "0").
func ParseBoolArg(s string) (bool, error) {
	return strconv.ParseBool(strings.ToLower(CleanArg(s)))
}
