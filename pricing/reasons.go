package pricing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"insurityflow/models"
)

// Reason strings are a serialization boundary with the attribution step
// and the dashboard. The grammar is "<feature> (<signed_value>)" with the
// value carrying an explicit sign and three decimals, e.g.
// "night_pct (+2453.276)".

var reasonPattern = regexp.MustCompile(`^(.+) \(([+-]\d+(?:\.\d+)?)\)$`)

// FormatReason renders one feature attribution in the reason micro-format.
func FormatReason(feature string, value float64) string {
	return fmt.Sprintf("%s (%+.3f)", feature, value)
}

// ParseReason decodes a reason string. It is total: a string without a
// parenthesized signed number falls back to the original string with a
// zero value instead of failing the record.
func ParseReason(s string) models.Reason {
	m := reasonPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return models.Reason{Feature: s}
	}
	value, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return models.Reason{Feature: s}
	}
	return models.Reason{
		Feature:       m[1],
		Value:         value,
		IncreasesRisk: value > 0,
	}
}
