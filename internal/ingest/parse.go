package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/revenue-cli/internal/model"
)

// timeLayouts lists the date formats accepted across input tables, most
// specific first.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// parseFloatOr parses a string as a float64, returning def if parsing
// fails or the string is empty.
func parseFloatOr(s string, def float64) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}

// parseIntOr parses a string as an int, returning def if parsing fails.
func parseIntOr(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		// Some exports write integer columns as "3.0".
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return def
		}
		return int(f)
	}
	return v
}

// parseTimePtr parses a timestamp in any accepted layout, returning nil
// when the field is empty or malformed. Absence is a valid state (e.g. no
// payment has ever been made), never an error.
func parseTimePtr(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	// Unix seconds, as some billing exports emit.
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 1_000_000_000 {
		t := time.Unix(secs, 0).UTC()
		return &t
	}
	return nil
}

// parseBool reports whether the field is an affirmative flag value
// (true/1/yes, case-insensitive).
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y":
		return true
	}
	return false
}

// round2 rounds a money amount to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// normalizeInterval maps raw interval strings to the yearly or monthly
// bucket. Anything unrecognized defaults to monthly.
func normalizeInterval(s string) model.Interval {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "year", "annual", "yr", "yearly", "annually":
		return model.IntervalYear
	}
	return model.IntervalMonth
}

// normalizeDuration maps raw discount duration strings to the canonical
// set. A positive month count with no recognized duration implies numbered.
func normalizeDuration(s string, months int) model.DiscountDuration {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "forever":
		return model.DurationForever
	case "once":
		return model.DurationOnce
	case "repeating", "numbered":
		return model.DurationNumbered
	}
	if months > 0 {
		return model.DurationNumbered
	}
	return model.DurationOnce
}

// normalizeRole maps free-text membership roles onto the ordered role set.
func normalizeRole(s string) model.Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "owner", "creator", "founder":
		return model.RoleOwner
	case "admin", "administrator":
		return model.RoleAdmin
	case "manager":
		return model.RoleManager
	case "member", "user":
		return model.RoleMember
	}
	return model.RoleOther
}
