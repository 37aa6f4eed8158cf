// internal/normalize/distance.go
package normalize

import "strings"

// ParseDistance parses a distance description and returns kilometers.
//
//	"2.8 km from downtown" -> 2.8
//	"350 m from beach"     -> 0.35
//	"Beachfront"           -> 0.0
//
// Returns nil when no number is recoverable.
func ParseDistance(raw string) *float64 {
	if raw == "" {
		return nil
	}

	text := strings.ToLower(normalizeSpaces(raw))

	if strings.Contains(text, "beachfront") {
		zero := 0.0
		return &zero
	}

	value := ExtractFloat(text)
	if value == nil {
		return nil
	}

	// " m" never matches a km marker: in "2.8 km" the m is not preceded by
	// a space.
	if strings.Contains(text, " m") || strings.Contains(text, " meters") {
		km := *value / 1000
		return &km
	}

	return value
}

// ExtractFloat pulls the first number out of free text, applying the same
// separator disambiguation as ParsePrice but with no currency handling.
func ExtractFloat(raw string) *float64 {
	s := normalizeSpaces(raw)
	if s == "" {
		return nil
	}

	numberStr := numberRe.FindString(s)
	if numberStr == "" {
		return nil
	}

	value, ok := parseSeparatedNumber(numberStr)
	if !ok {
		return nil
	}
	return &value
}
