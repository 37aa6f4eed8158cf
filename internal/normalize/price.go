// internal/normalize/price.go
package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// Amount is a parsed price. Currency is always present (possibly empty,
// never conceptually "absent") so downstream feature code only branches on
// Value. A Value of exactly 0.0 is a real outcome, distinct from nil: text
// like "Includes taxes and charges" asserts a bundled zero charge.
type Amount struct {
	Value    *float64 `json:"value"`
	Currency string   `json:"currency"`
}

const includedPhrase = "includes taxes and charges"

var (
	currencyPattern = `[€$£¥₹₽]|LKR|USD|EUR|GBP|AUD|CAD|CHF|CNY|SEK|NZD|MXN|SGD|HKD|NOK|KRW|TRY|RUB|INR|BRL|ZAR|Rs\.?`
	numberPattern   = `\d{1,3}(?:[.,\s]?\d{3})*(?:[.,]\d{1,2})?`

	priceRe  = regexp.MustCompile(`(?i)(` + currencyPattern + `)?\s*(` + numberPattern + `)\s*(` + currencyPattern + `)?`)
	numberRe = regexp.MustCompile(numberPattern)
)

// ParsePrice extracts the numeric value and currency from a price string.
// It never fails: unparseable input yields a nil Value, and a matched
// number that cannot be converted degrades to 0.0 with whatever currency
// was seen.
func ParsePrice(raw string) Amount {
	s := normalizeSpaces(raw)
	if s == "" {
		return Amount{Currency: ""}
	}

	m := priceRe.FindStringSubmatch(s)

	// No numeric value, but the page asserts charges are bundled: implied zero.
	if strings.Contains(strings.ToLower(s), includedPhrase) && m == nil {
		zero := 0.0
		return Amount{Value: &zero, Currency: ""}
	}

	var numberStr, currency string
	if m == nil {
		numOnly := numberRe.FindString(s)
		if numOnly == "" {
			return Amount{Currency: ""}
		}
		numberStr = numOnly
	} else {
		symbol := m[1]
		if symbol == "" {
			symbol = m[3]
		}
		currency = normalizeCurrency(symbol)
		numberStr = m[2]
	}

	if numberStr == "" {
		zero := 0.0
		return Amount{Value: &zero, Currency: currency}
	}

	value, ok := parseSeparatedNumber(numberStr)
	if !ok {
		// Number-shaped but unconvertible: implied-zero, same lenient
		// degrade as the included-taxes case.
		zero := 0.0
		return Amount{Value: &zero, Currency: currency}
	}
	return Amount{Value: &value, Currency: currency}
}

// normalizeCurrency uppercases the token and collapses every "Rs" variant
// to the ISO code for Sri Lankan rupees.
func normalizeCurrency(symbol string) string {
	if symbol == "" {
		return ""
	}
	upper := strings.ToUpper(symbol)
	if strings.HasPrefix(upper, "RS") {
		return "LKR"
	}
	return upper
}

// parseSeparatedNumber resolves ambiguous decimal/thousands separators and
// parses the literal. Rules, given the last '.' and last ',' positions:
//   - both present: the later one is the decimal point, the earlier one is
//     a thousands separator and is dropped;
//   - only one present: at most 2 trailing digits means decimal, otherwise
//     it is a thousands separator and is stripped.
//
// "1.234" therefore parses as 1234, not 1.234: prices and distances are not
// quoted at 3-decimal precision, grouped thousands are everywhere.
func parseSeparatedNumber(numberStr string) (float64, bool) {
	cleaned := strings.ReplaceAll(numberStr, " ", "")

	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")

	var processed string
	switch {
	case lastDot == -1 && lastComma == -1:
		processed = cleaned
	case lastDot != -1 && lastComma != -1:
		if lastComma > lastDot {
			processed = strings.ReplaceAll(cleaned, ".", "")
			processed = strings.ReplaceAll(processed, ",", ".")
		} else {
			processed = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastDot != -1:
		if len(cleaned)-1-lastDot <= 2 {
			processed = cleaned
		} else {
			processed = strings.ReplaceAll(cleaned, ".", "")
		}
	default:
		if len(cleaned)-1-lastComma <= 2 {
			processed = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			processed = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	value, err := strconv.ParseFloat(processed, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// normalizeSpaces rewrites non-breaking space variants to plain spaces and
// trims the result.
func normalizeSpaces(s string) string {
	s = strings.ReplaceAll(s, "\u202f", " ")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(s)
}
