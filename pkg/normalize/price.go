// Package normalize converts raw scraped strings into canonical values.
// Every function is pure and total: unparseable input yields the zero value,
// never an error, so a bad field can't abort a whole page parse.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var priceCharsRe = regexp.MustCompile(`[^0-9.,]`)

// Price parses a locale-ambiguous price into a float. Accepts numbers
// directly; strings are reduced to digits and separators, then the
// separator meaning is disambiguated:
//
//   - both "." and "," present: European long form, "." is thousands and
//     "," is decimal ("120.000,50" → 120000.50);
//   - only "," present: decimal only when the fraction has at most two
//     digits and the integer part at most three ("50,00" → 50.00);
//     otherwise thousands ("50,000" → 50000);
//   - only "." present: a single "." parses as a decimal point, repeated
//     dots are thousands grouping.
//
// Anything unparseable yields 0.
func Price(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		return priceFromString(n)
	}
	return 0
}

func priceFromString(s string) float64 {
	cleaned := priceCharsRe.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0
	}

	hasDot := strings.Contains(cleaned, ".")
	hasComma := strings.Contains(cleaned, ",")

	switch {
	case hasDot && hasComma:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	case hasComma:
		if commaIsDecimal(cleaned) {
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case hasDot:
		if strings.Count(cleaned, ".") > 1 {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	}

	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return parsed
}

// commaIsDecimal decides whether a lone comma separates decimals rather
// than thousands.
func commaIsDecimal(s string) bool {
	if strings.Count(s, ",") != 1 {
		return false
	}
	parts := strings.SplitN(s, ",", 2)
	return len(parts[0]) <= 3 && len(parts[1]) <= 2
}

// ConvertPLNToEUR converts using a fixed PLN-per-EUR rate. Rounding policy
// belongs to the caller: the analysis service keeps two decimal places, the
// ingestion layer rounds to whole euros.
func ConvertPLNToEUR(amountPLN, plnPerEur float64) float64 {
	if plnPerEur == 0 {
		return 0
	}
	return amountPLN / plnPerEur
}
