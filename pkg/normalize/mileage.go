package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	mileageUnitRe = regexp.MustCompile(`(?i)\s*km\.?\s*$`)
	yearRe        = regexp.MustCompile(`(19|20)\d{2}`)
)

// Mileage parses an odometer reading: the trailing unit suffix is stripped
// case-insensitively, spaces and commas used as thousands grouping are
// removed, and the remainder is parsed as an integer. Unparseable input
// yields 0.
func Mileage(s string) int {
	cleaned := mileageUnitRe.ReplaceAllString(strings.TrimSpace(s), "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	n, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0
	}
	return n
}

// Year extracts a four-digit production year from free text. Unparseable
// input yields 0.
func Year(s string) int {
	match := yearRe.FindString(s)
	if match == "" {
		return 0
	}
	n, _ := strconv.Atoi(match)
	return n
}
