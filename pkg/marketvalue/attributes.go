package marketvalue

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jgarciagalvez/car-finder-ai-sub000/models"
)

// Parameter key variants seen across scraped sites and schema revisions.
// Lookup is case-insensitive on top of these.
var (
	makeKeys       = []string{"Marka pojazdu", "make", "Marka", "brand"}
	modelKeys      = []string{"Model pojazdu", "model", "Model"}
	engineSizeKeys = []string{"Pojemność skokowa", "engine_capacity", "Pojemność"}
	horsepowerKeys = []string{"Moc", "engine_power", "power"}
	gearboxKeys    = []string{"Skrzynia biegów", "gearbox", "transmission"}
	fuelKeys       = []string{"Rodzaj paliwa", "fuel_type", "Paliwo"}
	wheelbaseKeys  = []string{"Rozstaw osi", "wheelbase"}
)

var leadingNumberRe = regexp.MustCompile(`\d[\d\s\x{00a0}]*`)

// paramValue finds the first parameter present under any of the key
// variants, falling back to a case-insensitive scan.
func paramValue(params models.Params, keys []string) (string, bool) {
	if len(params) == 0 {
		return "", false
	}
	for _, key := range keys {
		if v, ok := params[key]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	for _, key := range keys {
		for k, v := range params {
			if strings.EqualFold(k, key) && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v), true
			}
		}
	}
	return "", false
}

// paramNumber parses the leading number out of a unit-suffixed parameter
// value like "1 998 cm3" or "150 KM". Failure reports unknown rather than
// zero so callers can skip the attribute instead of penalizing it.
func paramNumber(params models.Params, keys []string) (float64, bool) {
	raw, ok := paramValue(params, keys)
	if !ok {
		return 0, false
	}
	m := leadingNumberRe.FindString(raw)
	if m == "" {
		return 0, false
	}
	m = strings.Map(func(r rune) rune {
		if r == ' ' || r == ' ' {
			return -1
		}
		return r
	}, m)
	n, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// makeModel extracts the target's make and model, tolerating the key-name
// variants. Either one missing disqualifies the record from comparison.
func makeModel(params models.Params) (string, string, bool) {
	mk, okMake := paramValue(params, makeKeys)
	md, okModel := paramValue(params, modelKeys)
	return mk, md, okMake && okModel
}
