package parser

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jgarciagalvez/car-finder-ai-sub000/models"
	apperrors "github.com/jgarciagalvez/car-finder-ai-sub000/pkg/errors"
)

// loadSchema reads and validates the parser schema file.
func loadSchema(path string) (models.ParserSchema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewConfigError(fmt.Sprintf("unable to read parser schema %s", path)).WithCause(err)
	}
	var schema models.ParserSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, apperrors.NewConfigError(fmt.Sprintf("unable to parse schema %s", path)).WithCause(err)
	}
	if err := validateSchema(schema); err != nil {
		return nil, err
	}
	return schema, nil
}

// validateSchema enforces the structural invariants: a known method per
// site and at least a detail page type.
func validateSchema(schema models.ParserSchema) error {
	if len(schema) == 0 {
		return apperrors.NewConfigError("parser schema declares no sites")
	}
	for siteKey, site := range schema {
		if site.Method != models.MethodJSON && site.Method != models.MethodCSS {
			return apperrors.NewConfigError(fmt.Sprintf("site %q: unknown method %q", siteKey, site.Method))
		}
		if _, ok := site.PageTypes[string(PageTypeDetail)]; !ok {
			return apperrors.NewConfigError(fmt.Sprintf("site %q: missing required %q page type", siteKey, PageTypeDetail))
		}
		if site.Method == models.MethodJSON && site.ScriptSelector == "" && site.ScriptRegex == "" {
			return apperrors.NewConfigError(fmt.Sprintf("site %q: json method needs scriptSelector or scriptRegex", siteKey))
		}
	}
	return nil
}
