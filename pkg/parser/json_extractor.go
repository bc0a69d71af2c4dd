package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jgarciagalvez/car-finder-ai-sub000/models"
	apperrors "github.com/jgarciagalvez/car-finder-ai-sub000/pkg/errors"
	"go.uber.org/zap"
)

// jsonExtractor parses sites that embed their page state as a structured
// JSON payload, either inside a dedicated script tag or assigned to a JS
// variable.
type jsonExtractor struct {
	parser  *Parser
	site    models.SiteConfig
	siteKey string
}

func (e *jsonExtractor) parse(html string, expected PageType) (*ParseResult, error) {
	payload, err := e.locatePayload(html)
	if err != nil {
		return nil, err
	}

	detected, err := e.detectPageType(payload)
	if err != nil {
		return nil, err
	}
	if err := checkExpected(expected, detected); err != nil {
		return nil, err
	}

	switch detected {
	case PageTypeSearch:
		return e.extractSearch(payload)
	default:
		return e.extractDetail(payload)
	}
}

// locatePayload finds and parses the page's structured-data payload.
// Failure is terminal for the page: guessing at malformed state would
// produce silently wrong records.
func (e *jsonExtractor) locatePayload(html string) (map[string]interface{}, error) {
	if e.site.ScriptSelector != "" {
		return e.payloadFromScriptTag(html)
	}
	return e.payloadFromAssignment(html)
}

func (e *jsonExtractor) payloadFromScriptTag(html string) (map[string]interface{}, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, apperrors.NewExtractionError("unable to build document").WithCause(err)
	}
	text := strings.TrimSpace(doc.Find(e.site.ScriptSelector).First().Text())
	if text == "" {
		return nil, apperrors.NewExtractionError(
			fmt.Sprintf("script payload not found via selector %q", e.site.ScriptSelector))
	}
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, apperrors.NewExtractionError("script payload is not valid JSON").WithCause(err)
	}
	return payload, nil
}

// payloadFromAssignment extracts a JSON literal assigned to a JS variable.
// Handles both the bare form (`window.__STATE__ = {...};`) and the
// string-quoted form with unicode escapes
// (`window.__STATE__ = "{\"a\":1,"b":2}";`).
func (e *jsonExtractor) payloadFromAssignment(html string) (map[string]interface{}, error) {
	re, err := regexp.Compile(e.site.ScriptRegex)
	if err != nil {
		return nil, apperrors.NewConfigError(
			fmt.Sprintf("site %q: invalid scriptRegex", e.siteKey)).WithCause(err)
	}
	m := re.FindStringSubmatch(html)
	if len(m) < 2 {
		return nil, apperrors.NewExtractionError("JS state assignment not found in page")
	}
	literal := strings.TrimSpace(m[1])

	if strings.HasPrefix(literal, `"`) {
		var unescaped string
		if err := json.Unmarshal([]byte(literal), &unescaped); err != nil {
			return nil, apperrors.NewExtractionError("unable to unescape quoted JS state").WithCause(err)
		}
		literal = unescaped
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(literal), &payload); err != nil {
		return nil, apperrors.NewExtractionError("JS state is not valid JSON").WithCause(err)
	}
	return payload, nil
}

// detectPageType evaluates both auto-detection indicators. A truthy value
// at the detail indicator wins detail; the search indicator is consulted
// only when detail is absent.
func (e *jsonExtractor) detectPageType(payload map[string]interface{}) (PageType, error) {
	if isTruthy(Resolve(payload, e.site.AutoDetection.DetailIndicator)) {
		return PageTypeDetail, nil
	}
	if isTruthy(Resolve(payload, e.site.AutoDetection.SearchIndicator)) {
		return PageTypeSearch, nil
	}
	return "", apperrors.NewUnknownPageTypeError(e.siteKey)
}

func (e *jsonExtractor) extractSearch(payload map[string]interface{}) (*ParseResult, error) {
	cfg, ok := e.site.PageTypes[string(PageTypeSearch)]
	if !ok {
		return nil, apperrors.NewConfigError(
			fmt.Sprintf("site %q: search page detected but no search page type configured", e.siteKey))
	}

	list, err := e.locateList(payload, cfg)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{PageType: PageTypeSearch}
	if cfg.RichResults {
		// Rich form: the site exposes complete records on the search page,
		// saving a detail fetch per listing.
		for _, elem := range list {
			obj, ok := elem.(map[string]interface{})
			if !ok {
				continue
			}
			builder := newRecordBuilder(e.parser, e.siteKey)
			for field, path := range cfg.Fields {
				builder.set(field, Resolve(obj, path))
			}
			result.Vehicles = append(result.Vehicles, builder.build())
		}
		return result, nil
	}

	for _, elem := range list {
		obj, ok := elem.(map[string]interface{})
		if !ok {
			continue
		}
		stub := models.SearchResultStub{}
		for field, path := range cfg.Fields {
			value := coerceString(Resolve(obj, path))
			switch field {
			case fieldSourceID:
				stub.SourceID = value
			case fieldSourceURL:
				stub.SourceURL = value
			case fieldSourceTitle:
				stub.SourceTitle = value
			case fieldSourceCreatedAt:
				stub.SourceCreatedAt = value
			}
		}
		result.Stubs = append(result.Stubs, stub)
	}
	return result, nil
}

// locateList finds the result list. Sites that nest lists inside a
// dynamically-keyed cache object (the key is a query hash unknown ahead of
// time) are handled by scanning the cache entries for one whose DataPath
// field, JSON-parsed when a string, holds a non-empty array at ListPath.
// First match wins.
func (e *jsonExtractor) locateList(payload map[string]interface{}, cfg models.PageConfig) ([]interface{}, error) {
	base := Resolve(payload, cfg.BasePath)
	if base == nil {
		return nil, apperrors.NewExtractionError(
			fmt.Sprintf("nothing found at basePath %q", cfg.BasePath))
	}

	if cfg.DataPath == "" {
		node := base
		if cfg.ListPath != "" {
			node = Resolve(base, cfg.ListPath)
		}
		arr, ok := node.([]interface{})
		if !ok {
			return nil, apperrors.NewExtractionError(
				fmt.Sprintf("no result list at listPath %q", cfg.ListPath))
		}
		return arr, nil
	}

	cache, ok := base.(map[string]interface{})
	if !ok {
		return nil, apperrors.NewExtractionError("cache object at basePath is not an object")
	}

	// Deterministic scan order; maps iterate randomly.
	keys := make([]string, 0, len(cache))
	for k := range cache {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var chosen []interface{}
	matches := 0
	for _, key := range keys {
		data := Resolve(cache[key], cfg.DataPath)
		if s, isStr := data.(string); isStr {
			var decoded interface{}
			if err := json.Unmarshal([]byte(s), &decoded); err != nil {
				continue
			}
			data = decoded
		}
		arr, ok := Resolve(data, cfg.ListPath).([]interface{})
		if !ok || len(arr) == 0 {
			continue
		}
		matches++
		if chosen == nil {
			chosen = arr
		}
	}
	if matches > 1 {
		e.parser.logger.Debug("Multiple cache entries contained a result list, using first match",
			zap.String("site", e.siteKey),
			zap.Int("matches", matches))
	}
	if chosen == nil {
		return nil, apperrors.NewExtractionError("no cache entry contained a parseable result list")
	}
	return chosen, nil
}

func (e *jsonExtractor) extractDetail(payload map[string]interface{}) (*ParseResult, error) {
	cfg := e.site.PageTypes[string(PageTypeDetail)]

	root := Resolve(payload, cfg.BasePath)
	obj, ok := root.(map[string]interface{})
	if !ok {
		return nil, apperrors.NewExtractionError(
			fmt.Sprintf("no detail object at basePath %q", cfg.BasePath))
	}

	builder := newRecordBuilder(e.parser, e.siteKey)
	for field, path := range cfg.Fields {
		builder.set(field, Resolve(obj, path))
	}
	return &ParseResult{PageType: PageTypeDetail, Vehicle: builder.build()}, nil
}
