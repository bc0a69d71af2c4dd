package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jgarciagalvez/car-finder-ai-sub000/models"
	apperrors "github.com/jgarciagalvez/car-finder-ai-sub000/pkg/errors"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/normalize"
	"go.uber.org/zap"
)

// Selector map keys with structural meaning on css search pages; the
// remaining keys are canonical field names.
const (
	selectorListItem = "listItem"
	selectorDate     = "date"
	selectorID       = "id"
	selectorTitle    = "title"
	selectorURL      = "url"
)

// listingIDRe extracts an ID<token> substring from a listing URL when no
// explicit ID selector matches, e.g. ".../oferta/vw-passat-ID1aB2c3.html".
var listingIDRe = regexp.MustCompile(`ID([0-9A-Za-z]+)`)

// cssExtractor parses server-rendered sites with plain CSS selectors.
type cssExtractor struct {
	parser  *Parser
	site    models.SiteConfig
	siteKey string
}

func (e *cssExtractor) parse(html string, expected PageType) (*ParseResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, apperrors.NewExtractionError("unable to build document").WithCause(err)
	}

	detected, err := e.detectPageType(doc)
	if err != nil {
		return nil, err
	}
	if err := checkExpected(expected, detected); err != nil {
		return nil, err
	}

	if detected == PageTypeSearch {
		return e.extractSearch(doc)
	}
	return e.extractDetail(doc)
}

// detectPageType treats the auto-detection indicators as CSS selectors:
// matching elements stand in for a truthy path resolution. Detail wins.
func (e *cssExtractor) detectPageType(doc *goquery.Document) (PageType, error) {
	if sel := e.site.AutoDetection.DetailIndicator; sel != "" && doc.Find(sel).Length() > 0 {
		return PageTypeDetail, nil
	}
	if sel := e.site.AutoDetection.SearchIndicator; sel != "" && doc.Find(sel).Length() > 0 {
		return PageTypeSearch, nil
	}
	return "", apperrors.NewUnknownPageTypeError(e.siteKey)
}

// extractDetail walks the selector map. A single failed field is logged
// and omitted, not fatal: a detail record with partially-missing fields is
// still worth returning.
func (e *cssExtractor) extractDetail(doc *goquery.Document) (*ParseResult, error) {
	cfg := e.site.PageTypes[string(PageTypeDetail)]
	builder := newRecordBuilder(e.parser, e.siteKey)

	for field, selector := range cfg.Selectors {
		if field == fieldSourcePhotos {
			builder.set(field, e.collectImages(doc, selector))
			continue
		}
		value, err := extractText(doc.Selection, selector)
		if err != nil {
			e.parser.logger.Warn("Field extraction failed, omitting",
				zap.String("site", e.siteKey),
				zap.String("field", field),
				zap.Error(err))
			continue
		}
		builder.set(field, value)
	}
	return &ParseResult{PageType: PageTypeDetail, Vehicle: builder.build()}, nil
}

// collectImages gathers src/data-src across every match rather than text,
// the list-image special case.
func (e *cssExtractor) collectImages(doc *goquery.Document, selector string) []interface{} {
	var urls []interface{}
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if u, ok := s.Attr("src"); ok && u != "" {
			urls = append(urls, u)
			return
		}
		if u, ok := s.Attr("data-src"); ok && u != "" {
			urls = append(urls, u)
		}
	})
	return urls
}

// extractText returns the first match's text, falling back to its href or
// content attribute when the element carries no text.
func extractText(root *goquery.Selection, selector string) (string, error) {
	sel := root.Find(selector).First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("selector %q matched nothing", selector)
	}
	if text := strings.TrimSpace(sel.Text()); text != "" {
		return text, nil
	}
	for _, attr := range []string{"href", "content"} {
		if v, ok := sel.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}
	return "", nil
}

// extractSearch iterates matched list items, building stubs from nested
// selector lookups. Items missing both URL and title are skipped; the ID
// falls back to a URL-pattern match; the created date defaults to now when
// no date selector is configured.
func (e *cssExtractor) extractSearch(doc *goquery.Document) (*ParseResult, error) {
	cfg, ok := e.site.PageTypes[string(PageTypeSearch)]
	if !ok {
		return nil, apperrors.NewConfigError(
			fmt.Sprintf("site %q: search page detected but no search page type configured", e.siteKey))
	}
	itemSelector := cfg.Selectors[selectorListItem]
	if itemSelector == "" {
		return nil, apperrors.NewConfigError(
			fmt.Sprintf("site %q: css search config missing %q selector", e.siteKey, selectorListItem))
	}

	result := &ParseResult{PageType: PageTypeSearch}
	now := e.parser.now()

	doc.Find(itemSelector).Each(func(_ int, item *goquery.Selection) {
		stub := models.SearchResultStub{}

		if sel := cfg.Selectors[selectorTitle]; sel != "" {
			if v, err := extractText(item, sel); err == nil {
				stub.SourceTitle = v
			}
		}
		if sel := cfg.Selectors[selectorURL]; sel != "" {
			link := item.Find(sel).First()
			if href, ok := link.Attr("href"); ok {
				stub.SourceURL = strings.TrimSpace(href)
			}
		}
		if stub.SourceURL == "" && stub.SourceTitle == "" {
			return
		}

		if sel := cfg.Selectors[selectorID]; sel != "" {
			if v, err := extractText(item, sel); err == nil {
				stub.SourceID = v
			}
		}
		if stub.SourceID == "" {
			if m := listingIDRe.FindStringSubmatch(stub.SourceURL); m != nil {
				stub.SourceID = m[1]
			}
		}

		if sel := cfg.Selectors[selectorDate]; sel != "" {
			if v, err := extractText(item, sel); err == nil && v != "" {
				stub.SourceCreatedAt = normalize.FormatISO(normalize.DateAt(v, now))
			}
		}
		if stub.SourceCreatedAt == "" {
			stub.SourceCreatedAt = normalize.FormatISO(now)
		}

		result.Stubs = append(result.Stubs, stub)
	})

	return result, nil
}
