// Package parser implements the schema-driven, site-agnostic extraction
// engine. A declarative per-site schema selects one of two strategies,
// structured-JSON payload extraction or CSS selector extraction, sharing
// the same output contract, and routes every extracted raw field through
// the normalizers.
package parser

import (
	"fmt"
	"time"

	"github.com/jgarciagalvez/car-finder-ai-sub000/models"
	apperrors "github.com/jgarciagalvez/car-finder-ai-sub000/pkg/errors"
	"go.uber.org/zap"
)

// PageType classifies a scraped page.
type PageType string

const (
	// PageTypeAny disables the caller's page-type expectation.
	PageTypeAny    PageType = ""
	PageTypeSearch PageType = "search"
	PageTypeDetail PageType = "detail"
)

// ParseResult is the common output of both extraction strategies. Exactly
// one of the payload fields is populated: Stubs for a simple search page,
// Vehicles for a rich search page, Vehicle for a detail page.
type ParseResult struct {
	PageType PageType
	Stubs    []models.SearchResultStub
	Vehicles []*models.VehicleRecord
	Vehicle  *models.VehicleRecord
}

// extractor is the per-method parsing strategy.
type extractor interface {
	parse(html string, expected PageType) (*ParseResult, error)
}

// Parser holds the loaded schema. The schema is immutable between explicit
// Reload calls; Reload is not safe concurrently with ParseHTML on the same
// instance, callers serialize or treat the parser as single-owner.
type Parser struct {
	schemaPath string
	schema     models.ParserSchema
	eurPlnRate float64
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures a Parser.
type Option func(*Parser)

// WithEurPlnRate sets the fixed PLN-per-EUR rate used when a page exposes
// PLN prices and the record needs a EUR figure.
func WithEurPlnRate(rate float64) Option {
	return func(p *Parser) { p.eurPlnRate = rate }
}

// WithLogger sets the parser logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Parser) { p.logger = logger }
}

// withClock fixes the parser clock, for tests.
func withClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

// New loads the schema file and constructs a parser.
func New(schemaPath string, opts ...Option) (*Parser, error) {
	schema, err := loadSchema(schemaPath)
	if err != nil {
		return nil, err
	}
	p := newParser(schema, opts...)
	p.schemaPath = schemaPath
	return p, nil
}

// NewFromSchema constructs a parser over an already-built schema. Reload is
// unavailable on such a parser.
func NewFromSchema(schema models.ParserSchema, opts ...Option) (*Parser, error) {
	if err := validateSchema(schema); err != nil {
		return nil, err
	}
	return newParser(schema, opts...), nil
}

func newParser(schema models.ParserSchema, opts ...Option) *Parser {
	p := &Parser{
		schema: schema,
		logger: zap.L(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Reload re-reads the schema file.
func (p *Parser) Reload() error {
	if p.schemaPath == "" {
		return apperrors.NewConfigError("parser was built from an in-memory schema, nothing to reload")
	}
	schema, err := loadSchema(p.schemaPath)
	if err != nil {
		return err
	}
	p.schema = schema
	return nil
}

// ParseHTML detects the page type of raw HTML/JSON from the given site and
// extracts either search-result stubs or one detail record. When expected
// is not PageTypeAny and disagrees with the detected type, parsing fails
// rather than silently coercing.
func (p *Parser) ParseHTML(html, siteKey string, expected PageType) (*ParseResult, error) {
	site, ok := p.schema[siteKey]
	if !ok {
		return nil, apperrors.NewConfigError(fmt.Sprintf("site %q not present in parser schema", siteKey))
	}

	var ex extractor
	switch site.Method {
	case models.MethodJSON:
		ex = &jsonExtractor{parser: p, site: site, siteKey: siteKey}
	case models.MethodCSS:
		ex = &cssExtractor{parser: p, site: site, siteKey: siteKey}
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("site %q: unsupported method %q", siteKey, site.Method))
	}

	return ex.parse(html, expected)
}

// checkExpected enforces the caller's page-type expectation.
func checkExpected(expected, detected PageType) error {
	if expected != PageTypeAny && expected != detected {
		return apperrors.NewPageTypeMismatchError(string(expected), string(detected))
	}
	return nil
}
