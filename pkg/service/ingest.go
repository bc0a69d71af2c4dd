// Package service glues the scraper, parser and repository into the
// ingestion flow: search pages yield stubs, new stubs get a detail fetch,
// detail records get persisted.
package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/jgarciagalvez/car-finder-ai-sub000/models"
	apperrors "github.com/jgarciagalvez/car-finder-ai-sub000/pkg/errors"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/metrics"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/parser"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/scraper"
)

// VehicleStore is the repository surface ingestion needs.
type VehicleStore interface {
	FindVehicleByURL(ctx context.Context, sourceURL string) (*models.VehicleRecord, error)
	InsertVehicle(ctx context.Context, vehicle *models.VehicleRecord) error
}

// PageParser turns raw page bodies into stubs or records.
type PageParser interface {
	ParseHTML(html, siteKey string, expected parser.PageType) (*parser.ParseResult, error)
}

// IngestSummary accounts for one ingestion run.
type IngestSummary struct {
	SearchPages int
	Found       int
	Inserted    int
	Duplicates  int
	Failed      int
}

// Ingestor drives the scrape-parse-persist loop for the configured search
// URLs.
type Ingestor struct {
	store   VehicleStore
	scraper scraper.Scraper
	parser  PageParser
	logger  *zap.Logger
	metrics *metrics.ApplicationMetrics
	delay   time.Duration
}

// Option configures an Ingestor.
type Option func(*Ingestor)

func WithLogger(logger *zap.Logger) Option {
	return func(i *Ingestor) { i.logger = logger }
}

// WithDetailDelay spaces out detail fetches.
func WithDetailDelay(d time.Duration) Option {
	return func(i *Ingestor) { i.delay = d }
}

func WithMetrics(m *metrics.ApplicationMetrics) Option {
	return func(i *Ingestor) { i.metrics = m }
}

func NewIngestor(store VehicleStore, s scraper.Scraper, p PageParser, opts ...Option) *Ingestor {
	i := &Ingestor{
		store:   store,
		scraper: s,
		parser:  p,
		logger:  zap.L(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run ingests every search URL of every configured site. Per-stub failures
// are logged and skipped; the run always completes.
func (i *Ingestor) Run(ctx context.Context, searchURLs map[string][]string) (*IngestSummary, error) {
	summary := &IngestSummary{}
	for siteKey, urls := range searchURLs {
		for _, url := range urls {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			if err := i.ingestSearchPage(ctx, siteKey, url, summary); err != nil {
				i.logger.Error("Search page ingestion failed",
					zap.String("site", siteKey),
					zap.String("url", url),
					zap.Error(err))
				summary.Failed++
			}
		}
	}
	i.logger.Info("Ingestion finished",
		zap.Int("search_pages", summary.SearchPages),
		zap.Int("found", summary.Found),
		zap.Int("inserted", summary.Inserted),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

func (i *Ingestor) ingestSearchPage(ctx context.Context, siteKey, url string, summary *IngestSummary) error {
	page, err := i.scrapePage(ctx, siteKey, url)
	if err != nil {
		return err
	}
	result, err := i.parser.ParseHTML(page.HTML, siteKey, parser.PageTypeSearch)
	if err != nil {
		return err
	}
	summary.SearchPages++

	// Rich search pages carry complete records; no detail fetch needed.
	for _, vehicle := range result.Vehicles {
		summary.Found++
		i.insertNew(ctx, vehicle, summary)
	}

	for _, stub := range result.Stubs {
		summary.Found++
		if stub.SourceURL == "" {
			i.logger.Warn("Stub without URL, skipping", zap.String("site", siteKey), zap.String("title", stub.SourceTitle))
			summary.Failed++
			continue
		}
		if i.alreadyIngested(ctx, stub.SourceURL) {
			summary.Duplicates++
			i.recordOutcome(siteKey, "duplicate")
			continue
		}
		if err := i.ingestDetail(ctx, siteKey, stub, summary); err != nil {
			i.logger.Warn("Detail ingestion failed, skipping listing",
				zap.String("site", siteKey),
				zap.String("url", stub.SourceURL),
				zap.Error(err))
			summary.Failed++
			i.recordOutcome(siteKey, "failed")
		}
		if i.delay > 0 {
			select {
			case <-time.After(i.delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func (i *Ingestor) alreadyIngested(ctx context.Context, sourceURL string) bool {
	existing, err := i.store.FindVehicleByURL(ctx, sourceURL)
	if err != nil {
		// NotFound is the expected answer for a new listing; anything else
		// is resolved by the insert's own collision handling.
		return false
	}
	return existing != nil
}

func (i *Ingestor) ingestDetail(ctx context.Context, siteKey string, stub models.SearchResultStub, summary *IngestSummary) error {
	page, err := i.scrapePage(ctx, siteKey, stub.SourceURL)
	if err != nil {
		return err
	}
	result, err := i.parser.ParseHTML(page.HTML, siteKey, parser.PageTypeDetail)
	if err != nil {
		return err
	}

	vehicle := result.Vehicle
	// The stub saw the listing in its search context; prefer its identity
	// fields when the detail page lacked them.
	if vehicle.SourceURL == "" {
		vehicle.SourceURL = stub.SourceURL
	}
	if vehicle.SourceID == "" {
		vehicle.SourceID = stub.SourceID
	}
	if vehicle.SourceTitle == "" {
		vehicle.SourceTitle = stub.SourceTitle
	}

	i.insertNew(ctx, vehicle, summary)
	return nil
}

// insertNew persists one record, rounding the EUR price to whole euros for
// storage. Duplicate URL collisions are counted, not failed: another run
// may have raced this one.
func (i *Ingestor) insertNew(ctx context.Context, vehicle *models.VehicleRecord, summary *IngestSummary) {
	vehicle.PriceEUR = math.Round(vehicle.PriceEUR)

	err := i.store.InsertVehicle(ctx, vehicle)
	switch {
	case err == nil:
		summary.Inserted++
		i.recordOutcome(string(vehicle.Source), "inserted")
	case apperrors.IsCode(err, apperrors.ErrCodeDuplicateVehicle):
		summary.Duplicates++
		i.recordOutcome(string(vehicle.Source), "duplicate")
	default:
		i.logger.Error("Vehicle insert failed",
			zap.String("source_url", vehicle.SourceURL),
			zap.Error(err))
		summary.Failed++
		i.recordOutcome(string(vehicle.Source), "failed")
	}
}

// scrapePage fetches one URL, reporting the attempt to the metrics sink.
func (i *Ingestor) scrapePage(ctx context.Context, siteKey, url string) (*scraper.ScrapeResult, error) {
	start := time.Now()
	page, err := i.scraper.ScrapeURL(ctx, url)
	if i.metrics != nil {
		i.metrics.RecordPageScraped(siteKey, err == nil, time.Since(start))
	}
	return page, err
}

func (i *Ingestor) recordOutcome(site, outcome string) {
	if i.metrics != nil {
		i.metrics.RecordVehicleIngested(site, outcome)
	}
}
