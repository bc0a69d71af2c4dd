package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jgarciagalvez/car-finder-ai-sub000/models"
	apperrors "github.com/jgarciagalvez/car-finder-ai-sub000/pkg/errors"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/metrics"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/parser"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/scraper"
)

type memStore struct {
	byURL     map[string]*models.VehicleRecord
	insertErr error
}

func newMemStore() *memStore {
	return &memStore{byURL: map[string]*models.VehicleRecord{}}
}

func (s *memStore) FindVehicleByURL(_ context.Context, sourceURL string) (*models.VehicleRecord, error) {
	if v, ok := s.byURL[sourceURL]; ok {
		return v, nil
	}
	return nil, apperrors.NewNotFoundError("vehicle not found")
}

func (s *memStore) InsertVehicle(_ context.Context, vehicle *models.VehicleRecord) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	if _, ok := s.byURL[vehicle.SourceURL]; ok {
		return apperrors.NewDuplicateVehicleError(vehicle.SourceURL)
	}
	s.byURL[vehicle.SourceURL] = vehicle
	return nil
}

type fakeScraper struct {
	pages map[string]string
}

func (f *fakeScraper) ScrapeURL(_ context.Context, url string) (*scraper.ScrapeResult, error) {
	html, ok := f.pages[url]
	if !ok {
		return nil, apperrors.NewScrapeError("no such page").WithMetadata("url", url)
	}
	return &scraper.ScrapeResult{HTML: html, FinalURL: url, StatusCode: 200}, nil
}

type fakeParser struct{}

const (
	searchURL  = "https://www.olx.pl/motoryzacja/osobowe/"
	detailURL1 = "https://www.olx.pl/d/oferta/toyota-IDaaa.html"
	detailURL2 = "https://www.olx.pl/d/oferta/honda-IDbbb.html"
)

func (fakeParser) ParseHTML(html, siteKey string, expected parser.PageType) (*parser.ParseResult, error) {
	switch html {
	case "search-page":
		return &parser.ParseResult{
			PageType: parser.PageTypeSearch,
			Stubs: []models.SearchResultStub{
				{SourceID: "aaa", SourceURL: detailURL1, SourceTitle: "Toyota"},
				{SourceID: "bbb", SourceURL: detailURL2, SourceTitle: "Honda"},
			},
		}, nil
	case "detail-toyota":
		return &parser.ParseResult{
			PageType: parser.PageTypeDetail,
			Vehicle: &models.VehicleRecord{
				Source:    models.Source(siteKey),
				SourceURL: detailURL1,
				Title:     "Toyota Corolla",
				PriceEUR:  16860.47,
			},
		}, nil
	case "detail-honda":
		return &parser.ParseResult{
			PageType: parser.PageTypeDetail,
			Vehicle: &models.VehicleRecord{
				Source:    models.Source(siteKey),
				SourceURL: detailURL2,
				Title:     "Honda Civic",
				PriceEUR:  14200.51,
			},
		}, nil
	default:
		return nil, apperrors.NewExtractionError("unexpected page")
	}
}

func sitePages() map[string]string {
	return map[string]string{
		searchURL:  "search-page",
		detailURL1: "detail-toyota",
		detailURL2: "detail-honda",
	}
}

func newTestIngestor(store *memStore, pages map[string]string) *Ingestor {
	return NewIngestor(store, &fakeScraper{pages: pages}, fakeParser{}, WithLogger(zap.NewNop()))
}

func TestRunIngestsNewListings(t *testing.T) {
	store := newMemStore()
	ingestor := newTestIngestor(store, sitePages())

	summary, err := ingestor.Run(context.Background(), map[string][]string{"olx": {searchURL}})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SearchPages)
	assert.Equal(t, 2, summary.Found)
	assert.Equal(t, 2, summary.Inserted)
	assert.Equal(t, 0, summary.Failed)

	toyota := store.byURL[detailURL1]
	require.NotNil(t, toyota)
	assert.Equal(t, float64(16860), toyota.PriceEUR, "stored price rounds to whole euros")
	assert.Equal(t, "aaa", toyota.SourceID, "identity backfilled from the stub")
}

func TestRunSkipsAlreadyIngested(t *testing.T) {
	store := newMemStore()
	store.byURL[detailURL1] = &models.VehicleRecord{SourceURL: detailURL1}

	pages := sitePages()
	ingestor := newTestIngestor(store, pages)

	summary, err := ingestor.Run(context.Background(), map[string][]string{"olx": {searchURL}})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Duplicates, "known listing needs no detail fetch")
	assert.Equal(t, 1, summary.Inserted)
}

func TestRunContinuesPastFailingDetail(t *testing.T) {
	store := newMemStore()
	pages := sitePages()
	delete(pages, detailURL1) // first detail fetch will fail

	ingestor := newTestIngestor(store, pages)
	summary, err := ingestor.Run(context.Background(), map[string][]string{"olx": {searchURL}})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Inserted, "second listing ingested despite the first failing")
	assert.Contains(t, store.byURL, detailURL2)
}

func TestRunCountsRacedDuplicateInsert(t *testing.T) {
	store := newMemStore()
	store.insertErr = apperrors.NewDuplicateVehicleError(detailURL1)

	ingestor := newTestIngestor(store, sitePages())
	summary, err := ingestor.Run(context.Background(), map[string][]string{"olx": {searchURL}})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Duplicates)
	assert.Equal(t, 0, summary.Failed)
}

func TestRunFailedSearchPageIsCounted(t *testing.T) {
	store := newMemStore()
	ingestor := newTestIngestor(store, map[string]string{})

	summary, err := ingestor.Run(context.Background(), map[string][]string{"olx": {searchURL}})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.SearchPages)
}

func TestRunRecordsMetrics(t *testing.T) {
	store := newMemStore()
	store.byURL[detailURL2] = &models.VehicleRecord{SourceURL: detailURL2}

	pages := sitePages()
	delete(pages, detailURL1) // first detail fetch will fail

	collector := metrics.NewSimpleCollector(zap.NewNop())
	appMetrics := metrics.NewApplicationMetrics(collector, zap.NewNop())
	ingestor := NewIngestor(store, &fakeScraper{pages: pages}, fakeParser{},
		WithLogger(zap.NewNop()),
		WithMetrics(appMetrics))

	_, err := ingestor.Run(context.Background(), map[string][]string{"olx": {searchURL}})
	require.NoError(t, err)

	assert.Equal(t, 1.0, collector.CounterValue("pages_scraped_total",
		map[string]string{"site": "olx", "success": "true"}), "search page fetch")
	assert.Equal(t, 1.0, collector.CounterValue("pages_scraped_total",
		map[string]string{"site": "olx", "success": "false"}), "failed detail fetch")
	assert.Equal(t, 1.0, collector.CounterValue("vehicles_ingested_total",
		map[string]string{"site": "olx", "outcome": "failed"}))
	assert.Equal(t, 1.0, collector.CounterValue("vehicles_ingested_total",
		map[string]string{"site": "olx", "outcome": "duplicate"}))
}
