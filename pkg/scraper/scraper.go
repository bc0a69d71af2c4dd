// Package scraper fetches listing pages. It is a thin collaborator: the
// parser owns all interpretation of the fetched HTML.
package scraper

import (
	"context"
	"time"

	"github.com/gocolly/colly"
	"go.uber.org/zap"

	apperrors "github.com/jgarciagalvez/car-finder-ai-sub000/pkg/errors"
)

// ScrapeResult is one fetched page.
type ScrapeResult struct {
	HTML         string
	FinalURL     string
	StatusCode   int
	ScrapingTime time.Duration
}

// Scraper fetches pages for the ingestion service.
type Scraper interface {
	ScrapeURL(ctx context.Context, url string) (*ScrapeResult, error)
}

// Config tunes the collector.
type Config struct {
	UserAgent string
	// Delay spaces out requests per domain.
	Delay  time.Duration
	Logger *zap.Logger
}

type collyScraper struct {
	userAgent string
	delay     time.Duration
	logger    *zap.Logger
}

// New creates a colly-backed scraper.
func New(cfg Config) Scraper {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.L()
	}
	return &collyScraper{
		userAgent: cfg.UserAgent,
		delay:     cfg.Delay,
		logger:    logger,
	}
}

// ScrapeURL fetches one page and returns its body with fetch metadata.
func (s *collyScraper) ScrapeURL(ctx context.Context, url string) (*ScrapeResult, error) {
	collector := colly.NewCollector(colly.UserAgent(s.userAgent))
	if err := collector.Limit(&colly.LimitRule{DomainGlob: "*", Delay: s.delay}); err != nil {
		return nil, apperrors.NewScrapeError("unable to configure collector").WithCause(err)
	}

	result := &ScrapeResult{}
	var fetchErr error

	collector.OnRequest(func(r *colly.Request) {
		if err := ctx.Err(); err != nil {
			r.Abort()
			fetchErr = err
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		result.HTML = string(r.Body)
		result.FinalURL = r.Request.URL.String()
		result.StatusCode = r.StatusCode
	})
	collector.OnError(func(r *colly.Response, err error) {
		result.StatusCode = r.StatusCode
		fetchErr = apperrors.NewScrapeError("request failed").
			WithCause(err).
			WithMetadata("url", url).
			WithMetadata("status", r.StatusCode)
	})

	start := time.Now()
	if err := collector.Visit(url); err != nil {
		return nil, apperrors.NewScrapeError("unable to visit url").WithCause(err).WithMetadata("url", url)
	}
	collector.Wait()
	result.ScrapingTime = time.Since(start)

	if fetchErr != nil {
		return nil, fetchErr
	}
	if result.HTML == "" {
		return nil, apperrors.NewScrapeError("empty response body").WithMetadata("url", url)
	}

	s.logger.Debug("Page scraped",
		zap.String("url", url),
		zap.Int("status", result.StatusCode),
		zap.Duration("took", result.ScrapingTime),
		zap.Int("bytes", len(result.HTML)))
	return result, nil
}
