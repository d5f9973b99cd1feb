package fetcher

import (
	"context"
	"medicine_importer/internal/logger"

	"go.uber.org/zap"
)

// Scraper returns page HTML through a third-party scrape proxy.
type Scraper interface {
	ScrapeHTML(ctx context.Context, urlStr string) (string, error)
}

// Composite fetches directly and falls back to the scrape proxy when the
// direct fetch fails. Binary fetches always go direct.
type Composite struct {
	*HTTPFetcher
	scraper Scraper
	logger  *zap.Logger
}

func NewComposite(direct *HTTPFetcher, scraper Scraper, l *zap.Logger) *Composite {
	return &Composite{HTTPFetcher: direct, scraper: scraper, logger: logger.OrNop(l)}
}

func (c *Composite) FetchHTML(ctx context.Context, urlStr string) (string, error) {
	html, err := c.HTTPFetcher.FetchHTML(ctx, urlStr)
	if err == nil || c.scraper == nil {
		return html, err
	}
	c.logger.Warn("direct fetch failed, falling back to scrape proxy", zap.String("url", urlStr), zap.Error(err))
	scraped, scrapeErr := c.scraper.ScrapeHTML(ctx, urlStr)
	if scrapeErr != nil {
		c.logger.Warn("scrape proxy failed", zap.String("url", urlStr), zap.Error(scrapeErr))
		return "", err
	}
	return scraped, nil
}
