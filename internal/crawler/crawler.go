// Package crawler discovers product pages on a retailer's listings and
// feeds them one at a time through the importer.
package crawler

import (
	"context"
	"fmt"
	"medicine_importer/internal/config"
	"medicine_importer/internal/firecrawl"
	"medicine_importer/internal/importer"
	"medicine_importer/internal/logger"
	"medicine_importer/internal/metrics"
	"medicine_importer/internal/models"
	"medicine_importer/internal/robots"
	urlqueue "medicine_importer/internal/url_queue"
	"time"

	"go.uber.org/zap"
)

type Importer interface {
	Import(ctx context.Context, url string, opts models.ImportOptions) (*models.ImportResult, error)
	Enrich(ctx context.Context, existingID string, draft *models.MedicineData) ([]string, error)
}

// BulkCrawler runs a whole crawl job remotely and returns its pages.
type BulkCrawler interface {
	Crawl(ctx context.Context, root string, limit int, includePaths []string) ([]firecrawl.Page, error)
}

type RobotsChecker interface {
	Allowed(ctx context.Context, url string) (bool, error)
}

type Options struct {
	Crawl config.CrawlConfig
	Logic config.LogicConfig
	// Bulk is optional; without it discovery is BFS only.
	Bulk BulkCrawler
	// Robots defaults to a checker for Logic.RobotsAgent.
	Robots RobotsChecker
	Logger *zap.Logger
}

type Driver struct {
	importer Importer
	bulk     BulkCrawler
	robots   RobotsChecker
	crawl    config.CrawlConfig
	logic    config.LogicConfig
	products urlqueue.Patterns
	follow   urlqueue.Patterns
	exclude  urlqueue.Patterns
	logger   *zap.Logger
}

func New(imp Importer, opts Options) (*Driver, error) {
	products, follow, exclude, err := compile(opts.Crawl)
	if err != nil {
		return nil, fmt.Errorf("compile crawl patterns: %w", err)
	}
	if opts.Crawl.MaxLinksPerPage <= 0 {
		opts.Crawl.MaxLinksPerPage = 20
	}
	if opts.Logic.MaxRetries <= 0 {
		opts.Logic.MaxRetries = 1
	}
	if opts.Robots == nil {
		opts.Robots = robots.NewChecker(nil, opts.Logic.RobotsAgent, opts.Logger)
	}
	return &Driver{
		importer: imp,
		bulk:     opts.Bulk,
		robots:   opts.Robots,
		crawl:    opts.Crawl,
		logic:    opts.Logic,
		products: products,
		follow:   follow,
		exclude:  exclude,
		logger:   logger.OrNop(opts.Logger).With(zap.String("component", "crawler")),
	}, nil
}

// Run discovers up to req.MaxProducts product urls and, unless it is a dry
// run, imports them sequentially. A failing url never aborts the crawl; the
// returned error is reserved for cancellation.
func (d *Driver) Run(ctx context.Context, req models.CrawlRequest) (*models.CrawlResult, error) {
	req = withDefaults(req)
	log := d.logger.With(zap.Int("max_products", req.MaxProducts), zap.Bool("dry_run", req.DryRun))
	log.Info("crawl started")

	found := newProductSet(req.MaxProducts)
	method := MethodBFS

	if req.UseFirecrawl && d.bulk != nil {
		if err := d.discoverBulk(ctx, req, found); err != nil {
			log.Warn("bulk discovery failed, falling back to bfs", zap.Error(err))
		}
		if len(found.urls) > 0 {
			method = MethodFirecrawl
		}
	}
	if !found.full() {
		if method == MethodFirecrawl {
			method = MethodCombined
		}
		if err := d.discoverBFS(ctx, req, found); err != nil {
			return d.result(req, method, found.urls), err
		}
	}

	res := d.result(req, method, found.urls)
	log.Info("discovery finished", zap.String("method", method), zap.Int("products", len(found.urls)))
	if req.DryRun {
		return res, nil
	}

	opts := models.ImportOptions{RespectRobots: !d.crawl.IgnoreRobots}
	for i, u := range found.urls {
		if i > 0 {
			if err := wait(ctx, d.logic.Delay()); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("crawl stopped after %d of %d urls: %v", i, len(found.urls), err))
				return res, err
			}
		}

		out, err := d.importWithRetry(ctx, u, opts)
		switch {
		case err == nil && out.Success && out.Mode == models.ModeCreated:
			res.ImportedCount++
			metrics.RecordCrawlOutcome("imported")
		case err == nil && out.Success && out.Mode == models.ModeUpdated:
			res.SkippedCount++
			metrics.RecordCrawlOutcome("skipped")
			d.enrich(ctx, out)
		default:
			res.FailedCount++
			metrics.RecordCrawlOutcome("failed")
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", u, failureMessage(out, err)))
		}
	}

	log.Info("crawl finished",
		zap.Int("imported", res.ImportedCount),
		zap.Int("skipped", res.SkippedCount),
		zap.Int("failed", res.FailedCount),
	)
	return res, nil
}

// importWithRetry retries transient failures with exponential backoff.
// Business outcomes such as a robots denial are returned at once.
func (d *Driver) importWithRetry(ctx context.Context, u string, opts models.ImportOptions) (*models.ImportResult, error) {
	var (
		res *models.ImportResult
		err error
	)
	for attempt := 1; attempt <= d.logic.MaxRetries; attempt++ {
		res, err = d.safeImport(ctx, u, opts)
		if err == nil || importer.IsBusinessFailure(res, err) {
			return res, err
		}
		if attempt == d.logic.MaxRetries {
			break
		}

		backoff := d.logic.RetryBaseDelay() * time.Duration(1<<(attempt-1))
		d.logger.Warn("import failed, retrying",
			zap.String("url", u),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		if werr := wait(ctx, backoff); werr != nil {
			return res, err
		}
	}
	return res, err
}

func (d *Driver) safeImport(ctx context.Context, u string, opts models.ImportOptions) (res *models.ImportResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("import panicked", zap.String("url", u), zap.Any("panic", r), zap.Stack("stack"))
			res, err = nil, fmt.Errorf("import panicked: %v", r)
		}
	}()
	return d.importer.Import(ctx, u, opts)
}

// enrich fills gaps on the existing row from the fresh draft.
func (d *Driver) enrich(ctx context.Context, res *models.ImportResult) {
	if res.MedicineID == "" || res.MedicineData == nil {
		return
	}
	if _, err := d.importer.Enrich(ctx, res.MedicineID, res.MedicineData); err != nil {
		d.logger.Warn("enrichment failed", zap.String("medicine_id", res.MedicineID), zap.Error(err))
	}
}

func (d *Driver) result(req models.CrawlRequest, method string, urls []string) *models.CrawlResult {
	if urls == nil {
		urls = []string{}
	}
	return &models.CrawlResult{
		Success:            true,
		DryRun:             req.DryRun,
		DiscoveryMethod:    method,
		TotalProductsFound: len(urls),
		Errors:             []string{},
		ProductURLs:        urls,
	}
}

func withDefaults(req models.CrawlRequest) models.CrawlRequest {
	def := models.DefaultCrawlRequest()
	if req.MaxProducts <= 0 {
		req.MaxProducts = def.MaxProducts
	}
	if req.MaxDiscoveryPages <= 0 {
		req.MaxDiscoveryPages = def.MaxDiscoveryPages
	}
	return req
}

func failureMessage(res *models.ImportResult, err error) string {
	if err != nil {
		return err.Error()
	}
	if res != nil && res.Error != "" {
		return res.Error
	}
	return "import failed"
}

func wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
