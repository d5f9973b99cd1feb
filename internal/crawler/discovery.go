package crawler

import (
	"context"
	"medicine_importer/internal/config"
	"medicine_importer/internal/metrics"
	"medicine_importer/internal/models"
	urlqueue "medicine_importer/internal/url_queue"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly"
	"go.uber.org/zap"
)

const (
	MethodFirecrawl = "firecrawl"
	MethodBFS       = "bfs"
	MethodCombined  = "firecrawl+bfs"
)

// productSet keeps discovered product URLs unique and in discovery order.
type productSet struct {
	limit int
	seen  map[string]bool
	urls  []string
}

func newProductSet(limit int) *productSet {
	return &productSet{limit: limit, seen: make(map[string]bool)}
}

func (p *productSet) add(u string) bool {
	if p.full() {
		return false
	}
	key := urlqueue.NormalizeURL(u)
	if p.seen[key] {
		return false
	}
	p.seen[key] = true
	p.urls = append(p.urls, u)
	return true
}

func (p *productSet) full() bool { return len(p.urls) >= p.limit }

// discoverBulk submits one crawl job against the root listing and keeps
// every product url found in the returned pages.
func (d *Driver) discoverBulk(ctx context.Context, req models.CrawlRequest, found *productSet) error {
	limit := req.MaxDiscoveryPages + req.MaxProducts
	pages, err := d.bulk.Crawl(ctx, d.crawl.RootURL, limit, d.crawl.IncludePaths)
	if err != nil {
		return err
	}

	before := len(found.urls)
	for _, page := range pages {
		metrics.RecordPageFetched(MethodFirecrawl)
		candidates := urlqueue.ExtractAbsoluteURLs(page.Markdown)
		if page.HTML != "" {
			candidates = append(candidates, urlqueue.ExtractLinksFromHTML(page.HTML, page.Metadata.SourceURL)...)
		}
		candidates = append(candidates, page.Metadata.SourceURL)
		for _, c := range candidates {
			d.offerProduct(c, found)
		}
	}
	d.logger.Info("bulk discovery finished",
		zap.Int("pages", len(pages)),
		zap.Int("products", len(found.urls)-before),
	)
	return nil
}

// discoverBFS walks the seed pages breadth first until enough products are
// found or the page budget is spent.
func (d *Driver) discoverBFS(ctx context.Context, req models.CrawlRequest, found *productSet) error {
	queue := urlqueue.NewURLQueue(req.MaxDiscoveryPages)
	for _, seed := range d.seeds(req) {
		queue.Add(seed)
	}

	collector, err := d.newCollector()
	if err != nil {
		return err
	}

	var (
		body    string
		fetched int
	)
	collector.OnResponse(func(r *colly.Response) {
		body = string(r.Body)
	})

	for fetched < queue.MaxPages && !found.full() {
		if err := ctx.Err(); err != nil {
			return err
		}
		pageURL, ok := queue.Get()
		if !ok {
			break
		}

		if !d.crawl.IgnoreRobots {
			if allowed, err := d.robots.Allowed(ctx, pageURL); err == nil && !allowed {
				d.logger.Info("discovery page disallowed by robots.txt", zap.String("url", pageURL))
				continue
			}
		}

		body = ""
		fetched++
		if err := collector.Visit(pageURL); err != nil {
			d.logger.Warn("discovery fetch failed", zap.String("url", pageURL), zap.Error(err))
			continue
		}
		metrics.RecordPageFetched(MethodBFS)

		products, followed := 0, 0
		for _, link := range urlqueue.ExtractLinksFromHTML(body, pageURL) {
			if d.offerProduct(link, found) {
				products++
				continue
			}
			if !req.IncludePagination || followed >= d.crawl.MaxLinksPerPage {
				continue
			}
			if d.isProduct(link) || !urlqueue.URLShouldBeFollowed(link, d.follow, d.exclude) {
				continue
			}
			if queue.Add(link) {
				followed++
			}
		}
		d.logger.Debug("discovery page processed",
			zap.String("url", pageURL),
			zap.Int("products", products),
			zap.Int("enqueued", followed),
			zap.Int("frontier", queue.Size()),
		)
	}

	d.logger.Info("bfs discovery finished", zap.Int("pages", fetched), zap.Int("products", len(found.urls)))
	return nil
}

func (d *Driver) newCollector() (*colly.Collector, error) {
	c := colly.NewCollector(
		colly.UserAgent(d.logic.UserAgent),
		colly.AllowURLRevisit(),
	)
	// robots.txt is evaluated by d.robots before each visit.
	c.IgnoreRobotsTxt = true
	c.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: d.logic.Timeout(),
		IdleConnTimeout:       90 * time.Second,
	})

	if err := c.Limit(&colly.LimitRule{
		DomainGlob: "*",
		Delay:      d.logic.Delay(),
	}); err != nil {
		return nil, err
	}

	c.OnError(func(r *colly.Response, err error) {
		d.logger.Debug("collector error", zap.String("url", r.Request.URL.String()), zap.Int("status", r.StatusCode), zap.Error(err))
	})
	return c, nil
}

func (d *Driver) isProduct(link string) bool {
	return d.products.MatchAny(urlqueue.StripQuery(link))
}

// offerProduct adds link to found when it is a product page.
func (d *Driver) offerProduct(link string, found *productSet) bool {
	if link == "" {
		return false
	}
	clean := urlqueue.StripQuery(link)
	if !d.products.MatchAny(clean) {
		return false
	}
	return found.add(clean)
}

// seeds returns the configured seeds for the requested categories, OTC
// seeds only when asked for, then the caller's extra seeds.
func (d *Driver) seeds(req models.CrawlRequest) []string {
	wanted := make(map[string]bool, len(req.Categories))
	for _, c := range req.Categories {
		wanted[strings.ToLower(strings.TrimSpace(c))] = true
	}

	var out []string
	for _, s := range d.crawl.Seeds {
		if s.OTC && !req.IncludeOTC {
			continue
		}
		if len(wanted) > 0 && !wanted[strings.ToLower(s.Category)] {
			continue
		}
		out = append(out, s.URL)
	}
	for _, s := range req.ExtraSeedURLs {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func compile(cfg config.CrawlConfig) (products, follow, exclude urlqueue.Patterns, err error) {
	if products, err = urlqueue.CompilePatterns(cfg.ProductPatterns); err != nil {
		return
	}
	if follow, err = urlqueue.CompilePatterns(cfg.FollowPatterns); err != nil {
		return
	}
	exclude, err = urlqueue.CompilePatterns(cfg.ExcludePatterns)
	return
}
