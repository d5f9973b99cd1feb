// Package firecrawl is a client for the Firecrawl bulk crawl and scrape API.
package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"medicine_importer/internal/config"
	"medicine_importer/internal/logger"
	"medicine_importer/internal/models"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxResultPages bounds how many "next" links of a finished crawl are followed.
const maxResultPages = 20

type Client struct {
	httpClient   *http.Client
	apiKey       string
	baseURL      string
	rateLimiter  *rate.Limiter
	pollInterval time.Duration
	maxPolls     int
	logger       *zap.Logger
}

func NewClient(cfg config.FirecrawlConfig, l *zap.Logger) *Client {
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		rateLimiter:  rate.NewLimiter(rate.Limit(rps), 2),
		pollInterval: cfg.PollInterval(),
		maxPolls:     cfg.MaxPollAttempts,
		logger:       logger.OrNop(l),
	}
}

type ScrapeOptions struct {
	Formats []string `json:"formats"`
}

type CrawlRequest struct {
	URL           string        `json:"url"`
	Limit         int           `json:"limit,omitempty"`
	IncludePaths  []string      `json:"includePaths,omitempty"`
	ScrapeOptions ScrapeOptions `json:"scrapeOptions"`
}

type crawlStarted struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Error   string `json:"error,omitempty"`
}

type PageMetadata struct {
	SourceURL  string `json:"sourceURL"`
	Title      string `json:"title,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
}

type Page struct {
	Markdown string       `json:"markdown,omitempty"`
	HTML     string       `json:"html,omitempty"`
	Metadata PageMetadata `json:"metadata"`
}

type CrawlStatus struct {
	Status    string `json:"status"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Next      string `json:"next,omitempty"`
	Data      []Page `json:"data"`
}

type scrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    Page   `json:"data"`
}

// StartCrawl submits a crawl job and returns its id.
func (c *Client) StartCrawl(ctx context.Context, root string, limit int, includePaths []string) (string, error) {
	body := CrawlRequest{
		URL:           root,
		Limit:         limit,
		IncludePaths:  includePaths,
		ScrapeOptions: ScrapeOptions{Formats: []string{"markdown"}},
	}
	var started crawlStarted
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/v1/crawl", body, &started); err != nil {
		return "", err
	}
	if !started.Success || started.ID == "" {
		return "", fmt.Errorf("%w: crawl not accepted: %s", models.ErrCrawlFailed, started.Error)
	}
	c.logger.Info("firecrawl job submitted", zap.String("id", started.ID), zap.String("url", root), zap.Int("limit", limit))
	return started.ID, nil
}

func (c *Client) CrawlStatus(ctx context.Context, id string) (*CrawlStatus, error) {
	var status CrawlStatus
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/v1/crawl/"+id, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// WaitForCrawl polls the job every poll interval up to the attempt cap.
func (c *Client) WaitForCrawl(ctx context.Context, id string) ([]Page, error) {
	for attempt := 1; attempt <= c.maxPolls; attempt++ {
		if err := sleep(ctx, c.pollInterval); err != nil {
			return nil, err
		}

		status, err := c.CrawlStatus(ctx, id)
		if err != nil {
			c.logger.Warn("firecrawl status check failed", zap.String("id", id), zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		c.logger.Debug("firecrawl status",
			zap.String("id", id),
			zap.String("status", status.Status),
			zap.Int("completed", status.Completed),
			zap.Int("total", status.Total),
		)

		switch status.Status {
		case "completed":
			return c.collect(ctx, status), nil
		case "failed", "cancelled":
			return nil, fmt.Errorf("%w: job %s %s", models.ErrCrawlFailed, id, status.Status)
		}
	}
	return nil, fmt.Errorf("%w: job %s after %d polls", models.ErrCrawlTimeout, id, c.maxPolls)
}

// Crawl submits a job and waits for its pages.
func (c *Client) Crawl(ctx context.Context, root string, limit int, includePaths []string) ([]Page, error) {
	id, err := c.StartCrawl(ctx, root, limit, includePaths)
	if err != nil {
		return nil, err
	}
	return c.WaitForCrawl(ctx, id)
}

// collect follows "next" links of a finished job.
func (c *Client) collect(ctx context.Context, status *CrawlStatus) []Page {
	pages := status.Data
	next := status.Next
	for i := 0; next != "" && i < maxResultPages; i++ {
		var more CrawlStatus
		if err := c.doJSON(ctx, http.MethodGet, next, nil, &more); err != nil {
			c.logger.Warn("firecrawl result page failed", zap.String("next", next), zap.Error(err))
			break
		}
		pages = append(pages, more.Data...)
		next = more.Next
	}
	return pages
}

// ScrapeHTML fetches a single page through the scrape endpoint. It lets the
// client act as the fallback fetcher.
func (c *Client) ScrapeHTML(ctx context.Context, pageURL string) (string, error) {
	var resp scrapeResponse
	req := scrapeRequest{URL: pageURL, Formats: []string{"html"}}
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/v1/scrape", req, &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.Data.HTML == "" {
		return "", fmt.Errorf("%w: scrape %s returned no html: %s", models.ErrFetchFailed, pageURL, resp.Error)
	}
	return resp.Data.HTML, nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, in, out any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: firecrawl %s: %v", models.ErrCrawlFailed, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("%w: read firecrawl response: %v", models.ErrCrawlFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: firecrawl %s: status %d: %s", models.ErrCrawlFailed, endpoint, resp.StatusCode, truncate(string(data), 300))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
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

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
