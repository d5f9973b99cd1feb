package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"medicine_importer/internal/app"
	"medicine_importer/internal/config"
	"medicine_importer/internal/logger"
	"medicine_importer/internal/models"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to configuration file")
	maxProducts := flag.Int("max-products", 50, "Maximum product urls to discover")
	maxPages := flag.Int("max-pages", 10, "Maximum listing pages fetched during discovery")
	categories := flag.String("categories", "", "Comma separated seed categories, empty for all")
	seeds := flag.String("seeds", "", "Comma separated extra seed urls")
	noFirecrawl := flag.Bool("no-firecrawl", false, "Skip bulk discovery even when an API key is configured")
	noOTC := flag.Bool("no-otc", false, "Skip OTC category seeds")
	noPagination := flag.Bool("no-pagination", false, "Do not follow pagination links")
	dryRun := flag.Bool("dry-run", false, "Discover product urls without importing them")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	l, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer l.Sync()

	a, err := app.New(cfg, l)
	if err != nil {
		l.Fatal("failed to initialise app", zap.Error(err))
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := a.Crawl(ctx, models.CrawlRequest{
		MaxProducts:       *maxProducts,
		MaxDiscoveryPages: *maxPages,
		Categories:        splitList(*categories),
		UseFirecrawl:      !*noFirecrawl,
		DryRun:            *dryRun,
		IncludeOTC:        !*noOTC,
		IncludePagination: !*noPagination,
		ExtraSeedURLs:     splitList(*seeds),
	})
	if res != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(res)
	}
	if err != nil {
		l.Error("crawl stopped", zap.Error(err))
		os.Exit(1)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
