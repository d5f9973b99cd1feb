// Package app wires configuration into the importer, the crawl driver and
// the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"medicine_importer/internal/api"
	"medicine_importer/internal/config"
	"medicine_importer/internal/crawler"
	"medicine_importer/internal/db"
	"medicine_importer/internal/dedupe"
	"medicine_importer/internal/fetcher"
	"medicine_importer/internal/firecrawl"
	"medicine_importer/internal/images"
	"medicine_importer/internal/importer"
	"medicine_importer/internal/logger"
	"medicine_importer/internal/models"
	"medicine_importer/internal/parser"
	"medicine_importer/internal/robots"
	"medicine_importer/internal/storage"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	config    *config.Config
	logger    *zap.Logger
	mongo     *db.MongoDB
	catalogue db.Store
	objects   storage.Store
	importer  *importer.Importer
	crawler   *crawler.Driver
	handler   http.Handler
}

func New(cfg *config.Config, l *zap.Logger) (*App, error) {
	l = logger.OrNop(l)
	a := &App{config: cfg, logger: l}

	if cfg.DB.Driver == "mongo" || cfg.Storage.Driver == "gridfs" {
		mongoDB, err := db.NewMongoDB(cfg.DB, l)
		if err != nil {
			return nil, err
		}
		a.mongo = mongoDB
	}

	switch cfg.DB.Driver {
	case "mongo":
		a.catalogue = a.mongo
	default:
		a.catalogue = db.NewMemoryStore()
	}
	switch cfg.Storage.Driver {
	case "gridfs":
		a.objects = storage.NewGridFS(a.mongo.Database(), cfg.Storage.Bucket, cfg.Storage.PublicBaseURL)
	default:
		a.objects = storage.NewMemory(cfg.Storage.PublicBaseURL)
	}

	direct := fetcher.NewHTTPFetcher(fetcher.Options{
		UserAgent:    cfg.Logic.UserAgent,
		Timeout:      cfg.Logic.Timeout(),
		MaxBodyBytes: cfg.Logic.MaxBodyBytes,
		Logger:       l,
	})

	var (
		pages importer.PageFetcher = direct
		bulk  crawler.BulkCrawler
	)
	if cfg.Firecrawl.Enabled() {
		client := firecrawl.NewClient(cfg.Firecrawl, l.Named("firecrawl"))
		bulk = client
		if cfg.Firecrawl.ScrapeFallback {
			pages = fetcher.NewComposite(direct, client, l)
		}
	}

	checker := robots.NewChecker(direct.Client(), cfg.Logic.RobotsAgent, l)
	a.importer = importer.New(importer.Deps{
		Fetcher:   pages,
		Robots:    checker,
		Trust:     fetcher.NewTrustPolicy(cfg.Trust.Allowlist),
		Parser:    parser.New(l),
		Resolver:  dedupe.NewResolver(a.catalogue, cfg.Logic.FuzzyCandidates, l),
		Archiver:  images.NewArchiver(direct, a.objects, l),
		Catalogue: a.catalogue,
		Objects:   a.objects,
		Logger:    l.Named("importer"),
	})

	driver, err := crawler.New(a.importer, crawler.Options{
		Crawl:  cfg.Crawl,
		Logic:  cfg.Logic,
		Bulk:   bulk,
		Robots: checker,
		Logger: l,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.crawler = driver

	a.handler = api.SetupRouter(cfg.Server, api.NewHandler(a.importer, a.crawler, a.objects, l.Named("api")))
	return a, nil
}

func (a *App) Handler() http.Handler { return a.handler }

// Crawl runs one crawl outside the HTTP server.
func (a *App) Crawl(ctx context.Context, req models.CrawlRequest) (*models.CrawlResult, error) {
	return a.crawler.Run(ctx, req)
}

// Run serves HTTP until SIGINT or SIGTERM, then drains in-flight requests.
func (a *App) Run() error {
	srv := &http.Server{
		Addr:              ":" + a.config.Server.Port,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("db", a.config.DB.Driver),
			zap.String("storage", a.config.Storage.Driver),
			zap.Bool("firecrawl", a.config.Firecrawl.Enabled()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err, ok := <-errCh:
		if ok {
			a.Close()
			return fmt.Errorf("serve: %w", err)
		}
	case sig := <-sigChan:
		a.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		a.logger.Warn("graceful shutdown failed", zap.Error(err))
	}
	return a.Close()
}

func (a *App) Close() error {
	if a.mongo != nil {
		return a.mongo.Close()
	}
	return nil
}
