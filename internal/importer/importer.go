// Package importer runs the single-url import pipeline: trust
// classification, robots check, fetch, parse, composition keys, duplicate
// check, image archiving and persistence.
package importer

import (
	"context"
	"errors"
	"fmt"
	"medicine_importer/internal/composition"
	"medicine_importer/internal/dedupe"
	"medicine_importer/internal/fetcher"
	"medicine_importer/internal/images"
	"medicine_importer/internal/logger"
	"medicine_importer/internal/metrics"
	"medicine_importer/internal/models"
	"medicine_importer/internal/parser"
	"medicine_importer/internal/storage"
	urlqueue "medicine_importer/internal/url_queue"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const reviewSuffix = " [manual review required: unverified source]"

type PageFetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
}

type RobotsChecker interface {
	Allowed(ctx context.Context, url string) (bool, error)
}

// Catalogue is the datastore surface the importer writes to.
type Catalogue interface {
	dedupe.Store
	InsertMedicine(ctx context.Context, m *models.Medicine) error
	FillEmptyFields(ctx context.Context, id string, fields map[string]string) ([]string, error)
}

type Deps struct {
	Fetcher   PageFetcher
	Robots    RobotsChecker
	Trust     *fetcher.TrustPolicy
	Parser    *parser.Parser
	Resolver  *dedupe.Resolver
	Archiver  *images.Archiver
	Catalogue Catalogue
	Objects   storage.Store
	Logger    *zap.Logger
}

type Importer struct {
	fetcher   PageFetcher
	robots    RobotsChecker
	trust     *fetcher.TrustPolicy
	parser    *parser.Parser
	resolver  *dedupe.Resolver
	archiver  *images.Archiver
	catalogue Catalogue
	objects   storage.Store
	logger    *zap.Logger
	now       func() time.Time
}

func New(d Deps) *Importer {
	l := logger.OrNop(d.Logger)
	if d.Trust == nil {
		d.Trust = fetcher.NewTrustPolicy(nil)
	}
	if d.Parser == nil {
		d.Parser = parser.New(l)
	}
	if d.Resolver == nil {
		d.Resolver = dedupe.NewResolver(d.Catalogue, 0, l)
	}
	return &Importer{
		fetcher:   d.Fetcher,
		robots:    d.Robots,
		trust:     d.Trust,
		parser:    d.Parser,
		resolver:  d.Resolver,
		archiver:  d.Archiver,
		catalogue: d.Catalogue,
		objects:   d.Objects,
		logger:    l,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Import returns (result, nil) for every business outcome, including a
// robots denial and a detected duplicate. Unexpected failures return the
// failed result together with the error.
func (i *Importer) Import(ctx context.Context, rawURL string, opts models.ImportOptions) (res *models.ImportResult, err error) {
	start := time.Now()
	rawURL = strings.TrimSpace(rawURL)
	log := i.logger.With(zap.String("url", rawURL))

	defer func() {
		if r := recover(); r != nil {
			log.Error("import panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("import panicked: %v", r)
			res = failedResult(err, nil)
		}
		metrics.RecordImport(string(res.Mode), time.Since(start))
	}()

	target, err := url.Parse(rawURL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		err = fmt.Errorf("%w: %q", models.ErrInvalidURL, rawURL)
		return failedResult(err, nil), err
	}

	domain, tier := i.trust.ClassifyURL(rawURL)
	log = log.With(zap.String("tier", tier.String()))
	log.Info("import started", zap.String("stage", "input"))

	if opts.RespectRobots && i.robots != nil {
		allowed, err := i.robots.Allowed(ctx, rawURL)
		if err != nil {
			return failedResult(err, nil), err
		}
		if !allowed {
			log.Info("import refused by robots.txt", zap.String("stage", "failed"))
			return &models.ImportResult{
				Success:  false,
				Mode:     models.ModeFailed,
				Error:    models.ErrorDisallowedByRobots,
				Warnings: []string{},
			}, nil
		}
	}

	html, err := i.fetcher.FetchHTML(ctx, rawURL)
	if err != nil {
		log.Warn("fetch failed", zap.String("stage", "failed"), zap.Error(err))
		return failedResult(err, nil), err
	}
	log.Debug("page fetched", zap.String("stage", "fetched"), zap.Int("bytes", len(html)))

	parsed := i.parser.Parse(html, rawURL)
	data := parsed.Data
	warnings := parsed.Warnings
	data.ExternalSourceURL = rawURL
	data.ExternalSourceDomain = domain
	data.SourceAttribution = fetcher.Attribution(domain, tier)
	data.TrustTier = tier.String()
	log.Debug("page parsed", zap.String("stage", "parsed"), zap.String("strategy", string(parsed.Strategy)))

	applyKeys(&data)
	log.Debug("composition normalized", zap.String("stage", "normalized"), zap.String("composition_key", data.CompositionKey))

	if !opts.ForceCreate {
		match, err := i.resolver.Check(ctx, &data)
		if err != nil {
			log.Error("duplicate check failed", zap.String("stage", "failed"), zap.Error(err))
			return failedResult(err, annotate(warnings, tier, domain)), err
		}
		if match.IsDuplicate {
			log.Info("duplicate found",
				zap.String("stage", "duplicate-reported"),
				zap.String("existing_id", match.ExistingID),
				zap.String("reason", match.Reason),
			)
			return &models.ImportResult{
				Success:      true,
				Mode:         models.ModeUpdated,
				MedicineID:   match.ExistingID,
				MedicineData: &data,
				DedupeReason: match.Reason,
				Strategy:     string(parsed.Strategy),
				Warnings:     annotate(warnings, tier, domain),
			}, nil
		}
	}
	log.Debug("no duplicate", zap.String("stage", "dedupe-checked"))

	if i.archiver != nil {
		warnings = append(warnings, i.archiver.Archive(ctx, &data, opts.DownloadImages)...)
	}

	now := i.now()
	medicine := &models.Medicine{
		ID:             uuid.NewString(),
		MedicineData:   data,
		SourceChecksum: dedupe.SourceChecksum(&data),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if opts.StoreHTMLAudit && i.objects != nil {
		key := AuditPath(domain, html)
		if err := i.objects.Put(ctx, key, []byte(html), "text/html; charset=utf-8"); err != nil {
			log.Warn("html audit upload failed", zap.Error(err))
			warnings = append(warnings, fmt.Sprintf("html audit could not be stored: %v", err))
		} else {
			medicine.HTMLAuditURL = i.objects.PublicURL(key)
		}
	}

	if err := i.catalogue.InsertMedicine(ctx, medicine); err != nil {
		log.Error("insert failed", zap.String("stage", "failed"), zap.Error(err))
		return failedResult(err, annotate(warnings, tier, domain)), err
	}

	log.Info("medicine created",
		zap.String("stage", "persisted"),
		zap.String("medicine_id", medicine.ID),
		zap.String("strategy", string(parsed.Strategy)),
	)
	return &models.ImportResult{
		Success:      true,
		Mode:         models.ModeCreated,
		MedicineID:   medicine.ID,
		MedicineData: &medicine.MedicineData,
		Strategy:     string(parsed.Strategy),
		Warnings:     annotate(warnings, tier, domain),
		AuditURL:     medicine.HTMLAuditURL,
	}, nil
}

// Enrich fills the existing row's empty composition and description fields
// from draft. Non-empty values are never overwritten.
func (i *Importer) Enrich(ctx context.Context, existingID string, draft *models.MedicineData) ([]string, error) {
	if existingID == "" {
		return nil, fmt.Errorf("enrich: %w: empty id", models.ErrNotFound)
	}
	d := *draft
	applyKeys(&d)

	fields := make(map[string]string, len(models.EnrichableFields))
	for _, name := range models.EnrichableFields {
		if v := strings.TrimSpace(*d.StringField(name)); v != "" {
			fields[name] = v
		}
	}
	if len(fields) == 0 {
		return nil, nil
	}

	updated, err := i.catalogue.FillEmptyFields(ctx, existingID, fields)
	if err != nil {
		return updated, fmt.Errorf("enrich %s: %w", existingID, err)
	}
	if len(updated) > 0 {
		i.logger.Info("existing medicine enriched", zap.String("medicine_id", existingID), zap.Strings("fields", updated))
	}
	return updated, nil
}

// applyKeys derives both composition keys, falling back to the salt
// composition when no composition was parsed.
func applyKeys(data *models.MedicineData) {
	text := data.Composition
	if text == "" {
		text = data.SaltComposition
	}
	if text == "" {
		return
	}
	if data.Composition == "" {
		data.Composition = text
	}
	data.CompositionKey, data.CompositionFamilyKey = composition.Keys(text)
}

// AuditPath is html-audit/<domain>/<sha256 of the html>.html.
func AuditPath(domain, html string) string {
	if domain == "" {
		domain = "unknown"
	}
	return "html-audit/" + domain + "/" + urlqueue.ComputeContentHash(html) + ".html"
}

// annotate marks every warning from an unknown source for manual review and
// leads with the review notice itself.
func annotate(warnings []string, tier fetcher.TrustTier, domain string) []string {
	if tier != fetcher.TrustUnknown {
		if warnings == nil {
			return []string{}
		}
		return warnings
	}
	out := make([]string, 0, len(warnings)+1)
	out = append(out, fmt.Sprintf("source domain %s is not a trusted retailer; verify copyright and accuracy before publishing", domain))
	for _, w := range warnings {
		out = append(out, w+reviewSuffix)
	}
	return out
}

func failedResult(err error, warnings []string) *models.ImportResult {
	if warnings == nil {
		warnings = []string{}
	}
	return &models.ImportResult{
		Success:  false,
		Mode:     models.ModeFailed,
		Error:    err.Error(),
		Warnings: warnings,
	}
}

// IsBusinessFailure reports outcomes that retrying cannot change.
func IsBusinessFailure(res *models.ImportResult, err error) bool {
	if errors.Is(err, models.ErrInvalidURL) || errors.Is(err, models.ErrDisallowedByRobots) {
		return true
	}
	return err == nil && res != nil && !res.Success
}
