// Package dedupe decides whether a parsed draft duplicates a catalogue row.
package dedupe

import (
	"context"
	"fmt"
	"math"
	"medicine_importer/internal/logger"
	"medicine_importer/internal/models"
	urlqueue "medicine_importer/internal/url_queue"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// SimilarityThreshold is the minimum name similarity for a fuzzy duplicate.
const SimilarityThreshold = 0.8

const (
	ReasonExact      = "exact match on composition, manufacturer, and pack size"
	ReasonSameSource = "already imported from the same source url with unchanged content"
)

// Store is the slice of the catalogue the resolver reads.
type Store interface {
	FindByExactKey(ctx context.Context, compositionKey, manufacturer, packSize string) (*models.Medicine, error)
	FindByFamilyKey(ctx context.Context, familyKey string, limit int) ([]models.Medicine, error)
	FindBySource(ctx context.Context, sourceURL, checksum string) (*models.Medicine, error)
}

type Resolver struct {
	store      Store
	candidates int
	logger     *zap.Logger
}

// NewResolver bounds the fuzzy pool to candidates rows per family.
func NewResolver(store Store, candidates int, l *zap.Logger) *Resolver {
	if candidates <= 0 {
		candidates = 50
	}
	return &Resolver{store: store, candidates: candidates, logger: logger.OrNop(l)}
}

// Check runs the exact business key match first, then fuzzy name matching
// inside the composition family, then the provenance match on source url and
// content checksum. The first fuzzy hit wins.
func (r *Resolver) Check(ctx context.Context, data *models.MedicineData) (models.DuplicateMatch, error) {
	key := strings.TrimSpace(data.CompositionKey)
	manufacturer := strings.TrimSpace(data.Manufacturer)
	pack := strings.TrimSpace(data.PackSize)

	if key != "" && manufacturer != "" && pack != "" {
		existing, err := r.store.FindByExactKey(ctx, key, manufacturer, pack)
		if err != nil {
			return models.DuplicateMatch{}, fmt.Errorf("exact duplicate lookup: %w", err)
		}
		if existing != nil {
			r.logger.Debug("exact duplicate", zap.String("existing_id", existing.ID))
			return models.DuplicateMatch{IsDuplicate: true, ExistingID: existing.ID, Reason: ReasonExact}, nil
		}
	}

	if data.CompositionFamilyKey != "" {
		candidates, err := r.store.FindByFamilyKey(ctx, data.CompositionFamilyKey, r.candidates)
		if err != nil {
			return models.DuplicateMatch{}, fmt.Errorf("family duplicate lookup: %w", err)
		}
		for _, c := range candidates {
			sim := Similarity(data.Name, c.Name)
			if sim >= SimilarityThreshold {
				r.logger.Debug("fuzzy duplicate",
					zap.String("existing_id", c.ID),
					zap.Float64("similarity", sim),
				)
				return models.DuplicateMatch{
					IsDuplicate: true,
					ExistingID:  c.ID,
					Reason:      fmt.Sprintf("similar name (%d%% match) in the same composition family", int(math.Round(sim*100))),
				}, nil
			}
		}
	}

	if source := strings.TrimSpace(data.ExternalSourceURL); source != "" {
		existing, err := r.store.FindBySource(ctx, source, SourceChecksum(data))
		if err != nil {
			return models.DuplicateMatch{}, fmt.Errorf("source duplicate lookup: %w", err)
		}
		if existing != nil {
			r.logger.Debug("same source duplicate", zap.String("existing_id", existing.ID))
			return models.DuplicateMatch{IsDuplicate: true, ExistingID: existing.ID, Reason: ReasonSameSource}, nil
		}
	}
	return models.DuplicateMatch{}, nil
}

// SourceChecksum hashes the fields that identify the listing's content.
func SourceChecksum(data *models.MedicineData) string {
	return urlqueue.ComputeContentHash(strings.Join([]string{
		data.Name,
		data.Composition,
		data.Manufacturer,
		strconv.FormatFloat(data.Price, 'f', -1, 64),
	}, "|"))
}

// Similarity is (longer - distance) / longer over lowercased, trimmed names.
// Two empty names are not considered similar.
func Similarity(a, b string) float64 {
	r1 := []rune(strings.ToLower(strings.TrimSpace(a)))
	r2 := []rune(strings.ToLower(strings.TrimSpace(b)))
	longer := max(len(r1), len(r2))
	if longer == 0 {
		return 0
	}
	return float64(longer-levenshteinDistance(r1, r2)) / float64(longer)
}

// levenshteinDistance keeps two rows of the edit matrix.
func levenshteinDistance(r1, r2 []rune) int {
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	n := len(r2)
	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}
