package db

import (
	"context"
	"fmt"
	"medicine_importer/internal/models"
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryStore is the catalogue driver used for local runs and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	rows  map[string]models.Medicine
	order []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]models.Medicine)}
}

func (s *MemoryStore) InsertMedicine(_ context.Context, m *models.Medicine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		return fmt.Errorf("%w: insert medicine: empty id", models.ErrPersistence)
	}
	if _, ok := s.rows[m.ID]; ok {
		return fmt.Errorf("%w: insert medicine: duplicate id %s", models.ErrPersistence, m.ID)
	}
	s.rows[m.ID] = clone(*m)
	s.order = append(s.order, m.ID)
	return nil
}

func (s *MemoryStore) GetMedicine(_ context.Context, id string) (*models.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.rows[id]
	if !ok {
		return nil, fmt.Errorf("medicine %s: %w", id, models.ErrNotFound)
	}
	out := clone(m)
	return &out, nil
}

func (s *MemoryStore) FindByExactKey(_ context.Context, compositionKey, manufacturer, packSize string) (*models.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		m := s.rows[id]
		if m.CompositionKey == compositionKey && m.Manufacturer == manufacturer && m.PackSize == packSize {
			out := clone(m)
			return &out, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) FindByFamilyKey(_ context.Context, familyKey string, limit int) ([]models.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Medicine
	for _, id := range s.order {
		if limit > 0 && len(out) >= limit {
			break
		}
		if m := s.rows[id]; m.CompositionFamilyKey == familyKey {
			out = append(out, clone(m))
		}
	}
	return out, nil
}

func (s *MemoryStore) FindBySource(_ context.Context, sourceURL, checksum string) (*models.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		m := s.rows[id]
		if m.ExternalSourceURL == sourceURL && m.SourceChecksum == checksum {
			out := clone(m)
			return &out, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) FillEmptyFields(_ context.Context, id string, fields map[string]string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.rows[id]
	if !ok {
		return nil, fmt.Errorf("medicine %s: %w", id, models.ErrNotFound)
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var updated []string
	for _, name := range names {
		ptr := m.StringField(name)
		if ptr == nil {
			return updated, fmt.Errorf("%w: fill %s: unknown field", models.ErrPersistence, name)
		}
		if *ptr == "" && fields[name] != "" {
			*ptr = fields[name]
			updated = append(updated, name)
		}
	}
	if len(updated) > 0 {
		m.UpdatedAt = time.Now().UTC()
		s.rows[id] = m
	}
	return updated, nil
}

// Len reports the number of stored rows.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func (s *MemoryStore) Close() error { return nil }

func clone(m models.Medicine) models.Medicine {
	m.Uses = slices.Clone(m.Uses)
	m.SideEffects = slices.Clone(m.SideEffects)
	return m
}
