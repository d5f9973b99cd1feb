// Package db holds the catalogue drivers: MongoDB for deployments and an
// in-memory store for local runs and tests.
package db

import (
	"context"
	"medicine_importer/internal/models"
)

type Store interface {
	InsertMedicine(ctx context.Context, m *models.Medicine) error
	GetMedicine(ctx context.Context, id string) (*models.Medicine, error)
	FindByExactKey(ctx context.Context, compositionKey, manufacturer, packSize string) (*models.Medicine, error)
	FindByFamilyKey(ctx context.Context, familyKey string, limit int) ([]models.Medicine, error)
	FindBySource(ctx context.Context, sourceURL, checksum string) (*models.Medicine, error)
	FillEmptyFields(ctx context.Context, id string, fields map[string]string) ([]string, error)
	Close() error
}

var (
	_ Store = (*MongoDB)(nil)
	_ Store = (*MemoryStore)(nil)
)
