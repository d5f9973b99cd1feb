package db

import (
	"context"
	"errors"
	"fmt"
	"medicine_importer/internal/config"
	"medicine_importer/internal/logger"
	"medicine_importer/internal/models"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type MongoDB struct {
	client    *mongo.Client
	database  *mongo.Database
	medicines *mongo.Collection
	logger    *zap.Logger
}

func NewMongoDB(config config.DBConfig, l *zap.Logger) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.Connection))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("can't ping MongoDB: %w", err)
	}

	db := client.Database(config.Database)

	d := &MongoDB{
		client:    client,
		database:  db,
		medicines: db.Collection(config.Collections.Medicines),
		logger:    logger.OrNop(l),
	}

	if err := d.createIndexes(); err != nil {
		return nil, fmt.Errorf("can't create indices: %w", err)
	}

	return d, nil
}

// Database exposes the handle so object storage can share the connection.
func (d *MongoDB) Database() *mongo.Database {
	return d.database
}

func (d *MongoDB) createIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "composition_key", Value: 1},
			{Key: "manufacturer", Value: 1},
			{Key: "pack_size", Value: 1},
		}},
		{Keys: bson.D{{Key: "composition_family_key", Value: 1}}},
		{Keys: bson.D{
			{Key: "external_source_url", Value: 1},
			{Key: "source_checksum", Value: 1},
		}},
	}
	for _, idx := range indexes {
		if _, err := d.medicines.Indexes().CreateOne(ctx, idx); err != nil {
			d.logger.Warn("index creation failed", zap.Any("keys", idx.Keys), zap.Error(err))
		}
	}
	return nil
}

func (d *MongoDB) InsertMedicine(ctx context.Context, m *models.Medicine) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := d.medicines.InsertOne(ctx, m); err != nil {
		return persistenceError("insert medicine", err)
	}
	return nil
}

func (d *MongoDB) GetMedicine(ctx context.Context, id string) (*models.Medicine, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var m models.Medicine
	err := d.medicines.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("medicine %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, persistenceError("get medicine", err)
	}
	return &m, nil
}

// FindByExactKey returns nil, nil when no row carries the business key.
func (d *MongoDB) FindByExactKey(ctx context.Context, compositionKey, manufacturer, packSize string) (*models.Medicine, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"composition_key": compositionKey,
		"manufacturer":    manufacturer,
		"pack_size":       packSize,
	}
	var m models.Medicine
	err := d.medicines.FindOne(ctx, filter).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceError("find by exact key", err)
	}
	return &m, nil
}

// FindBySource returns nil, nil when the url was never imported with this
// content checksum.
func (d *MongoDB) FindBySource(ctx context.Context, sourceURL, checksum string) (*models.Medicine, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"external_source_url": sourceURL,
		"source_checksum":     checksum,
	}
	var m models.Medicine
	err := d.medicines.FindOne(ctx, filter).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceError("find by source", err)
	}
	return &m, nil
}

func (d *MongoDB) FindByFamilyKey(ctx context.Context, familyKey string, limit int) ([]models.Medicine, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().
		SetProjection(bson.M{"name": 1, "composition_family_key": 1, "manufacturer": 1, "pack_size": 1}).
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := d.medicines.Find(ctx, bson.M{"composition_family_key": familyKey}, opts)
	if err != nil {
		return nil, persistenceError("find by family key", err)
	}
	defer cursor.Close(ctx)

	var rows []models.Medicine
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, persistenceError("decode family candidates", err)
	}
	return rows, nil
}

// FillEmptyFields sets each field only where the stored value is missing,
// null or empty, one conditional single-row update per field. It returns
// the fields that were actually written.
func (d *MongoDB) FillEmptyFields(ctx context.Context, id string, fields map[string]string) ([]string, error) {
	if _, err := d.GetMedicine(ctx, id); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var updated []string
	for _, name := range names {
		value := fields[name]
		if value == "" {
			continue
		}
		filter := bson.M{
			"_id": id,
			"$or": bson.A{
				bson.M{name: bson.M{"$exists": false}},
				bson.M{name: nil},
				bson.M{name: ""},
			},
		}
		update := bson.M{"$set": bson.M{name: value, "updated_at": time.Now().UTC()}}
		res, err := d.medicines.UpdateOne(ctx, filter, update)
		if err != nil {
			return updated, persistenceError("fill "+name, err)
		}
		if res.ModifiedCount > 0 {
			updated = append(updated, name)
		}
	}
	return updated, nil
}

func (d *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return d.client.Disconnect(ctx)
}

// persistenceError keeps the driver message and adds a hint for the
// constraint violations a caller can act on.
func persistenceError(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s: %v (hint: a row with the same key already exists)", models.ErrPersistence, op, err)
	}
	var we mongo.WriteException
	if errors.As(err, &we) && we.WriteConcernError != nil {
		return fmt.Errorf("%w: %s: %v (write concern: %s)", models.ErrPersistence, op, err, we.WriteConcernError.Message)
	}
	return fmt.Errorf("%w: %s: %v", models.ErrPersistence, op, err)
}
