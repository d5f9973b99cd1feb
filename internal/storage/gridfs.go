package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"medicine_importer/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFS stores objects in a MongoDB GridFS bucket, keyed by path.
type GridFS struct {
	db      *mongo.Database
	name    string
	baseURL string
}

func NewGridFS(db *mongo.Database, bucket, publicBaseURL string) *GridFS {
	return &GridFS{db: db, name: bucket, baseURL: publicBaseURL}
}

// bucket returns a fresh handle so deadlines set for one call do not leak
// into another.
func (g *GridFS) bucket(ctx context.Context) (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(g.db, options.GridFSBucket().SetName(g.name))
	if err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		if err := b.SetReadDeadline(dl); err != nil {
			return nil, err
		}
		if err := b.SetWriteDeadline(dl); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (g *GridFS) Put(ctx context.Context, path string, data []byte, contentType string) error {
	b, err := g.bucket(ctx)
	if err != nil {
		return fmt.Errorf("%w: open bucket: %v", models.ErrPersistence, err)
	}
	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "contentType", Value: contentType}})
	if _, err := b.UploadFromStream(path, bytes.NewReader(data), opts); err != nil {
		return fmt.Errorf("%w: upload %s: %v", models.ErrPersistence, path, err)
	}
	return nil
}

func (g *GridFS) Open(ctx context.Context, path string) ([]byte, string, error) {
	b, err := g.bucket(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("%w: open bucket: %v", models.ErrPersistence, err)
	}
	stream, err := b.OpenDownloadStreamByName(path)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, "", fmt.Errorf("object %s: %w", path, models.ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: download %s: %v", models.ErrPersistence, path, err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, "", fmt.Errorf("%w: read %s: %v", models.ErrPersistence, path, err)
	}
	contentType := "application/octet-stream"
	if file := stream.GetFile(); file != nil && file.Metadata != nil {
		if ct, ok := file.Metadata.Lookup("contentType").StringValueOK(); ok {
			contentType = ct
		}
	}
	return data, contentType, nil
}

func (g *GridFS) Exists(ctx context.Context, path string) (bool, error) {
	b, err := g.bucket(ctx)
	if err != nil {
		return false, err
	}
	cursor, err := b.Find(bson.M{"filename": path}, options.GridFSFind().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("%w: find %s: %v", models.ErrPersistence, path, err)
	}
	defer cursor.Close(ctx)
	return cursor.Next(ctx), cursor.Err()
}

func (g *GridFS) PublicURL(path string) string {
	return publicURL(g.baseURL, path)
}
