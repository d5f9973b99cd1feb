// Package images re-hosts product images under content-addressed paths.
package images

import (
	"context"
	"fmt"
	"medicine_importer/internal/logger"
	"medicine_importer/internal/models"
	"medicine_importer/internal/storage"
	urlqueue "medicine_importer/internal/url_queue"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"
)

const pathPrefix = "medicine-images"

type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, string, error)
}

type Archiver struct {
	fetcher Fetcher
	store   storage.Store
	logger  *zap.Logger
}

func NewArchiver(f Fetcher, store storage.Store, l *zap.Logger) *Archiver {
	return &Archiver{fetcher: f, store: store, logger: logger.OrNop(l)}
}

// Archive rewrites the image fields of data. Failures never abort: they are
// returned as warnings and the remote url is kept.
func (a *Archiver) Archive(ctx context.Context, data *models.MedicineData, download bool) []string {
	remote := data.ImageURL
	if remote == "" {
		return nil
	}
	data.OriginalImageURL = remote

	if !download {
		return []string{fmt.Sprintf("image is hotlinked from %s; it was not downloaded", hostOf(remote))}
	}

	body, contentType, err := a.fetcher.FetchBytes(ctx, remote)
	if err != nil {
		a.logger.Warn("image download failed", zap.String("url", remote), zap.Error(err))
		return []string{fmt.Sprintf("image download failed, keeping original url: %v", err)}
	}
	if !strings.HasPrefix(contentType, "image/") {
		return []string{fmt.Sprintf("image url returned %q, keeping original url", contentType)}
	}

	hash := urlqueue.ComputeBytesHash(body)
	objectPath := ObjectPath(hash, extension(contentType, remote))

	exists, err := a.store.Exists(ctx, objectPath)
	if err != nil {
		a.logger.Warn("image lookup failed", zap.String("path", objectPath), zap.Error(err))
	}
	if !exists {
		if err := a.store.Put(ctx, objectPath, body, contentType); err != nil {
			a.logger.Warn("image upload failed", zap.String("path", objectPath), zap.Error(err))
			return []string{fmt.Sprintf("image upload failed, keeping original url: %v", err)}
		}
	}

	public := a.store.PublicURL(objectPath)
	data.ImageURL = public
	data.ThumbnailURL = public
	data.ImageHash = hash
	a.logger.Debug("image archived", zap.String("url", remote), zap.String("path", objectPath))
	return nil
}

// ObjectPath is medicine-images/<first two hash chars>/<hash>.<ext>.
func ObjectPath(hash, ext string) string {
	return path.Join(pathPrefix, hash[:2], hash+"."+ext)
}

func extension(contentType, remote string) string {
	switch strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	case "image/avif":
		return "avif"
	case "image/svg+xml":
		return "svg"
	}
	if u, err := url.Parse(remote); err == nil {
		if ext := strings.TrimPrefix(path.Ext(u.Path), "."); ext != "" && len(ext) <= 4 {
			return strings.ToLower(ext)
		}
	}
	return "bin"
}

func hostOf(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Host
	}
	return raw
}
