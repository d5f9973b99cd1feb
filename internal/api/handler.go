// Package api exposes the import, crawl and merge functions over HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"medicine_importer/internal/logger"
	"medicine_importer/internal/models"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Importer interface {
	Import(ctx context.Context, url string, opts models.ImportOptions) (*models.ImportResult, error)
	Enrich(ctx context.Context, existingID string, draft *models.MedicineData) ([]string, error)
}

type Crawler interface {
	Run(ctx context.Context, req models.CrawlRequest) (*models.CrawlResult, error)
}

type ObjectReader interface {
	Open(ctx context.Context, path string) ([]byte, string, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	importer Importer
	crawler  Crawler
	objects  ObjectReader
	logger   *zap.Logger
}

func NewHandler(imp Importer, crawler Crawler, objects ObjectReader, l *zap.Logger) *Handler {
	return &Handler{
		importer: imp,
		crawler:  crawler,
		objects:  objects,
		logger:   logger.OrNop(l),
	}
}

// importOptions mirrors ImportOptions with every field optional so that
// a partial body only overrides what it names.
type importOptions struct {
	DownloadImages *bool `json:"downloadImages"`
	RespectRobots  *bool `json:"respectRobots"`
	StoreHTMLAudit *bool `json:"storeHtmlAudit"`
	ForceCreate    *bool `json:"forceCreate"`
}

type importRequest struct {
	URL     string         `json:"url"`
	Options *importOptions `json:"options"`
}

type mergeRequest struct {
	ExistingID   string               `json:"existingId"`
	MedicineData *models.MedicineData `json:"medicineData"`
}

type mergeResponse struct {
	Success       bool     `json:"success"`
	MedicineID    string   `json:"medicineId,omitempty"`
	UpdatedFields []string `json:"updatedFields"`
	Error         string   `json:"error,omitempty"`
}

func (o *importOptions) apply(opts *models.ImportOptions) {
	if o == nil {
		return
	}
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&opts.DownloadImages, o.DownloadImages)
	set(&opts.RespectRobots, o.RespectRobots)
	set(&opts.StoreHTMLAudit, o.StoreHTMLAudit)
	set(&opts.ForceCreate, o.ForceCreate)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "medicine-importer",
	})
}

// ImportMedicine imports one product url.
func (h *Handler) ImportMedicine(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, failed("invalid request body: "+err.Error()))
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		c.JSON(http.StatusBadRequest, failed("url is required"))
		return
	}

	opts := models.DefaultImportOptions()
	req.Options.apply(&opts)

	res, err := h.importer.Import(c.Request.Context(), req.URL, opts)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case errors.Is(err, models.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, res)
	default:
		h.logger.Error("import failed", zap.String("url", req.URL), zap.Error(err))
		c.JSON(http.StatusInternalServerError, res)
	}
}

// Crawl runs a discovery and import crawl. Missing fields keep their
// defaults and an empty body runs the default crawl.
func (h *Handler) Crawl(c *gin.Context) {
	req := models.DefaultCrawlRequest()
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "errors": []string{"invalid request body: " + err.Error()}})
		return
	}

	res, err := h.crawler.Run(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("crawl failed", zap.Error(err))
		if res == nil {
			res = &models.CrawlResult{Errors: []string{}, ProductURLs: []string{}}
		}
		res.Success = false
		res.Errors = append(res.Errors, err.Error())
		c.JSON(http.StatusInternalServerError, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// MergeMedicine fills the empty composition and description fields of an
// existing medicine from a freshly parsed draft.
func (h *Handler) MergeMedicine(c *gin.Context) {
	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, mergeResponse{UpdatedFields: []string{}, Error: "invalid request body: " + err.Error()})
		return
	}
	if req.ExistingID == "" || req.MedicineData == nil {
		c.JSON(http.StatusBadRequest, mergeResponse{UpdatedFields: []string{}, Error: "existingId and medicineData are required"})
		return
	}

	updated, err := h.importer.Enrich(c.Request.Context(), req.ExistingID, req.MedicineData)
	if updated == nil {
		updated = []string{}
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, models.ErrNotFound) {
			status = http.StatusNotFound
		} else {
			h.logger.Error("merge failed", zap.String("medicine_id", req.ExistingID), zap.Error(err))
		}
		c.JSON(status, mergeResponse{MedicineID: req.ExistingID, UpdatedFields: updated, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, mergeResponse{Success: true, MedicineID: req.ExistingID, UpdatedFields: updated})
}

// ServeObject streams an archived image or html audit.
func (h *Handler) ServeObject(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")
	if path == "" || strings.Contains(path, "..") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad object path"})
		return
	}

	data, contentType, err := h.objects.Open(c.Request.Context(), path)
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
		return
	}
	if err != nil {
		h.logger.Error("object read failed", zap.String("path", path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, contentType, data)
}

func failed(msg string) *models.ImportResult {
	return &models.ImportResult{
		Success:  false,
		Mode:     models.ModeFailed,
		Error:    msg,
		Warnings: []string{},
	}
}
