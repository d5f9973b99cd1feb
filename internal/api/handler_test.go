package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"medicine_importer/internal/config"
	"medicine_importer/internal/models"
	"medicine_importer/internal/storage"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeImporter struct {
	gotURL   string
	gotOpts  models.ImportOptions
	result   *models.ImportResult
	err      error
	enrichID string
	enriched []string
	enrichEr error
}

func (f *fakeImporter) Import(_ context.Context, u string, opts models.ImportOptions) (*models.ImportResult, error) {
	f.gotURL, f.gotOpts = u, opts
	return f.result, f.err
}

func (f *fakeImporter) Enrich(_ context.Context, id string, _ *models.MedicineData) ([]string, error) {
	f.enrichID = id
	return f.enriched, f.enrichEr
}

type fakeCrawler struct {
	got    models.CrawlRequest
	result *models.CrawlResult
	err    error
}

func (f *fakeCrawler) Run(_ context.Context, req models.CrawlRequest) (*models.CrawlResult, error) {
	f.got = req
	return f.result, f.err
}

type fixture struct {
	router   *gin.Engine
	importer *fakeImporter
	crawler  *fakeCrawler
	objects  *storage.Memory
}

func newFixture() *fixture {
	f := &fixture{
		importer: &fakeImporter{result: &models.ImportResult{Success: true, Mode: models.ModeCreated, MedicineID: "m-1", Warnings: []string{}}},
		crawler: &fakeCrawler{result: &models.CrawlResult{
			Success:     true,
			Errors:      []string{},
			ProductURLs: []string{"https://www.1mg.com/drugs/dolo-650-tablet-74467"},
		}},
		objects: storage.NewMemory("http://localhost:8080/storage"),
	}
	cfg := config.ServerConfig{Environment: "test", AllowedOrigins: []string{"*"}}
	f.router = SetupRouter(cfg, NewHandler(f.importer, f.crawler, f.objects, nil))
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthCheck(t *testing.T) {
	w := newFixture().do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
}

func TestImportMedicine(t *testing.T) {
	t.Run("defaults options", func(t *testing.T) {
		f := newFixture()
		w := f.do(http.MethodPost, "/functions/v1/import-medicine-from-url", `{"url":" https://www.1mg.com/drugs/dolo-650-tablet-74467 "}`)

		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "created", body["mode"])
		assert.Equal(t, "https://www.1mg.com/drugs/dolo-650-tablet-74467", f.importer.gotURL)
		assert.Equal(t, models.DefaultImportOptions(), f.importer.gotOpts)
	})

	t.Run("partial options override defaults", func(t *testing.T) {
		f := newFixture()
		w := f.do(http.MethodPost, "/functions/v1/import-medicine-from-url",
			`{"url":"https://example.com/p/1","options":{"downloadImages":false,"storeHtmlAudit":true}}`)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.ImportOptions{DownloadImages: false, RespectRobots: true, StoreHTMLAudit: true}, f.importer.gotOpts)
	})

	t.Run("missing url", func(t *testing.T) {
		f := newFixture()
		w := f.do(http.MethodPost, "/functions/v1/import-medicine-from-url", `{"options":{}}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decode(t, w)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "url is required", body["error"])
		assert.Empty(t, f.importer.gotURL)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := newFixture().do(http.MethodPost, "/functions/v1/import-medicine-from-url", `{"url":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid url", func(t *testing.T) {
		f := newFixture()
		err := fmt.Errorf("%w: %q", models.ErrInvalidURL, "ftp://x")
		f.importer.result = &models.ImportResult{Mode: models.ModeFailed, Error: err.Error(), Warnings: []string{}}
		f.importer.err = err

		w := f.do(http.MethodPost, "/functions/v1/import-medicine-from-url", `{"url":"ftp://x"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("robots denial is a business outcome", func(t *testing.T) {
		f := newFixture()
		f.importer.result = &models.ImportResult{Mode: models.ModeFailed, Error: models.ErrorDisallowedByRobots, Warnings: []string{}}

		w := f.do(http.MethodPost, "/functions/v1/import-medicine-from-url", `{"url":"https://example.com/drugs/x"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.ErrorDisallowedByRobots, decode(t, w)["error"])
	})

	t.Run("unexpected failure", func(t *testing.T) {
		f := newFixture()
		err := fmt.Errorf("%w: insert medicine: connection refused", models.ErrPersistence)
		f.importer.result = &models.ImportResult{Mode: models.ModeFailed, Error: err.Error(), Warnings: []string{}}
		f.importer.err = err

		w := f.do(http.MethodPost, "/functions/v1/import-medicine-from-url", `{"url":"https://example.com/drugs/x"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decode(t, w)
		assert.Equal(t, false, body["success"])
		assert.Contains(t, body["error"], "connection refused")
	})
}

func TestCrawl(t *testing.T) {
	t.Run("empty body runs defaults", func(t *testing.T) {
		f := newFixture()
		w := f.do(http.MethodPost, "/functions/v1/crawl-1mg-popular", "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.DefaultCrawlRequest(), f.crawler.got)
		assert.Equal(t, true, decode(t, w)["success"])
	})

	t.Run("fields override defaults", func(t *testing.T) {
		f := newFixture()
		w := f.do(http.MethodPost, "/functions/v1/crawl-1mg-popular", `{"maxProducts":5,"dryRun":true,"useFirecrawl":false}`)

		require.Equal(t, http.StatusOK, w.Code)
		want := models.DefaultCrawlRequest()
		want.MaxProducts = 5
		want.DryRun = true
		want.UseFirecrawl = false
		assert.Equal(t, want, f.crawler.got)
	})

	t.Run("cancelled crawl", func(t *testing.T) {
		f := newFixture()
		f.crawler.err = context.Canceled

		w := f.do(http.MethodPost, "/functions/v1/crawl-1mg-popular", `{}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decode(t, w)
		assert.Equal(t, false, body["success"])
		assert.Contains(t, body["errors"], context.Canceled.Error())
	})
}

func TestMergeMedicine(t *testing.T) {
	t.Run("fills fields", func(t *testing.T) {
		f := newFixture()
		f.importer.enriched = []string{"composition", "description"}

		w := f.do(http.MethodPost, "/functions/v1/merge-medicine-data", `{"existingId":"m-1","medicineData":{"name":"Dolo 650","composition":"Paracetamol 650mg"}}`)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "m-1", body["medicineId"])
		assert.Equal(t, []any{"composition", "description"}, body["updatedFields"])
		assert.Equal(t, "m-1", f.importer.enrichID)
	})

	t.Run("nothing to fill", func(t *testing.T) {
		f := newFixture()
		w := f.do(http.MethodPost, "/functions/v1/merge-medicine-data", `{"existingId":"m-1","medicineData":{}}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []any{}, decode(t, w)["updatedFields"])
	})

	t.Run("missing fields", func(t *testing.T) {
		w := newFixture().do(http.MethodPost, "/functions/v1/merge-medicine-data", `{"existingId":"m-1"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown medicine", func(t *testing.T) {
		f := newFixture()
		f.importer.enrichEr = fmt.Errorf("enrich m-9: %w", models.ErrNotFound)
		w := f.do(http.MethodPost, "/functions/v1/merge-medicine-data", `{"existingId":"m-9","medicineData":{"name":"x"}}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture()
		f.importer.enrichEr = errors.New("connection refused")
		w := f.do(http.MethodPost, "/functions/v1/merge-medicine-data", `{"existingId":"m-1","medicineData":{"name":"x"}}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestServeObject(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.objects.Put(context.Background(), "medicine-images/ab/abcd.jpg", []byte("jpeg"), "image/jpeg"))

	w := f.do(http.MethodGet, "/storage/medicine-images/ab/abcd.jpg", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "jpeg", w.Body.String())

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/storage/medicine-images/ab/missing.jpg", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/storage/", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture()
	f.do(http.MethodGet, "/health", "")

	w := f.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
	assert.Contains(t, w.Body.String(), `endpoint="/health"`)
}

func TestUnknownRoutes(t *testing.T) {
	f := newFixture()
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/functions/v1/import-medicine-from-url", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/functions/v1/unknown", "{}").Code)
}
