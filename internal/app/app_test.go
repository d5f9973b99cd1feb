package app

import (
	"encoding/json"
	"fmt"
	"medicine_importer/internal/config"
	"medicine_importer/internal/models"
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

const productPage = `<html><head>
<title>Dolo 650 Tablet | Pharmacy</title>
<script type="application/ld+json">{
  "@type": "Product",
  "name": "Dolo 650 Tablet",
  "brand": {"@type": "Brand", "name": "Micro Labs Ltd"},
  "activeIngredient": "Paracetamol 650mg",
  "image": "/img/dolo.jpg",
  "offers": {"@type": "Offer", "price": 30.5}
}</script>
</head><body><h1>Dolo 650 Tablet</h1></body></html>`

func newRetailer(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/drugs/dolo-650-tablet-74467":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, productPage)
		case "/img/dolo.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte{0xff, 0xd8, 0xff, 0xe0, 'j', 'p', 'e', 'g'})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, h http.Handler, path, body string) (*httptest.ResponseRecorder, models.ImportResult) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var res models.ImportResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return w, res
}

func TestImportEndToEnd(t *testing.T) {
	retailer := newRetailer(t)
	a, err := New(config.Default(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	body := fmt.Sprintf(`{"url":%q}`, retailer.URL+"/drugs/dolo-650-tablet-74467")

	w, first := post(t, a.Handler(), "/functions/v1/import-medicine-from-url", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, first.Success)
	assert.Equal(t, models.ModeCreated, first.Mode)
	require.NotNil(t, first.MedicineData)
	assert.Equal(t, "Dolo 650 Tablet", first.MedicineData.Name)
	assert.Equal(t, 30.5, first.MedicineData.Price)
	assert.Equal(t, "paracetamol", first.MedicineData.CompositionFamilyKey)
	assert.Equal(t, retailer.URL+"/img/dolo.jpg", first.MedicineData.OriginalImageURL)
	require.True(t, strings.HasPrefix(first.MedicineData.ImageURL, "http://localhost:8080/storage/medicine-images/"), first.MedicineData.ImageURL)

	objectPath := strings.TrimPrefix(first.MedicineData.ImageURL, "http://localhost:8080")
	img := httptest.NewRecorder()
	a.Handler().ServeHTTP(img, httptest.NewRequest(http.MethodGet, objectPath, nil))
	assert.Equal(t, http.StatusOK, img.Code)
	assert.Equal(t, "image/jpeg", img.Header().Get("Content-Type"))

	w, second := post(t, a.Handler(), "/functions/v1/import-medicine-from-url", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, second.Success)
	assert.Equal(t, models.ModeUpdated, second.Mode)
	assert.Equal(t, first.MedicineID, second.MedicineID)
	assert.NotEmpty(t, second.DedupeReason)
}

func TestImportFetchFailure(t *testing.T) {
	retailer := newRetailer(t)
	a, err := New(config.Default(), nil)
	require.NoError(t, err)

	w, res := post(t, a.Handler(), "/functions/v1/import-medicine-from-url", fmt.Sprintf(`{"url":%q}`, retailer.URL+"/drugs/missing-1"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, res.Success)
	assert.Equal(t, models.ModeFailed, res.Mode)
	assert.NotEmpty(t, res.Error)
}

func TestNewRejectsBadCrawlPattern(t *testing.T) {
	cfg := config.Default()
	cfg.Crawl.ProductPatterns = []string{"("}
	_, err := New(cfg, nil)
	assert.Error(t, err)
}
