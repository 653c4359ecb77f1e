package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adapter "geocausal/adapters/causal"
	"geocausal/adapters/excel"
	"geocausal/app"
	"geocausal/domain/causal"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testCSV() string {
	var b strings.Builder
	b.WriteString("country,year,gdp,co2,pop\n")
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, "Kenya,%d,%f,%f,%f\n", 2010+i, 1000.0+float64(i*i)*17.0, 0.3+float64(i)*0.02, 40.0+float64(i))
	}
	b.WriteString("Ghana,2015,1740.0,,28.2\n")
	return b.String()
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	path := filepath.Join(t.TempDir(), "panel.csv")
	require.NoError(t, os.WriteFile(path, []byte(testCSV()), 0644))

	engine := adapter.NewEngine(adapter.DefaultEstimatorConfig())
	estimation := app.NewEstimationService(engine, 5, time.Minute)
	srv := NewServer(excel.NewPanelReader(), estimation, app.NewReportService(), nil)
	require.NoError(t, srv.LoadPanel(path))
	return srv
}

func doRequest(srv *Server, method, target string, body *bytes.Buffer) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func TestCatalogEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(srv, http.MethodGet, "/api/catalog", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		Indicators []string `json:"indicators"`
		Countries  []string `json:"countries"`
		Estimators []string `json:"estimators"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, []string{"gdp", "co2", "pop"}, payload.Indicators)
	assert.Equal(t, []string{"Ghana", "Kenya"}, payload.Countries)
	assert.Len(t, payload.Estimators, 3)
}

func TestMapEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(srv, http.MethodGet, "/api/map?year=2015&variable=gdp", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		Rows []struct {
			Country string  `json:"country"`
			Value   float64 `json:"value"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Len(t, payload.Rows, 2)

	// A country missing the variable in that year is omitted.
	w = doRequest(srv, http.MethodGet, "/api/map?year=2015&variable=co2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Len(t, payload.Rows, 1)
	assert.Equal(t, "Kenya", payload.Rows[0].Country)
}

func TestMapEndpoint_BadInputs(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(srv, http.MethodGet, "/api/map?year=2015&variable=rainfall", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(srv, http.MethodGet, "/api/map?year=abc&variable=gdp", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrendsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(srv, http.MethodGet, "/api/trends?country=Kenya&vars=gdp,co2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		Years  []int                 `json:"years"`
		Series map[string][]*float64 `json:"series"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Len(t, payload.Years, 12)
	assert.Len(t, payload.Series["gdp"], 12)
	assert.Len(t, payload.Series["co2"], 12)

	// Unknown country is a client error.
	w = doRequest(srv, http.MethodGet, "/api/trends?country=Chad&vars=gdp", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestModelsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	// No precomputed table yet.
	w := doRequest(srv, http.MethodGet, "/api/models", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	srv.SetModelTable([]causal.ModelRow{
		causal.NewModelRow("LinearDML", -0.15, -0.30, -0.01),
		causal.NewModelRow("DRLearner", 0.28, 0.11, 0.46),
	})

	w = doRequest(srv, http.MethodGet, "/api/models", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		Best       causal.ModelRow `json:"best"`
		ReportHTML string          `json:"report_html"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, "DRLearner", payload.Best.Model)
	assert.Contains(t, payload.ReportHTML, "<table>")
}

func TestEstimateEndpoint(t *testing.T) {
	srv := newTestServer(t)

	body := bytes.NewBufferString(`{"outcome":"co2","treatment":"gdp","controls":["pop"],"estimator":"LinearDML"}`)
	w := doRequest(srv, http.MethodPost, "/api/estimate", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var payload struct {
		Result  causal.EstimationResult `json:"result"`
		Summary app.Summary             `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, causal.LinearDML, payload.Result.Kind)
	assert.Equal(t, 12, payload.Result.SampleSize, "the incomplete Ghana row must be dropped")
	assert.Contains(t, payload.Summary.Interval, "95% CI: [")
}

func TestEstimateEndpoint_Errors(t *testing.T) {
	srv := newTestServer(t)

	// Unknown variable.
	body := bytes.NewBufferString(`{"outcome":"rainfall","treatment":"gdp","estimator":"LinearDML"}`)
	w := doRequest(srv, http.MethodPost, "/api/estimate", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown estimator kind.
	body = bytes.NewBufferString(`{"outcome":"co2","treatment":"gdp","estimator":"SLearner"}`)
	w = doRequest(srv, http.MethodPost, "/api/estimate", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Malformed body.
	body = bytes.NewBufferString(`{`)
	w = doRequest(srv, http.MethodPost, "/api/estimate", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "upload.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("country,year,literacy\nKenya,2015,78.0\nGhana,2015,71.5\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The catalog now reflects the new panel.
	cw := doRequest(srv, http.MethodGet, "/api/catalog", nil)
	require.Equal(t, http.StatusOK, cw.Code)
	var payload struct {
		Indicators []string `json:"indicators"`
	}
	require.NoError(t, json.Unmarshal(cw.Body.Bytes(), &payload))
	assert.Equal(t, []string{"literacy"}, payload.Indicators)
}

func TestUploadEndpoint_BadFile(t *testing.T) {
	srv := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "upload.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("name,value\nKenya,1.0\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
