package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerylCAtieno/legalease-api/internal/analyzer"
	"github.com/BerylCAtieno/legalease-api/internal/extractor"
	"github.com/BerylCAtieno/legalease-api/internal/handlers"
	"github.com/BerylCAtieno/legalease-api/internal/models"
	"github.com/BerylCAtieno/legalease-api/internal/observability"
	"github.com/BerylCAtieno/legalease-api/internal/ratelimit"
	"github.com/BerylCAtieno/legalease-api/internal/repository"
	"github.com/BerylCAtieno/legalease-api/internal/services"
	"github.com/BerylCAtieno/legalease-api/internal/storage"
	"github.com/BerylCAtieno/legalease-api/internal/utils"
)

const lease = `This lease agreement is made between Asha Verma (Landlord) and Ravi Kumar (Tenant).
The monthly rent is 18000 rupees, payable before the fifth day of every month.
The tenant shall pay a refundable security deposit of 36000 rupees.
Either party may terminate the lease by giving one month of written notice.`

type cannedProvider struct{}

func (cannedProvider) Name() string  { return "canned" }
func (cannedProvider) Model() string { return "canned-1" }

func (cannedProvider) Generate(ctx context.Context, prompt string) analyzer.Outcome {
	return analyzer.Success("Canned analysis of the lease.")
}

func newTestServer(t *testing.T, limits map[ratelimit.Class]ratelimit.Limit) (http.Handler, *prometheus.Registry) {
	t.Helper()
	logger := utils.NewNopLogger()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	repo := repository.NewMemoryRepository()
	ext := extractor.NewLocalExtractor(logger)
	an := analyzer.NewAnalyzer(cannedProvider{}, logger)

	h := NewRouter(Deps{
		Documents:   services.NewDocumentService(repo, storage.NewMemoryStorage(), ext, an, metrics, logger),
		Questions:   services.NewQAService(repo, an, ext, 0, metrics, logger),
		Gate:        ratelimit.NewGate(limits, logger),
		Store:       repo,
		Metrics:     metrics,
		Gatherer:    reg,
		ClientURL:   "http://localhost:3002",
		AdminToken:  adminToken,
		MaxFileSize: 10 << 20,
		Logger:      logger,
	})
	return h, reg
}

const adminToken = "admin-secret"

func defaultLimits() map[ratelimit.Class]ratelimit.Limit {
	return map[ratelimit.Class]ratelimit.Limit{
		ratelimit.ClassGeneral: {Points: 100, Duration: 15 * time.Minute},
		ratelimit.ClassUpload:  {Points: 10, Duration: 15 * time.Minute},
		ratelimit.ClassAI:      {Points: 20, Duration: time.Hour},
		ratelimit.ClassQA:      {Points: 50, Duration: time.Hour},
	}
}

func uploadRequest(t *testing.T) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("document", "lease.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte(lease))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("language", "en"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.RemoteAddr = "198.51.100.7:40000"
	return req
}

func TestEndToEnd_UploadAskHistory(t *testing.T) {
	h, _ := newTestServer(t, defaultLimits())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, uploadRequest(t))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var up models.UploadResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &up))
	assert.Equal(t, models.StatusCompleted, up.Status)
	require.NotEmpty(t, up.DocumentID)
	assert.Equal(t, "9", rr.Header().Get("X-RateLimit-Remaining"), "upload class budget is reported")

	ask := httptest.NewRequest(http.MethodPost, "/documents/"+up.DocumentID+"/questions",
		strings.NewReader(`{"question":"What is the monthly rent?","language":"en"}`))
	ask.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, ask)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var entry models.QAEntry
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &entry))
	assert.Contains(t, entry.Answer, analyzer.Disclaimer)
	assert.True(t, entry.RelevantSections)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/documents/"+up.DocumentID+"/questions", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var history models.HistoryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &history))
	assert.Equal(t, 1, history.Total)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/documents/"+up.DocumentID, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var doc models.Document
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	assert.True(t, doc.ProcessingSteps.Complete())
	assert.NotEmpty(t, doc.ExtractedText)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/documents/"+up.DocumentID, nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/documents/"+up.DocumentID, nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUploadRateLimit(t *testing.T) {
	limits := defaultLimits()
	limits[ratelimit.ClassUpload] = ratelimit.Limit{Points: 1, Duration: 15 * time.Minute}
	h, reg := newTestServer(t, limits)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, uploadRequest(t))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, uploadRequest(t))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	// Other classes are unaffected
	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.RemoteAddr = "198.51.100.7:40000"
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	families, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range families {
		if mf.GetName() == "legalease_rate_limit_denials_total" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAdminRateLimitStatusAndReset(t *testing.T) {
	limits := defaultLimits()
	limits[ratelimit.ClassUpload] = ratelimit.Limit{Points: 1, Duration: 15 * time.Minute}
	h, _ := newTestServer(t, limits)

	admin := func(method, path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, uploadRequest(t))
	require.Equal(t, http.StatusOK, rr.Code)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, uploadRequest(t))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)

	assert.Equal(t, http.StatusUnauthorized, admin(http.MethodGet, "/admin/rate-limits/upload/198.51.100.7", "").Code)
	assert.Equal(t, http.StatusUnauthorized, admin(http.MethodDelete, "/admin/rate-limits/upload/198.51.100.7", "wrong").Code)

	rr = admin(http.MethodGet, "/admin/rate-limits/upload/198.51.100.7", adminToken)
	require.Equal(t, http.StatusOK, rr.Code)
	var st handlers.RateLimitStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.True(t, st.Blocked)
	assert.Equal(t, 1, st.Limit)
	assert.Zero(t, st.Remaining)
	assert.Greater(t, st.RetryAfter, 0)

	assert.Equal(t, http.StatusNotFound, admin(http.MethodGet, "/admin/rate-limits/bogus/198.51.100.7", adminToken).Code)

	rr = admin(http.MethodDelete, "/admin/rate-limits/upload/198.51.100.7", adminToken)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, uploadRequest(t))
	assert.Equal(t, http.StatusOK, rr.Code, "reset window admits again")
}

func TestAdminRoutesAbsentWithoutToken(t *testing.T) {
	h := NewRouter(Deps{
		Gate:   ratelimit.NewGate(defaultLimits(), utils.NewNopLogger()),
		Logger: utils.NewNopLogger(),
	})
	req := httptest.NewRequest(http.MethodGet, "/admin/rate-limits/upload/198.51.100.7", nil)
	req.Header.Set("Authorization", "Bearer ")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealthMetricsAndPreflight(t *testing.T) {
	h, _ := newTestServer(t, defaultLimits())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "legalease_http_requests_total")

	pre := httptest.NewRequest(http.MethodOptions, "/documents", nil)
	pre.Header.Set("Origin", "http://localhost:3002")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, pre)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:3002", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ai/status", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var st models.AIStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, "canned-1", st.Generation.Model)
	assert.Equal(t, "local", st.Extraction.Name)
}
