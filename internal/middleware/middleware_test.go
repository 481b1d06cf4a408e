package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerylCAtieno/legalease-api/internal/ratelimit"
	"github.com/BerylCAtieno/legalease-api/internal/utils"
)

func okHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_DeniesWithHeaders(t *testing.T) {
	gate := ratelimit.NewGate(map[ratelimit.Class]ratelimit.Limit{
		ratelimit.ClassUpload: {Points: 2, Duration: 15 * time.Minute},
	}, utils.NewNopLogger())

	calls := 0
	h := RateLimit(gate, ratelimit.ClassUpload, nil, nil)(okHandler(&calls))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/documents", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "2", rr.Header().Get("X-RateLimit-Limit"))
	}

	req := httptest.NewRequest(http.MethodPost, "/documents", nil)
	req.RemoteAddr = "10.0.0.1:6666"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, 2, calls, "denied request must not reach the handler")
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.NotEmpty(t, rr.Header().Get("X-RateLimit-Reset"))

	var body rateLimitBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Too many requests", body.Error)
	assert.Greater(t, body.RetryAfter, 0)
	assert.Equal(t, rr.Header().Get("Retry-After"), strconv.Itoa(body.RetryAfter))
	assert.Equal(t, "Rate limit exceeded. Try again in "+strconv.Itoa(body.RetryAfter)+" seconds.", body.Message)

	other := httptest.NewRequest(http.MethodPost, "/documents", nil)
	other.RemoteAddr = "10.0.0.2:5555"
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, other)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRateLimit_UnknownClassPassesThrough(t *testing.T) {
	gate := ratelimit.NewGate(nil, utils.NewNopLogger())
	calls := 0
	h := RateLimit(gate, ratelimit.ClassAI, nil, nil)(okHandler(&calls))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
}

func TestRecovery(t *testing.T) {
	h := Recovery(utils.NewNopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rr.Body.String())
}

func TestCORS(t *testing.T) {
	calls := 0
	h := CORS("http://localhost:3002")(okHandler(&calls))

	req := httptest.NewRequest(http.MethodOptions, "/documents", nil)
	req.Header.Set("Origin", "http://localhost:3002")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:3002", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Zero(t, calls)

	req = httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, 1, calls)
}

func TestRateLimit_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	gate := ratelimit.NewGate(map[ratelimit.Class]ratelimit.Limit{
		ratelimit.ClassUpload: {Points: 1, Duration: 15 * time.Minute},
	}, utils.NewNopLogger())
	ips, err := NewClientIPs([]string{"172.16.0.0/12"})
	require.NoError(t, err)

	calls := 0
	h := RateLimit(gate, ratelimit.ClassUpload, ips, nil)(okHandler(&calls))

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/documents", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	assert.Equal(t, 1, calls, "a rotating header must not open a fresh budget")
	assert.Equal(t, []int{200, 429, 429, 429, 429}, codes)
}

func TestRateLimit_TrustedProxyKeysOnForwardedClient(t *testing.T) {
	gate := ratelimit.NewGate(map[ratelimit.Class]ratelimit.Limit{
		ratelimit.ClassUpload: {Points: 1, Duration: 15 * time.Minute},
	}, utils.NewNopLogger())
	ips, err := NewClientIPs([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	calls := 0
	h := RateLimit(gate, ratelimit.ClassUpload, ips, nil)(okHandler(&calls))

	send := func(client string) int {
		req := httptest.NewRequest(http.MethodPost, "/documents", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("X-Forwarded-For", client)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.5"))
	assert.Equal(t, http.StatusOK, send("203.0.113.6"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.5"))
	assert.Equal(t, 2, calls)
}

func TestClientIPs_Resolve(t *testing.T) {
	ips, err := NewClientIPs([]string{"10.0.0.0/8", "192.168.1.1"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		resolver   *ClientIPs
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"no proxies configured", nil, "192.168.1.10:4000", "203.0.113.5", "192.168.1.10"},
		{"untrusted peer", ips, "192.168.1.10:4000", "203.0.113.5", "192.168.1.10"},
		{"trusted peer without header", ips, "10.1.2.3:4000", "", "10.1.2.3"},
		{"trusted peer", ips, "10.1.2.3:4000", "203.0.113.5", "203.0.113.5"},
		{"client prepends a fake hop", ips, "10.1.2.3:4000", "1.2.3.4, 203.0.113.5", "203.0.113.5"},
		{"chain of trusted proxies", ips, "192.168.1.1:4000", "203.0.113.5, 10.9.9.9", "203.0.113.5"},
		{"ipv4-mapped peer", ips, "[::ffff:10.1.2.3]:4000", "203.0.113.5", "203.0.113.5"},
		{"all hops trusted", ips, "10.1.2.3:4000", "10.0.0.7", "10.1.2.3"},
		{"no port", nil, "192.168.1.10", "", "192.168.1.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, tt.resolver.Resolve(req))
		})
	}
}

func TestNewClientIPs_RejectsInvalid(t *testing.T) {
	_, err := NewClientIPs([]string{"10.0.0.0/8", "proxy.internal"})
	assert.Error(t, err)
}

func TestLogger_RecordsStatus(t *testing.T) {
	h := Logger(utils.NewNopLogger(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}
