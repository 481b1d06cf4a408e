package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/BerylCAtieno/legalease-api/internal/observability"
	"github.com/BerylCAtieno/legalease-api/internal/ratelimit"
	"github.com/BerylCAtieno/legalease-api/internal/utils"
)

type rateLimitBody struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
	Timestamp  string `json:"timestamp"`
}

// RateLimit admits requests against one class of the gate, keyed by the
// address ips resolves. Denied requests never reach next.
func RateLimit(gate *ratelimit.Gate, class ratelimit.Class, ips *ClientIPs, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			d := gate.Admit(class, ips.Resolve(r))
			if d.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
				w.Header().Set("X-RateLimit-Reset", d.ResetAt.UTC().Format(time.RFC3339))
			}
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			metrics.RateLimited(string(class))
			writeRateLimited(w, utils.NewRateLimitError(d.RetryAfter))
		})
	}
}

func writeRateLimited(w http.ResponseWriter, err *utils.AppError) {
	secs := err.RetryAfterSeconds()
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeJSON(w, err.StatusCode, rateLimitBody{
		Success:    false,
		Error:      "Too many requests",
		Message:    err.Message,
		RetryAfter: secs,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}
