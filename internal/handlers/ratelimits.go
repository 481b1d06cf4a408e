package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/BerylCAtieno/legalease-api/internal/ratelimit"
	"github.com/BerylCAtieno/legalease-api/internal/utils"
)

// RateLimitAdmin inspects and clears admission windows.
type RateLimitAdmin interface {
	Status(class ratelimit.Class, key string) (ratelimit.Decision, bool)
	Reset(class ratelimit.Class, key string) bool
}

type RateLimitStatus struct {
	Class      string `json:"class"`
	Key        string `json:"key"`
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
	Blocked    bool   `json:"blocked"`
	ResetAt    string `json:"resetAt,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

type RateLimitHandler struct {
	gate   RateLimitAdmin
	logger *utils.Logger
}

func NewRateLimitHandler(gate RateLimitAdmin, logger *utils.Logger) *RateLimitHandler {
	return &RateLimitHandler{gate: gate, logger: logger}
}

func (h *RateLimitHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	class := ratelimit.Class(vars["class"])

	d, ok := h.gate.Status(class, vars["key"])
	if !ok {
		respondError(w, h.logger, utils.NewNotFoundError("Unknown rate limit class"))
		return
	}

	status := RateLimitStatus{
		Class:     string(class),
		Key:       vars["key"],
		Limit:     d.Limit,
		Remaining: d.Remaining,
		Blocked:   !d.Allowed,
	}
	if !d.ResetAt.IsZero() {
		status.ResetAt = d.ResetAt.UTC().Format(time.RFC3339)
	}
	if !d.Allowed {
		status.RetryAfter = d.RetryAfterSeconds()
	}
	respondJSON(w, h.logger, http.StatusOK, status)
}

func (h *RateLimitHandler) Reset(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if !h.gate.Reset(ratelimit.Class(vars["class"]), vars["key"]) {
		respondError(w, h.logger, utils.NewNotFoundError("Unknown rate limit class"))
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]string{"message": "Rate limit reset"})
}
