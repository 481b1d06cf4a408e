package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/BerylCAtieno/legalease-api/internal/models"
	"github.com/BerylCAtieno/legalease-api/internal/services"
	"github.com/BerylCAtieno/legalease-api/internal/utils"
)

type QAHandler struct {
	service  services.QAService
	validate *validator.Validate
	logger   *utils.Logger
}

func NewQAHandler(service services.QAService, logger *utils.Logger) *QAHandler {
	return &QAHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *QAHandler) AskQuestion(w http.ResponseWriter, r *http.Request) {
	var req models.QuestionRequest
	if err := decodeRequired(r, &req, h.validate); err != nil {
		respondError(w, h.logger, err)
		return
	}

	entry, err := h.service.AskQuestion(r.Context(), mux.Vars(r)["id"], req.Question, req.Language)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, entry)
}

func (h *QAHandler) AskBatch(w http.ResponseWriter, r *http.Request) {
	var req models.BatchQuestionRequest
	if err := decodeRequired(r, &req, h.validate); err != nil {
		respondError(w, h.logger, err)
		return
	}

	resp, err := h.service.AskBatch(r.Context(), mux.Vars(r)["id"], req.Questions, req.Language)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, resp)
}

func (h *QAHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, h.logger, utils.NewBadRequestError("limit must be a positive integer"))
			return
		}
		limit = n
	}

	resp, err := h.service.GetHistory(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, resp)
}

func (h *QAHandler) ExplainClause(w http.ResponseWriter, r *http.Request) {
	var req models.ClauseRequest
	if err := decodeRequired(r, &req, h.validate); err != nil {
		respondError(w, h.logger, err)
		return
	}

	res, err := h.service.ExplainClause(r.Context(), req.Clause, req.Language)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, res)
}

func (h *QAHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.logger, http.StatusOK, h.service.Status())
}
