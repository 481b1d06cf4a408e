package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/BerylCAtieno/legalease-api/internal/models"
	"github.com/BerylCAtieno/legalease-api/internal/services"
	"github.com/BerylCAtieno/legalease-api/internal/utils"
)

type DocumentHandler struct {
	service     services.DocumentService
	validate    *validator.Validate
	maxFileSize int64
	logger      *utils.Logger
}

func NewDocumentHandler(service services.DocumentService, maxFileSize int64, logger *utils.Logger) *DocumentHandler {
	return &DocumentHandler{
		service:     service,
		validate:    validator.New(),
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	tooLarge := utils.NewBadRequestError("File size exceeds " + humanSize(h.maxFileSize) + " limit")

	// Reject oversized requests before reading the body
	if r.ContentLength > h.maxFileSize+multipartOverhead {
		respondError(w, h.logger, tooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)

	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, h.logger, tooLarge)
			return
		}
		respondError(w, h.logger, utils.NewBadRequestError("Invalid form data"))
		return
	}

	file, header, err := r.FormFile("document")
	if errors.Is(err, http.ErrMissingFile) {
		file, header, err = r.FormFile("file")
	}
	if err != nil {
		respondError(w, h.logger, utils.NewBadRequestError("No file uploaded"))
		return
	}
	defer file.Close()

	contentType := determineContentType(header.Filename, header.Header.Get("Content-Type"))

	h.logger.Info("File upload attempt",
		"filename", header.Filename,
		"reported_content_type", header.Header.Get("Content-Type"),
		"determined_content_type", contentType)

	if !isValidContentType(contentType) {
		respondError(w, h.logger, utils.NewBadRequestError("Invalid file type. Only PDF, images, and text files are allowed."))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxFileSize+1))
	if err != nil {
		respondError(w, h.logger, utils.NewInternalError("Failed to read file"))
		return
	}
	if int64(len(data)) > h.maxFileSize {
		respondError(w, h.logger, tooLarge)
		return
	}
	if len(data) == 0 {
		respondError(w, h.logger, utils.NewBadRequestError("Uploaded file is empty"))
		return
	}

	lang := models.Language(r.FormValue("language"))
	if lang == "" {
		lang = models.LanguageEnglish
	}
	if !lang.Valid() {
		respondError(w, h.logger, utils.NewBadRequestError("Language must be one of: en, hi"))
		return
	}

	resp, err := h.service.UploadDocument(r.Context(), &models.UploadRequest{
		File:        data,
		Filename:    header.Filename,
		ContentType: contentType,
		Language:    lang,
	})
	if err != nil {
		if utils.IsKind(err, utils.KindExtraction) {
			respondExtractionFailed(w, h.logger, err)
			return
		}
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, resp)
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, h.logger, utils.NewBadRequestError("limit must be a positive integer"))
			return
		}
		limit = n
	}

	docs, err := h.service.ListDocuments(r.Context(), limit)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, docs)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.GetDocument(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, doc)
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.service.DeleteDocument(r.Context(), id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]string{
		"message":    "Document deleted successfully",
		"documentId": id,
	})
}

func (h *DocumentHandler) RetryProcessing(w http.ResponseWriter, r *http.Request) {
	var req models.LanguageRequest
	if err := decodeOptional(r, &req, h.validate); err != nil {
		respondError(w, h.logger, err)
		return
	}

	resp, err := h.service.RetryProcessing(r.Context(), mux.Vars(r)["id"], req.Language)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, resp)
}

func (h *DocumentHandler) RegenerateSummary(w http.ResponseWriter, r *http.Request) {
	var req models.LanguageRequest
	if err := decodeOptional(r, &req, h.validate); err != nil {
		respondError(w, h.logger, err)
		return
	}

	id := mux.Vars(r)["id"]
	res, err := h.service.RegenerateSummary(r.Context(), id, req.Language)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]any{"documentId": id, "summary": res})
}

func (h *DocumentHandler) RegenerateRisks(w http.ResponseWriter, r *http.Request) {
	var req models.LanguageRequest
	if err := decodeOptional(r, &req, h.validate); err != nil {
		respondError(w, h.logger, err)
		return
	}

	id := mux.Vars(r)["id"]
	res, err := h.service.RegenerateRisks(r.Context(), id, req.Language)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]any{"documentId": id, "riskAnalysis": res})
}

// multipartOverhead allows for form boundaries and the language field on top of the file.
const multipartOverhead = 64 << 10

func humanSize(n int64) string {
	if n%(1<<20) == 0 {
		return strconv.FormatInt(n>>20, 10) + "MB"
	}
	return strconv.FormatInt(n, 10) + " bytes"
}

// determineContentType prefers the filename extension and falls back to the
// reported content type.
func determineContentType(filename, headerContentType string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".txt":
		return "text/plain"
	}

	ct := strings.ToLower(strings.TrimSpace(headerContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "image/jpg" {
		return "image/jpeg"
	}
	return ct
}

func isValidContentType(contentType string) bool {
	validTypes := map[string]bool{
		"application/pdf": true,
		"image/jpeg":      true,
		"image/jpg":       true,
		"image/png":       true,
		"text/plain":      true,
	}
	return validTypes[contentType]
}

// decodeOptional decodes a JSON body into v when one is present and validates it.
func decodeOptional(r *http.Request, v any, validate *validator.Validate) error {
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
			return utils.NewBadRequestError("Invalid JSON body")
		}
	}
	return validateStruct(validate, v)
}

func decodeRequired(r *http.Request, v any, validate *validator.Validate) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return utils.NewBadRequestError("Invalid JSON body")
	}
	return validateStruct(validate, v)
}

func validateStruct(validate *validator.Validate, v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return utils.NewBadRequestError(validationMessage(verrs[0]))
		}
		return utils.NewBadRequestError("Invalid request")
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		if fe.Kind().String() == "slice" {
			return field + " must contain at least " + fe.Param() + " item(s)"
		}
		return field + " must be at least " + fe.Param() + " characters"
	case "max":
		if fe.Kind().String() == "slice" {
			return field + " must contain at most " + fe.Param() + " items"
		}
		return field + " must be at most " + fe.Param() + " characters"
	case "oneof":
		return field + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return field + " is invalid"
	}
}

func respondJSON(w http.ResponseWriter, logger *utils.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", "error", err)
	}
}

// respondExtractionFailed renders a KindExtraction error with the document id
// when the record was created.
func respondExtractionFailed(w http.ResponseWriter, logger *utils.Logger, err error) {
	var appErr *utils.AppError
	errors.As(err, &appErr)

	body := map[string]string{
		"error":   "Text extraction failed",
		"message": appErr.Message,
	}
	var failed *services.ExtractionFailedError
	if errors.As(err, &failed) {
		body["documentId"] = failed.DocumentID
	}

	logger.Warn("Text extraction failed", "error", err, "id", body["documentId"])
	respondJSON(w, logger, appErr.StatusCode, body)
}

func respondError(w http.ResponseWriter, logger *utils.Logger, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		status = appErr.StatusCode
		message = appErr.Message
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request error", "status", status, "error", err)
	} else {
		logger.Warn("Request error", "status", status, "error", message)
	}

	respondJSON(w, logger, status, map[string]string{"error": message})
}
