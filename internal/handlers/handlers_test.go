package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerylCAtieno/legalease-api/internal/models"
	"github.com/BerylCAtieno/legalease-api/internal/services"
	"github.com/BerylCAtieno/legalease-api/internal/utils"
)

type stubDocumentService struct {
	services.DocumentService
	lastUpload *models.UploadRequest
	uploadErr  error
	retryLang  models.Language
}

func (s *stubDocumentService) UploadDocument(ctx context.Context, req *models.UploadRequest) (*models.UploadResponse, error) {
	s.lastUpload = req
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	return &models.UploadResponse{DocumentID: "doc-1", Status: models.StatusCompleted}, nil
}

func (s *stubDocumentService) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	if id != "doc-1" {
		return nil, utils.NewNotFoundError("Document not found")
	}
	return &models.Document{ID: id, StorageRef: "documents/doc-1/a.pdf", Status: models.StatusCompleted}, nil
}

func (s *stubDocumentService) ListDocuments(ctx context.Context, limit int) ([]models.DocumentSummary, error) {
	return []models.DocumentSummary{{ID: "doc-1"}}, nil
}

func (s *stubDocumentService) RetryProcessing(ctx context.Context, id string, lang models.Language) (*models.AnalysisResponse, error) {
	s.retryLang = lang
	return &models.AnalysisResponse{DocumentID: id, Status: models.StatusCompleted}, nil
}

type stubQAService struct {
	services.QAService
	lastQuestion string
	lastBatch    []string
}

func (s *stubQAService) AskQuestion(ctx context.Context, documentID, question string, lang models.Language) (*models.QAEntry, error) {
	s.lastQuestion = question
	return &models.QAEntry{ID: "qa-1", DocumentID: documentID, Question: question, Answer: "yes"}, nil
}

func (s *stubQAService) AskBatch(ctx context.Context, documentID string, questions []string, lang models.Language) (*models.BatchResponse, error) {
	s.lastBatch = questions
	return &models.BatchResponse{Processed: len(questions)}, nil
}

func newMultipart(t *testing.T, field, filename, contentType string, data []byte, lang string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="` + field + `"; filename="` + filename + `"`}
	header["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)

	if lang != "" {
		require.NoError(t, mw.WriteField("language", lang))
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func doRequest(h http.HandlerFunc, method, target, pattern string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	r := mux.NewRouter()
	r.HandleFunc(pattern, h).Methods(method)

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, body)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestUploadDocument(t *testing.T) {
	svc := &stubDocumentService{}
	h := NewDocumentHandler(svc, 1<<20, utils.NewNopLogger())

	body, ct := newMultipart(t, "document", "lease.txt", "application/octet-stream", []byte("The rent is due monthly."), "hi")
	rr := doRequest(h.UploadDocument, http.MethodPost, "/documents", "/documents", body, ct)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NotNil(t, svc.lastUpload)
	assert.Equal(t, "text/plain", svc.lastUpload.ContentType)
	assert.Equal(t, models.LanguageHindi, svc.lastUpload.Language)
	assert.Equal(t, "lease.txt", svc.lastUpload.Filename)
}

func TestUploadDocument_FileFieldAndDefaultLanguage(t *testing.T) {
	svc := &stubDocumentService{}
	h := NewDocumentHandler(svc, 1<<20, utils.NewNopLogger())

	body, ct := newMultipart(t, "file", "scan", "image/jpg", []byte{0xff, 0xd8, 0xff}, "")
	rr := doRequest(h.UploadDocument, http.MethodPost, "/documents", "/documents", body, ct)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "image/jpeg", svc.lastUpload.ContentType)
	assert.Equal(t, models.LanguageEnglish, svc.lastUpload.Language)
}

func TestUploadDocument_Rejections(t *testing.T) {
	h := NewDocumentHandler(&stubDocumentService{}, 1<<20, utils.NewNopLogger())

	tests := []struct {
		name     string
		filename string
		ct       string
		data     []byte
		lang     string
		wantMsg  string
	}{
		{"bad type", "contract.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", []byte("x"), "", "Invalid file type"},
		{"empty", "a.pdf", "application/pdf", nil, "", "empty"},
		{"too large", "a.pdf", "application/pdf", bytes.Repeat([]byte("a"), 1<<20+1), "", "exceeds 1MB"},
		{"bad language", "a.pdf", "application/pdf", []byte("%PDF"), "fr", "Language"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body, ct := newMultipart(t, "document", tc.filename, tc.ct, tc.data, tc.lang)
			rr := doRequest(h.UploadDocument, http.MethodPost, "/documents", "/documents", body, ct)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, errorBody(t, rr)["error"], tc.wantMsg)
		})
	}
}

func TestUploadDocument_NoFile(t *testing.T) {
	h := NewDocumentHandler(&stubDocumentService{}, 1<<20, utils.NewNopLogger())

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("language", "en"))
	require.NoError(t, mw.Close())

	rr := doRequest(h.UploadDocument, http.MethodPost, "/documents", "/documents", body, mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "No file uploaded", errorBody(t, rr)["error"])
}

func TestUploadDocument_ExtractionFailureCarriesID(t *testing.T) {
	svc := &stubDocumentService{uploadErr: &services.ExtractionFailedError{
		DocumentID: "doc-9",
		Err:        utils.NewExtractionFailedError("No text could be extracted from the document", errors.New("no text")),
	}}
	h := NewDocumentHandler(svc, 1<<20, utils.NewNopLogger())

	body, ct := newMultipart(t, "document", "blank.pdf", "application/pdf", []byte("%PDF-1.4"), "")
	rr := doRequest(h.UploadDocument, http.MethodPost, "/documents", "/documents", body, ct)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	out := errorBody(t, rr)
	assert.Equal(t, "doc-9", out["documentId"])
	assert.Equal(t, "Text extraction failed", out["error"])
	assert.Equal(t, "No text could be extracted from the document", out["message"])
}

func TestUploadDocument_ExtractionFailureWithoutRecord(t *testing.T) {
	svc := &stubDocumentService{uploadErr: utils.NewExtractionFailedError("Unsupported file type", errors.New("bad mime"))}
	h := NewDocumentHandler(svc, 1<<20, utils.NewNopLogger())

	body, ct := newMultipart(t, "document", "scan.png", "image/png", []byte("\x89PNG"), "")
	rr := doRequest(h.UploadDocument, http.MethodPost, "/documents", "/documents", body, ct)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	out := errorBody(t, rr)
	assert.Equal(t, "Text extraction failed", out["error"])
	assert.Equal(t, "Unsupported file type", out["message"])
	assert.NotContains(t, out, "documentId")
}

func TestGetDocument(t *testing.T) {
	h := NewDocumentHandler(&stubDocumentService{}, 1<<20, utils.NewNopLogger())

	rr := doRequest(h.GetDocument, http.MethodGet, "/documents/doc-1", "/documents/{id}", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "documents/doc-1/a.pdf", "storage pointer stays internal")

	rr = doRequest(h.GetDocument, http.MethodGet, "/documents/nope", "/documents/{id}", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListDocuments(t *testing.T) {
	h := NewDocumentHandler(&stubDocumentService{}, 1<<20, utils.NewNopLogger())

	rr := doRequest(h.ListDocuments, http.MethodGet, "/documents?limit=5", "/documents", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var docs []models.DocumentSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &docs))
	assert.Len(t, docs, 1)

	rr = doRequest(h.ListDocuments, http.MethodGet, "/documents?limit=abc", "/documents", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRetryProcessing(t *testing.T) {
	svc := &stubDocumentService{}
	h := NewDocumentHandler(svc, 1<<20, utils.NewNopLogger())

	rr := doRequest(h.RetryProcessing, http.MethodPost, "/documents/doc-1/retry", "/documents/{id}/retry",
		bytes.NewBufferString(`{"language":"hi"}`), "application/json")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.LanguageHindi, svc.retryLang)

	rr = doRequest(h.RetryProcessing, http.MethodPost, "/documents/doc-1/retry", "/documents/{id}/retry", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.Language(""), svc.retryLang)

	rr = doRequest(h.RetryProcessing, http.MethodPost, "/documents/doc-1/retry", "/documents/{id}/retry",
		bytes.NewBufferString(`{"language":"de"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAskQuestion_Validation(t *testing.T) {
	svc := &stubQAService{}
	h := NewQAHandler(svc, utils.NewNopLogger())

	rr := doRequest(h.AskQuestion, http.MethodPost, "/documents/doc-1/questions", "/documents/{id}/questions",
		bytes.NewBufferString(`{"question":"What is the rent?"}`), "application/json")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "What is the rent?", svc.lastQuestion)

	rr = doRequest(h.AskQuestion, http.MethodPost, "/documents/doc-1/questions", "/documents/{id}/questions",
		bytes.NewBufferString(`{"question":"Hi"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, errorBody(t, rr)["error"], "question")

	rr = doRequest(h.AskQuestion, http.MethodPost, "/documents/doc-1/questions", "/documents/{id}/questions",
		bytes.NewBufferString(`{"question":"`+strings.Repeat("a", 501)+`"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(h.AskQuestion, http.MethodPost, "/documents/doc-1/questions", "/documents/{id}/questions",
		bytes.NewBufferString(`not json`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAskBatch_Validation(t *testing.T) {
	svc := &stubQAService{}
	h := NewQAHandler(svc, utils.NewNopLogger())

	rr := doRequest(h.AskBatch, http.MethodPost, "/documents/doc-1/questions/batch", "/documents/{id}/questions/batch",
		bytes.NewBufferString(`{"questions":["What is the rent?","Who pays repairs?"]}`), "application/json")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, svc.lastBatch, 2)

	rr = doRequest(h.AskBatch, http.MethodPost, "/documents/doc-1/questions/batch", "/documents/{id}/questions/batch",
		bytes.NewBufferString(`{"questions":[]}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(h.AskBatch, http.MethodPost, "/documents/doc-1/questions/batch", "/documents/{id}/questions/batch",
		bytes.NewBufferString(`{"questions":["aaaa","bbbb","cccc","dddd","eeee","ffff"]}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestExplainClause_Validation(t *testing.T) {
	h := NewQAHandler(&stubQAService{}, utils.NewNopLogger())

	rr := doRequest(h.ExplainClause, http.MethodPost, "/clauses/explain", "/clauses/explain",
		bytes.NewBufferString(`{"clause":"too short"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, errorBody(t, rr)["error"], "clause")
}

func TestDetermineContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", determineContentType("A.PDF", "application/octet-stream"))
	assert.Equal(t, "image/png", determineContentType("scan.png", ""))
	assert.Equal(t, "text/plain", determineContentType("notes", "text/plain; charset=utf-8"))
	assert.Equal(t, "image/jpeg", determineContentType("photo", "image/jpg"))
	assert.False(t, isValidContentType("application/msword"))
}

func TestRespondError_HidesInternals(t *testing.T) {
	rr := httptest.NewRecorder()
	respondError(rr, utils.NewNopLogger(), errors.New("pq: connection refused at 10.0.0.3"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Internal server error", errorBody(t, rr)["error"])
}
