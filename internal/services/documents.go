package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BerylCAtieno/legalease-api/internal/analyzer"
	"github.com/BerylCAtieno/legalease-api/internal/extractor"
	"github.com/BerylCAtieno/legalease-api/internal/models"
	"github.com/BerylCAtieno/legalease-api/internal/observability"
	"github.com/BerylCAtieno/legalease-api/internal/repository"
	"github.com/BerylCAtieno/legalease-api/internal/storage"
	"github.com/BerylCAtieno/legalease-api/internal/utils"
)

const (
	DefaultListLimit = 10
	MaxListLimit     = 100
)

// DocumentService drives uploads through extraction and analysis and owns
// every write to a document record.
type DocumentService interface {
	UploadDocument(ctx context.Context, req *models.UploadRequest) (*models.UploadResponse, error)
	RetryProcessing(ctx context.Context, id string, lang models.Language) (*models.AnalysisResponse, error)
	RegenerateSummary(ctx context.Context, id string, lang models.Language) (*models.SummaryResult, error)
	RegenerateRisks(ctx context.Context, id string, lang models.Language) (*models.RiskResult, error)
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, limit int) ([]models.DocumentSummary, error)
	DeleteDocument(ctx context.Context, id string) error
}

// ExtractionFailedError is returned by UploadDocument when the document was
// stored but no text could be extracted. It unwraps to a KindExtraction
// AppError carrying the user-facing reason.
type ExtractionFailedError struct {
	DocumentID string
	Err        *utils.AppError
}

func (e *ExtractionFailedError) Error() string {
	return fmt.Sprintf("extraction failed for document %s: %v", e.DocumentID, e.Err)
}

func (e *ExtractionFailedError) Unwrap() error {
	return e.Err
}

type documentService struct {
	repo      repository.Repository
	storage   storage.Storage
	extractor extractor.Extractor
	analyzer  *analyzer.Analyzer
	metrics   *observability.Metrics
	logger    *utils.Logger
	locks     *keyedMutex
	now       func() time.Time
}

func NewDocumentService(
	repo repository.Repository,
	store storage.Storage,
	ext extractor.Extractor,
	an *analyzer.Analyzer,
	metrics *observability.Metrics,
	logger *utils.Logger,
) DocumentService {
	return &documentService{
		repo:      repo,
		storage:   store,
		extractor: ext,
		analyzer:  an,
		metrics:   metrics,
		logger:    logger,
		locks:     newKeyedMutex(),
		now:       time.Now,
	}
}

func (s *documentService) UploadDocument(ctx context.Context, req *models.UploadRequest) (*models.UploadResponse, error) {
	docID := utils.GenerateID()
	now := s.now().UTC()
	log := s.logger.With("id", docID)

	storageRef := fmt.Sprintf("documents/%s/%s", docID, safeFilename(req.Filename))
	if err := s.storage.Upload(ctx, storageRef, req.File, req.ContentType); err != nil {
		log.Error("Failed to upload to blob storage", "error", err, "storage_ref", storageRef)
		return nil, utils.NewStoreError("Failed to store document", err)
	}

	doc := &models.Document{
		ID:              docID,
		OriginalName:    req.Filename,
		Size:            int64(len(req.File)),
		MimeType:        req.ContentType,
		Language:        req.Language,
		StorageRef:      storageRef,
		Status:          models.StatusProcessing,
		ProcessingSteps: models.ProcessingSteps{Uploaded: true},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		log.Error("Failed to save document", "error", err)
		_ = s.storage.Delete(context.WithoutCancel(ctx), storageRef)
		return nil, utils.NewStoreError("Failed to save document metadata", err)
	}

	log.Info("Upload started",
		"filename", req.Filename,
		"content_type", req.ContentType,
		"size", doc.Size,
		"language", req.Language)

	// Past this point the record exists, so every stage runs to completion
	// and is recorded even if the client goes away.
	ctx = context.WithoutCancel(ctx)

	unlock := s.locks.Lock(docID)
	defer unlock()

	fileInfo := models.FileInfo{
		OriginalName: doc.OriginalName,
		Size:         doc.Size,
		MimeType:     doc.MimeType,
		UploadedAt:   now,
	}

	extracted, err := s.extract(ctx, log, doc, req.File)
	if err != nil {
		return nil, err
	}

	s.analyze(ctx, log, doc, doc.Language)
	doc.UpdatedAt = s.now().UTC()
	if doc.ProcessingSteps.Complete() {
		doc.Status = models.StatusCompleted
		doc.Error = ""
	} else {
		doc.Status = models.StatusPartial
	}

	if err := s.repo.Update(ctx, doc); err != nil {
		log.Error("Failed to save analysis results", "error", err)
		return nil, utils.NewStoreError("Failed to save analysis results", err)
	}
	s.metrics.DocumentProcessed(string(doc.Status))

	resp := &models.UploadResponse{
		DocumentID: docID,
		Status:     doc.Status,
		FileInfo:   fileInfo,
		ExtractedSummary: &models.ExtractedSummary{
			Pages:      extracted.Pages,
			Entities:   len(extracted.Entities),
			Confidence: extracted.Confidence,
		},
		Summary:      doc.Summary,
		RiskAnalysis: doc.RiskAnalysis,
	}

	if doc.Status == models.StatusCompleted {
		resp.Message = "Document processed successfully"
		log.Info("Processing completed")
	} else {
		resp.Message = "Document uploaded and text extracted, but AI processing failed"
		resp.Warning = "AI processing failed - you can retry later"
		resp.Error = doc.Error
		log.Warn("Processing finished partially", "error", doc.Error)
	}
	return resp, nil
}

// extract runs the extraction stage and records its result. On failure the
// document is moved to error status and an ExtractionFailedError returned.
func (s *documentService) extract(ctx context.Context, log *utils.Logger, doc *models.Document, data []byte) (*extractor.ExtractedDocument, error) {
	start := time.Now()
	extracted, err := s.extractor.Extract(ctx, data, doc.MimeType)
	s.metrics.ObserveStage("extraction", time.Since(start))

	if err != nil {
		reason := "Failed to extract text from document"
		var ee *extractor.ExtractionError
		if errors.As(err, &ee) {
			reason = ee.UserMessage()
		}
		log.Error("Text extraction failed", "error", err, "kind", extractor.KindOf(err))

		doc.Status = models.StatusError
		doc.Error = reason
		doc.UpdatedAt = s.now().UTC()
		if uerr := s.repo.Update(ctx, doc); uerr != nil {
			log.Error("Failed to record extraction failure", "error", uerr)
			return nil, utils.NewStoreError("Failed to save document state", uerr)
		}
		s.metrics.DocumentProcessed(string(models.StatusError))
		return nil, &ExtractionFailedError{
			DocumentID: doc.ID,
			Err:        utils.NewExtractionFailedError(reason, err),
		}
	}

	doc.ExtractedText = extracted.Text
	doc.ExtractedData = extracted.Data()
	doc.ProcessingSteps.TextExtracted = true
	doc.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, doc); err != nil {
		log.Error("Failed to save extracted text", "error", err)
		return nil, utils.NewStoreError("Failed to save extracted text", err)
	}

	log.Info("Text extracted",
		"extractor", s.extractor.Name(),
		"pages", extracted.Pages,
		"entities", len(extracted.Entities),
		"confidence", extracted.Confidence)
	return extracted, nil
}

// analyze generates the summary and risk analysis concurrently and applies
// whatever succeeded to doc. Flags only move to true. doc.Error describes the
// failed stages, or is cleared when both succeed. It reports whether both
// succeeded.
func (s *documentService) analyze(ctx context.Context, log *utils.Logger, doc *models.Document, lang models.Language) bool {
	var (
		g               errgroup.Group
		summary         *models.SummaryResult
		risks           *models.RiskResult
		sumErr, riskErr error
	)
	text := doc.ExtractedText

	start := time.Now()
	g.Go(func() error {
		summary, sumErr = s.analyzer.Summarize(ctx, text, lang)
		return nil
	})
	g.Go(func() error {
		risks, riskErr = s.analyzer.AnalyzeRisks(ctx, text, lang)
		return nil
	})
	_ = g.Wait()
	s.metrics.ObserveStage("analysis", time.Since(start))

	if summary != nil {
		doc.Summary = summary
		doc.ProcessingSteps.Summarized = true
	}
	if risks != nil {
		doc.RiskAnalysis = risks
		doc.ProcessingSteps.RiskAnalyzed = true
	}

	var failures []string
	if sumErr != nil {
		failures = append(failures, "Summary generation failed: "+s.describeGenerationError(log, sumErr))
	}
	if riskErr != nil {
		failures = append(failures, "Risk analysis failed: "+s.describeGenerationError(log, riskErr))
	}
	if len(failures) > 0 {
		doc.Error = strings.Join(failures, "; ")
		return false
	}
	doc.Error = ""
	return true
}

func (s *documentService) describeGenerationError(log *utils.Logger, err error) string {
	if ge, ok := analyzer.AsGenerationError(err); ok {
		s.metrics.GenerationFailed(ge.Operation, string(ge.Kind))
		log.Warn("Generation stage failed", "operation", ge.Operation, "kind", ge.Kind, "error", ge.Err)
		return ge.Fallback()
	}
	log.Warn("Generation stage failed", "error", err)
	return "AI processing failed"
}

func (s *documentService) RetryProcessing(ctx context.Context, id string, lang models.Language) (*models.AnalysisResponse, error) {
	log := s.logger.With("id", id)
	ctx = context.WithoutCancel(ctx)
	unlock := s.locks.Lock(id)
	defer unlock()

	doc, err := s.load(ctx, log, id)
	if err != nil {
		return nil, err
	}

	switch doc.Status {
	case models.StatusCompleted:
		return nil, utils.NewBadRequestError("Document is already processed")
	case models.StatusProcessing:
		return nil, utils.NewConflictError("Document is still being processed")
	}
	if doc.ExtractedText == "" {
		return nil, utils.NewBadRequestError("No extracted text available for processing")
	}
	if lang == "" {
		lang = doc.Language
	}

	log.Info("Retrying analysis", "language", lang, "previous_status", doc.Status)

	ok := s.analyze(ctx, log, doc, lang)
	doc.Language = lang
	if doc.ProcessingSteps.Complete() {
		doc.Status = models.StatusCompleted
		doc.Error = ""
	}
	doc.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, doc); err != nil {
		log.Error("Failed to save retry results", "error", err)
		return nil, utils.NewStoreError("Failed to save analysis results", err)
	}

	if !ok && doc.Status != models.StatusCompleted {
		return nil, utils.NewGenerationFailedError(doc.Error, nil)
	}
	s.metrics.DocumentProcessed(string(doc.Status))

	return &models.AnalysisResponse{
		DocumentID:   id,
		Status:       doc.Status,
		Summary:      doc.Summary,
		RiskAnalysis: doc.RiskAnalysis,
	}, nil
}

func (s *documentService) RegenerateSummary(ctx context.Context, id string, lang models.Language) (*models.SummaryResult, error) {
	var result *models.SummaryResult
	err := s.regenerate(ctx, id, lang, func(ctx context.Context, doc *models.Document, lang models.Language) error {
		res, err := s.analyzer.Summarize(ctx, doc.ExtractedText, lang)
		if err != nil {
			return err
		}
		doc.Summary = res
		doc.ProcessingSteps.Summarized = true
		result = res
		return nil
	})
	return result, err
}

func (s *documentService) RegenerateRisks(ctx context.Context, id string, lang models.Language) (*models.RiskResult, error) {
	var result *models.RiskResult
	err := s.regenerate(ctx, id, lang, func(ctx context.Context, doc *models.Document, lang models.Language) error {
		res, err := s.analyzer.AnalyzeRisks(ctx, doc.ExtractedText, lang)
		if err != nil {
			return err
		}
		doc.RiskAnalysis = res
		doc.ProcessingSteps.RiskAnalyzed = true
		result = res
		return nil
	})
	return result, err
}

// regenerate reruns a single artifact. A failed generation leaves the record
// untouched.
func (s *documentService) regenerate(
	ctx context.Context,
	id string,
	lang models.Language,
	run func(context.Context, *models.Document, models.Language) error,
) error {
	ctx = context.WithoutCancel(ctx)
	log := s.logger.With("id", id)
	unlock := s.locks.Lock(id)
	defer unlock()

	doc, err := s.load(ctx, log, id)
	if err != nil {
		return err
	}
	if doc.Status == models.StatusProcessing {
		return utils.NewConflictError("Document is still being processed")
	}
	if doc.ExtractedText == "" {
		return utils.NewBadRequestError("Document text not available for analysis")
	}
	if lang == "" {
		lang = doc.Language
	}

	if err := run(ctx, doc, lang); err != nil {
		msg := s.describeGenerationError(log, err)
		return utils.NewGenerationFailedError(msg, err)
	}

	doc.Language = lang
	if doc.ProcessingSteps.Complete() && doc.Status != models.StatusCompleted {
		doc.Status = models.StatusCompleted
		doc.Error = ""
		s.metrics.DocumentProcessed(string(doc.Status))
	}
	doc.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, doc); err != nil {
		log.Error("Failed to save regenerated result", "error", err)
		return utils.NewStoreError("Failed to save analysis results", err)
	}
	log.Info("Artifact regenerated", "language", lang, "status", doc.Status)
	return nil
}

func (s *documentService) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	return s.load(ctx, s.logger.With("id", id), id)
}

func (s *documentService) load(ctx context.Context, log *utils.Logger, id string) (*models.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, utils.NewNotFoundError("Document not found")
	}
	if err != nil {
		log.Error("Failed to get document", "error", err)
		return nil, utils.NewStoreError("Failed to retrieve document", err)
	}
	return doc, nil
}

func (s *documentService) ListDocuments(ctx context.Context, limit int) ([]models.DocumentSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	docs, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		s.logger.Error("Failed to list documents", "error", err)
		return nil, utils.NewStoreError("Failed to retrieve documents", err)
	}

	out := make([]models.DocumentSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Sanitize())
	}
	return out, nil
}

// DeleteDocument removes the stored file, the record and its QA history. A
// failed blob delete is logged and does not block the record delete.
func (s *documentService) DeleteDocument(ctx context.Context, id string) error {
	log := s.logger.With("id", id)
	unlock := s.locks.Lock(id)
	defer unlock()

	doc, err := s.load(ctx, log, id)
	if err != nil {
		return err
	}

	if doc.StorageRef != "" {
		if err := s.storage.Delete(ctx, doc.StorageRef); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			log.Warn("Failed to delete stored file", "error", err, "storage_ref", doc.StorageRef)
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.NewNotFoundError("Document not found")
		}
		log.Error("Failed to delete document", "error", err)
		return utils.NewStoreError("Failed to delete document", err)
	}

	log.Info("Document deleted")
	return nil
}

func safeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "document"
	}
	return name
}
