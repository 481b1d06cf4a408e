package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BerylCAtieno/legalease-api/internal/analyzer"
	"github.com/BerylCAtieno/legalease-api/internal/extractor"
	"github.com/BerylCAtieno/legalease-api/internal/models"
	"github.com/BerylCAtieno/legalease-api/internal/observability"
	"github.com/BerylCAtieno/legalease-api/internal/repository"
	"github.com/BerylCAtieno/legalease-api/internal/utils"
)

const (
	DefaultHistoryLimit = 20
	MaxBatchQuestions   = 5
)

type QAService interface {
	AskQuestion(ctx context.Context, documentID, question string, lang models.Language) (*models.QAEntry, error)
	AskBatch(ctx context.Context, documentID string, questions []string, lang models.Language) (*models.BatchResponse, error)
	GetHistory(ctx context.Context, documentID string, limit int) (*models.HistoryResponse, error)
	ExplainClause(ctx context.Context, clause string, lang models.Language) (*models.ExplanationResult, error)
	Status() models.AIStatus
}

type qaService struct {
	repo          repository.Repository
	analyzer      *analyzer.Analyzer
	extractor     extractor.Extractor
	batchInterval time.Duration
	metrics       *observability.Metrics
	logger        *utils.Logger
}

func NewQAService(
	repo repository.Repository,
	an *analyzer.Analyzer,
	ext extractor.Extractor,
	batchInterval time.Duration,
	metrics *observability.Metrics,
	logger *utils.Logger,
) QAService {
	return &qaService{
		repo:          repo,
		analyzer:      an,
		extractor:     ext,
		batchInterval: batchInterval,
		metrics:       metrics,
		logger:        logger,
	}
}

// loadAnswerable fetches a document that has extracted text to answer from.
func (s *qaService) loadAnswerable(ctx context.Context, documentID string) (*models.Document, error) {
	doc, err := s.repo.GetByID(ctx, documentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, utils.NewNotFoundError("Document not found")
	}
	if err != nil {
		s.logger.Error("Failed to get document", "error", err, "id", documentID)
		return nil, utils.NewStoreError("Failed to retrieve document", err)
	}
	if doc.ExtractedText == "" {
		return nil, utils.NewBadRequestError("Document text not available. Please ensure the document was processed successfully.")
	}
	return doc, nil
}

func (s *qaService) AskQuestion(ctx context.Context, documentID, question string, lang models.Language) (*models.QAEntry, error) {
	doc, err := s.loadAnswerable(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if lang == "" {
		lang = doc.Language
	}
	return s.answer(ctx, doc, question, lang)
}

// answer generates one answer and appends it to the document's history.
func (s *qaService) answer(ctx context.Context, doc *models.Document, question string, lang models.Language) (*models.QAEntry, error) {
	question = strings.TrimSpace(question)

	res, err := s.analyzer.AnswerQuestion(ctx, question, doc.ExtractedText, lang)
	if err != nil {
		s.metrics.QuestionAnswered(false)
		if ge, ok := analyzer.AsGenerationError(err); ok {
			s.metrics.GenerationFailed(ge.Operation, string(ge.Kind))
			s.logger.Warn("Question answering failed", "id", doc.ID, "kind", ge.Kind, "error", ge.Err)
			return nil, utils.NewGenerationFailedError(ge.Fallback(), err)
		}
		s.logger.Error("Question answering failed", "id", doc.ID, "error", err)
		return nil, utils.NewGenerationFailedError("Failed to answer question", err)
	}

	entry := &models.QAEntry{
		ID:               utils.GenerateID(),
		DocumentID:       doc.ID,
		Question:         question,
		Answer:           res.Answer,
		Language:         res.Language,
		Model:            res.Model,
		RelevantSections: res.RelevantSections,
		Timestamp:        res.GeneratedAt,
	}
	if err := s.repo.AddQA(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Error("Failed to save QA entry", "error", err, "id", doc.ID)
		return nil, utils.NewStoreError("Failed to save answer", err)
	}

	s.metrics.QuestionAnswered(true)
	s.logger.Info("Question answered", "id", doc.ID, "qa_id", entry.ID, "language", lang)
	return entry, nil
}

// AskBatch answers up to five questions. Call i starts i*batchInterval after
// the first so the provider is not hit all at once. Per-question failures are
// reported in the result slot for that question.
func (s *qaService) AskBatch(ctx context.Context, documentID string, questions []string, lang models.Language) (*models.BatchResponse, error) {
	if len(questions) == 0 || len(questions) > MaxBatchQuestions {
		return nil, utils.NewBadRequestError("Questions array must contain 1-5 questions")
	}

	doc, err := s.loadAnswerable(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if lang == "" {
		lang = doc.Language
	}

	results := make([]models.BatchAnswer, len(questions))
	var g errgroup.Group
	for i, q := range questions {
		results[i] = models.BatchAnswer{Index: i, Question: q}
		g.Go(func() error {
			if delay := time.Duration(i) * s.batchInterval; delay > 0 {
				t := time.NewTimer(delay)
				defer t.Stop()
				select {
				case <-ctx.Done():
					results[i].Error = true
					results[i].Message = "Request cancelled"
					return nil
				case <-t.C:
				}
			}

			entry, err := s.answer(ctx, doc, q, lang)
			if err != nil {
				results[i].Error = true
				results[i].Message = errorMessage(err)
				return nil
			}
			results[i].Result = entry
			return nil
		})
	}
	_ = g.Wait()

	resp := &models.BatchResponse{Results: results}
	for _, r := range results {
		if r.Error {
			resp.Failed++
		} else {
			resp.Processed++
		}
	}
	s.logger.Info("Batch questions processed", "id", documentID, "processed", resp.Processed, "failed", resp.Failed)
	return resp, nil
}

func (s *qaService) GetHistory(ctx context.Context, documentID string, limit int) (*models.HistoryResponse, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	if _, err := s.repo.GetByID(ctx, documentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.NewNotFoundError("Document not found")
		}
		return nil, utils.NewStoreError("Failed to retrieve document", err)
	}

	entries, total, err := s.repo.ListQA(ctx, documentID, limit)
	if err != nil {
		s.logger.Error("Failed to list QA history", "error", err, "id", documentID)
		return nil, utils.NewStoreError("Failed to retrieve question history", err)
	}
	if entries == nil {
		entries = []models.QAEntry{}
	}
	return &models.HistoryResponse{Entries: entries, Total: total}, nil
}

func (s *qaService) ExplainClause(ctx context.Context, clause string, lang models.Language) (*models.ExplanationResult, error) {
	if lang == "" {
		lang = models.LanguageEnglish
	}
	res, err := s.analyzer.ExplainClause(ctx, strings.TrimSpace(clause), lang)
	if err != nil {
		if ge, ok := analyzer.AsGenerationError(err); ok {
			s.metrics.GenerationFailed(ge.Operation, string(ge.Kind))
			s.logger.Warn("Clause explanation failed", "kind", ge.Kind, "error", ge.Err)
			return nil, utils.NewGenerationFailedError(ge.Fallback(), err)
		}
		return nil, utils.NewGenerationFailedError("Failed to explain clause", err)
	}
	return res, nil
}

func (s *qaService) Status() models.AIStatus {
	return models.AIStatus{
		Generation: models.ProviderStatus{
			Name:   s.analyzer.ProviderName(),
			Model:  s.analyzer.Model(),
			Status: "active",
		},
		Extraction: models.ProviderStatus{
			Name:   s.extractor.Name(),
			Status: "active",
		},
		Features: map[string]bool{
			"documentSummary":   true,
			"riskAnalysis":      true,
			"questionAnswering": true,
			"clauseExplanation": true,
			"batchQuestions":    true,
			"multiLanguage":     true,
		},
		SupportedLanguages: models.SupportedLanguages,
		SupportedFormats:   []string{"PDF", "JPEG", "PNG", "TXT"},
	}
}

func errorMessage(err error) string {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Failed to answer question"
}
