// Package analyzer builds the legal-analysis prompts, sends them to a
// generation provider and turns the result into typed values.
package analyzer

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/BerylCAtieno/legalease-api/internal/models"
	"github.com/BerylCAtieno/legalease-api/internal/relevance"
	"github.com/BerylCAtieno/legalease-api/internal/utils"
)

const (
	// MaxAnalysisChars bounds the text sent for summary and risk analysis.
	MaxAnalysisChars = 15000
	// MaxContextChars bounds the full-text context sent with a question.
	MaxContextChars = 10000
)

const (
	OpSummary = "summary"
	OpRisk    = "risk_analysis"
	OpAnswer  = "answer"
	OpClause  = "clause_explanation"
)

type Analyzer struct {
	provider Provider
	limiter  *rate.Limiter
	now      func() time.Time
	logger   *utils.Logger
}

type Option func(*Analyzer)

// WithRateLimit paces provider calls to rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(a *Analyzer) {
		if rps > 0 {
			if burst < 1 {
				burst = 1
			}
			a.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

func WithNow(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAnalyzer(provider Provider, logger *utils.Logger, opts ...Option) *Analyzer {
	a := &Analyzer{
		provider: provider,
		now:      time.Now,
		logger:   logger,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Analyzer) Model() string {
	return a.provider.Model()
}

func (a *Analyzer) ProviderName() string {
	return a.provider.Name()
}

func (a *Analyzer) Summarize(ctx context.Context, text string, lang models.Language) (*models.SummaryResult, error) {
	out, err := a.generate(ctx, OpSummary, summaryPrompt(truncate(text, MaxAnalysisChars), lang))
	if err != nil {
		return nil, err
	}
	a.logger.Info("Summary generated", "language", lang)
	return &models.SummaryResult{
		Summary:     out,
		Language:    lang,
		GeneratedAt: a.now().UTC(),
		Model:       a.provider.Model(),
	}, nil
}

func (a *Analyzer) AnalyzeRisks(ctx context.Context, text string, lang models.Language) (*models.RiskResult, error) {
	out, err := a.generate(ctx, OpRisk, riskPrompt(truncate(text, MaxAnalysisChars), lang))
	if err != nil {
		return nil, err
	}
	a.logger.Info("Risk analysis generated", "language", lang)
	return &models.RiskResult{
		Risks:       out,
		Language:    lang,
		GeneratedAt: a.now().UTC(),
		Model:       a.provider.Model(),
	}, nil
}

// AnswerQuestion grounds the prompt on the sentences that share keywords with
// the question, plus a truncated copy of the full text. Every answer ends with
// the disclaimer.
func (a *Analyzer) AnswerQuestion(ctx context.Context, question, text string, lang models.Language) (*models.AnswerResult, error) {
	relevant := relevance.Select(question, text, relevance.DefaultMaxSentences, relevance.DefaultMaxChars)

	out, err := a.generate(ctx, OpAnswer, answerPrompt(question, relevant, truncate(text, MaxContextChars), lang))
	if err != nil {
		return nil, err
	}
	if !strings.Contains(out, Disclaimer) {
		out = out + "\n\n" + Disclaimer
	}

	a.logger.Info("Question answered", "language", lang, "relevant_sections", relevant != "")
	return &models.AnswerResult{
		Question:         question,
		Answer:           out,
		RelevantSections: relevant != "",
		Language:         lang,
		GeneratedAt:      a.now().UTC(),
		Model:            a.provider.Model(),
	}, nil
}

func (a *Analyzer) ExplainClause(ctx context.Context, clause string, lang models.Language) (*models.ExplanationResult, error) {
	out, err := a.generate(ctx, OpClause, clausePrompt(clause, lang))
	if err != nil {
		return nil, err
	}
	a.logger.Info("Clause explained", "language", lang)
	return &models.ExplanationResult{
		OriginalClause: clause,
		Explanation:    out,
		Language:       lang,
		GeneratedAt:    a.now().UTC(),
		Model:          a.provider.Model(),
	}, nil
}

func (a *Analyzer) generate(ctx context.Context, op, prompt string) (string, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return "", &GenerationError{Operation: op, Kind: FailureTransient, Err: err}
		}
	}

	start := time.Now()
	outcome := a.provider.Generate(ctx, prompt)

	switch outcome.Kind {
	case OutcomeSuccess:
		a.logger.Debug("Generation succeeded",
			"operation", op,
			"provider", a.provider.Name(),
			"duration_ms", time.Since(start).Milliseconds())
		return outcome.Text, nil
	case OutcomeEmpty:
		a.logger.Warn("Generation returned no content", "operation", op, "provider", a.provider.Name())
		return "", &GenerationError{Operation: op, Kind: FailureEmpty}
	default:
		kind := outcome.Failure
		if kind == "" {
			kind = FailureTransient
		}
		a.logger.Warn("Generation failed",
			"operation", op,
			"provider", a.provider.Name(),
			"kind", kind,
			"error", outcome.Err)
		return "", &GenerationError{Operation: op, Kind: kind, Err: outcome.Err}
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// trimFence strips a markdown code fence wrapping the whole response.
func trimFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") || !strings.HasSuffix(content, "```") || len(content) < 7 {
		return content
	}
	start := strings.IndexByte(content, '\n')
	end := len(content) - 3
	if start < 0 || start+1 > end {
		return content
	}
	return strings.TrimSpace(content[start+1 : end])
}
