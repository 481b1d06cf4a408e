package analyzer

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Provider is a text-generation backend. Implementations collapse whatever
// shape the backend returns into an Outcome and never panic on odd responses.
type Provider interface {
	Generate(ctx context.Context, prompt string) Outcome
	Name() string
	Model() string
}

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeEmpty
	OutcomeProviderError
)

type FailureKind string

const (
	FailurePermission    FailureKind = "permission"
	FailureConfiguration FailureKind = "configuration"
	FailureTransient     FailureKind = "transient"
	FailureEmpty         FailureKind = "empty"
)

// Outcome is the closed set of results a provider call can have.
type Outcome struct {
	Kind    OutcomeKind
	Text    string
	Failure FailureKind
	Err     error
}

func Success(text string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Text: text}
}

func Empty() Outcome {
	return Outcome{Kind: OutcomeEmpty}
}

func ProviderError(kind FailureKind, err error) Outcome {
	return Outcome{Kind: OutcomeProviderError, Failure: kind, Err: err}
}

// GenerationError reports a failed generation for one operation.
type GenerationError struct {
	Operation string
	Kind      FailureKind
	Err       error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s generation failed (%s): %v", e.Operation, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s generation failed (%s)", e.Operation, e.Kind)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Fallback is a deterministic, user-facing description of the failure
// category. It is recorded on documents instead of model output.
func (e *GenerationError) Fallback() string {
	switch e.Kind {
	case FailurePermission:
		return "AI provider permission denied. Grant the service account the Vertex AI User role and enable the Vertex AI API, then retry."
	case FailureConfiguration:
		return "AI provider is misconfigured. Check the project, location and model settings, then retry."
	case FailureEmpty:
		return "AI provider returned no content. Retry the analysis."
	default:
		return "AI provider is temporarily unavailable. Retry the analysis later."
	}
}

// AsGenerationError unwraps err into a GenerationError.
func AsGenerationError(err error) (*GenerationError, bool) {
	var ge *GenerationError
	ok := errors.As(err, &ge)
	return ge, ok
}

// ClassifyError maps transport errors from either gRPC or REST clients onto a
// failure kind. Unknown errors are treated as transient.
func ClassifyError(err error) FailureKind {
	if err == nil {
		return FailureTransient
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FailureTransient
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return classifyHTTPStatus(apiErr.Code)
	}

	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.PermissionDenied, codes.Unauthenticated:
			return FailurePermission
		case codes.NotFound, codes.InvalidArgument, codes.FailedPrecondition, codes.Unimplemented:
			return FailureConfiguration
		}
	}
	return FailureTransient
}

func classifyHTTPStatus(code int) FailureKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden || code == http.StatusPaymentRequired:
		return FailurePermission
	case code == http.StatusBadRequest || code == http.StatusNotFound:
		return FailureConfiguration
	default:
		return FailureTransient
	}
}
