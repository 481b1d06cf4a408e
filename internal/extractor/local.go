package extractor

import (
	"context"

	"github.com/BerylCAtieno/legalease-api/internal/utils"
)

// LocalExtractor reads PDF text layers and plain text in process. It is used
// when no OCR processor is configured; images need OCR and are rejected.
type LocalExtractor struct {
	logger *utils.Logger
}

func NewLocalExtractor(logger *utils.Logger) *LocalExtractor {
	return &LocalExtractor{logger: logger}
}

func (e *LocalExtractor) Name() string {
	return "local"
}

func (e *LocalExtractor) Extract(ctx context.Context, data []byte, mimeType string) (*ExtractedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, newError(KindUnavailable, "", err)
	}

	var (
		raw rawDocument
		err error
	)
	switch mimeType {
	case "application/pdf":
		raw, err = extractPDF(data)
	case "text/plain":
		raw, err = extractTXT(data)
	case "image/jpeg", "image/jpg", "image/png":
		return nil, newError(KindUnavailable, "Image text extraction requires a Document AI processor", nil)
	default:
		return nil, ErrUnsupported
	}
	if err != nil {
		e.logger.Warn("Local extraction failed", "mime_type", mimeType, "error", err)
		return nil, err
	}

	doc, err := normalize(raw)
	if err != nil {
		return nil, err
	}
	e.logger.Info("Document processed locally",
		"mime_type", mimeType,
		"pages", doc.Pages,
		"confidence", doc.Confidence)
	return doc, nil
}
