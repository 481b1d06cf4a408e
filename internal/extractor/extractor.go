package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/BerylCAtieno/legalease-api/internal/models"
)

const (
	minEntityConfidence    = 0.5
	minParagraphConfidence = 0.7
	minParagraphLength     = 10
	minFieldConfidence     = 0.6
)

// Extractor turns an uploaded file into text plus structured metadata.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (*ExtractedDocument, error)
	Name() string
}

type Paragraph struct {
	PageNumber int
	Text       string
	Confidence float64
}

type ExtractedDocument struct {
	Text          string
	Pages         int
	Paragraphs    []Paragraph
	Entities      []models.Entity
	Tables        []models.Table
	KeyValuePairs []models.KeyValuePair
	Confidence    float64
}

// Data returns the persisted part of the extraction.
func (d *ExtractedDocument) Data() *models.ExtractedData {
	return &models.ExtractedData{
		Pages:         d.Pages,
		Entities:      d.Entities,
		Tables:        d.Tables,
		KeyValuePairs: d.KeyValuePairs,
		Confidence:    d.Confidence,
	}
}

type ErrorKind string

const (
	KindPermissionDenied ErrorKind = "permission_denied"
	KindNoText           ErrorKind = "no_text"
	KindUnavailable      ErrorKind = "unavailable"
	KindUnsupported      ErrorKind = "unsupported"
	KindFailed           ErrorKind = "failed"
)

// ExtractionError compares equal under errors.Is to any ExtractionError of
// the same Kind, so callers can match against the sentinels below.
type ExtractionError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

var (
	ErrPermissionDenied = &ExtractionError{Kind: KindPermissionDenied}
	ErrNoText           = &ExtractionError{Kind: KindNoText}
	ErrUnavailable      = &ExtractionError{Kind: KindUnavailable}
	ErrUnsupported      = &ExtractionError{Kind: KindUnsupported}
)

func (e *ExtractionError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = defaultMessage(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func (e *ExtractionError) Is(target error) bool {
	t, ok := target.(*ExtractionError)
	return ok && t.Kind == e.Kind
}

// UserMessage is the actionable text stored on a failed document.
func (e *ExtractionError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return defaultMessage(e.Kind)
}

func defaultMessage(kind ErrorKind) string {
	switch kind {
	case KindPermissionDenied:
		return "Document AI permission denied. Grant the service account the Document AI API User role and upload again"
	case KindNoText:
		return "No text could be extracted from the document"
	case KindUnavailable:
		return "Text extraction service is unavailable"
	case KindUnsupported:
		return "Unsupported file type for text extraction"
	default:
		return "Failed to extract text from document"
	}
}

func newError(kind ErrorKind, msg string, err error) *ExtractionError {
	return &ExtractionError{Kind: kind, Message: msg, Err: err}
}

// KindOf reports the extraction error kind of err, or "" if err is not one.
func KindOf(err error) ErrorKind {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}

type rawPage struct {
	Paragraphs []Paragraph
	Tables     []models.Table
	Fields     []models.KeyValuePair
}

// rawDocument is what a provider produced before filtering.
type rawDocument struct {
	Text     string
	Pages    []rawPage
	Entities []models.Entity
}

// normalize applies the confidence and length filters shared by every
// extractor. Confidence is the mean over retained paragraphs, 0 if none.
func normalize(raw rawDocument) (*ExtractedDocument, error) {
	text := strings.TrimSpace(raw.Text)
	if text == "" {
		return nil, ErrNoText
	}

	doc := &ExtractedDocument{
		Text:          text,
		Pages:         len(raw.Pages),
		Entities:      []models.Entity{},
		Tables:        []models.Table{},
		KeyValuePairs: []models.KeyValuePair{},
	}

	for _, e := range raw.Entities {
		if e.Confidence > minEntityConfidence {
			doc.Entities = append(doc.Entities, e)
		}
	}

	var total float64
	for i, page := range raw.Pages {
		for _, p := range page.Paragraphs {
			p.Text = strings.TrimSpace(p.Text)
			if utf8.RuneCountInString(p.Text) <= minParagraphLength || p.Confidence <= minParagraphConfidence {
				continue
			}
			p.PageNumber = i + 1
			doc.Paragraphs = append(doc.Paragraphs, p)
			total += p.Confidence
		}
		for j, t := range page.Tables {
			t.PageNumber = i + 1
			t.TableIndex = j + 1
			doc.Tables = append(doc.Tables, t)
		}
		for _, f := range page.Fields {
			if f.Key != "" && f.Value != "" && f.Confidence > minFieldConfidence {
				doc.KeyValuePairs = append(doc.KeyValuePairs, f)
			}
		}
	}

	if n := len(doc.Paragraphs); n > 0 {
		doc.Confidence = total / float64(n)
	}
	return doc, nil
}
