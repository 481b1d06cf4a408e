package extractor

import (
	"context"
	"fmt"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/BerylCAtieno/legalease-api/internal/models"
	"github.com/BerylCAtieno/legalease-api/internal/utils"
)

type DocumentAIConfig struct {
	ProjectID   string
	Location    string
	ProcessorID string
}

// DocumentAIExtractor runs uploads through a Document AI OCR processor.
type DocumentAIExtractor struct {
	client *documentai.DocumentProcessorClient
	name   string
	logger *utils.Logger
}

func NewDocumentAIExtractor(ctx context.Context, cfg DocumentAIConfig, logger *utils.Logger) (*DocumentAIExtractor, error) {
	if cfg.ProjectID == "" || cfg.ProcessorID == "" {
		return nil, fmt.Errorf("document ai: project id and processor id are required")
	}
	location := cfg.Location
	if location == "" {
		location = "us"
	}

	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", location)
	client, err := documentai.NewDocumentProcessorClient(ctx, option.WithEndpoint(endpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to create document ai client: %w", err)
	}

	return &DocumentAIExtractor{
		client: client,
		name:   fmt.Sprintf("projects/%s/locations/%s/processors/%s", cfg.ProjectID, location, cfg.ProcessorID),
		logger: logger,
	}, nil
}

func (e *DocumentAIExtractor) Name() string {
	return "documentai"
}

func (e *DocumentAIExtractor) Close() error {
	return e.client.Close()
}

func (e *DocumentAIExtractor) Extract(ctx context.Context, data []byte, mimeType string) (*ExtractedDocument, error) {
	req := &documentaipb.ProcessRequest{
		Name: e.name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: mimeType,
			},
		},
	}

	resp, err := e.client.ProcessDocument(ctx, req)
	if err != nil {
		e.logger.Error("Document AI processing failed", "error", err, "code", status.Code(err).String())
		return nil, classifyRPCError(err)
	}

	doc := resp.GetDocument()
	if doc == nil || strings.TrimSpace(doc.GetText()) == "" {
		return nil, ErrNoText
	}

	out, err := normalize(fromDocumentAI(doc))
	if err != nil {
		return nil, err
	}
	e.logger.Info("Document processed",
		"pages", out.Pages,
		"entities", len(out.Entities),
		"confidence", out.Confidence)
	return out, nil
}

func classifyRPCError(err error) error {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated:
		return newError(KindPermissionDenied, "", err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return newError(KindUnavailable, "", err)
	case codes.InvalidArgument:
		return newError(KindUnsupported, "Document AI rejected the document", err)
	default:
		return newError(KindFailed, "", err)
	}
}

func fromDocumentAI(doc *documentaipb.Document) rawDocument {
	text := doc.GetText()
	raw := rawDocument{Text: text}

	for _, ent := range doc.GetEntities() {
		mention := ent.GetMentionText()
		if mention == "" {
			mention = anchorText(text, ent.GetTextAnchor())
		}
		raw.Entities = append(raw.Entities, models.Entity{
			Type:       ent.GetType(),
			Text:       mention,
			Confidence: float64(ent.GetConfidence()),
		})
	}

	for _, page := range doc.GetPages() {
		var rp rawPage
		for _, p := range page.GetParagraphs() {
			rp.Paragraphs = append(rp.Paragraphs, Paragraph{
				Text:       anchorText(text, p.GetLayout().GetTextAnchor()),
				Confidence: float64(p.GetLayout().GetConfidence()),
			})
		}
		for _, t := range page.GetTables() {
			rp.Tables = append(rp.Tables, tableFromDocumentAI(text, t))
		}
		for _, f := range page.GetFormFields() {
			name, value := f.GetFieldName(), f.GetFieldValue()
			rp.Fields = append(rp.Fields, models.KeyValuePair{
				Key:        strings.TrimSpace(anchorText(text, name.GetTextAnchor())),
				Value:      strings.TrimSpace(anchorText(text, value.GetTextAnchor())),
				Confidence: float64(min(name.GetConfidence(), value.GetConfidence())),
			})
		}
		raw.Pages = append(raw.Pages, rp)
	}
	return raw
}

func tableFromDocumentAI(text string, t *documentaipb.Document_Page_Table) models.Table {
	table := models.Table{Rows: len(t.GetBodyRows())}
	if headers := t.GetHeaderRows(); len(headers) > 0 {
		table.Columns = len(headers[0].GetCells())
	}

	rows := append(append([]*documentaipb.Document_Page_Table_TableRow{}, t.GetHeaderRows()...), t.GetBodyRows()...)
	for _, row := range rows {
		cells := make([]string, 0, len(row.GetCells()))
		for _, cell := range row.GetCells() {
			cells = append(cells, strings.TrimSpace(anchorText(text, cell.GetLayout().GetTextAnchor())))
		}
		table.Content = append(table.Content, models.TableRow{Cells: cells})
	}
	return table
}

// anchorText resolves a text anchor against the document text. Segment
// offsets outside the text are clamped.
func anchorText(text string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil {
		return ""
	}
	if anchor.GetContent() != "" {
		return anchor.GetContent()
	}

	var b strings.Builder
	n := int64(len(text))
	for _, seg := range anchor.GetTextSegments() {
		start, end := seg.GetStartIndex(), seg.GetEndIndex()
		if start < 0 {
			start = 0
		}
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		b.WriteString(text[start:end])
	}
	return b.String()
}
