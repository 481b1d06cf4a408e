package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// textLayerConfidence is assigned to paragraphs read from an embedded text
// layer, which involves no recognition.
const textLayerConfidence = 1.0

func extractPDF(data []byte) (rawDocument, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pageCount, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return rawDocument{}, newError(KindFailed, "Invalid or corrupted PDF", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return rawDocument{}, newError(KindFailed, "Invalid or corrupted PDF", fmt.Errorf("failed to create PDF reader: %w", err))
	}

	raw := rawDocument{Pages: make([]rawPage, pageCount)}
	var textBuilder strings.Builder

	for i := 1; i <= reader.NumPage() && i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		for _, line := range strings.Split(text, "\n") {
			raw.Pages[i-1].Paragraphs = append(raw.Pages[i-1].Paragraphs, Paragraph{
				Text:       line,
				Confidence: textLayerConfidence,
			})
		}
		textBuilder.WriteString(text)
		textBuilder.WriteString("\n")
	}

	raw.Text = strings.TrimSpace(textBuilder.String())
	if raw.Text == "" {
		return rawDocument{}, newError(KindNoText, "No text layer found in PDF; configure a Document AI processor for scanned documents", nil)
	}
	return raw, nil
}
