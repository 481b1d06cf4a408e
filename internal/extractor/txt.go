package extractor

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

func extractTXT(data []byte) (rawDocument, error) {
	if len(data) == 0 {
		return rawDocument{}, newError(KindNoText, "Empty text file", nil)
	}

	text, err := decodeText(data)
	if err != nil {
		return rawDocument{}, newError(KindFailed, "Failed to decode text file", err)
	}

	text = cleanText(text)
	if text == "" {
		return rawDocument{}, ErrNoText
	}

	page := rawPage{}
	for _, line := range strings.Split(text, "\n") {
		page.Paragraphs = append(page.Paragraphs, Paragraph{Text: line, Confidence: textLayerConfidence})
	}
	return rawDocument{Text: text, Pages: []rawPage{page}}, nil
}

func decodeText(data []byte) (string, error) {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return string(data[3:]), nil
	}

	if len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE {
		decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		decoded, _, err := transform.Bytes(decoder, data)
		if err != nil {
			return "", err
		}
		return string(decoded), nil
	}

	if len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF {
		decoder := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		decoded, _, err := transform.Bytes(decoder, data)
		if err != nil {
			return "", err
		}
		return string(decoded), nil
	}

	if utf8.Valid(data) {
		return string(data), nil
	}

	decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err == nil {
		return string(decoded), nil
	}

	decoded, _, err = transform.Bytes(charmap.ISO8859_1.NewDecoder(), data)
	if err == nil {
		return string(decoded), nil
	}

	return string(data), nil
}

func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\x00", "")

	var cleaned []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
