package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// MIME types recognized by Text.
const (
	MIMEPDF  = "application/pdf"
	MIMEDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEDoc  = "application/msword"
)

// Text converts an uploaded document's bytes into plain text. PDFs are
// concatenated page by page, word-processor documents go through a temp-file
// round trip, and anything else falls back to a raw UTF-8 decode.
// Unsupported or garbled input yields an empty string, never an error:
// downstream rules treat missing fields as failing conditions.
func Text(data []byte, mime string) string {
	switch mime {
	case MIMEPDF:
		return pdfText(data)
	case MIMEDocx, MIMEDoc:
		return docxText(data)
	default:
		if utf8.Valid(data) {
			return string(data)
		}
		return ""
	}
}

func pdfText(data []byte) (text string) {
	// The pdf reader panics on some malformed files; degrade to empty.
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		t, err := page.GetPlainText(nil)
		if err != nil || t == "" {
			continue
		}
		b.WriteString(t)
		b.WriteString("\n")
	}
	return b.String()
}
