package extract

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

func buildDocx(t *testing.T, paragraphs []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create document.xml: %v", err)
	}
	var body strings.Builder
	body.WriteString(`<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>`)
		body.WriteString(p)
		body.WriteString(`</w:t></w:r></w:p>`)
	}
	body.WriteString(`</w:body></w:document>`)
	if _, err := w.Write([]byte(body.String())); err != nil {
		t.Fatalf("write document.xml: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestText_Docx(t *testing.T) {
	data := buildDocx(t, []string{"Patient ID: PT-1002", "NPI: 1003008533"})
	text := Text(data, MIMEDocx)
	if !strings.Contains(text, "Patient ID: PT-1002") {
		t.Errorf("docx text missing patient line: %q", text)
	}
	if !strings.Contains(text, "NPI: 1003008533") {
		t.Errorf("docx text missing NPI line: %q", text)
	}

	// Paragraph boundaries become newlines; the two fields must not fuse
	// into one token.
	if strings.Contains(text, "PT-1002NPI") {
		t.Errorf("paragraphs fused: %q", text)
	}
}

func TestText_DocxGarbled(t *testing.T) {
	if got := Text([]byte("not a zip archive"), MIMEDocx); got != "" {
		t.Errorf("garbled docx = %q, want empty", got)
	}
}

func TestText_PlainFallback(t *testing.T) {
	if got := Text([]byte("eGFR: 25 mL/min"), "text/plain"); got != "eGFR: 25 mL/min" {
		t.Errorf("plain fallback = %q", got)
	}
}

func TestText_InvalidUTF8(t *testing.T) {
	if got := Text([]byte{0xff, 0xfe, 0x00, 0x88}, "application/octet-stream"); got != "" {
		t.Errorf("invalid utf-8 = %q, want empty", got)
	}
}

func TestText_GarbledPDF(t *testing.T) {
	if got := Text([]byte("%PDF-1.7 truncated garbage"), MIMEPDF); got != "" {
		t.Errorf("garbled pdf = %q, want empty", got)
	}
}

func TestRequest_EndToEnd(t *testing.T) {
	data := buildDocx(t, []string{
		"Prior Authorization",
		"Patient ID: PT-55",
		"Provider NPI: 1003000142",
		"Diagnosis codes: N18.6 and S72.0",
	})
	req := Request(data, MIMEDocx)
	if req.PatientID != "PT-55" {
		t.Errorf("PatientID = %q", req.PatientID)
	}
	if req.ProviderNPI != "1003000142" {
		t.Errorf("ProviderNPI = %q", req.ProviderNPI)
	}
	if len(req.DiagnosisCodes) != 2 {
		t.Errorf("DiagnosisCodes = %v, want 2 codes", req.DiagnosisCodes)
	}
}
