package extract

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"os"
	"strings"
)

// docxText extracts plain text from a .docx payload. The bytes are written
// to a temp file first so the archive can be opened by path, and the file is
// removed before returning. A .docx is a zip container; the document body
// lives in word/document.xml and text is the character data between tags,
// with paragraph ends mapped to newlines.
func docxText(data []byte) string {
	tmp, err := os.CreateTemp("", "paflow-*.docx")
	if err != nil {
		return ""
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return ""
	}
	if err := tmp.Close(); err != nil {
		return ""
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return ""
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return ""
			}
			defer rc.Close()
			return documentXMLText(rc)
		}
	}
	return ""
}

func documentXMLText(r io.Reader) string {
	dec := xml.NewDecoder(r)
	var b strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.EndElement:
			if t.Name.Local == "p" {
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}
