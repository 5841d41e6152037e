package e2e

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"html"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SupportedFileExtensions are the formats the corpus is written in. PDF is covered by
// the extract package tests; a minimal PDF with extractable text is not generated here.
var SupportedFileExtensions = []string{".txt", ".md", ".docx", ".xlsx", ".json"}

// WriteMinimalFile returns the bytes of a minimal file of the given extension holding text.
// Paragraphs are separated by blank lines.
func WriteMinimalFile(ext, text string) ([]byte, error) {
	switch ext {
	case ".docx":
		return minimalDocx(text)
	case ".xlsx":
		return minimalXlsx(text)
	case ".json":
		paras := strings.Split(text, "\n\n")
		return json.MarshalIndent(map[string]any{"title": paras[0], "details": paras[1:]}, "", "  ")
	default:
		return []byte(text), nil
	}
}

func minimalDocx(text string) ([]byte, error) {
	var body strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		body.WriteString(`<w:p><w:r><w:t>` + html.EscapeString(para) + `</w:t></w:r></w:p>`)
	}
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create("word/document.xml")
	if err != nil {
		return nil, err
	}
	doc := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body.String() + `</w:body></w:document>`
	if _, err := fw.Write([]byte(doc)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// minimalXlsx writes one paragraph per row, the way transcripts arrive as spreadsheets.
func minimalXlsx(text string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	for i, para := range strings.Split(text, "\n\n") {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue("Sheet1", cell, para); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
