package extract

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/poiesic/stdgap/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		filename string
		want     core.Format
		wantErr  bool
	}{
		{"standard.txt", core.FormatText, false},
		{"NOTES.MD", core.FormatMarkdown, false},
		{"iso26262.pdf", core.FormatPDF, false},
		{"report.docx", core.FormatDOCX, false},
		{"page.htm", core.FormatHTML, false},
		{"sheet.xlsx", "", true},
		{"noext", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := DetectFormat(tt.filename)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_PlainText(t *testing.T) {
	e := New()

	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("# Scope\r\nBody\r\n")...)
	res, err := e.Extract("a.txt", data)
	require.NoError(t, err)
	assert.Equal(t, core.FormatText, res.Format)
	assert.Equal(t, "# Scope\nBody\n", res.Text)
}

func TestExtract_InvalidUTF8IsReplaced(t *testing.T) {
	e := New()
	res, err := e.Extract("a.txt", []byte("ok \xff done"))
	require.NoError(t, err)
	assert.Equal(t, "ok � done", res.Text)
}

func TestExtract_Errors(t *testing.T) {
	e := New(WithMaxBytes(16))

	_, err := e.Extract("a.xls", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = e.Extract("a.txt", []byte(" \n\t "))
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = e.Extract("a.txt", []byte(strings.Repeat("x", 17)))
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = New().Extract("a.docx", []byte("not a zip"))
	assert.ErrorIs(t, err, ErrUnreadable)

	_, err = New().Extract("a.pdf", []byte("not a pdf"))
	assert.ErrorIs(t, err, ErrUnreadable)
}

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtract_Docx(t *testing.T) {
	xmlBody := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Scope</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Robots shall </w:t></w:r><w:r><w:t>stop.</w:t></w:r></w:p>
<w:p><w:r><w:instrText>PAGE</w:instrText></w:r></w:p>
<w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>Terms</w:t></w:r></w:p>
<w:p><w:r><w:t>A</w:t><w:tab/><w:t>B</w:t></w:r></w:p>
</w:body>
</w:document>`

	res, err := New().Extract("clauses.docx", buildDocx(t, xmlBody))
	require.NoError(t, err)
	assert.Equal(t, core.FormatDOCX, res.Format)
	assert.Equal(t, "# Scope\n\nRobots shall stop.\n\n## Terms\n\nA\tB", res.Text)
}

func TestExtract_DocxMissingDocument(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = New().Extract("a.docx", buf.Bytes())
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestDocxHeadingLevel(t *testing.T) {
	assert.Equal(t, 1, docxHeadingLevel("Title"))
	assert.Equal(t, 2, docxHeadingLevel("Subtitle"))
	assert.Equal(t, 3, docxHeadingLevel("heading 3"))
	assert.Equal(t, 0, docxHeadingLevel("Normal"))
	assert.Equal(t, 0, docxHeadingLevel("Heading10"))
}

func TestExtract_HTML(t *testing.T) {
	html := `<html><body><h1>Scope</h1><p>Body <b>text</b></p><script>alert(1)</script></body></html>`
	res, err := New().Extract("page.html", []byte(html))
	require.NoError(t, err)
	assert.Equal(t, core.FormatHTML, res.Format)
	assert.Contains(t, res.Text, "# Scope")
	assert.Contains(t, res.Text, "Body **text**")
	assert.NotContains(t, res.Text, "alert")
}

func TestTextFromContentStream(t *testing.T) {
	stream := []byte(`BT
/F1 12 Tf
72 712 Td
(1 Scope) Tj
0 -14 Td
(This part \(informative\) applies) Tj
72 0 Td
[(to ) -250 (robots)] TJ
T*
(Next\040line) Tj
ET`)

	got := textFromContentStream(stream)
	assert.Equal(t, "1 Scope\nThis part (informative) applies to robots\nNext line", got)
}

func TestDecodePDFString(t *testing.T) {
	assert.Equal(t, "a(b)c\\", decodePDFString([]byte(`a\(b\)c\\`)))
	assert.Equal(t, "tab\there", decodePDFString([]byte(`tab\there`)))
	assert.Equal(t, "A", decodePDFString([]byte(`\101`)))
}
