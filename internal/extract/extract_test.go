package extract

import (
	"archive/zip"
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildZip creates an in-memory archive with the given members.
func buildZip(t *testing.T, members map[string]string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	for name, body := range members {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		mime, name string
		want       Kind
	}{
		{"text/plain", "notes", KindText},
		{"", "README.md", KindText},
		{"text/csv; charset=utf-8", "x", KindCSV},
		{"", "table.CSV", KindCSV},
		{"text/html", "", KindHTML},
		{"", "page.htm", KindHTML},
		{"application/pdf", "", KindPDF},
		{"application/octet-stream", "scan.pdf", KindPDF},
		{mimeDOCX, "", KindDOCX},
		{"", "report.docx", KindDOCX},
		{mimeXLSX, "", KindXLSX},
		{"", "grades.xlsx", KindXLSX},
		{"application/octet-stream", "blob.bin", KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectKind(tt.mime, tt.name), "%s / %s", tt.mime, tt.name)
	}
}

func TestExtract_PlainTextIsSanitized(t *testing.T) {
	text, err := Extract([]byte("hello\x00 world\x07\nnext"), "text/plain", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world\nnext", text)
}

func TestExtract_CSV(t *testing.T) {
	raw := "name,career\n\nAna,\"Systems, Computing\"\r\nLuis,Industrial\n"
	text, err := Extract([]byte(raw), "text/csv", "students.csv")
	require.NoError(t, err)

	assert.Contains(t, text, "Headers: name | career")
	assert.Contains(t, text, "Row 1: Ana | Systems, Computing")
	assert.Contains(t, text, "Row 2: Luis | Industrial")
	assert.NotContains(t, text, "Row 3")
}

func TestExtract_CSVHeaderIsFirstNonBlankLine(t *testing.T) {
	text, err := Extract([]byte("\n\na,b\n1,2\n"), "", "x.csv")
	require.NoError(t, err)
	assert.Contains(t, text, "Headers: a | b")
	assert.Contains(t, text, "Row 1: 1 | 2")
}

func TestExtract_HTML(t *testing.T) {
	text, err := Extract([]byte("<script>alert(1)</script><p>Hola</p>"), "text/html", "")
	require.NoError(t, err)
	assert.Contains(t, text, "Hola")
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "<")
}

func TestExtract_HTMLStylesAndEntities(t *testing.T) {
	raw := "<html><STYLE type=\"text/css\">p{color:red}</STYLE><body><p>Fish&nbsp;&amp;\n\n chips &lt;3</p></body></html>"
	text, err := Extract([]byte(raw), "", "menu.html")
	require.NoError(t, err)
	assert.Equal(t, "Fish & chips <3", text)
}

func TestExtract_DOCX(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:pPr><w:jc w:val="center"/></w:pPr><w:r><w:t>Admission</w:t></w:r><w:r><w:t xml:space="preserve"> guide</w:t></w:r></w:p>
<w:p><w:r><w:t>Deadline &amp; fees</w:t></w:r></w:p>
</w:body>
</w:document>`
	data := buildZip(t, map[string]string{"word/document.xml": doc})

	text, err := Extract(data, mimeDOCX, "guide.docx")
	require.NoError(t, err)
	assert.Equal(t, "Admission guide\nDeadline & fees", text)
}

func TestExtract_DOCXMissingPart(t *testing.T) {
	data := buildZip(t, map[string]string{"[Content_Types].xml": "<Types/>"})
	_, err := Extract(data, "", "empty.docx")
	assert.ErrorIs(t, err, ErrMissingPart)
}

func TestExtract_DOCXNotAnArchive(t *testing.T) {
	_, err := Extract([]byte("definitely not a zip"), "", "broken.docx")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestExtract_XLSX(t *testing.T) {
	shared := `<?xml version="1.0" encoding="UTF-8"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" count="3" uniqueCount="3">
<si><t>Scholarship</t></si>
<si><r><t>Amount</t></r><r><t xml:space="preserve"> (MXN)</t></r></si>
<si><t></t></si>
</sst>`
	data := buildZip(t, map[string]string{"xl/sharedStrings.xml": shared})

	text, err := Extract(data, mimeXLSX, "")
	require.NoError(t, err)
	assert.Equal(t, "Spreadsheet contents:\n\nScholarship\nAmount (MXN)", text)
}

func TestExtract_XLSXMissingSharedStrings(t *testing.T) {
	data := buildZip(t, map[string]string{"xl/workbook.xml": "<workbook/>"})
	_, err := Extract(data, "", "numbers.xlsx")
	assert.ErrorIs(t, err, ErrMissingPart)
}

func TestExtract_PDFTextOperators(t *testing.T) {
	pdf := "%PDF-1.4\n4 0 obj\n<< /Length 44 >>\nstream\nBT /F1 24 Tf 100 700 Td (Hello World) Tj ET\nendstream\nendobj\n%%EOF"
	text, err := Extract([]byte(pdf), "application/pdf", "hello.pdf")
	require.NoError(t, err)
	assert.Contains(t, text, "Hello World")
}

func TestExtract_PDFTextArrayAndEscapes(t *testing.T) {
	pdf := "%PDF-1.4\nstream\nBT\n[(Hel) -20 (lo) -300 (World)] TJ\n(A \\(quoted\\) word\\041) Tj\nET\nendstream\n"
	text, err := Extract([]byte(pdf), "", "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Hello World A (quoted) word!", text)
}

func TestExtract_PDFFlateStream(t *testing.T) {
	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	_, err := zw.Write([]byte("BT /F1 12 Tf (Compressed content) Tj ET"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	pdf := append([]byte("%PDF-1.5\n5 0 obj\n<< /Filter /FlateDecode >>\nstream\n"), compressed.Bytes()...)
	pdf = append(pdf, []byte("\nendstream\nendobj\n")...)

	text, err := Extract(pdf, "application/pdf", "")
	require.NoError(t, err)
	assert.Equal(t, "Compressed content", text)
}

func TestExtract_PDFLooseLiteralFallback(t *testing.T) {
	pdf := "%PDF-1.4\n1 0 obj\n<< /Title (Campus regulations) >>\nendobj\n(ok)\n"
	text, err := Extract([]byte(pdf), "application/pdf", "")
	require.NoError(t, err)
	assert.Equal(t, "Campus regulations", text)
}

func TestExtract_PDFHexFallback(t *testing.T) {
	pdf := "%PDF-1.4\n<48656C6C6F20576F726C64>\n<AB>\n"
	text, err := Extract([]byte(pdf), "application/pdf", "")
	require.NoError(t, err)
	assert.Equal(t, "Hello World", text)
}

func TestExtract_PDFWithoutText(t *testing.T) {
	pdf := "%PDF-1.4\n1 0 obj\n<< /Type /XObject /Subtype /Image >>\nendobj\n"
	_, err := Extract([]byte(pdf), "application/pdf", "scan.pdf")
	assert.ErrorIs(t, err, ErrNoExtractableText)
}

func TestExtract_UnknownBinaryIsRejected(t *testing.T) {
	_, err := Extract([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00}, "image/png", "logo.png")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestExtract_UnknownTextIsAccepted(t *testing.T) {
	text, err := Extract([]byte("key = value\n"), "application/toml", "config.toml")
	require.NoError(t, err)
	assert.Equal(t, "key = value\n", text)
}
