// Package extract turns uploaded file bytes into plain text.
//
// The file family is resolved once from the declared MIME type and the
// filename extension, then dispatched to exactly one extractor. Every
// extractor's output is sanitized before it is returned.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"docrag/internal/pkg/textclean"
)

var (
	ErrUnsupportedType   = errors.New("unsupported file type")
	ErrNoExtractableText = errors.New("no extractable text")
	ErrMissingPart       = errors.New("document part missing")
	ErrMalformed         = errors.New("malformed document")
)

// Kind is the file family an upload is extracted as.
type Kind int

const (
	KindUnknown Kind = iota
	KindText
	KindCSV
	KindHTML
	KindPDF
	KindDOCX
	KindXLSX
)

const (
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	binarySniffLen = 100
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindCSV:
		return "csv"
	case KindHTML:
		return "html"
	case KindPDF:
		return "pdf"
	case KindDOCX:
		return "docx"
	case KindXLSX:
		return "xlsx"
	default:
		return "unknown"
	}
}

// DetectKind resolves the file family. Checks run in a fixed order and each
// one accepts either the MIME type or the extension.
func DetectKind(mimeType, filename string) Kind {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	ext := strings.ToLower(filepath.Ext(filename))

	switch {
	case mimeType == "text/plain" || mimeType == "text/markdown" || ext == ".txt" || ext == ".md":
		return KindText
	case mimeType == "text/csv" || ext == ".csv":
		return KindCSV
	case mimeType == "text/html" || ext == ".html" || ext == ".htm":
		return KindHTML
	case mimeType == "application/pdf" || ext == ".pdf":
		return KindPDF
	case mimeType == mimeDOCX || ext == ".docx":
		return KindDOCX
	case mimeType == mimeXLSX || ext == ".xlsx":
		return KindXLSX
	default:
		return KindUnknown
	}
}

// Extract returns the sanitized plain text of data.
func Extract(data []byte, mimeType, filename string) (string, error) {
	kind := DetectKind(mimeType, filename)

	var (
		text string
		err  error
	)
	switch kind {
	case KindText:
		text = decodeText(data)
	case KindCSV:
		text = extractCSV(decodeText(data))
	case KindHTML:
		text = extractHTML(decodeText(data))
	case KindPDF:
		text, err = extractPDF(data)
	case KindDOCX:
		text, err = extractDOCX(data)
	case KindXLSX:
		text, err = extractXLSX(data)
	case KindUnknown:
		text, err = extractUnknown(data, mimeType)
	}
	if err != nil {
		return "", err
	}
	return textclean.Sanitize(text), nil
}

func decodeText(data []byte) string {
	return strings.ToValidUTF8(string(data), "�")
}

func extractUnknown(data []byte, mimeType string) (string, error) {
	text := decodeText(data)
	sniffed := 0
	for _, r := range text {
		if sniffed >= binarySniffLen {
			break
		}
		if textclean.IsControl(r) {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedType, displayType(mimeType))
		}
		sniffed++
	}
	return text, nil
}

func displayType(mimeType string) string {
	if strings.TrimSpace(mimeType) == "" {
		return "unknown"
	}
	return mimeType
}
