package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	docxBodyPart      = "word/document.xml"
	xlsxSharedStrings = "xl/sharedStrings.xml"

	xlsxPreamble = "Spreadsheet contents:\n\n"
)

// readZipPart returns the bytes of a single archive member.
func readZipPart(data []byte, name string) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open archive: %v", ErrMalformed, err)
	}
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", ErrMalformed, name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrMalformed, name, err)
		}
		return content, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrMissingPart, name)
}

// extractDOCX keeps the text runs of word/document.xml with one line per paragraph.
func extractDOCX(data []byte) (string, error) {
	content, err := readZipPart(data, docxBodyPart)
	if err != nil {
		return "", err
	}

	var (
		b          strings.Builder
		inText     bool
		paragraphs int
	)
	decoder := xml.NewDecoder(bytes.NewReader(content))
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: parse %s: %v", ErrMalformed, docxBodyPart, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				if paragraphs > 0 {
					b.WriteByte('\n')
				}
				paragraphs++
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return trimLines(b.String()), nil
}

// extractXLSX lists every shared string of the workbook, one per line.
func extractXLSX(data []byte) (string, error) {
	content, err := readZipPart(data, xlsxSharedStrings)
	if err != nil {
		return "", err
	}

	var (
		items  []string
		item   strings.Builder
		inItem bool
		inText bool
	)
	decoder := xml.NewDecoder(bytes.NewReader(content))
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: parse %s: %v", ErrMalformed, xlsxSharedStrings, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "si":
				inItem = true
				item.Reset()
			case "t":
				inText = inItem
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "si":
				if s := strings.TrimSpace(item.String()); s != "" {
					items = append(items, s)
				}
				inItem = false
			}
		case xml.CharData:
			if inText {
				item.Write(t)
			}
		}
	}
	if len(items) == 0 {
		return "", fmt.Errorf("%w: spreadsheet has no text cells", ErrNoExtractableText)
	}
	return xlsxPreamble + strings.Join(items, "\n"), nil
}

func trimLines(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
