package extract

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"docrag/internal/pkg/textclean"
)

const (
	maxInflatedStream = 16 << 20
	// TJ offsets are in thousandths of a text space unit; anything wider
	// than this is rendered as a word gap.
	kerningWordGap = -200.0
	printableRatio = 0.7
)

var (
	pdfStream      = regexp.MustCompile(`(?s)stream\s*(.*?)\s*endstream`)
	pdfTextObject  = regexp.MustCompile(`(?s)\bBT\b(.*?)\bET\b`)
	pdfLooseString = regexp.MustCompile(`\(([^)]{2,})\)`)
	pdfHexString   = regexp.MustCompile(`<([0-9A-Fa-f]+)>`)
)

// extractPDF scans the raw file without a PDF parser. Three passes are tried
// in order and the first one producing text wins: text operators inside
// content streams, loose literal strings, and hex strings.
func extractPDF(data []byte) (string, error) {
	passes := []func([]byte) []string{
		pdfContentStreamText,
		pdfLiteralStrings,
		pdfHexStrings,
	}
	for _, pass := range passes {
		if text := textclean.CollapseSpace(strings.Join(pass(data), " ")); text != "" {
			return text, nil
		}
	}
	return "", fmt.Errorf("%w: the PDF may be scanned, protected or contain no selectable text", ErrNoExtractableText)
}

func pdfContentStreamText(data []byte) []string {
	var segments []string
	for _, m := range pdfStream.FindAllSubmatch(data, -1) {
		content := m[1]
		if inflated := inflate(content); len(inflated) > 0 {
			content = inflated
		}
		for _, block := range pdfTextObject.FindAllSubmatch(content, -1) {
			segments = append(segments, showTextOperands(block[1])...)
		}
	}
	return segments
}

func pdfLiteralStrings(data []byte) []string {
	var segments []string
	for _, m := range pdfLooseString.FindAllSubmatch(data, -1) {
		text := decodePDFString(m[1])
		if len([]rune(text)) > 2 && isPrintable(text) {
			segments = append(segments, text)
		}
	}
	return segments
}

func pdfHexStrings(data []byte) []string {
	var segments []string
	for _, m := range pdfHexString.FindAllSubmatch(data, -1) {
		hex := m[1]
		if len(hex) < 4 || len(hex)%2 != 0 {
			continue
		}
		var b strings.Builder
		for i := 0; i+1 < len(hex); i += 2 {
			c := hexNibble(hex[i])<<4 | hexNibble(hex[i+1])
			if c >= 32 && c <= 126 {
				b.WriteByte(c)
			}
		}
		if text := b.String(); len(text) > 2 && isPrintable(text) {
			segments = append(segments, text)
		}
	}
	return segments
}

// inflate decodes a FlateDecode stream. Content that is not zlib data yields nil.
func inflate(content []byte) []byte {
	if len(content) < 2 || content[0] != 0x78 {
		return nil
	}
	zr, err := zlib.NewReader(bytes.NewReader(content))
	if err != nil {
		return nil
	}
	defer zr.Close()
	// A truncated tail still leaves the decoded prefix usable.
	out, _ := io.ReadAll(io.LimitReader(zr, maxInflatedStream))
	return out
}

// showTextOperands walks the tokens of a BT/ET block and returns the strings
// painted by the Tj, TJ, ' and " operators.
func showTextOperands(block []byte) []string {
	var (
		out     []string
		operand string
		isArray bool
		pending bool
	)
	setOperand := func(s string, array bool) {
		operand, isArray, pending = s, array, true
	}

	for i := 0; i < len(block); {
		c := block[i]
		switch {
		case isPDFSpace(c):
			i++
		case c == '%':
			for i < len(block) && block[i] != '\n' && block[i] != '\r' {
				i++
			}
		case c == '(':
			raw, next := readLiteral(block, i)
			setOperand(decodePDFString(raw), false)
			i = next
		case c == '<' && i+1 < len(block) && block[i+1] == '<':
			i += 2
		case c == '>' && i+1 < len(block) && block[i+1] == '>':
			i += 2
		case c == '<':
			s, next := readHex(block, i)
			if isPrintable(s) {
				setOperand(s, false)
			} else {
				pending = false
			}
			i = next
		case c == '[':
			s, next := readTextArray(block, i)
			setOperand(s, true)
			i = next
		case c == '/':
			_, i = readToken(block, i+1)
		default:
			tok, next := readToken(block, i)
			if next == i {
				next++
			}
			i = next
			if isNumberToken(tok) {
				continue
			}
			if pending {
				switch {
				case tok == "TJ" && isArray, (tok == "Tj" || tok == "'" || tok == `"`) && !isArray:
					if operand != "" {
						out = append(out, operand)
					}
				}
			}
			pending = false
		}
	}
	return out
}

// readLiteral returns the raw bytes of a balanced literal string starting at
// block[start] == '(' and the index just past its closing parenthesis.
func readLiteral(block []byte, start int) ([]byte, int) {
	depth := 0
	for i := start; i < len(block); i++ {
		switch block[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return block[start+1 : i], i + 1
			}
		}
	}
	return block[start+1:], len(block)
}

func readHex(block []byte, start int) (string, int) {
	end := bytes.IndexByte(block[start:], '>')
	if end < 0 {
		return "", len(block)
	}
	var digits []byte
	for _, c := range block[start+1 : start+end] {
		if isHexDigit(c) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	raw := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		raw = append(raw, hexNibble(digits[i])<<4|hexNibble(digits[i+1]))
	}
	return latin1(raw), start + end + 1
}

// readTextArray joins the strings of a TJ array, inserting a space where a
// kerning adjustment is wide enough to separate words.
func readTextArray(block []byte, start int) (string, int) {
	var b strings.Builder
	i := start + 1
	for i < len(block) {
		c := block[i]
		switch {
		case c == ']':
			return b.String(), i + 1
		case isPDFSpace(c):
			i++
		case c == '(':
			raw, next := readLiteral(block, i)
			b.WriteString(decodePDFString(raw))
			i = next
		case c == '<':
			s, next := readHex(block, i)
			if isPrintable(s) {
				b.WriteString(s)
			}
			i = next
		default:
			tok, next := readToken(block, i)
			if next == i {
				next++
			}
			if v, ok := parsePDFNumber(tok); ok && v < kerningWordGap {
				b.WriteByte(' ')
			}
			i = next
		}
	}
	return b.String(), len(block)
}

func readToken(block []byte, start int) (string, int) {
	i := start
	for i < len(block) && !isPDFSpace(block[i]) && !isPDFDelimiter(block[i]) {
		i++
	}
	return string(block[start:i]), i
}

// decodePDFString applies literal-string escapes and maps bytes as Latin-1.
func decodePDFString(raw []byte) string {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			out = append(out, c)
			continue
		}
		i++
		switch e := raw[i]; e {
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case '\r':
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
		case '\n':
		default:
			if e >= '0' && e <= '7' {
				v := int(e - '0')
				for n := 1; n < 3 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
					i++
					v = v*8 + int(raw[i]-'0')
				}
				out = append(out, byte(v&0xFF))
				continue
			}
			out = append(out, e)
		}
	}
	return latin1(out)
}

// isPrintable reports whether at least 70% of the characters are printable
// ASCII, Latin-1 supplement or whitespace.
func isPrintable(text string) bool {
	total, printable := 0, 0
	for _, r := range text {
		total++
		if (r >= 32 && r <= 126) || (r >= 160 && r <= 255) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	if total == 0 {
		return false
	}
	return float64(printable)/float64(total) >= printableRatio
}

func latin1(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}

func parsePDFNumber(tok string) (float64, bool) {
	if !isNumberToken(tok) {
		return 0, false
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isNumberToken(tok string) bool {
	if tok == "" {
		return false
	}
	for i, c := range tok {
		switch {
		case c >= '0' && c <= '9', c == '.':
		case (c == '-' || c == '+') && i == 0:
		default:
			return false
		}
	}
	return true
}

func isPDFSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func isPDFDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}
