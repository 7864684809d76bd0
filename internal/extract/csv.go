package extract

import (
	"encoding/csv"
	"fmt"
	"strings"
)

const (
	csvPreamble    = "CSV file contents:\n\n"
	csvHeaderLabel = "Headers: "
)

// extractCSV flattens a delimited table into labelled, pipe-joined lines.
// Quoted fields are honoured line by line; a line that does not parse as
// CSV falls back to a plain comma split.
func extractCSV(raw string) string {
	var b strings.Builder
	b.WriteString(csvPreamble)

	header := true
	row := 0
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := splitCSVLine(line)
		if header {
			b.WriteString(csvHeaderLabel)
			b.WriteString(strings.Join(cells, " | "))
			b.WriteString("\n\n")
			header = false
			continue
		}
		row++
		fmt.Fprintf(&b, "Row %d: %s\n", row, strings.Join(cells, " | "))
	}
	return b.String()
}

func splitCSVLine(line string) []string {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	record, err := r.Read()
	if err != nil {
		return strings.Split(line, ",")
	}
	return record
}
