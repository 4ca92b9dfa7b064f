package parsers

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"ledger-reconciliation-service/pkg/logger"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func (p *Parser) parseCSV(name string, data []byte) (*Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	var src io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		p.logger.WithField("file", name).Debug("Input is not valid UTF-8, decoding as Latin-1")
		src = transform.NewReader(src, charmap.ISO8859_1.NewDecoder())
	}

	decoded, err := io.ReadAll(src)
	if err != nil {
		return nil, malformed(name, err)
	}
	text := string(decoded)

	delimiter := SniffDelimiter(text, p.config.SniffLines, p.config.Delimiters)
	p.logger.WithFields(logger.Fields{
		"file":      name,
		"delimiter": string(delimiter),
	}).Debug("Detected CSV delimiter")

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, malformed(name, err)
	}

	table := &Table{Headers: []string{}, Rows: [][]interface{}{}}
	if len(records) == 0 {
		return table, nil
	}

	table.Headers = trimHeaders(records[0])
	for _, record := range records[1:] {
		row := make([]interface{}, len(record))
		for i, v := range record {
			if v != "" {
				row[i] = v
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// SniffDelimiter returns the candidate occurring most often in the first
// lines of text. Ties go to the earlier candidate; with no occurrences at all
// the first candidate is returned.
func SniffDelimiter(text string, lines int, candidates []rune) rune {
	if len(candidates) == 0 {
		return ','
	}

	head := text
	if lines > 0 {
		parts := strings.SplitAfterN(text, "\n", lines+1)
		if len(parts) > lines {
			parts = parts[:lines]
		}
		head = strings.Join(parts, "")
	}

	best, bestCount := candidates[0], -1
	for _, c := range candidates {
		if n := strings.Count(head, string(c)); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}
