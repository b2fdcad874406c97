package consolidate

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/goliatone/go-tablebook/export"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Grid is a parsed flat file: a header plus rectangular data records.
type Grid struct {
	Header  []string
	Records [][]string
}

// Empty reports whether the grid has no data records.
func (g Grid) Empty() bool {
	return len(g.Records) == 0
}

// ParseFlatFile reads delimited text into a Grid. Ragged records are padded
// to the widest record and missing header names become ColumnN.
func ParseFlatFile(r io.Reader, delimiter rune, mode HeaderMode) (Grid, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Grid{}, export.NewError(export.KindParse, "read flat file failed", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return Grid{}, export.NewError(export.KindParse, "parse flat file failed", err)
	}
	if len(records) == 0 {
		return Grid{}, nil
	}

	var header []string
	if hasHeader(records[0], mode) {
		header = records[0]
		records = records[1:]
	}

	width := len(header)
	for _, record := range records {
		if len(record) > width {
			width = len(record)
		}
	}

	grid := Grid{Header: make([]string, width), Records: records}
	for i := range grid.Header {
		name := ""
		if i < len(header) {
			name = strings.TrimSpace(header[i])
		}
		if name == "" {
			name = fmt.Sprintf("Column%d", i+1)
		}
		grid.Header[i] = name
	}
	for i, record := range grid.Records {
		if len(record) < width {
			padded := make([]string, width)
			copy(padded, record)
			grid.Records[i] = padded
		}
	}
	return grid, nil
}

func hasHeader(first []string, mode HeaderMode) bool {
	switch mode {
	case HeaderPresent:
		return true
	case HeaderAbsent:
		return false
	}
	if len(first) == 0 {
		return false
	}
	for _, cell := range first {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			return false
		}
		if mode != HeaderText {
			continue
		}
		if _, ok := export.CoerceNumber(cell); ok {
			return false
		}
	}
	return true
}

// Cells converts a record into worksheet values. Empty cells take fill and,
// when coerce is set, numeric text is written as a number. Whitespace is kept
// as written.
func Cells(record []string, fill any, coerce bool) []any {
	out := make([]any, len(record))
	for i, raw := range record {
		switch {
		case raw == "":
			out[i] = fill
		case coerce:
			if n, ok := export.CoerceNumber(strings.TrimSpace(raw)); ok {
				out[i] = n
				continue
			}
			out[i] = raw
		default:
			out[i] = raw
		}
	}
	return out
}
