package consolidate

import (
	"strings"
	"sync"
)

// Sheet is one worksheet waiting to be written.
type Sheet struct {
	Name   string
	Source string
	Header []string
	Rows   [][]any
}

// Workbook is an ordered, concurrency-safe sheet registry. Name resolution
// and insertion happen under one lock so names stay unique.
type Workbook struct {
	namer SheetNamer

	mu     sync.Mutex
	sheets []Sheet
	taken  map[string]struct{}
}

// NewWorkbook creates an empty registry.
func NewWorkbook(namer SheetNamer) *Workbook {
	return &Workbook{namer: namer, taken: make(map[string]struct{})}
}

// Append registers a sheet under a unique name derived from candidate and
// returns the name used.
func (w *Workbook) Append(candidate, source string, header []string, rows [][]any) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	name, err := w.namer.Unique(candidate, func(name string) bool {
		_, ok := w.taken[strings.ToLower(name)]
		return ok
	})
	if err != nil {
		return "", err
	}

	w.taken[strings.ToLower(name)] = struct{}{}
	w.sheets = append(w.sheets, Sheet{Name: name, Source: source, Header: header, Rows: rows})
	return name, nil
}

// Sheets returns the registered sheets in insertion order.
func (w *Workbook) Sheets() []Sheet {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Sheet(nil), w.sheets...)
}

// Len returns the number of sheets.
func (w *Workbook) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sheets)
}
