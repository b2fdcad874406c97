package consolidate

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/goliatone/go-tablebook/export"
)

const fallbackSheetName = "Sheet"

// SheetNamer derives bounded, unique worksheet names.
type SheetNamer struct {
	MaxLength int
	Suffix    SuffixStrategy
}

// Candidate turns a file name into a sheet name: the extension is removed,
// characters spreadsheets reject become "_" and the result is truncated.
func (n SheetNamer) Candidate(fileName string) string {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	base = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, base)
	base = truncateRunes(base, n.limit())
	base = strings.Trim(strings.TrimSpace(base), "'")
	if base == "" {
		return fallbackSheetName
	}
	return base
}

// Unique resolves collisions against taken. The returned name never exceeds
// the length limit; the base is shortened to make room for the suffix.
func (n SheetNamer) Unique(name string, taken func(string) bool) (string, error) {
	limit := n.limit()
	name = truncateRunes(name, limit)
	if !taken(name) {
		return name, nil
	}

	for i := 2; i < 1<<16; i++ {
		var suffix string
		switch n.Suffix {
		case SuffixUnderscore:
			suffix = strings.Repeat("_", i-1)
		default:
			suffix = fmt.Sprintf("_%d", i)
		}
		room := limit - utf8.RuneCountInString(suffix)
		if room < 1 {
			break
		}
		next := strings.TrimRight(truncateRunes(name, room), " ") + suffix
		if !taken(next) {
			return next, nil
		}
	}
	return "", export.NewError(export.KindValidation, fmt.Sprintf("no unique sheet name for %q", name), nil)
}

func (n SheetNamer) limit() int {
	if n.MaxLength <= 0 || n.MaxLength > MaxSheetNameLength {
		return MaxSheetNameLength
	}
	return n.MaxLength
}

func truncateRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit])
}
