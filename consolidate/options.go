package consolidate

import (
	"strings"

	"github.com/goliatone/go-tablebook/export"
)

// HeaderMode controls how the first record of a flat file is interpreted.
type HeaderMode string

const (
	// HeaderAuto treats the first record as a header unless a cell is blank.
	HeaderAuto HeaderMode = "auto"
	// HeaderText also rejects a first record holding numeric cells.
	HeaderText    HeaderMode = "text"
	HeaderPresent HeaderMode = "present"
	HeaderAbsent  HeaderMode = "absent"
)

// ParseHeaderMode resolves a header mode name. Empty means auto.
func ParseHeaderMode(raw string) (HeaderMode, error) {
	switch HeaderMode(raw) {
	case "":
		return HeaderAuto, nil
	case HeaderAuto, HeaderText, HeaderPresent, HeaderAbsent:
		return HeaderMode(raw), nil
	default:
		return "", export.NewError(export.KindValidation, "unknown header mode "+raw, nil)
	}
}

// SuffixStrategy selects how colliding sheet names are made unique.
type SuffixStrategy string

const (
	// SuffixNumeric appends _2, _3, ... to the candidate.
	SuffixNumeric SuffixStrategy = "numeric"
	// SuffixUnderscore appends underscores until the name is free.
	SuffixUnderscore SuffixStrategy = "underscore"
)

// ParseSuffixStrategy resolves a suffix strategy name. Empty means numeric.
func ParseSuffixStrategy(raw string) (SuffixStrategy, error) {
	switch SuffixStrategy(raw) {
	case "":
		return SuffixNumeric, nil
	case SuffixNumeric, SuffixUnderscore:
		return SuffixStrategy(raw), nil
	default:
		return "", export.NewError(export.KindValidation, "unknown suffix strategy "+raw, nil)
	}
}

const (
	// MaxSheetNameLength is the spreadsheet format's own sheet name limit.
	MaxSheetNameLength = 31
	DefaultOutputName  = "consolidated.xlsx"
	DefaultConcurrency = 4
)

// DefaultExtensions are the flat file extensions consolidated when none are set.
var DefaultExtensions = []string{"csv", "txt"}

// DefaultDelimiters maps extensions to field delimiters.
func DefaultDelimiters() map[string]rune {
	return map[string]rune{
		".csv": ',',
		".txt": '\t',
	}
}

// Options configures a Consolidator.
type Options struct {
	// Filter rejects file names, e.g. ExcludePrefixes("regis").
	Filter export.NameFilter
	// Extensions is the allow-list of input extensions.
	Extensions []string
	// Delimiters maps a lower-case extension with its dot to a delimiter.
	Delimiters   map[string]rune
	Header       HeaderMode
	MaxSheetName int
	Suffix       SuffixStrategy
	// FillValue replaces blank cells. Nil means numeric zero.
	FillValue     any
	CoerceNumbers bool
	Concurrency   int
	Policy        export.FailurePolicy
	OutputName    string
}

func (o Options) withDefaults() Options {
	if len(o.Extensions) == 0 {
		o.Extensions = DefaultExtensions
	}
	if len(o.Delimiters) == 0 {
		o.Delimiters = DefaultDelimiters()
	}
	if o.Header == "" {
		o.Header = HeaderAuto
	}
	if o.MaxSheetName <= 0 || o.MaxSheetName > MaxSheetNameLength {
		o.MaxSheetName = MaxSheetNameLength
	}
	if o.Suffix == "" {
		o.Suffix = SuffixNumeric
	}
	if o.FillValue == nil {
		o.FillValue = 0
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Policy == "" {
		o.Policy = export.FailContinue
	}
	if o.OutputName == "" {
		o.OutputName = DefaultOutputName
	}
	return o
}

// DelimiterFor returns the delimiter used to parse files with extension ext,
// given with or without its dot.
func (o Options) DelimiterFor(ext string) rune {
	ext = "." + strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	return o.withDefaults().delimiterFor(ext)
}

func (o Options) delimiterFor(ext string) rune {
	if d, ok := o.Delimiters[ext]; ok && d != 0 {
		return d
	}
	return ','
}
