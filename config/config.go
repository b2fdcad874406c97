package config

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"github.com/goliatone/go-tablebook/consolidate"
	"github.com/goliatone/go-tablebook/export"
)

// EnvPrefix prefixes every environment override, e.g. TABLEBOOK_SOURCE_DSN.
const EnvPrefix = "TABLEBOOK"

// Config holds the tablebook configuration.
type Config struct {
	// Dir is where flat files are written and read back.
	Dir         string            `yaml:"dir" split_words:"true"`
	SkipExport  bool              `yaml:"skip_export" split_words:"true"`
	Source      SourceConfig      `yaml:"source"`
	Export      ExportConfig      `yaml:"export"`
	Consolidate ConsolidateConfig `yaml:"consolidate"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// SourceConfig selects the database.
type SourceConfig struct {
	Dialect string `yaml:"dialect" split_words:"true"`
	// Driver overrides the dialect's database/sql driver name.
	Driver string   `yaml:"driver" split_words:"true"`
	DSN    string   `yaml:"dsn" split_words:"true"`
	Tables []string `yaml:"tables" split_words:"true"`
}

// ExportConfig holds flat file settings.
type ExportConfig struct {
	ExcludePrefixes []string `yaml:"exclude_prefixes" split_words:"true"`
	// Delimiter left empty follows consolidate.delimiters for Extension.
	Delimiter  string `yaml:"delimiter" split_words:"true"`
	Extension  string `yaml:"extension" split_words:"true"`
	TimeLayout string `yaml:"time_layout" split_words:"true"`
	BlobMarker string `yaml:"blob_marker" split_words:"true"`
	NullValue  string `yaml:"null_value" split_words:"true"`
	Policy     string `yaml:"policy" split_words:"true"`
}

// ConsolidateConfig holds workbook settings.
type ConsolidateConfig struct {
	ExcludePrefixes []string `yaml:"exclude_prefixes" split_words:"true"`
	Extensions      []string `yaml:"extensions" split_words:"true"`
	// Delimiters maps an extension to a delimiter name, e.g. ".txt: tab".
	Delimiters    map[string]string `yaml:"delimiters" split_words:"true"`
	Header        string            `yaml:"header" split_words:"true"`
	MaxSheetName  int               `yaml:"max_sheet_name" split_words:"true"`
	Suffix        string            `yaml:"suffix" split_words:"true"`
	Output        string            `yaml:"output" split_words:"true"`
	Concurrency   int               `yaml:"concurrency" split_words:"true"`
	Policy        string            `yaml:"policy" split_words:"true"`
	CoerceNumbers bool              `yaml:"coerce_numbers" split_words:"true"`
}

// LedgerConfig enables the outcome ledger.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled" split_words:"true"`
	Path    string `yaml:"path" split_words:"true"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level" split_words:"true"`
	Format string `yaml:"format" split_words:"true"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() Config {
	return Config{
		Dir: "./out",
		Source: SourceConfig{
			Dialect: "firebird",
		},
		Export: ExportConfig{
			ExcludePrefixes: []string{"datos", "hopec"},
			Extension:       export.DefaultExtension,
			TimeLayout:      export.DefaultTimeLayout,
			BlobMarker:      export.DefaultBlobMarker,
			NullValue:       export.DefaultNullValue,
			Policy:          string(export.FailAbort),
		},
		Consolidate: ConsolidateConfig{
			ExcludePrefixes: []string{"regis"},
			Extensions:      []string{"csv", "txt"},
			Delimiters: map[string]string{
				".csv": "comma",
				".txt": "tab",
			},
			Header:       string(consolidate.HeaderAuto),
			MaxSheetName: consolidate.MaxSheetNameLength,
			Suffix:       string(consolidate.SuffixNumeric),
			Output:       consolidate.DefaultOutputName,
			Concurrency:  consolidate.DefaultConcurrency,
			Policy:       string(export.FailContinue),
		},
		Ledger: LedgerConfig{
			Path: "tablebook.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load applies the YAML file at path (when set) and then TABLEBOOK_*
// environment variables over Defaults, and validates the result.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, export.NewError(export.KindValidation, fmt.Sprintf("read config %s failed", path), err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, export.NewError(export.KindValidation, fmt.Sprintf("parse config %s failed", path), err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, export.NewError(export.KindValidation, "environment config invalid", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with. Database settings
// are checked separately by ValidateSource.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Dir) == "" {
		return invalid("dir is required")
	}
	format, err := c.FlatFileOptions()
	if err != nil {
		return err
	}
	if _, err := c.ExportPolicy(); err != nil {
		return err
	}
	opts, err := c.ConsolidateOptions()
	if err != nil {
		return err
	}
	if want := opts.DelimiterFor(format.Extension); format.Delimiter != want {
		return invalid(fmt.Sprintf("export.delimiter %q does not match consolidate delimiter %q for .%s files",
			format.Delimiter, want, strings.TrimPrefix(format.Extension, ".")))
	}
	if c.Consolidate.MaxSheetName < 1 || c.Consolidate.MaxSheetName > consolidate.MaxSheetNameLength {
		return invalid(fmt.Sprintf("consolidate.max_sheet_name must be between 1 and %d", consolidate.MaxSheetNameLength))
	}
	if c.Consolidate.Concurrency < 1 {
		return invalid("consolidate.concurrency must be positive")
	}
	if c.Ledger.Enabled && c.Ledger.Path == "" {
		return invalid("ledger.path is required when the ledger is enabled")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("unknown logging.level " + c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return invalid("unknown logging.format " + c.Logging.Format)
	}
	return nil
}

// ValidateSource checks the settings needed to reach the database.
func (c Config) ValidateSource() error {
	if strings.TrimSpace(c.Source.Dialect) == "" {
		return invalid("source.dialect is required")
	}
	if strings.TrimSpace(c.Source.DSN) == "" {
		return invalid("source.dsn is required")
	}
	return nil
}

// FlatFileOptions builds the exporter's file format. An unset delimiter is
// taken from the consolidator's delimiter for the export extension, so the
// files written are the files read back.
func (c Config) FlatFileOptions() (export.FlatFileOptions, error) {
	extension := strings.TrimPrefix(strings.TrimSpace(c.Export.Extension), ".")
	if extension == "" {
		extension = export.DefaultExtension
	}

	var delimiter rune
	if c.Export.Delimiter == "" {
		opts, err := c.ConsolidateOptions()
		if err != nil {
			return export.FlatFileOptions{}, err
		}
		delimiter = opts.DelimiterFor(extension)
	} else {
		d, err := ParseDelimiter(c.Export.Delimiter)
		if err != nil {
			return export.FlatFileOptions{}, err
		}
		delimiter = d
	}
	return export.FlatFileOptions{
		Delimiter:  delimiter,
		Extension:  extension,
		TimeLayout: c.Export.TimeLayout,
		BlobMarker: c.Export.BlobMarker,
		NullValue:  c.Export.NullValue,
	}, nil
}

// ExportPolicy resolves the export failure policy.
func (c Config) ExportPolicy() (export.FailurePolicy, error) {
	return export.ParseFailurePolicy(c.Export.Policy, export.FailAbort)
}

// TableFilter builds the table exclusion filter.
func (c Config) TableFilter() export.NameFilter {
	return export.ExcludePrefixes(c.Export.ExcludePrefixes...)
}

// ConsolidateOptions builds the consolidator options.
func (c Config) ConsolidateOptions() (consolidate.Options, error) {
	header, err := consolidate.ParseHeaderMode(c.Consolidate.Header)
	if err != nil {
		return consolidate.Options{}, err
	}
	suffix, err := consolidate.ParseSuffixStrategy(c.Consolidate.Suffix)
	if err != nil {
		return consolidate.Options{}, err
	}
	policy, err := export.ParseFailurePolicy(c.Consolidate.Policy, export.FailContinue)
	if err != nil {
		return consolidate.Options{}, err
	}

	delimiters := make(map[string]rune, len(c.Consolidate.Delimiters))
	for ext, raw := range c.Consolidate.Delimiters {
		d, err := ParseDelimiter(raw)
		if err != nil {
			return consolidate.Options{}, err
		}
		delimiters["."+strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")] = d
	}

	return consolidate.Options{
		Filter:        export.ExcludePrefixes(c.Consolidate.ExcludePrefixes...),
		Extensions:    c.Consolidate.Extensions,
		Delimiters:    delimiters,
		Header:        header,
		MaxSheetName:  c.Consolidate.MaxSheetName,
		Suffix:        suffix,
		Concurrency:   c.Consolidate.Concurrency,
		Policy:        policy,
		OutputName:    c.Consolidate.Output,
		CoerceNumbers: c.Consolidate.CoerceNumbers,
	}, nil
}

// ParseDelimiter accepts a name (comma, tab, semicolon, pipe) or a single
// character. Empty means comma.
func ParseDelimiter(raw string) (rune, error) {
	if raw == "\t" {
		return '\t', nil
	}
	if raw != "" && strings.TrimSpace(raw) == "" {
		return 0, invalid(fmt.Sprintf("invalid delimiter %q", raw))
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "comma", ",":
		return ',', nil
	case "tab", `\t`:
		return '\t', nil
	case "semicolon", ";":
		return ';', nil
	case "pipe", "|":
		return '|', nil
	}
	if utf8.RuneCountInString(raw) == 1 {
		r, _ := utf8.DecodeRuneInString(raw)
		if r != '"' && r != '\r' && r != '\n' && r != utf8.RuneError {
			return r, nil
		}
	}
	return 0, invalid(fmt.Sprintf("invalid delimiter %q", raw))
}

func invalid(msg string) error {
	return export.NewError(export.KindValidation, msg, nil)
}
