package export

import (
	"context"
	"io"
	"time"
)

// Column describes one column of a source table.
type Column struct {
	Name string
	Type string
}

// Schema defines the ordered columns of a table.
type Schema struct {
	Columns []Column
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

// Row is a column-aligned record.
type Row []any

// RowIterator streams rows.
type RowIterator interface {
	Next(ctx context.Context) (Row, error)
	Close() error
}

// Connector acquires a database session for one run.
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}

// Session is an open database handle.
type Session interface {
	// Tables lists non-system relations.
	Tables(ctx context.Context) ([]string, error)
	// Open streams every row of table.
	Open(ctx context.Context, table string) (Schema, RowIterator, error)
	Close() error
}

// ArtifactInfo describes a stored file.
type ArtifactInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// ArtifactRef references a written file.
type ArtifactRef struct {
	Key  string
	Path string
	Size int64
}

// ArtifactStore reads and writes files under a single root directory.
type ArtifactStore interface {
	Write(ctx context.Context, key string, fn func(w io.Writer) error) (ArtifactRef, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context) ([]ArtifactInfo, error)
}

// ArtifactDeleter is implemented by stores that can remove a file. Deleting
// a missing key is not an error.
type ArtifactDeleter interface {
	Delete(ctx context.Context, key string) error
}

// FailurePolicy selects what happens after a per-entity failure.
type FailurePolicy string

const (
	FailAbort    FailurePolicy = "abort"
	FailContinue FailurePolicy = "continue"
)

// ParseFailurePolicy resolves a policy name. Empty returns fallback.
func ParseFailurePolicy(raw string, fallback FailurePolicy) (FailurePolicy, error) {
	switch FailurePolicy(raw) {
	case "":
		return fallback, nil
	case FailAbort, FailContinue:
		return FailurePolicy(raw), nil
	default:
		return "", NewError(KindValidation, "unknown failure policy "+raw, nil)
	}
}

// FlatFileOptions configures the delimited file format.
type FlatFileOptions struct {
	Delimiter  rune
	Extension  string
	TimeLayout string
	BlobMarker string
	NullValue  string
}

const (
	DefaultTimeLayout = "2006-01-02 15:04:05"
	DefaultBlobMarker = "BLOB_DATA"
	DefaultNullValue  = "0"
	DefaultExtension  = "csv"
)

func (o FlatFileOptions) withDefaults() FlatFileOptions {
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
	if o.Extension == "" {
		o.Extension = DefaultExtension
	}
	if o.TimeLayout == "" {
		o.TimeLayout = DefaultTimeLayout
	}
	if o.BlobMarker == "" {
		o.BlobMarker = DefaultBlobMarker
	}
	if o.NullValue == "" {
		o.NullValue = DefaultNullValue
	}
	return o
}

// Stage identifies a pipeline stage.
type Stage string

const (
	StageExport      Stage = "export"
	StageConsolidate Stage = "consolidate"
)

// Status is the result of processing one table or file.
type Status string

const (
	StatusWritten  Status = "written"
	StatusEmpty    Status = "empty"
	StatusExcluded Status = "excluded"
	StatusFailed   Status = "failed"
)

// Outcome captures the result for one table or file.
type Outcome struct {
	Stage  Stage
	Name   string
	Status Status
	Path   string
	Sheet  string
	Rows   int64
	Bytes  int64
	Kind   ErrorKind
	Err    error
}

// Report collects the ordered outcomes of a stage.
type Report struct {
	Outcomes []Outcome
}

// Add appends an outcome.
func (r *Report) Add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Count returns the number of outcomes with the given status.
func (r Report) Count(status Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Written returns outcomes that produced an artifact.
func (r Report) Written() []Outcome {
	return r.filter(StatusWritten)
}

// Failed returns failed outcomes.
func (r Report) Failed() []Outcome {
	return r.filter(StatusFailed)
}

func (r Report) filter(status Status) []Outcome {
	out := make([]Outcome, 0)
	for _, o := range r.Outcomes {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}

// OutcomeRecorder persists outcomes for a run.
type OutcomeRecorder interface {
	Record(ctx context.Context, runID string, o Outcome) error
}

// Logger provides logging hooks.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger is a no-op logger.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}
