package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Exporter writes every eligible source table to a flat file.
type Exporter struct {
	Connector Connector
	Store     ArtifactStore
	Filter    NameFilter
	Format    FlatFileOptions
	Policy    FailurePolicy
	Logger    Logger
}

// NewExporter creates an exporter that aborts on the first table failure.
func NewExporter(conn Connector, store ArtifactStore) *Exporter {
	return &Exporter{
		Connector: conn,
		Store:     store,
		Policy:    FailAbort,
		Logger:    NopLogger{},
	}
}

// Run exports every table returned by the catalog.
func (e *Exporter) Run(ctx context.Context) (Report, error) {
	return e.RunTables(ctx, nil)
}

// RunTables exports the named tables, or all tables when names is empty.
// The session is closed exactly once on every return path.
func (e *Exporter) RunTables(ctx context.Context, names []string) (report Report, err error) {
	if e == nil {
		return report, NewError(KindInternal, "exporter is nil", nil)
	}
	if e.Connector == nil {
		return report, NewError(KindValidation, "connector is required", nil)
	}
	if e.Store == nil {
		return report, NewError(KindValidation, "artifact store is required", nil)
	}
	logger := e.logger()
	policy := e.Policy
	if policy == "" {
		policy = FailAbort
	}

	session, err := e.Connector.Connect(ctx)
	if err != nil {
		logger.Errorf("database connection failed: %v", err)
		return report, NewError(KindConnection, "database connection failed", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Errorf("database close failed: %v", cerr)
			if err == nil {
				err = NewError(KindConnection, "database close failed", cerr)
			}
		}
	}()

	tables, err := session.Tables(ctx)
	if err != nil {
		logger.Errorf("table catalog query failed: %v", err)
		return report, NewError(KindCatalog, "table catalog query failed", err)
	}
	sort.Strings(tables)

	targets, missing := selectTables(tables, names)
	for _, name := range missing {
		outcome := Outcome{
			Stage:  StageExport,
			Name:   name,
			Status: StatusFailed,
			Kind:   KindNotFound,
			Err:    NewError(KindNotFound, fmt.Sprintf("table %q not found", name), nil),
		}
		report.Add(outcome)
		logger.Errorf("table %s not found in catalog", name)
		if policy == FailAbort {
			return report, outcome.Err
		}
	}

	for _, table := range targets {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if !e.Filter.Allows(table) {
			logger.Infof("table %s excluded", table)
			report.Add(Outcome{Stage: StageExport, Name: table, Status: StatusExcluded})
			continue
		}

		outcome := e.exportTable(ctx, session, table)
		report.Add(outcome)
		if outcome.Status != StatusFailed {
			continue
		}

		logger.Errorf("table %s failed: %v", table, outcome.Err)
		if policy == FailAbort || outcome.Kind == KindCanceled {
			return report, outcome.Err
		}
	}

	logger.Infof("export completed written=%d empty=%d excluded=%d failed=%d",
		report.Count(StatusWritten), report.Count(StatusEmpty), report.Count(StatusExcluded), report.Count(StatusFailed))
	return report, nil
}

func (e *Exporter) exportTable(ctx context.Context, session Session, table string) Outcome {
	logger := e.logger()
	logger.Debugf("processing table %s", table)

	outcome := Outcome{Stage: StageExport, Name: table}
	fail := func(err error) Outcome {
		outcome.Status = StatusFailed
		outcome.Err = err
		outcome.Kind = KindFromError(err)
		return outcome
	}

	schema, iter, err := session.Open(ctx, table)
	if err != nil {
		return fail(NewError(KindQuery, fmt.Sprintf("query table %s failed", table), err))
	}
	defer iter.Close()
	rows := &queryIterator{base: iter, table: table}

	first, err := rows.Next(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			logger.Infof("table %s is empty, no file written", table)
			if err := e.removeStale(ctx, table); err != nil {
				return fail(err)
			}
			outcome.Status = StatusEmpty
			return outcome
		}
		return fail(err)
	}

	var stats RenderStats
	key := FlatFileName(table, e.Format)
	ref, err := e.Store.Write(ctx, key, func(w io.Writer) error {
		s, err := FlatFileWriter{Options: e.Format}.Render(ctx, schema, first, rows, w)
		stats = s
		return err
	})
	if err != nil {
		if KindFromError(err) == KindInternal {
			err = NewError(KindWrite, fmt.Sprintf("write %s failed", key), err)
		}
		return fail(err)
	}

	outcome.Status = StatusWritten
	outcome.Path = ref.Path
	outcome.Rows = stats.Rows
	outcome.Bytes = ref.Size
	logger.Infof("table %s exported rows=%d path=%s", table, stats.Rows, ref.Path)
	return outcome
}

// removeStale deletes a file left by an earlier run of an empty table, so
// the consolidator never picks up rows the table no longer has.
func (e *Exporter) removeStale(ctx context.Context, table string) error {
	deleter, ok := e.Store.(ArtifactDeleter)
	if !ok {
		return nil
	}
	key := FlatFileName(table, e.Format)
	if err := deleter.Delete(ctx, key); err != nil {
		if KindFromError(err) == KindInternal {
			err = NewError(KindWrite, fmt.Sprintf("delete %s failed", key), err)
		}
		return err
	}
	return nil
}

func (e *Exporter) logger() Logger {
	if e.Logger == nil {
		return NopLogger{}
	}
	return e.Logger
}

// selectTables resolves requested names against the catalog, ignoring case.
func selectTables(catalog, names []string) ([]string, []string) {
	if len(names) == 0 {
		return catalog, nil
	}
	index := make(map[string]string, len(catalog))
	for _, table := range catalog {
		index[strings.ToLower(table)] = table
	}

	seen := make(map[string]struct{}, len(names))
	selected := make([]string, 0, len(names))
	missing := make([]string, 0)
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		table, ok := index[key]
		if !ok {
			missing = append(missing, name)
			continue
		}
		selected = append(selected, table)
	}
	sort.Strings(selected)
	return selected, missing
}

// queryIterator tags read failures as query errors.
type queryIterator struct {
	base  RowIterator
	table string
}

func (it *queryIterator) Next(ctx context.Context) (Row, error) {
	row, err := it.base.Next(ctx)
	if err == nil || errors.Is(err, io.EOF) {
		return row, err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	var e *Error
	if errors.As(err, &e) {
		return nil, err
	}
	return nil, NewError(KindQuery, fmt.Sprintf("read table %s failed", it.table), err)
}

func (it *queryIterator) Close() error {
	return it.base.Close()
}
