package consolidate

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-tablebook/export"
)

// Consolidator folds a directory of flat files into one workbook.
type Consolidator struct {
	Store   export.ArtifactStore
	Options Options
	Logger  export.Logger
}

// NewConsolidator creates a consolidator reading and writing through store.
func NewConsolidator(store export.ArtifactStore, opts Options) *Consolidator {
	return &Consolidator{Store: store, Options: opts, Logger: export.NopLogger{}}
}

// Result summarizes one consolidation run.
type Result struct {
	Report export.Report
	// Sheets lists the worksheet names in workbook order.
	Sheets []string
	Path   string
	Bytes  int64
	// Written is false when no eligible file produced a sheet.
	Written bool
}

type parsedFile struct {
	grid Grid
	err  error
}

// Run parses eligible files concurrently, registers one sheet per non-empty
// file in name order and writes the workbook once.
func (c *Consolidator) Run(ctx context.Context) (Result, error) {
	result := Result{}
	if c == nil {
		return result, export.NewError(export.KindInternal, "consolidator is nil", nil)
	}
	if c.Store == nil {
		return result, export.NewError(export.KindValidation, "artifact store is required", nil)
	}
	opts := c.Options.withDefaults()
	logger := c.logger()

	files, skipped, err := scan(ctx, c.Store, opts)
	if err != nil {
		return result, err
	}
	for _, name := range skipped {
		logger.Infof("file %s excluded", name)
		result.Report.Add(export.Outcome{Stage: export.StageConsolidate, Name: name, Status: export.StatusExcluded})
	}
	if len(files) == 0 {
		logger.Infof("no eligible files, workbook not written")
		return result, nil
	}

	parsed := make([]parsedFile, len(files))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(opts.Concurrency)
	for i, file := range files {
		group.Go(func() error {
			grid, err := c.parseFile(gctx, file.Key, opts)
			parsed[i] = parsedFile{grid: grid, err: err}
			if err != nil && opts.Policy == export.FailAbort {
				return err
			}
			return nil
		})
	}
	waitErr := group.Wait()
	if err := ctx.Err(); err != nil {
		return result, err
	}

	namer := SheetNamer{MaxLength: opts.MaxSheetName, Suffix: opts.Suffix}
	workbook := NewWorkbook(namer)
	pending := make([]int, 0, len(files))
	for i, file := range files {
		outcome := export.Outcome{Stage: export.StageConsolidate, Name: file.Key}
		p := parsed[i]

		if p.err != nil {
			outcome.Status = export.StatusFailed
			outcome.Err = p.err
			outcome.Kind = export.KindFromError(p.err)
			result.Report.Add(outcome)
			logger.Errorf("file %s failed: %v", file.Key, p.err)
			continue
		}
		if p.grid.Empty() {
			logger.Infof("file %s is empty, no sheet added", file.Key)
			outcome.Status = export.StatusEmpty
			result.Report.Add(outcome)
			continue
		}

		rows := make([][]any, len(p.grid.Records))
		for r, record := range p.grid.Records {
			rows[r] = Cells(record, opts.FillValue, opts.CoerceNumbers)
		}
		name, err := workbook.Append(namer.Candidate(file.Key), file.Key, p.grid.Header, rows)
		if err != nil {
			return result, err
		}

		outcome.Status = export.StatusWritten
		outcome.Sheet = name
		outcome.Rows = int64(len(rows))
		outcome.Bytes = file.Size
		result.Report.Add(outcome)
		pending = append(pending, len(result.Report.Outcomes)-1)
		logger.Debugf("file %s registered as sheet %s rows=%d", file.Key, name, len(rows))
	}
	// waitErr is only set under the abort policy; nothing is written then.
	if waitErr != nil {
		return result, waitErr
	}

	sheets := workbook.Sheets()
	if len(sheets) == 0 {
		logger.Infof("no sheets produced, workbook not written")
		return result, nil
	}

	var written int64
	ref, err := c.Store.Write(ctx, opts.OutputName, func(w io.Writer) error {
		n, err := WorkbookWriter{}.Render(ctx, sheets, w)
		written = n
		return err
	})
	if err != nil {
		if export.KindFromError(err) == export.KindInternal {
			err = export.NewError(export.KindWrite, fmt.Sprintf("write %s failed", opts.OutputName), err)
		}
		logger.Errorf("workbook write failed: %v", err)
		return result, err
	}

	for _, idx := range pending {
		result.Report.Outcomes[idx].Path = ref.Path
	}
	for _, sheet := range sheets {
		result.Sheets = append(result.Sheets, sheet.Name)
	}
	result.Path = ref.Path
	result.Bytes = ref.Size
	if result.Bytes == 0 {
		result.Bytes = written
	}
	result.Written = true
	logger.Infof("workbook written path=%s sheets=%d failed=%d", ref.Path, len(sheets), result.Report.Count(export.StatusFailed))
	return result, nil
}

func (c *Consolidator) parseFile(ctx context.Context, key string, opts Options) (Grid, error) {
	if err := ctx.Err(); err != nil {
		return Grid{}, err
	}
	reader, err := c.Store.Open(ctx, key)
	if err != nil {
		return Grid{}, export.NewError(export.KindParse, fmt.Sprintf("open %s failed", key), err)
	}
	defer reader.Close()

	delimiter := opts.delimiterFor(strings.ToLower(filepath.Ext(key)))
	grid, err := ParseFlatFile(reader, delimiter, opts.Header)
	if err != nil {
		return Grid{}, err
	}
	return grid, nil
}

func (c *Consolidator) logger() export.Logger {
	if c.Logger == nil {
		return export.NopLogger{}
	}
	return c.Logger
}
