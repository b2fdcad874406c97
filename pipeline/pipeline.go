package pipeline

import (
	"context"

	"github.com/google/uuid"

	storefs "github.com/goliatone/go-tablebook/adapters/store/fs"
	"github.com/goliatone/go-tablebook/consolidate"
	"github.com/goliatone/go-tablebook/export"
)

// Pipeline exports tables into Dir and then consolidates Dir into a workbook.
// Dir is the only hand-off between the two stages.
type Pipeline struct {
	Dir string
	// Store overrides the filesystem store rooted at Dir.
	Store export.ArtifactStore

	Connector    export.Connector
	Tables       []string
	TableFilter  export.NameFilter
	Format       export.FlatFileOptions
	ExportPolicy export.FailurePolicy
	SkipExport   bool

	Consolidate consolidate.Options

	Recorder export.OutcomeRecorder
	Logger   export.Logger
	NewRunID func() string
}

// Result is the outcome of both stages.
type Result struct {
	RunID       string
	Export      export.Report
	Consolidate consolidate.Result
}

// Run executes the export stage (unless skipped) to completion, then the
// consolidation stage over the same directory.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	result := Result{}
	if p == nil {
		return result, export.NewError(export.KindInternal, "pipeline is nil", nil)
	}
	store, err := p.store()
	if err != nil {
		return result, err
	}
	if !p.SkipExport && p.Connector == nil {
		return result, export.NewError(export.KindValidation, "connector is required unless export is skipped", nil)
	}

	logger := p.logger()
	result.RunID = p.runID()
	logger.Infof("run %s started dir=%s skip_export=%t", result.RunID, p.Dir, p.SkipExport)

	if !p.SkipExport {
		exporter := &export.Exporter{
			Connector: p.Connector,
			Store:     store,
			Filter:    p.TableFilter,
			Format:    p.Format,
			Policy:    p.ExportPolicy,
			Logger:    logger,
		}
		report, err := exporter.RunTables(ctx, p.Tables)
		result.Export = report
		if rerr := p.record(ctx, result.RunID, report); rerr != nil {
			return result, rerr
		}
		if err != nil {
			logger.Errorf("run %s export stage failed: %v", result.RunID, err)
			return result, err
		}
	}

	consolidator := &consolidate.Consolidator{
		Store:   store,
		Options: p.Consolidate,
		Logger:  logger,
	}
	consolidated, err := consolidator.Run(ctx)
	result.Consolidate = consolidated
	if rerr := p.record(ctx, result.RunID, consolidated.Report); rerr != nil {
		return result, rerr
	}
	if err != nil {
		logger.Errorf("run %s consolidate stage failed: %v", result.RunID, err)
		return result, err
	}

	logger.Infof("run %s completed workbook=%s sheets=%d", result.RunID, consolidated.Path, len(consolidated.Sheets))
	return result, nil
}

func (p *Pipeline) store() (export.ArtifactStore, error) {
	if p.Store != nil {
		return p.Store, nil
	}
	if p.Dir == "" {
		return nil, export.NewError(export.KindValidation, "directory is required", nil)
	}
	return storefs.NewStore(p.Dir), nil
}

func (p *Pipeline) record(ctx context.Context, runID string, report export.Report) error {
	if p.Recorder == nil {
		return nil
	}
	for _, o := range report.Outcomes {
		if err := p.Recorder.Record(ctx, runID, o); err != nil {
			return export.NewError(export.KindWrite, "record outcome failed", err)
		}
	}
	return nil
}

func (p *Pipeline) runID() string {
	if p.NewRunID != nil {
		return p.NewRunID()
	}
	return uuid.NewString()
}

func (p *Pipeline) logger() export.Logger {
	if p.Logger == nil {
		return export.NopLogger{}
	}
	return p.Logger
}
