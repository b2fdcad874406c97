package command

import (
	"context"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-tablebook/consolidate"
	"github.com/goliatone/go-tablebook/export"
	"github.com/goliatone/go-tablebook/pipeline"
)

// TableExporter runs the export stage.
type TableExporter interface {
	RunTables(ctx context.Context, names []string) (export.Report, error)
}

// DirectoryConsolidator runs the consolidation stage.
type DirectoryConsolidator interface {
	Run(ctx context.Context) (consolidate.Result, error)
}

// ExportTablesHandler handles table exports.
type ExportTablesHandler struct {
	Exporter TableExporter
}

func NewExportTablesHandler(exp TableExporter) *ExportTablesHandler {
	return &ExportTablesHandler{Exporter: exp}
}

func (h *ExportTablesHandler) Execute(ctx context.Context, msg ExportTables) error {
	if h == nil || h.Exporter == nil {
		return errors.New("table exporter is required", errors.CategoryInternal).
			WithTextCode("EXPORTER_REQUIRED")
	}
	report, err := h.Exporter.RunTables(ctx, msg.Tables)
	if msg.Result != nil {
		*msg.Result = report
	}
	if err != nil {
		return export.AsGoError(err)
	}
	if res := gcmd.ResultFromContext[export.Report](ctx); res != nil {
		res.Store(report)
	}
	return nil
}

// ConsolidateDirectoryHandler handles consolidation.
type ConsolidateDirectoryHandler struct {
	Consolidator DirectoryConsolidator
}

func NewConsolidateDirectoryHandler(c DirectoryConsolidator) *ConsolidateDirectoryHandler {
	return &ConsolidateDirectoryHandler{Consolidator: c}
}

func (h *ConsolidateDirectoryHandler) Execute(ctx context.Context, msg ConsolidateDirectory) error {
	if h == nil || h.Consolidator == nil {
		return errors.New("consolidator is required", errors.CategoryInternal).
			WithTextCode("CONSOLIDATOR_REQUIRED")
	}
	result, err := h.Consolidator.Run(ctx)
	if msg.Result != nil {
		*msg.Result = result
	}
	if err != nil {
		return export.AsGoError(err)
	}
	if res := gcmd.ResultFromContext[consolidate.Result](ctx); res != nil {
		res.Store(result)
	}
	return nil
}

// RunPipelineHandler handles full runs. The configured pipeline is copied
// per message so SkipExport does not leak between runs.
type RunPipelineHandler struct {
	Pipeline *pipeline.Pipeline
}

func NewRunPipelineHandler(p *pipeline.Pipeline) *RunPipelineHandler {
	return &RunPipelineHandler{Pipeline: p}
}

func (h *RunPipelineHandler) Execute(ctx context.Context, msg RunPipeline) error {
	if h == nil || h.Pipeline == nil {
		return errors.New("pipeline is required", errors.CategoryInternal).
			WithTextCode("PIPELINE_REQUIRED")
	}
	p := *h.Pipeline
	if msg.SkipExport {
		p.SkipExport = true
	}
	result, err := p.Run(ctx)
	if msg.Result != nil {
		*msg.Result = result
	}
	if err != nil {
		return export.AsGoError(err)
	}
	if res := gcmd.ResultFromContext[pipeline.Result](ctx); res != nil {
		res.Store(result)
	}
	return nil
}
