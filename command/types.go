package command

import (
	"strings"

	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-tablebook/consolidate"
	"github.com/goliatone/go-tablebook/export"
	"github.com/goliatone/go-tablebook/pipeline"
)

// ExportTables exports every eligible table, or only Tables when set.
type ExportTables struct {
	Tables []string
	Result *export.Report
}

func (ExportTables) Type() string { return "tablebook:export" }

func (msg ExportTables) Validate() error {
	for _, name := range msg.Tables {
		if strings.TrimSpace(name) == "" {
			return errors.New("table name must not be blank", errors.CategoryValidation).
				WithTextCode("TABLE_NAME_REQUIRED")
		}
	}
	return nil
}

// ConsolidateDirectory folds the configured directory into one workbook.
type ConsolidateDirectory struct {
	Result *consolidate.Result
}

func (ConsolidateDirectory) Type() string { return "tablebook:consolidate" }

func (ConsolidateDirectory) Validate() error { return nil }

// RunPipeline runs export then consolidation.
type RunPipeline struct {
	SkipExport bool
	Result     *pipeline.Result
}

func (RunPipeline) Type() string { return "tablebook:run" }

func (RunPipeline) Validate() error { return nil }
