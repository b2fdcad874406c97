package query

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// RunOutcomes requests the outcomes recorded for a pipeline run.
type RunOutcomes struct {
	RunID string
}

func (RunOutcomes) Type() string { return "tablebook:run_outcomes" }

func (msg RunOutcomes) Validate() error {
	if strings.TrimSpace(msg.RunID) == "" {
		return errors.New("run ID is required", errors.CategoryValidation).
			WithTextCode("RUN_ID_REQUIRED")
	}
	return nil
}
