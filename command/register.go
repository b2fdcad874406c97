package command

import (
	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-tablebook/pipeline"
)

// Handlers groups the collaborators behind each command.
type Handlers struct {
	Exporter     TableExporter
	Consolidator DirectoryConsolidator
	Pipeline     *pipeline.Pipeline
}

// Register subscribes the tablebook handlers on the dispatcher and, when reg
// is set, records them in the registry. Callers unsubscribe when done.
func Register(reg *gcmd.Registry, h Handlers) ([]dispatcher.Subscription, error) {
	if h.Exporter == nil || h.Consolidator == nil || h.Pipeline == nil {
		return nil, errors.New("exporter, consolidator and pipeline are required", errors.CategoryValidation).
			WithTextCode("HANDLERS_REQUIRED")
	}

	exp := NewExportTablesHandler(h.Exporter)
	con := NewConsolidateDirectoryHandler(h.Consolidator)
	run := NewRunPipelineHandler(h.Pipeline)

	subscriptions := []dispatcher.Subscription{
		dispatcher.SubscribeCommand(exp),
		dispatcher.SubscribeCommand(con),
		dispatcher.SubscribeCommand(run),
	}

	if reg != nil {
		for _, handler := range []any{exp, con, run} {
			if err := reg.RegisterCommand(handler); err != nil {
				return subscriptions, err
			}
		}
	}
	return subscriptions, nil
}
