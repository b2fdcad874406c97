package query

import (
	"context"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-tablebook/export"
)

// OutcomeLister reads recorded outcomes back.
type OutcomeLister interface {
	List(ctx context.Context, runID string) ([]export.Outcome, error)
}

// RunOutcomesHandler returns the outcomes of one run in record order.
type RunOutcomesHandler struct {
	Lister OutcomeLister
}

func NewRunOutcomesHandler(lister OutcomeLister) *RunOutcomesHandler {
	return &RunOutcomesHandler{Lister: lister}
}

func (h *RunOutcomesHandler) Query(ctx context.Context, msg RunOutcomes) ([]export.Outcome, error) {
	if h == nil || h.Lister == nil {
		return nil, errors.New("outcome ledger is required", errors.CategoryInternal).
			WithTextCode("LEDGER_REQUIRED")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	outcomes, err := h.Lister.List(ctx, msg.RunID)
	if err != nil {
		return nil, export.AsGoError(err)
	}
	return outcomes, nil
}

// Register subscribes the query handlers and, when reg is set, records them
// in the registry.
func Register(reg *gcmd.Registry, lister OutcomeLister) ([]dispatcher.Subscription, error) {
	if lister == nil {
		return nil, errors.New("outcome ledger is required", errors.CategoryValidation).
			WithTextCode("LEDGER_REQUIRED")
	}
	outcomes := NewRunOutcomesHandler(lister)
	subscriptions := []dispatcher.Subscription{
		dispatcher.SubscribeQuery(outcomes),
	}
	if reg != nil {
		if err := reg.RegisterCommand(outcomes); err != nil {
			return subscriptions, err
		}
	}
	return subscriptions, nil
}
