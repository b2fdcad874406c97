package ledgerbun

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-tablebook/export"
)

// Ledger stores per-table and per-file outcomes in a Bun-backed database.
type Ledger struct {
	DB  *bun.DB
	Now func() time.Time
}

// NewLedger creates a Bun-backed ledger.
func NewLedger(db *bun.DB) *Ledger {
	return &Ledger{DB: db, Now: time.Now}
}

// EnsureSchema creates the outcomes table when missing.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	if l == nil || l.DB == nil {
		return export.NewError(export.KindValidation, "ledger database not configured", nil)
	}
	_, err := l.DB.NewCreateTable().Model((*outcomeModel)(nil)).IfNotExists().Exec(ctx)
	return err
}

// Record appends one outcome to a run.
func (l *Ledger) Record(ctx context.Context, runID string, o export.Outcome) error {
	if l == nil || l.DB == nil {
		return export.NewError(export.KindValidation, "ledger database not configured", nil)
	}
	if runID == "" {
		return export.NewError(export.KindValidation, "run ID is required", nil)
	}

	model := modelFromOutcome(runID, o)
	model.RecordedAt = l.now()
	_, err := l.DB.NewInsert().Model(&model).Exec(ctx)
	return err
}

// List returns the outcomes of a run in recording order.
func (l *Ledger) List(ctx context.Context, runID string) ([]export.Outcome, error) {
	if l == nil || l.DB == nil {
		return nil, export.NewError(export.KindValidation, "ledger database not configured", nil)
	}
	if runID == "" {
		return nil, export.NewError(export.KindValidation, "run ID is required", nil)
	}

	models := make([]outcomeModel, 0)
	err := l.DB.NewSelect().Model(&models).
		Where("run_id = ?", runID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]export.Outcome, 0, len(models))
	for _, m := range models {
		out = append(out, m.toOutcome())
	}
	return out, nil
}

func (l *Ledger) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}

type outcomeModel struct {
	bun.BaseModel `bun:"table:tablebook_outcomes,alias:tablebook_outcomes"`

	ID         int64     `bun:",pk,autoincrement"`
	RunID      string    `bun:"run_id,notnull"`
	Stage      string    `bun:",notnull"`
	Name       string    `bun:",notnull"`
	Status     string    `bun:",notnull"`
	Path       string    `bun:"path"`
	Sheet      string    `bun:"sheet"`
	Rows       int64     `bun:"row_count"`
	Bytes      int64     `bun:"byte_count"`
	Kind       string    `bun:"kind"`
	Error      string    `bun:"error"`
	RecordedAt time.Time `bun:"recorded_at"`
}

func modelFromOutcome(runID string, o export.Outcome) outcomeModel {
	model := outcomeModel{
		RunID:  runID,
		Stage:  string(o.Stage),
		Name:   o.Name,
		Status: string(o.Status),
		Path:   o.Path,
		Sheet:  o.Sheet,
		Rows:   o.Rows,
		Bytes:  o.Bytes,
		Kind:   string(o.Kind),
	}
	if o.Err != nil {
		model.Error = o.Err.Error()
		if model.Kind == "" {
			model.Kind = string(export.KindFromError(o.Err))
		}
	}
	return model
}

func (m outcomeModel) toOutcome() export.Outcome {
	o := export.Outcome{
		Stage:  export.Stage(m.Stage),
		Name:   m.Name,
		Status: export.Status(m.Status),
		Path:   m.Path,
		Sheet:  m.Sheet,
		Rows:   m.Rows,
		Bytes:  m.Bytes,
		Kind:   export.ErrorKind(m.Kind),
	}
	if m.Error != "" {
		o.Err = export.NewError(o.Kind, m.Error, nil)
	}
	return o
}

var _ export.OutcomeRecorder = (*Ledger)(nil)
