package export

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func clientesTable() MemoryTable {
	return MemoryTable{
		Schema: Schema{Columns: []Column{
			{Name: "id", Type: "INTEGER"},
			{Name: "name", Type: "VARCHAR"},
			{Name: "created", Type: "TIMESTAMP"},
		}},
		Rows: []Row{{int64(1), nil, time.Date(2023, 1, 5, 10, 30, 0, 0, time.UTC)}},
	}
}

func simpleTable(rows ...Row) MemoryTable {
	return MemoryTable{
		Schema: Schema{Columns: []Column{{Name: "id", Type: "INTEGER"}}},
		Rows:   rows,
	}
}

func TestExporter_WritesTablesAndSkipsEmpty(t *testing.T) {
	conn := NewMemoryConnector(map[string]MemoryTable{
		"CLIENTES": clientesTable(),
		"VACIA":    simpleTable(),
	})
	store := NewMemoryStore()

	report, err := NewExporter(conn, store).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	data, ok := store.Bytes("CLIENTES.csv")
	if !ok {
		t.Fatalf("expected CLIENTES.csv to be written")
	}
	want := "id,name,created\n1,0,2023-01-05 10:30:00\n"
	if string(data) != want {
		t.Fatalf("expected %q, got %q", want, string(data))
	}
	if _, ok := store.Bytes("VACIA.csv"); ok {
		t.Fatalf("expected no file for empty table")
	}

	if report.Count(StatusWritten) != 1 || report.Count(StatusEmpty) != 1 {
		t.Fatalf("unexpected report: %+v", report.Outcomes)
	}
	written := report.Written()[0]
	if written.Rows != 1 || written.Path != "CLIENTES.csv" || written.Bytes != int64(len(want)) {
		t.Fatalf("unexpected written outcome: %+v", written)
	}
	if conn.Connects() != 1 || conn.Closes() != 1 {
		t.Fatalf("expected one connect and one close, got %d/%d", conn.Connects(), conn.Closes())
	}
}

func TestExporter_EmptyTableRemovesStaleFile(t *testing.T) {
	conn := NewMemoryConnector(map[string]MemoryTable{
		"VACIA": simpleTable(),
	})
	store := NewMemoryStore()
	_, err := store.Write(context.Background(), "VACIA.csv", func(w io.Writer) error {
		_, err := io.WriteString(w, "id\n9\n")
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	report, err := NewExporter(conn, store).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Count(StatusEmpty) != 1 {
		t.Fatalf("unexpected report: %+v", report.Outcomes)
	}
	if _, ok := store.Bytes("VACIA.csv"); ok {
		t.Fatalf("expected stale file removed")
	}
}

func TestExporter_ExcludedPrefixes(t *testing.T) {
	conn := NewMemoryConnector(map[string]MemoryTable{
		"CLIENTES":      clientesTable(),
		"DATOS_PARKING": simpleTable(Row{int64(1)}),
		"HOPEC_AUX":     simpleTable(Row{int64(2)}),
	})
	store := NewMemoryStore()
	exporter := NewExporter(conn, store)
	exporter.Filter = ExcludePrefixes("datos", "hopec")

	report, err := exporter.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Count(StatusExcluded) != 2 {
		t.Fatalf("expected 2 excluded, got %+v", report.Outcomes)
	}
	infos, _ := store.List(context.Background())
	if len(infos) != 1 || infos[0].Key != "CLIENTES.csv" {
		t.Fatalf("expected only CLIENTES.csv, got %+v", infos)
	}
}

func TestExporter_ConnectFailure(t *testing.T) {
	conn := NewMemoryConnector(nil)
	conn.ConnectErr = errors.New("host unreachable")

	_, err := NewExporter(conn, NewMemoryStore()).Run(context.Background())
	if err == nil {
		t.Fatalf("expected connect error")
	}
	if KindFromError(err) != KindConnection {
		t.Fatalf("expected connection kind, got %q", KindFromError(err))
	}
	if conn.Closes() != 0 {
		t.Fatalf("expected no close without a session, got %d", conn.Closes())
	}
}

func TestExporter_CatalogFailureClosesOnce(t *testing.T) {
	conn := NewMemoryConnector(map[string]MemoryTable{"CLIENTES": clientesTable()})
	conn.CatalogErr = errors.New("permission denied")
	store := NewMemoryStore()

	_, err := NewExporter(conn, store).Run(context.Background())
	if KindFromError(err) != KindCatalog {
		t.Fatalf("expected catalog kind, got %v", err)
	}
	if conn.Closes() != 1 {
		t.Fatalf("expected session closed once, got %d", conn.Closes())
	}
	if infos, _ := store.List(context.Background()); len(infos) != 0 {
		t.Fatalf("expected no files, got %+v", infos)
	}
}

func TestExporter_AbortPolicyStopsAtFirstFailure(t *testing.T) {
	conn := NewMemoryConnector(map[string]MemoryTable{
		"A_FIRST": simpleTable(Row{int64(1)}),
		"C_LAST":  simpleTable(Row{int64(3)}),
	})
	conn.Failures["B_BROKEN"] = errors.New("relation locked")
	store := NewMemoryStore()

	report, err := NewExporter(conn, store).Run(context.Background())
	if KindFromError(err) != KindQuery {
		t.Fatalf("expected query kind, got %v", err)
	}
	if _, ok := store.Bytes("A_FIRST.csv"); !ok {
		t.Fatalf("expected table before failure to be written")
	}
	if _, ok := store.Bytes("C_LAST.csv"); ok {
		t.Fatalf("expected abort before C_LAST")
	}
	if report.Count(StatusFailed) != 1 {
		t.Fatalf("expected one failed outcome, got %+v", report.Outcomes)
	}
	if conn.Closes() != 1 {
		t.Fatalf("expected session closed once, got %d", conn.Closes())
	}
}

func TestExporter_ContinuePolicyReportsFailures(t *testing.T) {
	conn := NewMemoryConnector(map[string]MemoryTable{
		"A_FIRST": simpleTable(Row{int64(1)}),
		"C_LAST":  simpleTable(Row{int64(3)}),
	})
	conn.Failures["B_BROKEN"] = errors.New("relation locked")
	store := NewMemoryStore()
	exporter := NewExporter(conn, store)
	exporter.Policy = FailContinue

	report, err := exporter.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Count(StatusWritten) != 2 {
		t.Fatalf("expected 2 written, got %+v", report.Outcomes)
	}
	failed := report.Failed()
	if len(failed) != 1 || failed[0].Name != "B_BROKEN" || failed[0].Kind != KindQuery {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestExporter_RunTablesSubset(t *testing.T) {
	conn := NewMemoryConnector(map[string]MemoryTable{
		"CLIENTES": clientesTable(),
		"TARIFAS":  simpleTable(Row{int64(5)}),
	})
	store := NewMemoryStore()
	exporter := NewExporter(conn, store)
	exporter.Policy = FailContinue

	report, err := exporter.RunTables(context.Background(), []string{"tarifas", "TARIFAS", "MISSING"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, ok := store.Bytes("CLIENTES.csv"); ok {
		t.Fatalf("expected CLIENTES to be skipped")
	}
	if _, ok := store.Bytes("TARIFAS.csv"); !ok {
		t.Fatalf("expected TARIFAS.csv")
	}
	failed := report.Failed()
	if len(failed) != 1 || failed[0].Kind != KindNotFound {
		t.Fatalf("expected missing table outcome, got %+v", failed)
	}
}

func TestExporter_CanceledContext(t *testing.T) {
	conn := NewMemoryConnector(map[string]MemoryTable{"CLIENTES": clientesTable()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExporter(conn, NewMemoryStore()).Run(ctx)
	if KindFromError(err) != KindCanceled {
		t.Fatalf("expected canceled, got %v", err)
	}
}

type failingStore struct{ *MemoryStore }

func (s failingStore) Write(ctx context.Context, key string, fn func(w io.Writer) error) (ArtifactRef, error) {
	return ArtifactRef{}, errors.New("disk full")
}

func TestExporter_WriteFailureKind(t *testing.T) {
	conn := NewMemoryConnector(map[string]MemoryTable{"CLIENTES": clientesTable()})

	_, err := NewExporter(conn, failingStore{NewMemoryStore()}).Run(context.Background())
	if KindFromError(err) != KindWrite {
		t.Fatalf("expected write kind, got %v", err)
	}
	if conn.Closes() != 1 {
		t.Fatalf("expected session closed once, got %d", conn.Closes())
	}
}

type erroringIterator struct{ calls int }

func (it *erroringIterator) Next(ctx context.Context) (Row, error) {
	it.calls++
	if it.calls == 1 {
		return Row{int64(1)}, nil
	}
	return nil, errors.New("fetch aborted")
}

func (it *erroringIterator) Close() error { return nil }

type iteratorSession struct {
	iter   RowIterator
	closes int
}

func (s *iteratorSession) Tables(ctx context.Context) ([]string, error) {
	return []string{"STREAM"}, nil
}

func (s *iteratorSession) Open(ctx context.Context, table string) (Schema, RowIterator, error) {
	return Schema{Columns: []Column{{Name: "id"}}}, s.iter, nil
}

func (s *iteratorSession) Close() error {
	s.closes++
	return nil
}

type sessionConnector struct{ session *iteratorSession }

func (c sessionConnector) Connect(ctx context.Context) (Session, error) {
	return c.session, nil
}

func TestExporter_MidStreamFailureLeavesNoFile(t *testing.T) {
	session := &iteratorSession{iter: &erroringIterator{}}
	store := NewMemoryStore()

	_, err := NewExporter(sessionConnector{session: session}, store).Run(context.Background())
	if KindFromError(err) != KindQuery {
		t.Fatalf("expected query kind, got %v", err)
	}
	if _, ok := store.Bytes("STREAM.csv"); ok {
		t.Fatalf("expected no partial file")
	}
	if session.closes != 1 {
		t.Fatalf("expected session closed once, got %d", session.closes)
	}
}
