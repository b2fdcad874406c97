package exportsql

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/goliatone/go-tablebook/export"
)

func openFixture(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.db")
	db, err := Open(context.Background(), "sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	stmts := []string{
		`CREATE TABLE CLIENTES (id INTEGER, name VARCHAR(40), created TIMESTAMP)`,
		`INSERT INTO CLIENTES (id, name, created) VALUES (1, NULL, '2023-01-05 10:30:00')`,
		`CREATE TABLE VACIA (id INTEGER)`,
		`CREATE TABLE DATOS_PARKING (id INTEGER)`,
		`INSERT INTO DATOS_PARKING (id) VALUES (9)`,
		`CREATE TABLE FOTOS (id INTEGER, photo BLOB)`,
		`INSERT INTO FOTOS (id, photo) VALUES (7, X'89504E47')`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	return db
}

func sqliteDialect(t *testing.T) Dialect {
	t.Helper()
	dialect, ok := DefaultRegistry().Resolve("SQLite")
	if !ok {
		t.Fatalf("expected sqlite dialect")
	}
	return dialect
}

func TestSource_TablesListsUserTables(t *testing.T) {
	source := NewSource(openFixture(t), sqliteDialect(t))

	session, err := source.Connect(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer session.Close()

	tables, err := session.Tables(context.Background())
	if err != nil {
		t.Fatalf("tables: %v", err)
	}
	want := []string{"CLIENTES", "DATOS_PARKING", "FOTOS", "VACIA"}
	if len(tables) != len(want) {
		t.Fatalf("expected %v, got %v", want, tables)
	}
	for i := range want {
		if tables[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, tables)
		}
	}
}

func TestSource_OpenReportsSchema(t *testing.T) {
	source := NewSource(openFixture(t), sqliteDialect(t))
	session, err := source.Connect(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer session.Close()

	schema, iter, err := session.Open(context.Background(), "FOTOS")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer iter.Close()

	if len(schema.Columns) != 2 || schema.Columns[1].Name != "photo" || schema.Columns[1].Type != "BLOB" {
		t.Fatalf("unexpected schema %+v", schema)
	}
	row, err := iter.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got := export.FormatValue(schema.Columns[1], row[1], export.FlatFileOptions{}); got != "BLOB_DATA" {
		t.Fatalf("expected BLOB_DATA, got %q", got)
	}
}

func TestSource_OpenMissingTable(t *testing.T) {
	source := NewSource(openFixture(t), sqliteDialect(t))
	session, err := source.Connect(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer session.Close()

	if _, _, err := session.Open(context.Background(), "NOPE"); err == nil {
		t.Fatalf("expected error for missing table")
	}
}

func TestSource_ExporterEndToEnd(t *testing.T) {
	source := NewSource(openFixture(t), sqliteDialect(t))
	store := export.NewMemoryStore()
	exporter := export.NewExporter(source, store)
	exporter.Filter = export.ExcludePrefixes("datos", "hopec")

	report, err := exporter.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	data, ok := store.Bytes("CLIENTES.csv")
	if !ok {
		t.Fatalf("expected CLIENTES.csv")
	}
	want := "id,name,created\n1,0,2023-01-05 10:30:00\n"
	if string(data) != want {
		t.Fatalf("expected %q, got %q", want, string(data))
	}

	fotos, _ := store.Bytes("FOTOS.csv")
	if string(fotos) != "id,photo\n7,BLOB_DATA\n" {
		t.Fatalf("unexpected FOTOS.csv %q", string(fotos))
	}
	if _, ok := store.Bytes("VACIA.csv"); ok {
		t.Fatalf("expected no file for empty table")
	}
	if report.Count(export.StatusExcluded) != 1 || report.Count(export.StatusEmpty) != 1 {
		t.Fatalf("unexpected report %+v", report.Outcomes)
	}
}

func TestSource_SessionCloseIsIdempotent(t *testing.T) {
	source := NewSource(openFixture(t), sqliteDialect(t))
	session, err := source.Connect(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestRegistry_RegisterRules(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(Dialect{Name: "x"}); err == nil {
		t.Fatalf("expected catalog query to be required")
	}
	if err := reg.Register(Dialect{Name: "Custom", CatalogQuery: "SELECT 1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(Dialect{Name: "custom", CatalogQuery: "SELECT 1"}); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if _, ok := reg.Resolve("CUSTOM"); !ok {
		t.Fatalf("expected case-insensitive resolve")
	}

	names := DefaultRegistry().Names()
	want := []string{"duckdb", "firebird", "libsql", "postgres", "sqlite"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}

func TestDialect_QuoteIdentifier(t *testing.T) {
	d := Dialect{}
	if got := d.QuoteIdentifier(`we"ird`); got != `"we""ird"` {
		t.Fatalf("unexpected quoting %q", got)
	}
	custom := Dialect{Quote: func(name string) string { return "[" + name + "]" }}
	if got := custom.QuoteIdentifier("T"); got != "[T]" {
		t.Fatalf("unexpected custom quoting %q", got)
	}
}
