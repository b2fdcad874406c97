package exportsql

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/goliatone/go-tablebook/export"
)

// Open opens a database handle and verifies it is reachable.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if driver == "" {
		return nil, export.NewError(export.KindValidation, "driver is required", nil)
	}
	if dsn == "" {
		return nil, export.NewError(export.KindValidation, "dsn is required", nil)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, export.NewError(export.KindConnection, fmt.Sprintf("open %s failed", driver), err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, export.NewError(export.KindConnection, fmt.Sprintf("ping %s failed", driver), err)
	}
	return db, nil
}

// Source is an export.Connector over database/sql. Each Connect takes one
// dedicated connection from the pool.
type Source struct {
	DB      *sql.DB
	Dialect Dialect
}

// NewSource creates a connector for db.
func NewSource(db *sql.DB, dialect Dialect) *Source {
	return &Source{DB: db, Dialect: dialect}
}

// Connect reserves a connection for one run.
func (s *Source) Connect(ctx context.Context) (export.Session, error) {
	if s == nil || s.DB == nil {
		return nil, export.NewError(export.KindValidation, "database handle is required", nil)
	}
	if s.Dialect.CatalogQuery == "" {
		return nil, export.NewError(export.KindValidation, "dialect catalog query is required", nil)
	}
	conn, err := s.DB.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &session{conn: conn, dialect: s.Dialect}, nil
}

type session struct {
	conn    *sql.Conn
	dialect Dialect

	once     sync.Once
	closeErr error
}

func (s *session) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, s.dialect.CatalogQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		name = strings.TrimSpace(name)
		if name != "" {
			names = append(names, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

func (s *session) Open(ctx context.Context, table string) (export.Schema, export.RowIterator, error) {
	query := "SELECT * FROM " + s.dialect.QuoteIdentifier(table)
	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return export.Schema{}, nil, err
	}

	types, err := rows.ColumnTypes()
	if err != nil {
		_ = rows.Close()
		return export.Schema{}, nil, err
	}
	schema := export.Schema{Columns: make([]export.Column, len(types))}
	for i, ct := range types {
		schema.Columns[i] = export.Column{Name: ct.Name(), Type: ct.DatabaseTypeName()}
	}
	return schema, &rowIterator{rows: rows, width: len(types)}, nil
}

func (s *session) Close() error {
	s.once.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

type rowIterator struct {
	rows  *sql.Rows
	width int
}

func (it *rowIterator) Next(ctx context.Context) (export.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !it.rows.Next() {
		if err := it.rows.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	row := make(export.Row, it.width)
	dest := make([]any, it.width)
	for i := range row {
		dest[i] = &row[i]
	}
	if err := it.rows.Scan(dest...); err != nil {
		return nil, err
	}
	return row, nil
}

func (it *rowIterator) Close() error {
	return it.rows.Close()
}
