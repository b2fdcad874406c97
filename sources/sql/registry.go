package exportsql

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-tablebook/export"
)

// Dialect describes how to enumerate and read user tables for one database.
type Dialect struct {
	Name string
	// Driver is the database/sql driver name used when none is configured.
	Driver string
	// CatalogQuery returns one column holding the names of non-system tables.
	CatalogQuery string
	// Quote renders a table name as an identifier. Nil uses double quotes.
	Quote func(name string) string
}

// QuoteIdentifier quotes name for use in a SELECT.
func (d Dialect) QuoteIdentifier(name string) string {
	if d.Quote != nil {
		return d.Quote(name)
	}
	return quoteDouble(name)
}

func quoteDouble(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

const (
	sqliteCatalog = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\' ORDER BY name`
	schemaCatalog = `SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_type = 'BASE TABLE' ORDER BY table_name`
	// Firebird pads relation names with blanks.
	firebirdCatalog = `SELECT TRIM(RDB$RELATION_NAME) FROM RDB$RELATIONS WHERE RDB$SYSTEM_FLAG = 0 ORDER BY 1`
)

// BuiltinDialects returns the dialects registered by DefaultRegistry.
func BuiltinDialects() []Dialect {
	return []Dialect{
		{Name: "sqlite", Driver: "sqlite", CatalogQuery: sqliteCatalog},
		{Name: "libsql", Driver: "libsql", CatalogQuery: sqliteCatalog},
		{Name: "duckdb", Driver: "duckdb", CatalogQuery: schemaCatalog},
		{Name: "postgres", Driver: "postgres", CatalogQuery: schemaCatalog},
		{Name: "firebird", Driver: "firebirdsql", CatalogQuery: firebirdCatalog},
	}
}

// Registry stores named dialects.
type Registry struct {
	mu       sync.RWMutex
	dialects map[string]Dialect
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{dialects: make(map[string]Dialect)}
}

// DefaultRegistry creates a registry holding the builtin dialects.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	for _, d := range BuiltinDialects() {
		_ = reg.Register(d)
	}
	return reg
}

// Register adds a dialect.
func (r *Registry) Register(d Dialect) error {
	d.Name = strings.ToLower(strings.TrimSpace(d.Name))
	if d.Name == "" {
		return export.NewError(export.KindValidation, "dialect name is required", nil)
	}
	if d.CatalogQuery == "" {
		return export.NewError(export.KindValidation, "catalog query is required", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.dialects[d.Name]; exists {
		return export.NewError(export.KindValidation, fmt.Sprintf("dialect %q already registered", d.Name), nil)
	}
	r.dialects[d.Name] = d
	return nil
}

// Resolve returns a dialect by name, ignoring case.
func (r *Registry) Resolve(name string) (Dialect, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.dialects[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}

// Names lists registered dialects.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.dialects))
	for name := range r.dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
