package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryTable is an in-memory source table.
type MemoryTable struct {
	Schema Schema
	Rows   []Row
}

// MemoryConnector serves tables from memory (test/dev only).
type MemoryConnector struct {
	Tables map[string]MemoryTable
	// Failures maps a table name to the error returned by Open.
	Failures map[string]error
	// CatalogErr is returned by Session.Tables when set.
	CatalogErr error
	// ConnectErr is returned by Connect when set.
	ConnectErr error

	connects atomic.Int64
	closes   atomic.Int64
}

// NewMemoryConnector creates a connector for the given tables.
func NewMemoryConnector(tables map[string]MemoryTable) *MemoryConnector {
	if tables == nil {
		tables = make(map[string]MemoryTable)
	}
	return &MemoryConnector{Tables: tables, Failures: make(map[string]error)}
}

// Connect opens a session.
func (c *MemoryConnector) Connect(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.ConnectErr != nil {
		return nil, c.ConnectErr
	}
	c.connects.Add(1)
	return &memorySession{conn: c}, nil
}

// Connects returns how many sessions were opened.
func (c *MemoryConnector) Connects() int64 { return c.connects.Load() }

// Closes returns how many sessions were closed.
func (c *MemoryConnector) Closes() int64 { return c.closes.Load() }

type memorySession struct {
	conn   *MemoryConnector
	closed atomic.Bool
}

func (s *memorySession) Tables(ctx context.Context) ([]string, error) {
	_ = ctx
	if s.conn.CatalogErr != nil {
		return nil, s.conn.CatalogErr
	}
	names := make([]string, 0, len(s.conn.Tables)+len(s.conn.Failures))
	for name := range s.conn.Tables {
		names = append(names, name)
	}
	for name := range s.conn.Failures {
		if _, ok := s.conn.Tables[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *memorySession) Open(ctx context.Context, table string) (Schema, RowIterator, error) {
	_ = ctx
	if err, ok := s.conn.Failures[table]; ok {
		return Schema{}, nil, err
	}
	t, ok := s.conn.Tables[table]
	if !ok {
		return Schema{}, nil, NewError(KindNotFound, fmt.Sprintf("table %q not found", table), nil)
	}
	return t.Schema, &sliceIterator{rows: t.Rows}, nil
}

func (s *memorySession) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.conn.closes.Add(1)
	}
	return nil
}

type sliceIterator struct {
	rows  []Row
	index int
}

func (it *sliceIterator) Next(ctx context.Context) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.index >= len(it.rows) {
		return nil, io.EOF
	}
	row := it.rows[it.index]
	it.index++
	return row, nil
}

func (it *sliceIterator) Close() error { return nil }

// MemoryStore stores artifacts in memory (test/dev only).
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data    []byte
	modTime time.Time
}

// NewMemoryStore creates an in-memory artifact store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

// Write stores an artifact; nothing is kept when fn fails.
func (s *MemoryStore) Write(ctx context.Context, key string, fn func(w io.Writer) error) (ArtifactRef, error) {
	if err := ctx.Err(); err != nil {
		return ArtifactRef{}, err
	}
	if key == "" {
		return ArtifactRef{}, NewError(KindValidation, "artifact key is required", nil)
	}
	buf := &bytes.Buffer{}
	if err := fn(buf); err != nil {
		return ArtifactRef{}, err
	}

	s.mu.Lock()
	s.objects[key] = memoryObject{data: buf.Bytes(), modTime: time.Now()}
	s.mu.Unlock()

	return ArtifactRef{Key: key, Path: key, Size: int64(buf.Len())}, nil
}

// Open reads an artifact.
func (s *MemoryStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	_ = ctx
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, NewError(KindNotFound, fmt.Sprintf("artifact %q not found", key), nil)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// List returns artifacts sorted by key.
func (s *MemoryStore) List(ctx context.Context) ([]ArtifactInfo, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ArtifactInfo, 0, len(s.objects))
	for key, obj := range s.objects {
		out = append(out, ArtifactInfo{Key: key, Size: int64(len(obj.data)), ModTime: obj.modTime})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Delete removes an artifact if present.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Bytes returns a copy of a stored artifact.
func (s *MemoryStore) Bytes(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.data...), true
}

// MemoryLedger records outcomes in memory (test/dev only).
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string][]Outcome
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[string][]Outcome)}
}

// Record appends an outcome to a run.
func (l *MemoryLedger) Record(ctx context.Context, runID string, o Outcome) error {
	_ = ctx
	if runID == "" {
		return NewError(KindValidation, "run ID is required", nil)
	}
	l.mu.Lock()
	l.entries[runID] = append(l.entries[runID], o)
	l.mu.Unlock()
	return nil
}

// Outcomes returns the recorded outcomes for a run.
func (l *MemoryLedger) Outcomes(runID string) []Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Outcome(nil), l.entries[runID]...)
}
