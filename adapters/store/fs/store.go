package storefs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goliatone/go-tablebook/export"
)

// Store reads and writes artifacts in one directory. Writes go to a temp file
// in the same directory and are renamed into place, so readers never see a
// partial file.
type Store struct {
	Root string
}

// NewStore creates a filesystem-backed artifact store.
func NewStore(root string) *Store {
	return &Store{Root: root}
}

// Write streams fn's output to key, replacing any existing file.
func (s *Store) Write(ctx context.Context, key string, fn func(w io.Writer) error) (export.ArtifactRef, error) {
	if err := s.check(key); err != nil {
		return export.ArtifactRef{}, err
	}
	if err := ctx.Err(); err != nil {
		return export.ArtifactRef{}, err
	}

	pathOnDisk, err := s.resolvePath(key)
	if err != nil {
		return export.ArtifactRef{}, err
	}

	dir := filepath.Dir(pathOnDisk)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return export.ArtifactRef{}, export.NewError(export.KindWrite, "create output directory failed", err)
	}

	tmp, err := os.CreateTemp(dir, ".tablebook-*")
	if err != nil {
		return export.ArtifactRef{}, export.NewError(export.KindWrite, "create temp file failed", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if err := fn(tmp); err != nil {
		return export.ArtifactRef{}, err
	}
	if err := tmp.Sync(); err != nil {
		return export.ArtifactRef{}, export.NewError(export.KindWrite, "sync temp file failed", err)
	}
	info, err := tmp.Stat()
	if err != nil {
		return export.ArtifactRef{}, export.NewError(export.KindWrite, "stat temp file failed", err)
	}
	if err := tmp.Close(); err != nil {
		return export.ArtifactRef{}, export.NewError(export.KindWrite, "close temp file failed", err)
	}
	if err := os.Rename(tmp.Name(), pathOnDisk); err != nil {
		return export.ArtifactRef{}, export.NewError(export.KindWrite, fmt.Sprintf("rename to %s failed", key), err)
	}

	return export.ArtifactRef{Key: key, Path: pathOnDisk, Size: info.Size()}, nil
}

// Open reads an artifact from disk.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	_ = ctx
	if err := s.check(key); err != nil {
		return nil, err
	}

	pathOnDisk, err := s.resolvePath(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(pathOnDisk)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, export.NewError(export.KindNotFound, fmt.Sprintf("artifact %q not found", key), err)
		}
		return nil, err
	}
	return file, nil
}

var _ export.ArtifactDeleter = (*Store)(nil)

// Delete removes the file stored under key. A missing file is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.check(key); err != nil {
		return err
	}
	pathOnDisk, err := s.resolvePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(pathOnDisk); err != nil && !os.IsNotExist(err) {
		return export.NewError(export.KindWrite, fmt.Sprintf("delete %s failed", key), err)
	}
	return nil
}

// List returns the regular, non-hidden files directly under Root, sorted by
// name. A missing root lists as empty.
func (s *Store) List(ctx context.Context) ([]export.ArtifactInfo, error) {
	_ = ctx
	if s == nil {
		return nil, export.NewError(export.KindInternal, "store is nil", nil)
	}
	if s.Root == "" {
		return nil, export.NewError(export.KindValidation, "store root is required", nil)
	}

	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]export.ArtifactInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, export.ArtifactInfo{Key: entry.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) check(key string) error {
	if s == nil {
		return export.NewError(export.KindInternal, "store is nil", nil)
	}
	if s.Root == "" {
		return export.NewError(export.KindValidation, "store root is required", nil)
	}
	if key == "" {
		return export.NewError(export.KindValidation, "artifact key is required", nil)
	}
	return nil
}

func (s *Store) resolvePath(key string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(key))
	rel := strings.TrimPrefix(clean, "/")
	if rel == "" || rel == "." {
		return "", export.NewError(export.KindValidation, "invalid artifact key", nil)
	}

	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", err
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", export.NewError(export.KindValidation, "artifact key escapes root", nil)
	}
	return target, nil
}
