package export

import (
	"path/filepath"
	"strings"
)

// NameFilter reports whether a table or file name should be processed.
// A nil filter includes everything.
type NameFilter func(name string) bool

// Allows applies the filter, treating nil as include-all.
func (f NameFilter) Allows(name string) bool {
	if f == nil {
		return true
	}
	return f(name)
}

// ExcludePrefixes rejects names that start with any prefix, ignoring case.
func ExcludePrefixes(prefixes ...string) NameFilter {
	normalized := normalizeList(prefixes, strings.ToLower)
	if len(normalized) == 0 {
		return nil
	}
	return func(name string) bool {
		lower := strings.ToLower(name)
		for _, prefix := range normalized {
			if strings.HasPrefix(lower, prefix) {
				return false
			}
		}
		return true
	}
}

// AllowExtensions accepts names whose extension is in the list, ignoring case.
// Extensions may be given with or without the leading dot.
func AllowExtensions(exts ...string) NameFilter {
	normalized := normalizeList(exts, func(ext string) string {
		return "." + strings.TrimPrefix(strings.ToLower(ext), ".")
	})
	if len(normalized) == 0 {
		return nil
	}
	return func(name string) bool {
		ext := strings.ToLower(filepath.Ext(name))
		for _, allowed := range normalized {
			if ext == allowed {
				return true
			}
		}
		return false
	}
}

// AllFilters combines filters; a name must pass every one.
func AllFilters(filters ...NameFilter) NameFilter {
	active := make([]NameFilter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			active = append(active, f)
		}
	}
	if len(active) == 0 {
		return nil
	}
	return func(name string) bool {
		for _, f := range active {
			if !f(name) {
				return false
			}
		}
		return true
	}
}

func normalizeList(values []string, fn func(string) string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		out = append(out, fn(value))
	}
	return out
}
