package export

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FormatValue renders one field for a flat file. Nil becomes the null text,
// binary payloads become the blob marker and timestamps use the layout on the
// value's own wall clock.
func FormatValue(col Column, value any, opts FlatFileOptions) string {
	opts = opts.withDefaults()

	switch v := value.(type) {
	case nil:
		return opts.NullValue
	case []byte:
		if v == nil {
			return opts.NullValue
		}
		if isBinaryColumn(col.Type) {
			return opts.BlobMarker
		}
		return string(v)
	case time.Time:
		return v.Format(opts.TimeLayout)
	case *time.Time:
		if v == nil {
			return opts.NullValue
		}
		return v.Format(opts.TimeLayout)
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return formatFloat(v, 64)
	case float32:
		return formatFloat(float64(v), 32)
	case json.Number:
		return v.String()
	}

	if intValue, ok := coerceInt(value); ok {
		return strconv.FormatInt(intValue, 10)
	}
	return stringify(value)
}

// FormatRow renders every field of row.
func FormatRow(schema Schema, row Row, opts FlatFileOptions) []string {
	record := make([]string, len(row))
	for i, value := range row {
		col := Column{}
		if i < len(schema.Columns) {
			col = schema.Columns[i]
		}
		record[i] = FormatValue(col, value, opts)
	}
	return record
}

func formatFloat(v float64, bits int) string {
	if math.Trunc(v) == v && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, bits)
}

// isBinaryColumn reports whether []byte values of a column are payloads
// rather than text. Untyped columns are treated as binary.
func isBinaryColumn(dbType string) bool {
	normalized := strings.ToUpper(strings.TrimSpace(dbType))
	if normalized == "" {
		return true
	}
	for _, marker := range []string{"BLOB", "BINARY", "BYTEA", "IMAGE", "RAW", "BYTES"} {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}

func coerceInt(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int16:
		return int64(v), true
	case int8:
		return int64(v), true
	case uint:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint8:
		return int64(v), true
	default:
		return 0, false
	}
}

// CoerceNumber parses numeric-looking text into an int64 or float64.
func CoerceNumber(raw string) (any, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if len(raw) > 1 && (raw[0] == '0' || strings.HasPrefix(raw, "-0")) {
			// leading zeros are identifiers, not numbers
			return nil, false
		}
		return parsed, true
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(parsed, 0) || math.IsNaN(parsed) {
		return nil, false
	}
	return parsed, true
}

func stringify(value any) string {
	if value == nil {
		return ""
	}
	return fmt.Sprint(value)
}
