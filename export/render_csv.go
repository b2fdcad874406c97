package export

import (
	"context"
	"encoding/csv"
	"io"
)

// RenderStats capture renderer output.
type RenderStats struct {
	Rows  int64
	Bytes int64
}

// FlatFileWriter renders a header line and normalized rows as delimited text.
// Fields containing the delimiter, quotes or line breaks are quoted.
type FlatFileWriter struct {
	Options FlatFileOptions
}

// Render writes the header and every row from rows. Rows already consumed by
// the caller can be supplied through first.
func (r FlatFileWriter) Render(ctx context.Context, schema Schema, first Row, rows RowIterator, w io.Writer) (RenderStats, error) {
	opts := r.Options.withDefaults()
	cw := &countingWriter{w: w}
	writer := csv.NewWriter(cw)
	writer.Comma = opts.Delimiter

	if err := writer.Write(schema.Names()); err != nil {
		return RenderStats{}, err
	}

	stats := RenderStats{}
	writeRow := func(row Row) error {
		if len(row) != len(schema.Columns) {
			return NewError(KindValidation, "row length does not match schema", nil)
		}
		if err := writer.Write(FormatRow(schema, row, opts)); err != nil {
			return err
		}
		stats.Rows++
		return nil
	}

	if first != nil {
		if err := writeRow(first); err != nil {
			return stats, err
		}
	}

	for rows != nil {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		row, err := rows.Next(ctx)
		if err != nil {
			if err == io.EOF {
				break
			}
			return stats, err
		}
		if err := writeRow(row); err != nil {
			return stats, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return stats, err
	}

	stats.Bytes = cw.count
	return stats, nil
}

type countingWriter struct {
	w     io.Writer
	count int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.count += int64(n)
	return n, err
}
