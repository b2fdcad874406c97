package consolidate

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/goliatone/go-tablebook/export"
)

const excelMaxRows = 1048576

// WorkbookWriter materializes registered sheets as an XLSX document.
type WorkbookWriter struct{}

// Render writes every sheet, each with a bold header row, and returns the
// number of bytes written.
func (WorkbookWriter) Render(ctx context.Context, sheets []Sheet, w io.Writer) (int64, error) {
	if len(sheets) == 0 {
		return 0, export.NewError(export.KindValidation, "workbook has no sheets", nil)
	}

	file := excelize.NewFile()
	defer func() {
		_ = file.Close()
	}()

	headerID, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return 0, err
	}

	defaultSheet := file.GetSheetName(0)
	for i, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if i == 0 {
			if defaultSheet != sheet.Name {
				if err := file.SetSheetName(defaultSheet, sheet.Name); err != nil {
					return 0, err
				}
			}
		} else if _, err := file.NewSheet(sheet.Name); err != nil {
			return 0, err
		}

		if err := writeSheet(ctx, file, sheet, headerID); err != nil {
			return 0, fmt.Errorf("sheet %s: %w", sheet.Name, err)
		}
	}
	file.SetActiveSheet(0)

	cw := &countingWriter{w: w}
	if _, err := file.WriteTo(cw); err != nil {
		return cw.count, err
	}
	return cw.count, nil
}

func writeSheet(ctx context.Context, file *excelize.File, sheet Sheet, headerID int) error {
	if len(sheet.Rows)+1 > excelMaxRows {
		return export.NewError(export.KindValidation, "xlsx row limit exceeded", nil)
	}

	stream, err := file.NewStreamWriter(sheet.Name)
	if err != nil {
		return err
	}

	header := make([]interface{}, len(sheet.Header))
	for i, name := range sheet.Header {
		header[i] = excelize.Cell{StyleID: headerID, Value: name}
	}
	if err := stream.SetRow("A1", header); err != nil {
		return err
	}

	for i, row := range sheet.Rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		cells := make([]interface{}, len(row))
		copy(cells, row)
		if err := stream.SetRow(fmt.Sprintf("A%d", i+2), cells); err != nil {
			return err
		}
	}
	return stream.Flush()
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
