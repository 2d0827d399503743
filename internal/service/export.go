package service

import (
	"fmt"
	"unicode/utf8"

	"github.com/godilite/feedback-server/internal/feedback"
	"github.com/xuri/excelize/v2"
)

const ExportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportFileName is "{category}_Report.xlsx".
func ExportFileName(category feedback.Category) string {
	return fmt.Sprintf("%s_Report.xlsx", category)
}

// WriteWorkbook writes a single sheet named after the category: a header row
// followed by one row per record, cells copied verbatim. A value longer than
// excelize.TotalCellChars fails with ErrCellTooLong rather than being cut.
func WriteWorkbook(category feedback.Category, records []feedback.Record) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := string(category)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	if err := writeRow(f, sheet, 1, feedback.Header(category)); err != nil {
		return nil, err
	}
	for i, rec := range records {
		if err := writeRow(f, sheet, i+2, rec.Row()); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	row := make([]any, len(values))
	for i, v := range values {
		if n := utf8.RuneCountInString(v); n > excelize.TotalCellChars {
			return fmt.Errorf("%w: row %d column %d has %d characters", ErrCellTooLong, rowNum, i+1, n)
		}
		row[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &row); err != nil {
		return fmt.Errorf("write row %d: %w", rowNum, err)
	}
	return nil
}
