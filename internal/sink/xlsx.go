package sink

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/PabloZV/ml-document-system/internal/entity"
)

// ExportXLSX returns an XLSX workbook (as bytes) with one row per processed
// document, for people who review batches in a spreadsheet.
func (s *Sink) ExportXLSX(documents []entity.Document) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Documents"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Filename",
		"Category",
		"Word Count",
		"Entity Kinds",
		"Entity Values",
		"Processed At",
		"Source Path",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, doc := range documents {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, doc.Filename)
		write(2, doc.Category)
		write(3, doc.WordCount)
		write(4, doc.EntityKindCount())
		write(5, doc.EntityValueCount())
		write(6, doc.Timestamp.Format(time.RFC3339))
		write(7, doc.FilePath)
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("xlsx export built",
		"rows", len(documents),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
