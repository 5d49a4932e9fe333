// Package sheet reads and writes gift items as XLSX workbooks.
package sheet

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/brroMonta/gifting/internal/app/model"
	"github.com/brroMonta/gifting/internal/app/service"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Gifts"

var exportHeader = []interface{}{"name", "url", "notes", "reserved", "reserved_at", "order"}

// ReadItems parses the first sheet of an import workbook. The first row is a
// header; columns are name, url, notes. Rows without a name are skipped and
// counted.
func ReadItems(r io.Reader) ([]service.ItemInput, int, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, 0, fmt.Errorf("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read rows: %w", err)
	}

	var items []service.ItemInput
	skipped := 0
	for i, row := range rows {
		if i == 0 {
			continue
		}
		name := strings.TrimSpace(cell(row, 0))
		if name == "" {
			skipped++
			continue
		}
		items = append(items, service.ItemInput{
			Name:  name,
			URL:   strings.TrimSpace(cell(row, 1)),
			Notes: strings.TrimSpace(cell(row, 2)),
		})
	}
	return items, skipped, nil
}

// cell tolerates short rows, since GetRows drops trailing empty cells.
func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

// WriteItems writes items in display order to a new workbook.
func WriteItems(w io.Writer, items model.GiftMapItems) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return err
	}

	for i, item := range items.Sorted() {
		reservedAt := ""
		if item.ReservedAt != nil {
			reservedAt = item.ReservedAt.UTC().Format(time.RFC3339)
		}
		row := []interface{}{item.Name, item.URL, item.Notes, item.IsReserved, reservedAt, item.Order}

		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, axis, &row); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}
