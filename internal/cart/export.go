package cart

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const quoteSheetName = "Enquiry"

var quoteHeader = []any{"#", "Product", "Product ID", "Purity", "Weight (g)", "Quantity", "Unit Price (INR)", "Line Total (INR)"}

// QuoteSheet renders items as a single-sheet workbook with a total row.
func QuoteSheet(items []Item) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), quoteSheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(quoteSheetName, "A1", &quoteHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	if err := f.SetRowStyle(quoteSheetName, 1, 1, bold); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for i, it := range items {
		name := it.Name
		if name == "" {
			name = "Product"
		}
		unit := ComputePrice(it)
		qty := Quantity(it)
		row := []any{i + 1, name, it.ProductID, it.Purity, it.Weight, qty, unit, unit * float64(qty)}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(quoteSheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	totalRow := len(items) + 2
	totalCell, err := excelize.CoordinatesToCellName(7, totalRow)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellValue(quoteSheetName, totalCell, "Estimated Total"); err != nil {
		return nil, err
	}
	sumCell, err := excelize.CoordinatesToCellName(8, totalRow)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellValue(quoteSheetName, sumCell, ComputeTotal(items)); err != nil {
		return nil, err
	}
	if err := f.SetRowStyle(quoteSheetName, totalRow, totalRow, bold); err != nil {
		return nil, fmt.Errorf("style total: %w", err)
	}
	if err := f.SetColWidth(quoteSheetName, "B", "C", 28); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
