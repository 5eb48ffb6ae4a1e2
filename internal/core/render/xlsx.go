package render

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/docuclean/internal/core/domain"
	"github.com/kirillkom/docuclean/internal/core/reconstruct"
)

const BlocksSheet = "Blocks"

var blockColumns = []any{"Page", "Order", "Label", "Text", "YMin", "XMin", "YMax", "XMax", "Status"}

// BlockInventory lists every recognized block, one row per block in reading
// order, ignoring label filters.
func BlockInventory(pages []domain.Page) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", BlocksSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(BlocksSheet, "A1", &blockColumns); err != nil {
		return nil, fmt.Errorf("write header row: %w", err)
	}

	row := 2
	for _, page := range pages {
		for order, block := range reconstruct.ReadingOrder(page.Blocks) {
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return nil, err
			}
			values := []any{
				page.PageNumber,
				order + 1,
				string(block.Label),
				block.Text,
				block.Box.YMin,
				block.Box.XMin,
				block.Box.YMax,
				block.Box.XMax,
				string(page.Status),
			}
			if err := f.SetSheetRow(BlocksSheet, cell, &values); err != nil {
				return nil, fmt.Errorf("write block row %d: %w", row, err)
			}
			row++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
