// Package report renders branch recommendation results as XLSX request forms.
package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/andresuchdata/restockplan/internal/domain"
	"github.com/xuri/excelize/v2"
)

const (
	requestSheet  = "Request"
	capacitySheet = "Capacity"
)

var requestHeaders = []string{
	"Branch", "Code", "SKU", "Product Name", "Category", "Type", "Priority", "ABC",
	"DSI", "DOH", "Margin", "Avg Monthly Sales", "Avg Monthly COGS", "Stock Qty",
	"Stock COGS", "Box Qty", "Available Qty", "Recommended Qty",
}

var requestColWidths = []float64{14, 14, 14, 36, 16, 14, 9, 6, 9, 9, 9, 12, 14, 10, 14, 9, 12, 14}

// FileName is the request form name of a group.
func FileName(group string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(strings.TrimSpace(group))
	return fmt.Sprintf("request_form_%s.xlsx", name)
}

// WriteRequestForm saves the group's lines and capacity check into dir and
// returns the file path.
func WriteRequestForm(dir string, res *domain.BranchResult) (string, error) {
	f, err := BuildRequestForm(res)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(dir, FileName(res.Group.Name))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save request form %s: %w", path, err)
	}
	return path, nil
}

// BuildRequestForm lays the result out on a request sheet and a capacity sheet.
func BuildRequestForm(res *domain.BranchResult) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", requestSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(capacitySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("add capacity sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}

	if err := writeRequests(f, res.Lines, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeCapacity(f, res.Capacity, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeRequests(f *excelize.File, lines []domain.BranchRequestLine, headerStyle int) error {
	for i, h := range requestHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(requestSheet, cell, h)
		f.SetCellStyle(requestSheet, cell, cell, headerStyle)
	}

	for i, l := range lines {
		row := []interface{}{
			l.Branch, l.Code, l.SKU, l.ProductName, l.Category, l.Type, string(l.Priority),
		}
		// Unevaluated codes leave the evaluation columns blank.
		if l.Evaluated {
			row = append(row, string(l.ABC), l.DSI, l.DOH, l.Margin)
		} else {
			row = append(row, nil, nil, nil, nil)
		}
		row = append(row,
			l.AvgMonthlySales, l.AvgMonthlyCogs, l.StockQuantity, l.StockCogs,
			l.BoxQuantity, l.AvailableQuantity, l.RecommendedQuantity,
		)

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(requestSheet, cell, &row); err != nil {
			return fmt.Errorf("write request line %s: %w", l.Code, err)
		}
	}

	for i, w := range requestColWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(requestSheet, col, col, w)
	}
	return f.SetPanes(requestSheet, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	})
}

func writeCapacity(f *excelize.File, rep domain.CapacityReport, headerStyle int) error {
	figures := [][]interface{}{
		{"Branch", rep.Branch},
		{"Basis", string(rep.Basis)},
		{"Max Capacity", rep.MaxCapacity},
		{"Min Target", rep.MinTarget},
		{"Current Stock Qty", rep.StockQuantity},
		{"Current Stock COGS", rep.StockCogs},
		{"Post-Restock Qty", rep.PostRestockQty},
		{"Projected", rep.Projected},
		{"Shortfall to Min", rep.MinShortfall},
		{"Shortfall to Max", rep.MaxShortfall},
		{"Within Capacity", rep.WithinCapacity},
		{"Recommended Units", rep.RecommendedUnits},
		{"Recommended Lines", rep.RecommendedLines},
	}
	for i, row := range figures {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(capacitySheet, cell, &row); err != nil {
			return fmt.Errorf("write capacity figures: %w", err)
		}
	}
	labelEnd, _ := excelize.CoordinatesToCellName(1, len(figures))
	f.SetCellStyle(capacitySheet, "A1", labelEnd, headerStyle)

	start := len(figures) + 2
	header := []interface{}{"Tier", "Current %", "Projected %", "Target %"}
	cell, _ := excelize.CoordinatesToCellName(1, start)
	if err := f.SetSheetRow(capacitySheet, cell, &header); err != nil {
		return fmt.Errorf("write tier header: %w", err)
	}
	end, _ := excelize.CoordinatesToCellName(len(header), start)
	f.SetCellStyle(capacitySheet, cell, end, headerStyle)

	for i, t := range rep.Tiers {
		row := []interface{}{string(t.Priority), t.CurrentShare, t.ProjectedShare, t.TargetShare}
		cell, _ := excelize.CoordinatesToCellName(1, start+i+1)
		if err := f.SetSheetRow(capacitySheet, cell, &row); err != nil {
			return fmt.Errorf("write tier %s: %w", t.Priority, err)
		}
	}

	f.SetColWidth(capacitySheet, "A", "A", 22)
	f.SetColWidth(capacitySheet, "B", "D", 14)
	return nil
}
