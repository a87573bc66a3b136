package generate_excel

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"prod-tracker/internal/lib/format"
	"prod-tracker/internal/lib/pagination"
	"prod-tracker/internal/service/aggregate"
)

type SummarySource interface {
	DailySummary(ctx context.Context, date time.Time, productionID *int64, page pagination.Params) (aggregate.DailySummary, error)
}

type GenerateExcelService struct {
	summary SummarySource
}

func NewGenerateService(summary SummarySource) *GenerateExcelService {
	return &GenerateExcelService{summary: summary}
}

var headers = []string{
	"Production", "Machine group", "Target normal", "Target reject", "Target total",
	"Actual normal", "Actual reject", "Actual total", "Variance", "Achievement %", "Status",
}

// GenerateDailySummary xlsx суточной сводки, последняя строка итог
func (g *GenerateExcelService) GenerateDailySummary(ctx context.Context, date time.Time, productionID *int64) ([]byte, error) {
	summary, err := g.summary.DailySummary(ctx, date, productionID, pagination.Params{})
	if err != nil {
		return nil, fmt.Errorf("fetch data: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Summary " + summary.Date
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	// --- СТИЛИ ---
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"E0E0E0"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 2}},
	})
	belowStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "C00000"},
	})
	totalStyle, _ := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Border: []excelize.Border{{Type: "top", Color: "000000", Style: 1}},
	})

	// 1. Шапка
	for i, name := range headers {
		f.SetCellValue(sheet, cellName(i+1, 1), name)
	}
	f.SetCellStyle(sheet, "A1", cellName(len(headers), 1), headerStyle)

	// 2. Строки по группам
	for rowIdx, r := range summary.Rows {
		rowNum := rowIdx + 2
		writeRow(f, sheet, rowNum, r)

		if r.Status == aggregate.StatusBelow {
			f.SetCellStyle(sheet, cellName(9, rowNum), cellName(11, rowNum), belowStyle)
		}
	}

	// 3. Итог
	totalRow := len(summary.Rows) + 2
	total := summary.Total
	total.ProductionName = "Total"
	writeRow(f, sheet, totalRow, total)
	f.SetCellValue(sheet, cellName(2, totalRow), "")
	f.SetCellStyle(sheet, cellName(1, totalRow), cellName(len(headers), totalRow), totalStyle)

	f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
	})
	f.SetColWidth(sheet, "A", "B", 22)
	f.SetColWidth(sheet, "C", "K", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, rowNum int, r aggregate.SummaryRow) {
	f.SetCellValue(sheet, cellName(1, rowNum), r.ProductionName)
	f.SetCellValue(sheet, cellName(2, rowNum), format.Display(r.MachineGroupName))
	f.SetCellValue(sheet, cellName(3, rowNum), r.TargetQtyNormal)
	f.SetCellValue(sheet, cellName(4, rowNum), r.TargetQtyReject)
	f.SetCellValue(sheet, cellName(5, rowNum), r.TargetTotal)
	f.SetCellValue(sheet, cellName(6, rowNum), r.ActualQtyNormal)
	f.SetCellValue(sheet, cellName(7, rowNum), r.ActualQtyReject)
	f.SetCellValue(sheet, cellName(8, rowNum), r.ActualTotal)
	f.SetCellValue(sheet, cellName(9, rowNum), r.Variance)
	f.SetCellValue(sheet, cellName(10, rowNum), r.AchievementPercentage)
	f.SetCellValue(sheet, cellName(11, rowNum), r.Status)
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
