package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"prod-tracker/internal/constants"
	"prod-tracker/internal/lib/apperr"
)

// ReadXLSX первый лист файла: строка заголовков, затем данные.
// Даты читаются сырыми значениями, serial-даты разбирает ParseDateTime.
func ReadXLSX(r io.Reader) ([]RawRow, error) {
	const op = "service.importer.ReadXLSX"

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.InvalidArgument("cannot open xlsx: %v", err))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: %w", op, apperr.InvalidArgument("workbook has no sheets"))
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", op, apperr.InvalidArgument("sheet %s is empty", sheets[0]))
	}

	columns := map[string]int{}
	for i, h := range rows[0] {
		if field, ok := constants.ImportHeaders[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, dup := columns[field]; !dup {
				columns[field] = i
			}
		}
	}
	for _, required := range []string{"production", "machine_group", "datetime"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%s: %w", op, apperr.InvalidArgument("missing column %s", required))
		}
	}

	cell := func(row []string, field string) Cell {
		i, ok := columns[field]
		if !ok || i >= len(row) {
			return Cell{}
		}
		return TextCell(row[i])
	}

	res := make([]RawRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		res = append(res, RawRow{
			Production:   cell(row, "production"),
			MachineGroup: cell(row, "machine_group"),
			DateTime:     cell(row, "datetime"),
			QtyNormal:    cell(row, constants.FieldQtyNormal),
			QtyReject:    cell(row, constants.FieldQtyReject),
			Notes:        cell(row, "notes"),
			Line:         i + 2,
		})
	}

	return res, nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
