package constants

const (
	FieldQtyNormal  = "qty_normal"
	FieldQtyReject  = "qty_reject"
	FieldQty        = "qty"
	FieldGrades     = "grades"
	FieldGrade      = "grade"
	FieldUkuran     = "ukuran"
	FieldKeterangan = "keterangan"
)

// Длина эталонной смены в часах, дневная цель делится на нее
const ShiftHours = 8

var (
	// Поля по типам ввода
	InputTypeFields = map[string][]string{
		"qty_only":      {FieldQty, FieldKeterangan},
		"normal_reject": {FieldQtyNormal, FieldQtyReject, FieldKeterangan},
		"grades":        {FieldGrades, FieldKeterangan},
		"grade_qty":     {FieldGrade, FieldQty, FieldKeterangan},
		"qty_ukuran":    {FieldQty, FieldUkuran, FieldKeterangan},
		"custom":        {},
	}

	// Колонки файла импорта -> поле строки, заголовки сравниваются в нижнем регистре
	ImportHeaders = map[string]string{
		"production":    "production",
		"produksi":      "production",
		"machine group": "machine_group",
		"machine_group": "machine_group",
		"grup mesin":    "machine_group",
		"datetime":      "datetime",
		"date time":     "datetime",
		"tanggal":       "datetime",
		"qty_normal":    FieldQtyNormal,
		"qty normal":    FieldQtyNormal,
		"qty_reject":    FieldQtyReject,
		"qty reject":    FieldQtyReject,
		"notes":         "notes",
		"keterangan":    "notes",
	}
)
