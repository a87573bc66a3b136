package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Cell значение ячейки: строка или число из таблицы
type Cell struct {
	Text   string
	Number *float64
}

func TextCell(s string) Cell { return Cell{Text: s} }

func NumberCell(f float64) Cell {
	return Cell{Text: strconv.FormatFloat(f, 'f', -1, 64), Number: &f}
}

func (c *Cell) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*c = Cell{}
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = TextCell(s)
		return nil
	default:
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return fmt.Errorf("cell must be a string or a number: %w", err)
		}
		*c = NumberCell(f)
		return nil
	}
}

func (c Cell) MarshalJSON() ([]byte, error) {
	if c.Number != nil {
		return json.Marshal(*c.Number)
	}
	if c.Empty() {
		return []byte("null"), nil
	}
	return json.Marshal(c.Text)
}

func (c Cell) String() string { return strings.TrimSpace(c.Text) }

func (c Cell) Empty() bool { return c.Number == nil && c.String() == "" }

// Float число из ячейки, текст тоже допускается
func (c Cell) Float() (float64, bool) {
	if c.Number != nil {
		return *c.Number, true
	}
	f, err := strconv.ParseFloat(c.String(), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Quantity пустая ячейка -> nil; иначе целое >= 0
func (c Cell) Quantity() (*int, bool) {
	if c.Empty() {
		return nil, true
	}
	f, ok := c.Float()
	if !ok || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return nil, false
	}
	v := int(f)
	return &v, true
}
