package output

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/edge-cli/internal/model"
	"github.com/sells-group/edge-cli/internal/normalize"
)

// maxSheetName is the Excel limit on sheet name length.
const maxSheetName = 31

// SheetName returns the worksheet name used for t.
func SheetName(t *normalize.Table) string {
	name := t.ReportType.Info().Label
	if name == "" {
		name = "Results"
	}
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	return name
}

// WriteXLSX saves t as a single-sheet workbook at path. Numbers and flags
// keep their cell types.
func WriteXLSX(path string, t *normalize.Table) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName(t))
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range t.Columns {
		header.AddCell().SetString(col)
	}
	for i := 0; i < t.Len(); i++ {
		row := sheet.AddRow()
		for _, v := range t.Values(i) {
			setCell(row.AddCell(), v)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

func setCell(cell *xlsx.Cell, v any) {
	switch x := v.(type) {
	case nil:
	case int64:
		cell.SetInt64(x)
	case float64:
		cell.SetFloat(x)
	case bool:
		cell.SetBool(x)
	case model.Date:
		cell.SetString(x.ISO())
	default:
		cell.SetString(cellString(x))
	}
}
