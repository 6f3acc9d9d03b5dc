package output

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/edge-cli/internal/normalize"
)

// WriteCSV writes a header row followed by one row per table row.
func WriteCSV(w io.Writer, t *normalize.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return eris.Wrap(err, "csv: write header")
	}
	record := make([]string, len(t.Columns))
	for i := 0; i < t.Len(); i++ {
		for c, v := range t.Values(i) {
			record[c] = cellString(v)
		}
		if err := cw.Write(record); err != nil {
			return eris.Wrapf(err, "csv: write row %d", i)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "csv: flush")
}
