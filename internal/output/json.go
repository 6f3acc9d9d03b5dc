package output

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/tidwall/pretty"

	"github.com/sells-group/edge-cli/internal/normalize"
)

// MarshalTable encodes t as a JSON array of objects whose keys follow the
// table's column order.
func MarshalTable(t *normalize.Table) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i := 0; i < t.Len(); i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for c, v := range t.Values(i) {
			if c > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(t.Columns[c])
			if err != nil {
				return nil, eris.Wrapf(err, "json: marshal column %q", t.Columns[c])
			}
			val, err := json.Marshal(v)
			if err != nil {
				return nil, eris.Wrapf(err, "json: marshal row %d column %q", i, t.Columns[c])
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// WriteJSON writes t as indented JSON. color adds terminal highlighting.
func WriteJSON(w io.Writer, t *normalize.Table, color bool) error {
	data, err := MarshalTable(t)
	if err != nil {
		return err
	}
	out := pretty.Pretty(data)
	if color {
		out = pretty.Color(out, nil)
	}
	_, err = w.Write(out)
	return eris.Wrap(err, "json: write")
}
