// Package output writes normalized tables to CSV, JSON and XLSX files and
// prints run summaries.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/edge-cli/internal/model"
	"github.com/sells-group/edge-cli/internal/normalize"
)

// Format is an output file format.
type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
	XLSX Format = "xlsx"
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{CSV, JSON, XLSX}
}

// ParseFormats parses format names, accepting comma-separated entries and
// dropping duplicates.
func ParseFormats(names []string) ([]Format, error) {
	var out []Format
	seen := map[Format]bool{}
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			f := Format(strings.ToLower(strings.TrimSpace(part)))
			if f == "" || seen[f] {
				continue
			}
			switch f {
			case CSV, JSON, XLSX:
			default:
				return nil, eris.Errorf("output: unsupported format %q", part)
			}
			seen[f] = true
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		out = []Format{CSV}
	}
	return out, nil
}

// FileName returns basename with the format's extension.
func FileName(basename string, f Format) string {
	return strings.TrimSuffix(basename, filepath.Ext(basename)) + "." + string(f)
}

// WriteFiles writes t to dir in every format and returns the paths written.
// An empty table writes nothing.
func WriteFiles(t *normalize.Table, dir, basename string, formats []Format) ([]string, error) {
	log := zap.L().With(zap.String("component", "output"))
	if t == nil || t.Len() == 0 {
		log.Info("no data found; no files written")
		return nil, nil
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "output: create %s", dir)
	}

	var paths []string
	for _, f := range formats {
		path := filepath.Join(dir, FileName(basename, f))
		var err error
		switch f {
		case CSV:
			err = writeFile(path, func(fh *os.File) error { return WriteCSV(fh, t) })
		case JSON:
			err = writeFile(path, func(fh *os.File) error { return WriteJSON(fh, t, false) })
		case XLSX:
			err = WriteXLSX(path, t)
		default:
			err = eris.Errorf("output: unsupported format %q", f)
		}
		if err != nil {
			return paths, err
		}
		log.Info("wrote results", zap.String("path", path), zap.Int("rows", t.Len()))
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, fn func(*os.File) error) error {
	fh, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "output: create %s", path)
	}
	if err := fn(fh); err != nil {
		fh.Close() //nolint:errcheck
		return eris.Wrapf(err, "output: write %s", path)
	}
	return eris.Wrapf(fh.Close(), "output: close %s", path)
}

// cellString renders a table value for text formats.
func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case model.Date:
		return x.ISO()
	default:
		return fmt.Sprint(x)
	}
}
