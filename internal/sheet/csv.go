package sheet

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CSVOptions configures the CSV reader.
type CSVOptions struct {
	Delimiter  rune   // default ','
	Comment    rune   // comment character (0 = none)
	Encoding   string // WHATWG label such as "windows-1252"; empty means UTF-8
	LazyQuotes bool
	TrimSpace  bool
}

// ReadCSV reads every record from r. A leading UTF-8 byte order mark, as
// written by spreadsheet tools, is dropped so the first header stays clean.
func ReadCSV(r io.Reader, opts CSVOptions) ([][]string, error) {
	src, err := decodeReader(r, opts.Encoding)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(src)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1 // allow variable fields

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}

		if opts.TrimSpace {
			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}
		}
		rows = append(rows, record)
	}
}

func decodeReader(r io.Reader, encoding string) (io.Reader, error) {
	if encoding == "" {
		return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())), nil
	}
	enc, err := htmlindex.Get(encoding)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: unsupported encoding %q", encoding)
	}
	return enc.NewDecoder().Reader(r), nil
}
