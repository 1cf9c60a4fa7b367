package engine

import (
	"encoding/csv"
	"errors"
	"io"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/value"
)

// DecodeCSV reads a header row followed by records. Each record becomes a
// *value.Dict keyed by header cell in column order; cells stay strings and
// are cast by the providers.
func DecodeCSV(r io.ReaderAt, opts typecodec.CSVOptions) ([]any, error) {
	cr := csv.NewReader(io.NewSectionReader(r, 0, 1<<62))
	cr.Comma = opts.Comma()
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []any{}, nil
	}
	if err != nil {
		return nil, csvError(err)
	}
	rows := []any{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, csvError(err)
		}
		if len(rec) > len(header) {
			it := typecodec.NewIssue(typecodec.CodeInvalidResource, typecodec.IndexPath("", len(rows)), "row has more cells than the header")
			return nil, it
		}
		d := value.NewDict(len(header))
		for i, cell := range rec {
			d.Set(header[i], cell)
		}
		rows = append(rows, d)
	}
}

func csvError(err error) error {
	it := typecodec.NewIssue(typecodec.CodeInvalidResource, "", "malformed csv").WithCause(err)
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		it.Hint = pe.Error()
	}
	return it
}
