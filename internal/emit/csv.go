package emit

import (
	"encoding/csv"
	"fmt"
	"strconv"

	typecodec "github.com/reoring/typecodec"
)

// CSV buffers rows and writes them on Flush, because the header is the union
// of every row's keys in first-seen order. The root must be a list of dicts
// whose values are scalars.
type CSV struct {
	w    Writer
	opts typecodec.CSVOptions

	depth  int
	key    string
	header []string
	seen   map[string]int
	rows   []map[string]string
	row    map[string]string
	closed bool
}

// NewCSV returns a CSV emitter.
func NewCSV(w Writer, opts typecodec.CSVOptions) *CSV {
	return &CSV{w: w, opts: opts, seen: map[string]int{}}
}

func (e *CSV) BeginList() error {
	if e.depth != 0 || e.closed {
		return e.nested()
	}
	e.depth++
	return nil
}

func (e *CSV) BeginDict() error {
	if e.depth != 1 {
		if e.depth == 0 {
			return typecodec.Errorf(typecodec.CodeUnsupportedType, "csv root must be a list of rows")
		}
		return e.nested()
	}
	e.depth++
	e.row = map[string]string{}
	return nil
}

func (e *CSV) nested() error {
	it := typecodec.Errorf(typecodec.CodeUnsupportedType, "nested values in csv cells are not supported")
	it.Hint = e.key
	return it
}

func (e *CSV) Key(k string) error {
	if e.depth != 2 {
		return fmt.Errorf("emit: key %q outside a csv row", k)
	}
	e.key = k
	if _, ok := e.seen[k]; !ok {
		e.seen[k] = len(e.header)
		e.header = append(e.header, k)
	}
	return nil
}

func (e *CSV) End() error {
	switch e.depth {
	case 2:
		e.rows = append(e.rows, e.row)
		e.row = nil
	case 1:
		e.closed = true
	default:
		return fmt.Errorf("emit: End without an open container")
	}
	e.depth--
	return nil
}

func (e *CSV) Scalar(v any) error {
	if e.depth != 2 {
		return typecodec.Errorf(typecodec.CodeUnsupportedType, "csv rows must be dicts, got %T", v)
	}
	cell, err := Cell(v)
	if err != nil {
		return err
	}
	e.row[e.key] = cell
	return nil
}

// Cell renders a scalar as a CSV cell: null is empty, bools are 1 or 0.
func Cell(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case bool:
		if x {
			return "1", nil
		}
		return "0", nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case string:
		return x, nil
	}
	return "", fmt.Errorf("emit: unsupported scalar %T", v)
}

func (e *CSV) Flush() error {
	if e.depth != 0 {
		return fmt.Errorf("emit: csv document left open")
	}
	if len(e.rows) == 0 {
		return nil
	}
	cw := csv.NewWriter(e.w)
	cw.Comma = e.opts.Comma()
	cw.UseCRLF = e.opts.CRLF()
	if err := cw.Write(e.header); err != nil {
		return err
	}
	rec := make([]string, len(e.header))
	for _, row := range e.rows {
		for i, k := range e.header {
			rec[i] = row[k]
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
