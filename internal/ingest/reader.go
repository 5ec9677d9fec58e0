package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
)

// Row is one data record bound to its source's column mapping.
type Row struct {
	// Number is the 1-based data row number, excluding the header. It is
	// recorded as provenance on the resulting case event.
	Number  int64
	record  []string
	mapping *Mapping
}

// Get reads one canonical field from the row, trimmed; blank when absent.
func (r Row) Get(f Field) string {
	return r.mapping.Value(r.record, f)
}

// Reader streams CSV records as mapped Rows. The header is consumed at
// construction time to build the column mapping.
type Reader struct {
	csv     *csv.Reader
	mapping *Mapping
	number  int64
}

func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	// Sources pad or truncate trailing columns; short records read as blank.
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	return &Reader{csv: cr, mapping: NewMapping(header)}, nil
}

func (r *Reader) Mapping() *Mapping {
	return r.mapping
}

// Next returns the next data row, or io.EOF at end of stream. CSV-level
// parse errors are returned as row errors with the row number attached so
// the committer can count them without stopping the stream.
func (r *Reader) Next() (Row, error) {
	record, err := r.csv.Read()
	if err == io.EOF {
		return Row{}, io.EOF
	}
	r.number++
	if err != nil {
		return Row{Number: r.number}, fmt.Errorf("row %d: %w", r.number, err)
	}
	return Row{Number: r.number, record: record, mapping: r.mapping}, nil
}
