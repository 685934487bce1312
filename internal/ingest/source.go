package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// Source yields rows one at a time. Next returns io.EOF after the last row
// and a *RowError for a row that could not be read but does not stop the run.
type Source interface {
	Next(ctx context.Context) (Row, error)
}

// RowError is a per-row failure.
type RowError struct {
	Line          int    `json:"line"`
	InvoiceNumber string `json:"invoiceNumber,omitempty"`
	Err           error  `json:"-"`
}

func (e *RowError) Error() string {
	if e.InvoiceNumber != "" {
		return fmt.Sprintf("line %d (%s): %v", e.Line, e.InvoiceNumber, e.Err)
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// CSVSource reads a header row followed by records.
type CSVSource struct {
	r      *csv.Reader
	header []string
}

// NewCSVSource reads the header from r. delimiter 0 means comma.
func NewCSVSource(r io.Reader, delimiter rune) (*CSVSource, error) {
	cr := csv.NewReader(r)
	if delimiter != 0 {
		if !validDelimiter(delimiter) {
			return nil, fmt.Errorf("invalid delimiter %q", delimiter)
		}
		cr.Comma = delimiter
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("csv is empty: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	return &CSVSource{r: cr, header: CleanHeader(header)}, nil
}

// Header returns the cleaned column names.
func (s *CSVSource) Header() []string { return s.header }

func (s *CSVSource) Next(ctx context.Context) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}
	for {
		record, err := s.r.Read()
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return Row{}, &RowError{Line: pe.StartLine, Err: err}
			}
			return Row{}, err
		}
		line, _ := s.r.FieldPos(0)
		if blankRecord(record) {
			continue
		}
		return NewRow(line, s.header, record), nil
	}
}

func blankRecord(record []string) bool {
	for _, v := range record {
		if v != "" {
			return false
		}
	}
	return true
}

func validDelimiter(r rune) bool {
	return r != '"' && r != '\r' && r != '\n' && utf8.ValidRune(r) && r != utf8.RuneError
}
