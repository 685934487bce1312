package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"teamledger/internal/core"
	"teamledger/internal/log"
	"teamledger/internal/ports"
)

// Report summarizes an import run.
type Report struct {
	Read     int         `json:"read"`
	Imported int         `json:"imported"`
	Failed   int         `json:"failed"`
	Errors   []*RowError `json:"-"`
}

// Importer normalizes rows and submits them one at a time, in input order.
type Importer struct {
	writer     ports.OperationWriter
	normalizer *Normalizer
	logger     *log.Logger

	// DryRun prints normalized operations to Out instead of writing them.
	DryRun bool
	Out    io.Writer
}

func NewImporter(writer ports.OperationWriter, normalizer *Normalizer, logger *log.Logger) *Importer {
	if normalizer == nil {
		normalizer = NewNormalizer(DefaultYear)
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Importer{
		writer:     writer,
		normalizer: normalizer,
		logger:     logger.WithComponent(log.ComponentIngest),
	}
}

// Run drains src. Row failures are recorded in the report and never stop the
// run; the returned error is set only when the source itself fails.
func (im *Importer) Run(ctx context.Context, src Source) (Report, error) {
	var rep Report
	if !im.DryRun && im.writer == nil {
		return rep, errors.New("importer has no writer")
	}

	var enc *json.Encoder
	if im.DryRun {
		out := im.Out
		if out == nil {
			out = io.Discard
		}
		enc = json.NewEncoder(out)
	}

	for {
		row, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		var rowErr *RowError
		if errors.As(err, &rowErr) {
			rep.Read++
			im.fail(ctx, &rep, rowErr)
			continue
		}
		if err != nil {
			return rep, fmt.Errorf("read row %d: %w", rep.Read+1, err)
		}
		rep.Read++

		op, err := im.normalizer.Normalize(row)
		if err != nil {
			im.fail(ctx, &rep, &RowError{Line: row.Line, Err: err})
			continue
		}

		if im.DryRun {
			if err := enc.Encode(op); err != nil {
				return rep, fmt.Errorf("write dry-run output: %w", err)
			}
			rep.Imported++
			continue
		}

		created, err := im.writer.CreateOperation(ctx, op)
		if err != nil {
			if ctx.Err() != nil {
				return rep, ctx.Err()
			}
			im.fail(ctx, &rep, &RowError{Line: row.Line, InvoiceNumber: op.InvoiceNumber, Err: err})
			continue
		}
		rep.Imported++
		im.logger.InfoContext(ctx, "Imported",
			log.FieldLine, row.Line,
			log.FieldInvoiceNumber, created.InvoiceNumber,
			log.FieldOperationID, created.ID,
			"date", created.Date.Format("2006-01-02"))
	}

	im.logger.InfoContext(ctx, "Import finished",
		"read", rep.Read,
		"imported", rep.Imported,
		"failed", rep.Failed,
		"dry_run", im.DryRun)
	return rep, nil
}

func (im *Importer) fail(ctx context.Context, rep *Report, rowErr *RowError) {
	rep.Failed++
	rep.Errors = append(rep.Errors, rowErr)
	fields := log.NewFields().WithError(rowErr.Err).WithOperation(log.OpImport)
	fields[log.FieldLine] = rowErr.Line
	if rowErr.InvoiceNumber != "" {
		fields[log.FieldInvoiceNumber] = rowErr.InvoiceNumber
	}
	if errors.Is(rowErr.Err, core.ErrMissingInvoiceNumber) {
		fields.WithErrorType(log.ErrorTypeValidation)
	}
	im.logger.ErrorContext(ctx, "Import failed", fields.ToSlice()...)
}
