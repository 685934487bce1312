package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"teamledger/internal/config"
	"teamledger/internal/ingest"
	"teamledger/internal/log"
	"teamledger/internal/ports"
)

type importOptions struct {
	defaultYear int
	dryRun      bool
}

// NewImportCmd returns the ledger-import command tree.
func NewImportCmd() *cobra.Command {
	opts := &importOptions{}

	cmd := &cobra.Command{
		Use:   "ledger-import",
		Short: "Import operations from a CSV file or a Google Sheet",
		Long: "Reads rows with a header, normalizes amounts, flags and dates, and stores " +
			"each row as an operation. Rows that fail are reported and skipped.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().IntVar(&opts.defaultYear, "default-year", ingest.DefaultYear, "Year used when an invoice number carries only day and month")
	cmd.PersistentFlags().BoolVar(&opts.dryRun, "dry-run", false, "Print normalized operations as JSON lines instead of storing them")

	cmd.AddCommand(newCSVCmd(opts))
	cmd.AddCommand(newSheetsCmd(opts))
	return cmd
}

// ExecuteImport runs the import command with os.Args.
func ExecuteImport() error {
	return NewImportCmd().Execute()
}

func newCSVCmd(opts *importOptions) *cobra.Command {
	var delimiter string

	cmd := &cobra.Command{
		Use:   "csv <file>",
		Short: "Import a header-row CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			delim, err := parseDelimiter(delimiter)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening csv: %w", err)
			}
			defer f.Close()

			src, err := ingest.NewCSVSource(f, delim)
			if err != nil {
				return fmt.Errorf("reading csv header: %w", err)
			}
			return runImport(cmd, opts, config.Load(), src)
		},
	}

	cmd.Flags().StringVar(&delimiter, "delimiter", ",", `Field delimiter (a single character, or \t for tab)`)
	return cmd
}

func newSheetsCmd(opts *importOptions) *cobra.Command {
	var spreadsheetID, readRange string

	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Import rows from a Google Sheet range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if spreadsheetID != "" {
				cfg.GoogleSpreadsheetID = spreadsheetID
			}
			if readRange != "" {
				cfg.GoogleSheetRange = readRange
			}
			if err := cfg.ValidateSheets(); err != nil {
				return err
			}

			src, err := ingest.NewSheetsSource(cmd.Context(), ingest.SheetsConfig{
				SpreadsheetID:      cfg.GoogleSpreadsheetID,
				Range:              cfg.GoogleSheetRange,
				ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
				ServiceAccountFile: cfg.GoogleServiceAccountFile,
			})
			if err != nil {
				return err
			}
			return runImport(cmd, opts, cfg, src)
		},
	}

	cmd.Flags().StringVar(&spreadsheetID, "spreadsheet", "", "Spreadsheet ID (default $GOOGLE_SPREADSHEET_ID)")
	cmd.Flags().StringVar(&readRange, "range", "", "A1 range including the header row (default $GOOGLE_SHEET_RANGE)")
	return cmd
}

func runImport(cmd *cobra.Command, opts *importOptions, cfg *config.Config, src ingest.Source) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// stdout carries dry-run output and the summary; logs go to stderr.
	logger := SetupLogger(cfg, cmd.ErrOrStderr())

	validate := cfg.Validate
	if opts.dryRun {
		validate = cfg.ValidateWithoutDatabase
	}
	if err := validate(); err != nil {
		return err
	}

	var writer ports.OperationWriter
	if !opts.dryRun {
		svc, err := NewOperationService(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := svc.Close(); err != nil {
				logger.Warn("Failed to close record store", log.FieldError, err.Error())
			}
		}()
		writer = svc
	}

	importer := ingest.NewImporter(writer, ingest.NewNormalizer(opts.defaultYear), logger)
	importer.DryRun = opts.dryRun
	importer.Out = cmd.OutOrStdout()

	report, err := importer.Run(ctx, src)
	printReport(cmd.OutOrStdout(), cmd.ErrOrStderr(), report)
	return err
}

func printReport(out, errOut io.Writer, rep ingest.Report) {
	for _, rowErr := range rep.Errors {
		fmt.Fprintf(errOut, "skipped %v\n", rowErr)
	}
	fmt.Fprintf(out, "Rows read: %d, imported: %d, failed: %d\n", rep.Read, rep.Imported, rep.Failed)
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case `\t`, "tab":
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, errors.New("delimiter must be a single character")
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}
