package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// SheetsConfig locates a range and the service account allowed to read it.
type SheetsConfig struct {
	SpreadsheetID      string
	Range              string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// SheetsSource reads a range through the Google Sheets API. The first row of
// the range is the header.
type SheetsSource struct {
	svc           *gsheet.Service
	spreadsheetID string
	readRange     string

	loaded bool
	header []string
	rows   [][]any
	next   int
}

// NewSheetsSource authenticates with the service account from cfg.
func NewSheetsSource(ctx context.Context, cfg SheetsConfig, opts ...goption.ClientOption) (*SheetsSource, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(cfg.Range) == "" {
		return nil, errors.New("missing sheet range")
	}

	if len(opts) == 0 {
		creds, err := serviceAccountCredentials(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsReadonlyScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsSource{svc: svc, spreadsheetID: cfg.SpreadsheetID, readRange: cfg.Range}, nil
}

func serviceAccountCredentials(ctx context.Context, cfg SheetsConfig) ([]byte, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)

	switch {
	case inline != "":
		slog.DebugContext(ctx, "Using inline service account credentials", "component", "sheets")
		return []byte(inline), nil
	case file != "":
		slog.DebugContext(ctx, "Reading service account credentials", "component", "sheets", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func (s *SheetsSource) load(ctx context.Context) error {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read range %s: %w", s.readRange, err)
	}
	s.loaded = true
	if len(resp.Values) == 0 {
		return errors.New("sheet range is empty: missing header row")
	}
	s.header = CleanHeader(toStrings(resp.Values[0]))
	s.rows = resp.Values[1:]
	return nil
}

func (s *SheetsSource) Next(ctx context.Context) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}
	if !s.loaded {
		if err := s.load(ctx); err != nil {
			return Row{}, err
		}
	}
	for s.next < len(s.rows) {
		record := toStrings(s.rows[s.next])
		s.next++
		if blankRecord(record) {
			continue
		}
		// Sheet rows are 1-based and the header occupies the first one.
		return NewRow(s.next+1, s.header, record), nil
	}
	return Row{}, io.EOF
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		if v == nil {
			continue
		}
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
