package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"teamledger/internal/core"
	"teamledger/internal/ports"

	_ "modernc.org/sqlite"
)

// Fixed width so that text comparison orders chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z"

var _ ports.Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" && !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dialectSQLite, dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateOperation implements ports.OperationWriter
func (r *SQLiteRepository) CreateOperation(ctx context.Context, op core.Operation) (core.Operation, error) {
	if err := op.Validate(); err != nil {
		return core.Operation{}, err
	}
	op.ID = uuid.NewString()
	op.Date = op.Date.UTC().Truncate(time.Microsecond)
	op.CreatedAt = r.now().UTC().Truncate(time.Microsecond)

	var material any
	if op.MaterialCost.Valid {
		material = op.MaterialCost.Decimal.String()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO operations (id, invoice_number, team, members, date, revenue, material_cost, fuel_cost, profit, is_paid, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID,
		op.InvoiceNumber,
		op.Team,
		op.Members,
		op.Date.Format(sqliteTimeLayout),
		op.Revenue.String(),
		material,
		op.FuelCost.String(),
		op.Profit.String(),
		op.IsPaid,
		op.CreatedAt.Format(sqliteTimeLayout),
	)
	if err != nil {
		return core.Operation{}, fmt.Errorf("insert operation: %w", err)
	}

	slog.InfoContext(ctx, "Operation saved to SQLite",
		"id", op.ID,
		"invoice_number", op.InvoiceNumber,
		"team", op.TeamName(),
		"date", op.Date.Format("2006-01-02"))

	return op, nil
}

// ListOperations implements ports.OperationLister
func (r *SQLiteRepository) ListOperations(ctx context.Context) ([]core.Operation, error) {
	return r.queryOperations(ctx, core.AllTime())
}

// Summarize implements ports.DashboardReader. SQLite has no exact decimal
// type, so the rows are filtered in SQL and summed in Go.
func (r *SQLiteRepository) Summarize(ctx context.Context, p core.Period) (core.Dashboard, error) {
	ops, err := r.queryOperations(ctx, p)
	if err != nil {
		return core.Dashboard{}, fmt.Errorf("summarize operations: %w", err)
	}
	return core.Aggregate(ops, p), nil
}

// ListTeams implements ports.TeamLister
func (r *SQLiteRepository) ListTeams(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT team FROM operations
		WHERE team IS NOT NULL AND TRIM(team) <> ''
		ORDER BY team`)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	teams := []string{}
	for rows.Next() {
		var team string
		if err := rows.Scan(&team); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

func (r *SQLiteRepository) queryOperations(ctx context.Context, p core.Period) ([]core.Operation, error) {
	query := `SELECT id, invoice_number, team, members, date, revenue, material_cost, fuel_cost, profit, is_paid, created_at FROM operations`
	var (
		where []string
		args  []any
	)
	if p.From != nil {
		where = append(where, "date >= ?")
		args = append(args, p.From.UTC().Format(sqliteTimeLayout))
	}
	if p.Before != nil {
		where = append(where, "date < ?")
		args = append(args, p.Before.UTC().Format(sqliteTimeLayout))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC, created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	ops := []core.Operation{}
	for rows.Next() {
		op, err := scanSQLiteOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return ops, nil
}

func scanSQLiteOperation(rows *sql.Rows) (core.Operation, error) {
	var (
		op        core.Operation
		team      sql.NullString
		date      string
		createdAt string
		material  decimal.NullDecimal
	)
	if err := rows.Scan(&op.ID, &op.InvoiceNumber, &team, &op.Members, &date,
		&op.Revenue, &material, &op.FuelCost, &op.Profit, &op.IsPaid, &createdAt); err != nil {
		return core.Operation{}, fmt.Errorf("scan operation: %w", err)
	}
	if team.Valid {
		op.Team = core.TeamPtr(team.String)
	}
	op.MaterialCost = material

	var err error
	if op.Date, err = time.Parse(sqliteTimeLayout, date); err != nil {
		return core.Operation{}, fmt.Errorf("parse date of %s: %w", op.ID, err)
	}
	if op.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return core.Operation{}, fmt.Errorf("parse created_at of %s: %w", op.ID, err)
	}
	return op, nil
}
