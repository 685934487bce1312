package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"teamledger/internal/core"
	"teamledger/internal/ports"
)

const teamGroupExpr = "COALESCE(NULLIF(TRIM(team), ''), 'Unknown')"

var _ ports.Store = (*GormRepository)(nil)

// PoolOptions tunes the database/sql pool behind GORM.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// operationRecord is the GORM model of the operations table.
type operationRecord struct {
	ID            string              `gorm:"column:id;type:uuid;primaryKey"`
	InvoiceNumber string              `gorm:"column:invoice_number;not null"`
	Team          *string             `gorm:"column:team"`
	Members       string              `gorm:"column:members;not null"`
	Date          time.Time           `gorm:"column:date;not null;index"`
	Revenue       decimal.Decimal     `gorm:"column:revenue;type:numeric;not null"`
	MaterialCost  decimal.NullDecimal `gorm:"column:material_cost;type:numeric"`
	FuelCost      decimal.Decimal     `gorm:"column:fuel_cost;type:numeric;not null"`
	Profit        decimal.Decimal     `gorm:"column:profit;type:numeric;not null"`
	IsPaid        bool                `gorm:"column:is_paid;not null"`
	CreatedAt     time.Time           `gorm:"column:created_at;not null"`
}

func (operationRecord) TableName() string { return "operations" }

func recordFromOperation(op core.Operation) operationRecord {
	return operationRecord{
		ID:            op.ID,
		InvoiceNumber: op.InvoiceNumber,
		Team:          op.Team,
		Members:       op.Members,
		Date:          op.Date,
		Revenue:       op.Revenue,
		MaterialCost:  op.MaterialCost,
		FuelCost:      op.FuelCost,
		Profit:        op.Profit,
		IsPaid:        op.IsPaid,
		CreatedAt:     op.CreatedAt,
	}
}

func (rec operationRecord) toOperation() core.Operation {
	return core.Operation{
		ID:            rec.ID,
		InvoiceNumber: rec.InvoiceNumber,
		Team:          rec.Team,
		Members:       rec.Members,
		Date:          rec.Date.UTC(),
		Revenue:       rec.Revenue,
		MaterialCost:  rec.MaterialCost,
		FuelCost:      rec.FuelCost,
		Profit:        rec.Profit,
		IsPaid:        rec.IsPaid,
		CreatedAt:     rec.CreatedAt.UTC(),
	}
}

// GormRepository is the Postgres record store.
type GormRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormRepository connects to Postgres, applies migrations and configures the pool.
func NewGormRepository(dsn string, pool PoolOptions) (*GormRepository, error) {
	if err := RunMigrations(dialectPostgres, dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  newGormLogger(),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &GormRepository{db: db, now: time.Now}, nil
}

func (r *GormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *GormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CreateOperation implements ports.OperationWriter
func (r *GormRepository) CreateOperation(ctx context.Context, op core.Operation) (core.Operation, error) {
	if err := op.Validate(); err != nil {
		return core.Operation{}, err
	}
	op.ID = uuid.NewString()
	op.Date = op.Date.UTC().Truncate(time.Microsecond)
	op.CreatedAt = r.now().UTC().Truncate(time.Microsecond)

	rec := recordFromOperation(op)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return core.Operation{}, fmt.Errorf("insert operation: %w", err)
	}

	slog.InfoContext(ctx, "Operation saved to Postgres",
		"id", op.ID,
		"invoice_number", op.InvoiceNumber,
		"team", op.TeamName(),
		"date", op.Date.Format("2006-01-02"))

	return op, nil
}

// ListOperations implements ports.OperationLister
func (r *GormRepository) ListOperations(ctx context.Context) ([]core.Operation, error) {
	var recs []operationRecord
	err := r.db.WithContext(ctx).Order("date desc").Order("created_at desc").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}

	ops := make([]core.Operation, len(recs))
	for i, rec := range recs {
		ops[i] = rec.toOperation()
	}
	return ops, nil
}

type totalsRow struct {
	Operations int
	Revenue    decimal.Decimal
	Profit     decimal.Decimal
	Expenses   decimal.Decimal
}

type teamRow struct {
	Name       string
	Operations int
	Revenue    decimal.Decimal
	Profit     decimal.Decimal
}

// Summarize implements ports.DashboardReader with SQL aggregates.
func (r *GormRepository) Summarize(ctx context.Context, p core.Period) (core.Dashboard, error) {
	var totals totalsRow
	err := r.inPeriod(ctx, p).
		Select(`COUNT(*) AS operations,
			COALESCE(SUM(revenue), 0) AS revenue,
			COALESCE(SUM(profit), 0) AS profit,
			COALESCE(SUM(fuel_cost), 0) + COALESCE(SUM(material_cost), 0) AS expenses`).
		Scan(&totals).Error
	if err != nil {
		return core.Dashboard{}, fmt.Errorf("aggregate totals: %w", err)
	}

	var teams []teamRow
	err = r.inPeriod(ctx, p).
		Select(teamGroupExpr + ` AS name,
			COUNT(*) AS operations,
			COALESCE(SUM(revenue), 0) AS revenue,
			COALESCE(SUM(profit), 0) AS profit`).
		Group(teamGroupExpr).
		Order("revenue DESC, name ASC").
		Scan(&teams).Error
	if err != nil {
		return core.Dashboard{}, fmt.Errorf("aggregate teams: %w", err)
	}

	d := core.NewDashboard(p)
	d.Totals = core.Totals{
		Operations: totals.Operations,
		Revenue:    totals.Revenue,
		Profit:     totals.Profit,
		Expenses:   totals.Expenses,
	}
	for _, t := range teams {
		d.Teams = append(d.Teams, core.TeamStats{
			Name:       t.Name,
			Operations: t.Operations,
			Revenue:    t.Revenue,
			Profit:     t.Profit,
		})
	}
	return d, nil
}

// ListTeams implements ports.TeamLister
func (r *GormRepository) ListTeams(ctx context.Context) ([]string, error) {
	teams := []string{}
	err := r.db.WithContext(ctx).Model(&operationRecord{}).
		Where("team IS NOT NULL AND TRIM(team) <> ''").
		Distinct("team").
		Order("team").
		Pluck("team", &teams).Error
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	return teams, nil
}

func (r *GormRepository) inPeriod(ctx context.Context, p core.Period) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&operationRecord{})
	if p.From != nil {
		q = q.Where("date >= ?", p.From.UTC())
	}
	if p.Before != nil {
		q = q.Where("date < ?", p.Before.UTC())
	}
	return q
}

// slogWriter routes GORM's printf-style logger to slog.
type slogWriter struct{}

func (slogWriter) Printf(format string, args ...any) {
	slog.Warn(fmt.Sprintf(format, args...), "component", "storage")
}

func newGormLogger() gormlogger.Interface {
	return gormlogger.New(slogWriter{}, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
