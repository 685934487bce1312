package ports

import (
	"context"

	"teamledger/internal/core"
)

// Ports for the record store.
type (
	// OperationWriter persists a new operation and returns it with its
	// server-set fields (id, createdAt) filled in.
	OperationWriter interface {
		CreateOperation(ctx context.Context, op core.Operation) (core.Operation, error)
	}

	// OperationLister returns every operation, newest date first.
	OperationLister interface {
		ListOperations(ctx context.Context) ([]core.Operation, error)
	}

	// DashboardReader aggregates the operations inside a period.
	DashboardReader interface {
		Summarize(ctx context.Context, p core.Period) (core.Dashboard, error)
	}

	// TeamLister returns the distinct non-empty team names.
	TeamLister interface {
		ListTeams(ctx context.Context) ([]string, error)
	}

	// Store is a complete record store.
	Store interface {
		OperationWriter
		OperationLister
		DashboardReader
		TeamLister
		Ping(ctx context.Context) error
		Close() error
	}
)
