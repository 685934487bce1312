package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"teamledger/internal/ports"
)

// Kind names a storage backend.
type Kind string

const (
	PostgresKind Kind = "postgres"
	SQLiteKind   Kind = "sqlite"
	MemoryKind   Kind = "memory"
)

func (k Kind) String() string { return string(k) }

// KindOf picks the backend from the scheme of a database URL.
func KindOf(databaseURL string) (Kind, error) {
	u := strings.ToLower(strings.TrimSpace(databaseURL))
	switch {
	case u == "":
		return "", fmt.Errorf("database url is empty")
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return PostgresKind, nil
	case strings.HasPrefix(u, "sqlite://"), strings.HasPrefix(u, "file:"):
		return SQLiteKind, nil
	case strings.HasPrefix(u, "memory://"):
		return MemoryKind, nil
	default:
		return "", fmt.Errorf("unsupported database url scheme in %q", redact(databaseURL))
	}
}

// Open connects the record store selected by databaseURL.
func Open(ctx context.Context, databaseURL string, pool PoolOptions) (ports.Store, error) {
	kind, err := KindOf(databaseURL)
	if err != nil {
		return nil, err
	}

	var store ports.Store
	switch kind {
	case PostgresKind:
		store, err = NewGormRepository(databaseURL, pool)
	case SQLiteKind:
		store, err = NewSQLiteRepository(sqlitePath(databaseURL))
	case MemoryKind:
		store = NewMemoryStore()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s store: %w", kind, err)
	}

	slog.InfoContext(ctx, "Initialized record store", "backend", kind.String(), "url", redact(databaseURL))
	return store, nil
}

func sqlitePath(databaseURL string) string {
	if strings.HasPrefix(databaseURL, "sqlite://") {
		return strings.TrimPrefix(databaseURL, "sqlite://")
	}
	return databaseURL
}

// redact hides the password of a URL before it reaches the logs.
func redact(databaseURL string) string {
	scheme, rest, ok := strings.Cut(databaseURL, "://")
	if !ok {
		return databaseURL
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return databaseURL
	}
	if user, _, hasPass := strings.Cut(creds, ":"); hasPass {
		return scheme + "://" + user + ":***@" + host
	}
	return databaseURL
}
