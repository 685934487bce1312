package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"teamledger/internal/cache"
	"teamledger/internal/core"
	"teamledger/internal/log"
	"teamledger/internal/ports"
)

// EventPublisher announces stored operations. Implemented by amqp.Client.
type EventPublisher interface {
	PublishOperationCreated(ctx context.Context, op core.Operation) error
	Close() error
}

// Options tunes the dashboard cache. A zero CacheTTL, the default, disables
// caching; the cache only sees writes made through the same service.
type Options struct {
	CacheTTL  time.Duration
	CacheSize int
}

// OperationService orchestrates writes, event publishing and the dashboard
// cache on top of a record store.
type OperationService struct {
	store     ports.Store
	publisher EventPublisher
	logger    *log.Logger
	events    *log.StructuredLogger

	dashboards *cache.LRUCache[core.Dashboard]
	group      singleflight.Group

	// generation is bumped on every write so that a summary computed before
	// the write is never shared with or cached for later requests.
	mu         sync.Mutex
	generation uint64
}

var _ ports.OperationWriter = (*OperationService)(nil)

func NewOperationService(store ports.Store, publisher EventPublisher, opts Options, logger *log.Logger) *OperationService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	s := &OperationService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentOperation),
		events:    log.NewStructuredLogger(logger),
	}
	if opts.CacheTTL > 0 {
		size := opts.CacheSize
		if size <= 0 {
			size = 128
		}
		s.dashboards = cache.NewLRUCache[core.Dashboard](size, opts.CacheTTL)
	}
	return s
}

// Cache exposes the dashboard cache for periodic cleanup; nil when disabled.
func (s *OperationService) Cache() cache.Cleaner {
	if s.dashboards == nil {
		return nil
	}
	return s.dashboards
}

// CreateOperation stores op, invalidates cached dashboards and publishes an
// event. Publish failures are logged only.
func (s *OperationService) CreateOperation(ctx context.Context, op core.Operation) (core.Operation, error) {
	if err := op.Validate(); err != nil {
		return core.Operation{}, err
	}

	created, err := s.store.CreateOperation(ctx, op)
	if err != nil {
		return core.Operation{}, fmt.Errorf("save operation: %w", err)
	}
	s.invalidate()

	s.events.LogOperationCreated(ctx, created.ID, created.InvoiceNumber, created.TeamName())

	if s.publisher != nil {
		if err := s.publisher.PublishOperationCreated(ctx, created); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish operation event",
				log.FieldOperationID, created.ID,
				log.FieldOperation, log.OpPublish,
				log.FieldError, err.Error())
		}
	}
	return created, nil
}

// ListOperations returns every operation, newest first.
func (s *OperationService) ListOperations(ctx context.Context) ([]core.Operation, error) {
	ops, err := s.store.ListOperations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	if ops == nil {
		ops = []core.Operation{}
	}
	return ops, nil
}

// ListTeams returns the distinct team names.
func (s *OperationService) ListTeams(ctx context.Context) ([]string, error) {
	teams, err := s.store.ListTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	if teams == nil {
		teams = []string{}
	}
	return teams, nil
}

// Dashboard summarizes the operations inside p. Concurrent requests for the
// same period share one store query; results are cached only when a cache TTL
// is configured.
func (s *OperationService) Dashboard(ctx context.Context, p core.Period) (core.Dashboard, error) {
	key := p.Key()
	if s.dashboards != nil {
		if d, ok := s.dashboards.Get(key); ok {
			return d, nil
		}
	}

	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	v, err, _ := s.group.Do(strconv.FormatUint(gen, 10)+"|"+key, func() (any, error) {
		d, err := s.summarize(context.WithoutCancel(ctx), p)
		if err != nil {
			return nil, err
		}
		if s.dashboards != nil {
			s.mu.Lock()
			if s.generation == gen {
				s.dashboards.Set(key, d)
			}
			s.mu.Unlock()
		}
		return d, nil
	})
	if err != nil {
		return core.Dashboard{}, err
	}
	return v.(core.Dashboard), nil
}

func (s *OperationService) summarize(ctx context.Context, p core.Period) (core.Dashboard, error) {
	label := p.Label()
	s.logger.DebugContext(ctx, "Summarizing operations",
		log.NewFields().WithPeriod(label.Start, label.End).WithOperation(log.OpSummarize).ToSlice()...)

	d, err := s.store.Summarize(ctx, p)
	if err != nil {
		return core.Dashboard{}, fmt.Errorf("summarize operations: %w", err)
	}
	if d.Teams == nil {
		d.Teams = []core.TeamStats{}
	}
	return d, nil
}

func (s *OperationService) invalidate() {
	s.mu.Lock()
	s.generation++
	if s.dashboards != nil {
		s.dashboards.Purge()
	}
	s.mu.Unlock()
}

// Ping reports whether the record store is reachable.
func (s *OperationService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Close closes both the store and the publisher.
func (s *OperationService) Close() error {
	var errs []error

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	return errors.Join(errs...)
}
