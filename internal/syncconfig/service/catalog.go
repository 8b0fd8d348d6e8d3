// Package service provides the cached, read-through view of sync configuration used on the
// capture and delivery paths.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	outboxDomain "github.com/allisson/marketsync/internal/outbox/domain"
	"github.com/allisson/marketsync/internal/syncconfig/domain"
)

// ConfigRepository is the read side of sync configuration persistence.
type ConfigRepository interface {
	ListPolicies(ctx context.Context) ([]*domain.SyncPolicy, error)
	ListMappings(ctx context.Context) ([]domain.FieldMapping, error)
}

type policyKey struct {
	table string
	op    outboxDomain.Operation
}

type snapshot struct {
	loadedAt time.Time
	policies map[policyKey]bool
	sets     map[string]*domain.MappingSet
	invalid  map[string]error
}

// Catalog caches sync policies and mapping sets and reloads them once the TTL expires.
// Mapping sets that fail validation are rejected at load time and reported on every lookup.
type Catalog struct {
	repo   ConfigRepository
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	current *snapshot
	group   singleflight.Group
}

// NewCatalog creates a Catalog. A non-positive ttl reloads on every lookup.
func NewCatalog(repo ConfigRepository, ttl time.Duration, logger *slog.Logger) *Catalog {
	return &Catalog{
		repo:   repo,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// IsEnabled reports whether captures of op on sourceTable are mirrored.
// A missing policy returns domain.ErrPolicyNotFound.
func (c *Catalog) IsEnabled(ctx context.Context, sourceTable string, op outboxDomain.Operation) (bool, error) {
	snap, err := c.snapshot(ctx)
	if err != nil {
		return false, err
	}

	enabled, ok := snap.policies[policyKey{table: sourceTable, op: op}]
	if !ok {
		return false, fmt.Errorf("%w: %s %s", domain.ErrPolicyNotFound, sourceTable, op)
	}
	return enabled, nil
}

// MappingSet returns the validated mapping set of sourceTable.
func (c *Catalog) MappingSet(ctx context.Context, sourceTable string) (*domain.MappingSet, error) {
	snap, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	if err, bad := snap.invalid[sourceTable]; bad {
		return nil, err
	}
	set, ok := snap.sets[sourceTable]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrMappingSetNotFound, sourceTable)
	}
	return set, nil
}

// Invalidate forces the next lookup to reload from the repository.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

func (c *Catalog) snapshot(ctx context.Context) (*snapshot, error) {
	c.mu.RLock()
	snap := c.current
	c.mu.RUnlock()

	if snap != nil && c.now().Sub(snap.loadedAt) < c.ttl {
		return snap, nil
	}

	v, err, _ := c.group.Do("load", func() (any, error) {
		return c.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*snapshot), nil
}

func (c *Catalog) load(ctx context.Context) (*snapshot, error) {
	policies, err := c.repo.ListPolicies(ctx)
	if err != nil {
		return nil, err
	}
	mappings, err := c.repo.ListMappings(ctx)
	if err != nil {
		return nil, err
	}

	snap := &snapshot{
		loadedAt: c.now(),
		policies: make(map[policyKey]bool, len(policies)),
		sets:     make(map[string]*domain.MappingSet),
		invalid:  make(map[string]error),
	}

	for _, p := range policies {
		snap.policies[policyKey{table: p.SourceTable, op: p.Operation}] = p.Enabled
	}

	byTable := make(map[string][]domain.FieldMapping)
	for _, m := range mappings {
		byTable[m.SourceTable] = append(byTable[m.SourceTable], m)
	}
	for table, rows := range byTable {
		set, err := domain.NewMappingSet(table, rows)
		if err != nil {
			snap.invalid[table] = err
			if c.logger != nil {
				c.logger.Error("rejected field mapping set",
					slog.String("source_table", table),
					slog.Any("error", err),
				)
			}
			continue
		}
		snap.sets[table] = set
	}

	c.mu.Lock()
	c.current = snap
	c.mu.Unlock()

	return snap, nil
}
