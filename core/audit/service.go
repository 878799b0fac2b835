package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/registrar/core"
	"github.com/trezcool/registrar/core/cache"
)

type (
	Repository interface {
		CreateEntry(ctx context.Context, e Entry) (Entry, error)
		// QueryEntries returns the entries matching filter, newest first, at most filter.Limit of them.
		QueryEntries(ctx context.Context, filter QueryFilter) ([]Entry, error)
	}

	// Recorder is what mutating services depend on.
	Recorder interface {
		Record(ctx context.Context, ne NewEntry)
	}

	Service struct {
		repo        Repository
		logs        *cache.Namespace[[]Entry]
		invalidator *cache.Invalidator
		logger      core.Logger
	}
)

var _ Recorder = (*Service)(nil)

func NewService(repo Repository, reg *cache.Registry, ttl time.Duration, inv *cache.Invalidator, logger core.Logger) *Service {
	return &Service{
		repo:        repo,
		logs:        cache.NewNamespace[[]Entry](reg, cache.AuditLogs, ttl),
		invalidator: inv,
		logger:      logger,
	}
}

// Record stores an audit entry. Failures are logged and never reach the caller.
func (svc *Service) Record(ctx context.Context, ne NewEntry) {
	actor := core.ActorFromContext(ctx)
	e := Entry{
		ID:        uuid.NewString(),
		Actor:     actor.ID,
		Action:    ne.Action,
		Entity:    ne.Entity,
		EntityID:  ne.EntityID,
		Details:   ne.Details,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := svc.repo.CreateEntry(ctx, e); err != nil {
		msg := fmt.Sprintf("audit: recording %s %s %s", e.Action, e.Entity, e.EntityID)
		svc.logger.Error(msg, errors.Wrap(err, msg), actor)
		return
	}
	svc.invalidator.Mutated(cache.EntityAudit, e.EntityID)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	filter.Clean()
	return svc.logs.GetOrLoad(ctx, filter.Key(), func(ctx context.Context) ([]Entry, error) {
		entries, err := svc.repo.QueryEntries(ctx, filter)
		if err != nil {
			return nil, errors.Wrap(err, "querying audit entries")
		}
		if entries == nil {
			entries = []Entry{}
		}
		return entries, nil
	})
}
