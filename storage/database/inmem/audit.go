package inmemdb

import (
	"context"
	"maps"

	"github.com/trezcool/registrar/core/audit"
)

type auditRepository struct {
	db *DB
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db *DB) audit.Repository {
	return &auditRepository{db: db}
}

func (repo *auditRepository) CreateEntry(_ context.Context, e audit.Entry) (audit.Entry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	e.Details = maps.Clone(e.Details)
	repo.db.auditLogs = append(repo.db.auditLogs, e)
	return e, nil
}

// QueryEntries walks the log backwards: entries are appended in creation order.
func (repo *auditRepository) QueryEntries(_ context.Context, filter audit.QueryFilter) ([]audit.Entry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	entries := make([]audit.Entry, 0)
	for i := len(repo.db.auditLogs) - 1; i >= 0; i-- {
		if filter.Limit > 0 && len(entries) >= filter.Limit {
			break
		}
		if e := repo.db.auditLogs[i]; filter.Matches(e) {
			entries = append(entries, e)
		}
	}
	return entries, nil
}
