package sqlxrepos

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/registrar/core/audit"
)

type auditRepository struct {
	db *sqlx.DB
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db *sqlx.DB) *auditRepository {
	return &auditRepository{db: db}
}

// auditRow is the storage shape of an audit.Entry; details are kept as jsonb.
type auditRow struct {
	ID        string    `db:"id"`
	Actor     string    `db:"actor"`
	Action    string    `db:"action"`
	Entity    string    `db:"entity"`
	EntityID  string    `db:"entity_id"`
	Details   []byte    `db:"details"`
	CreatedAt time.Time `db:"created_at"`
}

func (repo *auditRepository) CreateEntry(ctx context.Context, e audit.Entry) (audit.Entry, error) {
	row := auditRow{
		ID:        e.ID,
		Actor:     e.Actor,
		Action:    e.Action,
		Entity:    e.Entity,
		EntityID:  e.EntityID,
		CreatedAt: e.CreatedAt,
	}
	if len(e.Details) > 0 {
		details, err := json.Marshal(e.Details)
		if err != nil {
			return audit.Entry{}, errors.Wrap(err, "encoding audit details")
		}
		row.Details = details
	}

	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO audit_logs (id, actor, action, entity, entity_id, details, created_at)
		VALUES (:id, :actor, :action, :entity, :entity_id, :details, :created_at)`, row)
	if err != nil {
		return audit.Entry{}, errors.Wrap(err, "inserting audit entry")
	}
	return e, nil
}

func (repo *auditRepository) QueryEntries(ctx context.Context, filter audit.QueryFilter) ([]audit.Entry, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, cond+" $"+strconv.Itoa(len(args)))
	}
	if filter.Entity != "" {
		add("entity =", filter.Entity)
	}
	if filter.EntityID != "" {
		add("entity_id =", filter.EntityID)
	}
	if filter.Actor != "" {
		add("actor =", filter.Actor)
	}
	if filter.Action != "" {
		add("action =", filter.Action)
	}
	if !filter.From.IsZero() {
		add("created_at >=", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at <=", filter.To)
	}

	query := `SELECT * FROM audit_logs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	var rows []auditRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting audit entries")
	}

	entries := make([]audit.Entry, 0, len(rows))
	for _, row := range rows {
		e := audit.Entry{
			ID:        row.ID,
			Actor:     row.Actor,
			Action:    row.Action,
			Entity:    row.Entity,
			EntityID:  row.EntityID,
			CreatedAt: row.CreatedAt.UTC(),
		}
		if len(row.Details) > 0 {
			if err := json.Unmarshal(row.Details, &e.Details); err != nil {
				return nil, errors.Wrap(err, "decoding audit details")
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}
