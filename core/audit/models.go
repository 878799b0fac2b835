package audit

import (
	"net/url"
	"strconv"
	"time"

	"github.com/trezcool/registrar/core"
)

// Actions
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionImport = "import"
	ActionUpload = "upload"
)

// Entities
const (
	EntityFaculty      = "faculty"
	EntityDepartment   = "department"
	EntityAcademicYear = "academic-year"
	EntityStudent      = "student"
	EntityDocument     = "document"
	EntityImport       = "import"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

type Entry struct {
	ID        string                 `json:"id"`
	Actor     string                 `json:"actor"`
	Action    string                 `json:"action"`
	Entity    string                 `json:"entity"`
	EntityID  string                 `json:"entity_id"`
	Details   map[string]interface{} `json:"details,omitempty"`
	CreatedAt time.Time              `json:"created_at"` // UTC
}

// NewEntry is what services hand to Record; the actor comes from the context.
type NewEntry struct {
	Action   string
	Entity   string
	EntityID string
	Details  map[string]interface{}
}

type QueryFilter struct {
	Entity   string    `query:"entity"`
	EntityID string    `query:"entity_id"`
	Actor    string    `query:"actor"`
	Action   string    `query:"action"`
	From     time.Time `query:"from"`
	To       time.Time `query:"to"`
	Limit    int       `query:"limit"`
}

func (qf *QueryFilter) Clean() {
	qf.Entity = core.CleanString(qf.Entity, true /* lower */)
	qf.EntityID = core.CleanString(qf.EntityID)
	qf.Actor = core.CleanString(qf.Actor)
	qf.Action = core.CleanString(qf.Action, true /* lower */)
	if qf.Limit <= 0 {
		qf.Limit = DefaultLimit
	} else if qf.Limit > MaxLimit {
		qf.Limit = MaxLimit
	}
}

// Key is a stable cache key for the filter.
func (qf QueryFilter) Key() string {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("entity", qf.Entity)
	set("entity_id", qf.EntityID)
	set("actor", qf.Actor)
	set("action", qf.Action)
	if !qf.From.IsZero() {
		v.Set("from", qf.From.UTC().Format(time.RFC3339))
	}
	if !qf.To.IsZero() {
		v.Set("to", qf.To.UTC().Format(time.RFC3339))
	}
	v.Set("limit", strconv.Itoa(qf.Limit))
	return v.Encode()
}

// Matches reports whether e passes the filter (Limit aside).
func (qf QueryFilter) Matches(e Entry) bool {
	if qf.Entity != "" && e.Entity != qf.Entity {
		return false
	}
	if qf.EntityID != "" && e.EntityID != qf.EntityID {
		return false
	}
	if qf.Actor != "" && e.Actor != qf.Actor {
		return false
	}
	if qf.Action != "" && e.Action != qf.Action {
		return false
	}
	if !qf.From.IsZero() && e.CreatedAt.Before(qf.From) {
		return false
	}
	if !qf.To.IsZero() && e.CreatedAt.After(qf.To) {
		return false
	}
	return true
}
