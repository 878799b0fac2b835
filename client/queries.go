package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/trezcool/registrar/core/academic"
	"github.com/trezcool/registrar/core/audit"
	"github.com/trezcool/registrar/core/cache"
	"github.com/trezcool/registrar/core/document"
	"github.com/trezcool/registrar/core/student"
	"github.com/trezcool/registrar/core/verification"
)

func getJSON[V any](ctx context.Context, c *Client, path string, query url.Values) (V, error) {
	var v V
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return v, err
	}
	_, err = c.do(req, &v, http.StatusOK)
	return v, err
}

// cachedGet serves path from rv, keyed by path and query.
func cachedGet[V any](ctx context.Context, c *Client, rv *cache.Revalidating[V], path string, query url.Values) (V, error) {
	key := path
	if len(query) > 0 {
		key += "?" + query.Encode()
	}
	return rv.Get(ctx, key, func(ctx context.Context) (V, error) {
		return getJSON[V](ctx, c, path, query)
	})
}

func (c *Client) ListFaculties(ctx context.Context) ([]academic.Faculty, error) {
	return cachedGet(ctx, c, c.faculties, facultiesPath, nil)
}

// ListDepartments lists every department, or those of a faculty when facultyID is not empty.
func (c *Client) ListDepartments(ctx context.Context, facultyID string) ([]academic.Department, error) {
	var query url.Values
	if facultyID != "" {
		query = url.Values{"faculty_id": {facultyID}}
	}
	return cachedGet(ctx, c, c.departments, departmentsPath, query)
}

func (c *Client) ListAcademicYears(ctx context.Context) ([]academic.AcademicYear, error) {
	return cachedGet(ctx, c, c.academicYears, academicYearsPath, nil)
}

func (c *Client) StudentDetail(ctx context.Context, id string) (student.Detail, error) {
	return cachedGet(ctx, c, c.details, studentPath(id), nil)
}

func (c *Client) StudentDocuments(ctx context.Context, id string) ([]document.Document, error) {
	return cachedGet(ctx, c, c.documents, studentDocumentsPath(id), nil)
}

// Identities lists the registration & certificate IDs of every student.
func (c *Client) Identities(ctx context.Context) ([]student.Identity, error) {
	return cachedGet(ctx, c, c.identities, identitiesPath, nil)
}

func studentQuery(filter student.QueryFilter, ordering []string) url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("search", filter.Search)
	set("department_id", filter.DepartmentID)
	set("faculty_id", filter.FacultyID)
	set("academic_year_id", filter.AcademicYearID)
	set("status", string(filter.Status))
	set("ordering", strings.Join(ordering, ","))
	return q
}

// SearchStudents queries students. Starting a search cancels the previous one still in flight,
// which then returns ErrSuperseded: a late response never replaces a newer one.
// ordering fields are prefixed with "-" for descending order.
func (c *Client) SearchStudents(ctx context.Context, filter student.QueryFilter, ordering ...string) ([]student.Student, error) {
	var students []student.Student
	err := c.search.Do(ctx, func(ctx context.Context) error {
		var err error
		students, err = getJSON[[]student.Student](ctx, c, studentsPath, studentQuery(filter, ordering))
		return err
	})
	if err != nil {
		return nil, err
	}
	return students, nil
}

// Verify is the public certificate check. Never cached here: the server caches it.
func (c *Client) Verify(ctx context.Context, certificateID string) (verification.Result, error) {
	return getJSON[verification.Result](ctx, c, verifyPath+"/"+url.PathEscape(certificateID), nil)
}

func (c *Client) AuditLogs(ctx context.Context, filter audit.QueryFilter) ([]audit.Entry, error) {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("entity", filter.Entity)
	set("entity_id", filter.EntityID)
	set("actor", filter.Actor)
	set("action", filter.Action)
	if !filter.From.IsZero() {
		q.Set("from", filter.From.Format(time.RFC3339))
	}
	if !filter.To.IsZero() {
		q.Set("to", filter.To.Format(time.RFC3339))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	return getJSON[[]audit.Entry](ctx, c, auditLogsPath, q)
}

// CacheStats returns the server cache stats of every namespace, or only of ns when given.
func (c *Client) CacheStats(ctx context.Context, ns string) ([]cache.Stats, error) {
	if ns == "" {
		return getJSON[[]cache.Stats](ctx, c, cachePath+"/stats", nil)
	}
	stats, err := getJSON[cache.Stats](ctx, c, cachePath+"/"+url.PathEscape(ns)+"/stats", nil)
	if err != nil {
		return nil, err
	}
	return []cache.Stats{stats}, nil
}
