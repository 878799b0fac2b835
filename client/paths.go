package client

import (
	"net/url"

	"github.com/trezcool/registrar/core/cache"
)

const (
	facultiesPath     = "/api/faculties"
	departmentsPath   = "/api/departments"
	academicYearsPath = "/api/academic-years"
	studentsPath      = "/api/students"
	identitiesPath    = "/api/students/identities"
	documentsPath     = "/api/documents"
	importsPath       = "/api/imports"
	verifyPath        = "/api/verify"
	auditLogsPath     = "/api/audit-logs"
	cachePath         = "/api/cache"
)

func studentPath(id string) string {
	return studentsPath + "/" + url.PathEscape(id)
}

func studentDocumentsPath(id string) string {
	return studentPath(id) + "/documents"
}

// pathTarget keys the client cache by request path. Invalidation keys are entity IDs, turned into
// the paths they are cached under.
type pathTarget struct {
	reg *cache.Registry
}

func (t pathTarget) Invalidate(ns string, keys ...string) {
	if len(keys) == 0 {
		t.reg.Invalidate(ns)
		return
	}
	paths := make([]string, 0, len(keys))
	for _, key := range keys {
		switch ns {
		case cache.StudentDetail:
			paths = append(paths, studentPath(key))
		case cache.Documents:
			paths = append(paths, studentDocumentsPath(key))
		default:
			paths = append(paths, key)
		}
	}
	t.reg.Invalidate(ns, paths...)
}
