package cache

import (
	"fmt"

	"github.com/trezcool/registrar/core"
)

// cache namespaces
const (
	Faculties     = "faculties"
	Departments   = "departments"
	AcademicYears = "academic-years"
	Students      = "students"
	StudentDetail = "student-detail"
	Verification  = "verification"
	Documents     = "documents"
	AuditLogs     = "audit-logs"
)

// Entity is a kind of record whose mutation invalidates cached data.
type Entity string

const (
	EntityFaculty      Entity = "faculty"
	EntityDepartment   Entity = "department"
	EntityAcademicYear Entity = "academic-year"
	EntityStudent      Entity = "student"
	EntityDocument     Entity = "document"
	EntityAudit        Entity = "audit"
)

// Rule names a namespace to invalidate. ByKey rules only drop the keys given to Mutated
// (the whole namespace when none is given).
type Rule struct {
	Namespace string
	ByKey     bool
}

type Dependencies map[Entity][]Rule

// DefaultDependencies maps every mutable entity to the namespaces whose cached data can embed it.
// Student and document keys are student IDs.
func DefaultDependencies() Dependencies {
	return Dependencies{
		EntityFaculty: {
			{Namespace: Faculties},
			{Namespace: Departments},
			{Namespace: Students},
			{Namespace: StudentDetail},
			{Namespace: Verification},
		},
		EntityDepartment: {
			{Namespace: Departments},
			{Namespace: Students},
			{Namespace: StudentDetail},
			{Namespace: Verification},
		},
		EntityAcademicYear: {
			{Namespace: AcademicYears},
			{Namespace: Students},
			{Namespace: StudentDetail},
			{Namespace: Verification},
		},
		EntityStudent: {
			{Namespace: Students},
			{Namespace: StudentDetail, ByKey: true},
			{Namespace: Documents, ByKey: true},
			{Namespace: Verification},
		},
		EntityDocument: {
			{Namespace: Documents, ByKey: true},
			{Namespace: StudentDetail, ByKey: true},
		},
		EntityAudit: {
			{Namespace: AuditLogs},
		},
	}
}

// Target is anything holding namespaced entries.
type Target interface {
	Invalidate(ns string, keys ...string)
}

type Invalidator struct {
	target Target
	deps   Dependencies
	logger core.Logger
}

func NewInvalidator(target Target, deps Dependencies, logger core.Logger) *Invalidator {
	if deps == nil {
		deps = DefaultDependencies()
	}
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Invalidator{target: target, deps: deps, logger: logger}
}

// Mutated drops every cached entry depending on entity. It never fails: problems are logged.
func (inv *Invalidator) Mutated(entity Entity, keys ...string) {
	if inv == nil || inv.target == nil {
		return
	}
	rules, ok := inv.deps[entity]
	if !ok {
		inv.logger.Warn(fmt.Sprintf("cache: no invalidation rule for entity %q", entity))
		return
	}
	for _, rule := range rules {
		inv.apply(entity, rule, keys)
	}
}

func (inv *Invalidator) apply(entity Entity, rule Rule, keys []string) {
	defer func() {
		if rec := recover(); rec != nil {
			inv.logger.Error(fmt.Sprintf("cache: invalidating %s after %s mutation: %v", rule.Namespace, entity, rec))
		}
	}()
	if rule.ByKey && len(keys) > 0 {
		inv.target.Invalidate(rule.Namespace, keys...)
		return
	}
	inv.target.Invalidate(rule.Namespace)
}

// Namespaces lists the namespaces a mutation of entity touches.
func (deps Dependencies) Namespaces(entity Entity) []string {
	rules := deps[entity]
	names := make([]string, 0, len(rules))
	for _, rule := range rules {
		names = append(names, rule.Namespace)
	}
	return names
}
