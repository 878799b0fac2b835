package importer

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/registrar/core/academic"
)

// minSimilarity is the difflib ratio above which an unknown reference gets a suggestion.
const minSimilarity = .6

// references resolves the department, faculty & academic year columns of a row.
type references struct {
	departments []academic.Department
	faculties   map[string]academic.Faculty
	years       []academic.AcademicYear
	current     *academic.AcademicYear
}

func newReferences(depts []academic.Department, faculties []academic.Faculty, years []academic.AcademicYear) references {
	refs := references{
		departments: depts,
		faculties:   make(map[string]academic.Faculty, len(faculties)),
		years:       years,
	}
	for _, f := range faculties {
		refs.faculties[f.ID] = f
	}
	for i := range years {
		if years[i].IsCurrent {
			refs.current = &years[i]
			break
		}
	}
	return refs
}

func (refs references) department(ref string) (academic.Department, bool) {
	return academic.MatchDepartment(refs.departments, ref)
}

// year resolves an academic year by label or start year; an empty ref is the current year.
func (refs references) year(ref string) (academic.AcademicYear, bool) {
	if ref == "" {
		if refs.current == nil {
			return academic.AcademicYear{}, false
		}
		return *refs.current, true
	}
	return academic.MatchAcademicYear(refs.years, ref)
}

func (refs references) check(row Row) []RowError {
	var errs []RowError
	add := func(field, msg string) {
		errs = append(errs, RowError{Line: row.Line, RegistrationID: row.RegistrationID, Field: field, Message: msg})
	}

	if row.Department != "" {
		dept, ok := refs.department(row.Department)
		if !ok {
			candidates := make([]string, 0, 2*len(refs.departments))
			for _, d := range refs.departments {
				candidates = append(candidates, d.Code, d.Name)
			}
			add(colDepartment, unknownRef("department", row.Department, candidates))
		} else if row.Faculty != "" {
			fac := refs.faculties[dept.FacultyID]
			if !strings.EqualFold(fac.Code, row.Faculty) && !strings.EqualFold(fac.Name, row.Faculty) {
				add(colFaculty, fmt.Sprintf("department %s belongs to faculty %s, not %q", dept.Code, fac.Name, row.Faculty))
			}
		}
	}

	if _, ok := refs.year(row.AcademicYear); !ok {
		if row.AcademicYear == "" {
			add(colAcademicYear, "academic year is required when no academic year is current")
		} else {
			candidates := make([]string, 0, len(refs.years))
			for _, y := range refs.years {
				candidates = append(candidates, y.Label)
			}
			add(colAcademicYear, unknownRef("academic year", row.AcademicYear, candidates))
		}
	}
	return errs
}

func unknownRef(kind, ref string, candidates []string) string {
	msg := fmt.Sprintf("unknown %s %q", kind, ref)
	if s := suggest(ref, candidates); s != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", s)
	}
	return msg
}

// suggest returns the candidate closest to ref, if close enough.
func suggest(ref string, candidates []string) string {
	split := func(s string) []string { return strings.Split(strings.ToLower(s), "") }

	var (
		best      string
		bestRatio float64
	)
	for _, c := range candidates {
		if c == "" {
			continue
		}
		ratio := difflib.NewMatcher(split(ref), split(c)).Ratio()
		if ratio > bestRatio {
			best, bestRatio = c, ratio
		}
	}
	if bestRatio < minSimilarity {
		return ""
	}
	return best
}
