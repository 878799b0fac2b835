package importer

import (
	"fmt"
	"math"
	"strings"

	"github.com/trezcool/registrar/core"
	"github.com/trezcool/registrar/core/student"
)

type DuplicateKind string

const (
	// DuplicateExisting rows clash with a persisted student.
	DuplicateExisting DuplicateKind = "existing"
	// DuplicateBatch rows repeat an earlier row of the same file.
	DuplicateBatch DuplicateKind = "batch"
)

type RowError struct {
	Line           int    `json:"line"`
	RegistrationID string `json:"registration_id,omitempty"`
	Field          string `json:"field"`
	Message        string `json:"message"`
}

type Duplicate struct {
	Row       Row           `json:"row"`
	Kind      DuplicateKind `json:"kind"`
	Field     string        `json:"field"`                // registration_id or certificate_id
	FirstLine int           `json:"first_line,omitempty"` // DuplicateBatch only
}

// Check adds validation to Reconcile, e.g. resolving references.
type Check func(row Row) []RowError

// Result classifies every row exactly once: valid, duplicate or invalid.
type Result struct {
	Total      int         `json:"total"`
	Valid      []Row       `json:"valid"`
	Duplicates []Duplicate `json:"duplicates"`
	Errors     []RowError  `json:"errors"`
	Invalid    int         `json:"invalid"` // number of rows with at least one error
}

type Summary struct {
	Total      int `json:"total"`
	Valid      int `json:"valid"`
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
}

func (res Result) Summary() Summary {
	return Summary{
		Total:      res.Total,
		Valid:      len(res.Valid),
		Duplicates: len(res.Duplicates),
		Invalid:    res.Invalid,
	}
}

// Reconcile validates rows and sorts out the duplicates, against existing students and within the batch.
// A row is checked for errors first; only error free rows can be duplicates. Within the batch the first
// valid occurrence of a registration (or certificate) ID wins.
func Reconcile(rows []Row, existing []student.Identity, checks ...Check) Result {
	existingRegIDs := make(map[string]struct{}, len(existing))
	existingCertIDs := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		existingRegIDs[core.CleanRegistrationID(id.RegistrationID)] = struct{}{}
		if id.CertificateID != "" {
			existingCertIDs[strings.ToUpper(core.CleanString(id.CertificateID))] = struct{}{}
		}
	}
	seenRegIDs := make(map[string]int)
	seenCertIDs := make(map[string]int)

	res := Result{
		Total:      len(rows),
		Valid:      []Row{},
		Duplicates: []Duplicate{},
		Errors:     []RowError{},
	}
	for _, row := range rows {
		row.normalize()

		errs := validateRow(row)
		for _, check := range checks {
			errs = append(errs, check(row)...)
		}
		if len(errs) > 0 {
			res.Errors = append(res.Errors, errs...)
			res.Invalid++
			continue
		}

		if _, ok := existingRegIDs[row.RegistrationID]; ok {
			res.Duplicates = append(res.Duplicates, Duplicate{Row: row, Kind: DuplicateExisting, Field: colRegistrationID})
			continue
		}
		if _, ok := existingCertIDs[row.CertificateID]; ok && row.CertificateID != "" {
			res.Duplicates = append(res.Duplicates, Duplicate{Row: row, Kind: DuplicateExisting, Field: colCertificateID})
			continue
		}
		if first, ok := seenRegIDs[row.RegistrationID]; ok {
			res.Duplicates = append(res.Duplicates, Duplicate{
				Row: row, Kind: DuplicateBatch, Field: colRegistrationID, FirstLine: first,
			})
			continue
		}
		if first, ok := seenCertIDs[row.CertificateID]; ok && row.CertificateID != "" {
			res.Duplicates = append(res.Duplicates, Duplicate{
				Row: row, Kind: DuplicateBatch, Field: colCertificateID, FirstLine: first,
			})
			continue
		}

		seenRegIDs[row.RegistrationID] = row.Line
		if row.CertificateID != "" {
			seenCertIDs[row.CertificateID] = row.Line
		}
		res.Valid = append(res.Valid, row)
	}
	return res
}

func validateRow(row Row) []RowError {
	var errs []RowError
	add := func(field, msg string) {
		errs = append(errs, RowError{Line: row.Line, RegistrationID: row.RegistrationID, Field: field, Message: msg})
	}

	switch {
	case row.RegistrationID == "":
		add(colRegistrationID, "registration id is required")
	case !core.IsRegistrationID(row.RegistrationID):
		add(colRegistrationID, fmt.Sprintf("registration id %q must look like GRW-<DEPT>-<YEAR>", row.RegistrationID))
	}
	if row.FullName == "" {
		add(colFullName, "full name is required")
	}
	if row.Department == "" {
		add(colDepartment, "department is required")
	}
	if gpa, err := row.GPAValue(); err != nil {
		add(colGPA, fmt.Sprintf("gpa %q is not a number", row.GPA))
	} else if math.IsNaN(gpa) || gpa < 0 || gpa > 4 {
		add(colGPA, fmt.Sprintf("gpa %v must be between 0 and 4", gpa))
	}
	if _, ok := student.ParseStatus(row.Status); !ok {
		add(colStatus, fmt.Sprintf("unknown status %q", row.Status))
	}
	return errs
}
