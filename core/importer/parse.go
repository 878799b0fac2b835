// Package importer turns spreadsheets and ZIP archives into students and documents.
//
// Nothing in this package writes anything until Service.CommitStudents (confirmed) or
// Service.ImportDocuments is called: parsing, reconciliation, organizing and planning are pure.
package importer

import (
	"bytes"
	"encoding/csv"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/registrar/core"
)

var (
	ErrEmptyFile          = errors.New("import file is empty")
	ErrUnreadableEncoding = errors.New("import file is not readable UTF-8 text")
	ErrUnreadableFile     = errors.New("import file could not be read")
	ErrUnsupportedFormat  = errors.New("unsupported import file format (expected .csv or .xlsx)")
)

// columns
const (
	colRegistrationID = "registration_id"
	colCertificateID  = "certificate_id"
	colFullName       = "full_name"
	colDepartment     = "department"
	colFaculty        = "faculty"
	colAcademicYear   = "academic_year"
	colGPA            = "gpa"
	colGrade          = "grade"
	colStatus         = "status"
)

var (
	requiredColumns = []string{colRegistrationID, colFullName, colDepartment}

	columnAliases = map[string]string{
		"registration_id":     colRegistrationID,
		"registrationid":      colRegistrationID,
		"registration_no":     colRegistrationID,
		"registration_number": colRegistrationID,
		"reg_id":              colRegistrationID,
		"reg_no":              colRegistrationID,
		"regid":               colRegistrationID,
		"certificate_id":      colCertificateID,
		"certificateid":       colCertificateID,
		"certificate_no":      colCertificateID,
		"certificate_number":  colCertificateID,
		"cert_id":             colCertificateID,
		"full_name":           colFullName,
		"fullname":            colFullName,
		"name":                colFullName,
		"student_name":        colFullName,
		"department":          colDepartment,
		"dept":                colDepartment,
		"department_code":     colDepartment,
		"department_name":     colDepartment,
		"faculty":             colFaculty,
		"faculty_code":        colFaculty,
		"faculty_name":        colFaculty,
		"academic_year":       colAcademicYear,
		"academicyear":        colAcademicYear,
		"year":                colAcademicYear,
		"session":             colAcademicYear,
		"gpa":                 colGPA,
		"cgpa":                colGPA,
		"grade":               colGrade,
		"class":               colGrade,
		"classification":      colGrade,
		"status":              colStatus,
	}
)

// MissingColumnsError rejects a whole file before any row is looked at.
type MissingColumnsError struct {
	Columns []string
}

func (err *MissingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(err.Columns, ", ")
}

// Row is one parsed spreadsheet row. Line is the 1-based line (or sheet row) it came from.
type Row struct {
	Line           int    `json:"line"`
	RegistrationID string `json:"registration_id"`
	CertificateID  string `json:"certificate_id,omitempty"`
	FullName       string `json:"full_name"`
	Department     string `json:"department"`
	Faculty        string `json:"faculty,omitempty"`
	AcademicYear   string `json:"academic_year,omitempty"`
	GPA            string `json:"gpa,omitempty"`
	Grade          string `json:"grade,omitempty"`
	Status         string `json:"status,omitempty"`
}

func (r *Row) normalize() {
	r.RegistrationID = core.CleanRegistrationID(r.RegistrationID)
	r.CertificateID = strings.ToUpper(core.CleanString(r.CertificateID))
	r.FullName = core.CleanString(r.FullName)
	r.Department = core.CleanString(r.Department)
	r.Faculty = core.CleanString(r.Faculty)
	r.AcademicYear = core.CleanString(r.AcademicYear)
	r.GPA = core.CleanString(r.GPA)
	r.Grade = core.CleanString(r.Grade)
	r.Status = core.CleanString(r.Status, true /* lower */)
}

// GPAValue parses the GPA column; an empty GPA is 0.
func (r Row) GPAValue() (float64, error) {
	if r.GPA == "" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.ReplaceAll(r.GPA, ",", "."), 64)
}

type record struct {
	line  int
	cells []string
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer(" ", "_", "-", "_", ".", "").Replace(h)
	return h
}

// Parse picks the parser from the file extension.
func Parse(filename string, r io.Reader) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return ParseCSV(r)
	case ".xlsx", ".xlsm":
		return ParseXLSX(r)
	default:
		return nil, ErrUnsupportedFormat
	}
}

func ParseCSV(r io.Reader) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading csv")
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return nil, ErrUnreadableEncoding
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var records []record
	for {
		cells, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(ErrUnreadableFile, err.Error())
		}
		line, _ := cr.FieldPos(0)
		records = append(records, record{line: line, cells: cells})
	}
	return fromRecords(records)
}

func ParseXLSX(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(ErrUnreadableFile, err.Error())
	}
	//goland:noinspection GoUnhandledErrorResult
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrap(ErrUnreadableFile, err.Error())
	}

	records := make([]record, 0, len(rows))
	for i, cells := range rows {
		for _, c := range cells {
			if !utf8.ValidString(c) {
				return nil, ErrUnreadableEncoding
			}
		}
		records = append(records, record{line: i + 1, cells: cells})
	}
	return fromRecords(records)
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// fromRecords maps the first non blank record as the header and the others as rows.
func fromRecords(records []record) ([]Row, error) {
	for len(records) > 0 && blank(records[0].cells) {
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	index := make(map[string]int)
	for i, h := range records[0].cells {
		if col, ok := columnAliases[normalizeHeader(h)]; ok {
			if _, dup := index[col]; !dup {
				index[col] = i
			}
		}
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		if blank(rec.cells) {
			continue
		}
		cell := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(rec.cells) {
				return ""
			}
			return rec.cells[i]
		}
		row := Row{
			Line:           rec.line,
			RegistrationID: cell(colRegistrationID),
			CertificateID:  cell(colCertificateID),
			FullName:       cell(colFullName),
			Department:     cell(colDepartment),
			Faculty:        cell(colFaculty),
			AcademicYear:   cell(colAcademicYear),
			GPA:            cell(colGPA),
			Grade:          cell(colGrade),
			Status:         cell(colStatus),
		}
		row.normalize()
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return rows, nil
}
