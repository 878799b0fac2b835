package tests

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/registrar/core/importer"
	"github.com/trezcool/registrar/core/student"
	testutil "github.com/trezcool/registrar/tests"
)

const studentsCSV = `Registration ID,Full Name,Department,Academic Year,GPA
GRW-CS-2023,Ada Lovelace,CS,,3.5
GRW-CS-2024,Alan Turing,Computer Science,2023-2024,"3,9"
GRW-CS-2024,Alan Again,CS,,3.0
bad-id,Nobody,CS,,2.0
GRW-CS-2001,Already There,CS,,3
`

func Test_importApi_students(t *testing.T) {
	app, stack := newApp(t)
	sci := testutil.CreateFaculty(t, stack.Academics, "SCI", "Science")
	cs := testutil.CreateDepartment(t, stack.Academics, sci, "CS", "Computer Science")
	year := testutil.CreateAcademicYear(t, stack.Academics, 2023, true)
	testutil.CreateStudent(t, stack.Students, cs, year, "GRW-CS-2001", "", "Already There", student.StatusActive)

	file := formFile{"file", "students.csv", []byte(studentsCSV)}
	wantSummary := importer.Summary{Total: 5, Valid: 2, Duplicates: 2, Invalid: 1}

	// preview
	req, rec := newMultipartRequest(t, "/api/imports/students/preview", nil, file)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var preview importer.Preview
	decode(t, rec, &preview)
	assert.Equal(t, wantSummary, preview.Summary)
	assert.Len(t, preview.Valid, 2)

	ids, err := stack.StudentSvc.Identities(req.Context())
	require.NoError(t, err)
	assert.Len(t, ids, 1, "preview writes nothing")

	// not confirmed
	req, rec = newMultipartRequest(t, "/api/imports/students", nil, file)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// commit
	req, rec = newMultipartRequest(t, "/api/imports/students", map[string]string{"confirm": "true"}, file)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var report importer.CommitReport
	decode(t, rec, &report)
	assert.Equal(t, wantSummary, report.Summary)
	assert.Len(t, report.Created, 2)
	assert.Empty(t, report.Failed)

	ids, err = stack.StudentSvc.Identities(req.Context())
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	// a re-import only finds duplicates
	req, rec = newMultipartRequest(t, "/api/imports/students/preview", nil, file)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &preview)
	assert.Zero(t, preview.Summary.Valid)
	assert.Equal(t, 4, preview.Summary.Duplicates)
}

func Test_importApi_badFiles(t *testing.T) {
	app, _ := newApp(t)

	tests := []struct {
		name     string
		file     *formFile
		wantCode int
		wantBody string
	}{
		{"missing file", nil, http.StatusBadRequest, "file"},
		{"empty file", &formFile{"file", "students.csv", nil}, http.StatusBadRequest, importer.ErrEmptyFile.Error()},
		{"unsupported format", &formFile{"file", "students.pdf", []byte("%PDF")}, http.StatusBadRequest, "unsupported"},
		{"missing columns", &formFile{"file", "students.csv", []byte("name\nAda\n")}, http.StatusBadRequest, "missing_columns"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var files []formFile
			if tc.file != nil {
				files = append(files, *tc.file)
			}
			req, rec := newMultipartRequest(t, "/api/imports/students/preview", nil, files...)
			app.ServeHTTP(rec, req)
			assert.Equal(t, tc.wantCode, rec.Code)
			assert.True(t, strings.Contains(rec.Body.String(), tc.wantBody), rec.Body.String())
		})
	}
}
