package tests

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/registrar/core/student"
	"github.com/trezcool/registrar/core/verification"
	testutil "github.com/trezcool/registrar/tests"
)

func Test_studentApi_create(t *testing.T) {
	app, stack := newApp(t)
	sci := testutil.CreateFaculty(t, stack.Academics, "SCI", "Science")
	cs := testutil.CreateDepartment(t, stack.Academics, sci, "CS", "Computer Science")
	year := testutil.CreateAcademicYear(t, stack.Academics, 2023, true)
	testutil.CreateStudent(t, stack.Students, cs, year, "GRW-CS-2020", "CERT-1", "Grace Hopper", student.StatusGraduated)

	tests := []struct {
		name     string
		body     map[string]interface{}
		wantCode int
		wantErrs map[string]string
	}{
		{
			name:     "malformed registration id",
			body:     map[string]interface{}{"registration_id": "CS-1", "full_name": "Ada", "department_id": cs.ID, "academic_year_id": year.ID},
			wantCode: http.StatusBadRequest,
			wantErrs: map[string]string{"registration_id": "registration id must look like GRW-<DEPT>-<YEAR>"},
		},
		{
			name:     "registration id taken",
			body:     map[string]interface{}{"registration_id": "grw-cs-2020", "full_name": "Ada", "department_id": cs.ID, "academic_year_id": year.ID},
			wantCode: http.StatusBadRequest,
			wantErrs: map[string]string{"registration_id": student.ErrRegistrationIDExists.Error()},
		},
		{
			name:     "certificate id taken",
			body:     map[string]interface{}{"registration_id": "GRW-CS-2023", "certificate_id": "cert-1", "full_name": "Ada", "department_id": cs.ID, "academic_year_id": year.ID},
			wantCode: http.StatusBadRequest,
			wantErrs: map[string]string{"certificate_id": student.ErrCertificateIDExists.Error()},
		},
		{
			name:     "unknown department",
			body:     map[string]interface{}{"registration_id": "GRW-CS-2023", "full_name": "Ada", "department_id": "nope", "academic_year_id": year.ID},
			wantCode: http.StatusBadRequest,
			wantErrs: map[string]string{"department_id": "department not found"},
		},
		{
			name:     "created",
			body:     map[string]interface{}{"registration_id": " grw-cs-2023 ", "full_name": " Ada  Lovelace ", "department_id": cs.ID, "academic_year_id": year.ID, "gpa": 3.5},
			wantCode: http.StatusCreated,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/api/students", marshallObj(t, tc.body))
			app.ServeHTTP(rec, req)

			require.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
			if tc.wantErrs != nil {
				var errs map[string]string
				decode(t, rec, &errs)
				assert.Equal(t, tc.wantErrs, errs)
				return
			}
			var s student.Student
			decode(t, rec, &s)
			assert.Equal(t, "GRW-CS-2023", s.RegistrationID)
			assert.Equal(t, sci.ID, s.FacultyID)
			assert.Equal(t, student.StatusActive, s.Status)
		})
	}
}

func Test_studentApi_query(t *testing.T) {
	app, stack := newApp(t)
	sci := testutil.CreateFaculty(t, stack.Academics, "SCI", "Science")
	cs := testutil.CreateDepartment(t, stack.Academics, sci, "CS", "Computer Science")
	math := testutil.CreateDepartment(t, stack.Academics, sci, "MATH", "Mathematics")
	year := testutil.CreateAcademicYear(t, stack.Academics, 2023, true)

	now := time.Now()
	ada := testutil.CreateStudent(t, stack.Students, cs, year, "GRW-CS-2021", "", "Ada Lovelace", student.StatusActive, now.Add(-2*time.Hour))
	alan := testutil.CreateStudent(t, stack.Students, cs, year, "GRW-CS-2022", "", "Alan Turing", student.StatusGraduated, now.Add(-time.Hour))
	emmy := testutil.CreateStudent(t, stack.Students, math, year, "GRW-MATH-2022", "", "Emmy Noether", student.StatusActive, now)

	path := func(params map[string]string) string {
		v := make(url.Values)
		for k, val := range params {
			v.Set(k, val)
		}
		return "/api/students?" + v.Encode()
	}

	tests := []struct {
		name     string
		params   map[string]string
		wantCode int
		wantIDs  []string
	}{
		{"newest first by default", nil, http.StatusOK, []string{emmy.ID, alan.ID, ada.ID}},
		{"by department", map[string]string{"department_id": cs.ID}, http.StatusOK, []string{alan.ID, ada.ID}},
		{"by status", map[string]string{"status": "GRADUATED"}, http.StatusOK, []string{alan.ID}},
		{"search", map[string]string{"search": "noe"}, http.StatusOK, []string{emmy.ID}},
		{"ordering", map[string]string{"ordering": "full_name"}, http.StatusOK, []string{ada.ID, alan.ID, emmy.ID}},
		{"unknown ordering is ignored", map[string]string{"ordering": "password"}, http.StatusOK, []string{emmy.ID, alan.ID, ada.ID}},
		{"unknown status", map[string]string{"status": "expelled"}, http.StatusBadRequest, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodGet, path(tc.params))
			app.ServeHTTP(rec, req)

			require.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
			if tc.wantIDs == nil {
				return
			}
			var students []student.Student
			decode(t, rec, &students)
			ids := make([]string, 0, len(students))
			for _, s := range students {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tc.wantIDs, ids)
		})
	}
}

func Test_studentApi_detail(t *testing.T) {
	app, stack := newApp(t)
	sci := testutil.CreateFaculty(t, stack.Academics, "SCI", "Science")
	cs := testutil.CreateDepartment(t, stack.Academics, sci, "CS", "Computer Science")
	year := testutil.CreateAcademicYear(t, stack.Academics, 2023, true)
	ada := testutil.CreateStudent(t, stack.Students, cs, year, "GRW-CS-2021", "", "Ada Lovelace", student.StatusActive)

	req, rec := newRequest(http.MethodGet, "/api/students/"+ada.ID)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var detail student.Detail
	decode(t, rec, &detail)
	assert.Equal(t, "Computer Science", detail.Department.Name)
	assert.Equal(t, "Science", detail.Faculty.Name)
	assert.Equal(t, "2023-2024", detail.AcademicYear.Label)
	assert.Empty(t, detail.Documents)

	// the update drops the cached detail
	req, rec = newRequest(http.MethodPut, "/api/students/"+ada.ID, marshallObj(t, map[string]interface{}{"full_name": "Augusta Ada King"}))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req, rec = newRequest(http.MethodGet, "/api/students/"+ada.ID)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &detail)
	assert.Equal(t, "Augusta Ada King", detail.FullName)

	req, rec = newRequest(http.MethodGet, "/api/students/unknown")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var herr httpErr
	decode(t, rec, &herr)
	assert.Equal(t, student.ErrNotFound.Error(), herr.Error)
}

func Test_studentApi_delete(t *testing.T) {
	app, stack := newApp(t)
	sci := testutil.CreateFaculty(t, stack.Academics, "SCI", "Science")
	cs := testutil.CreateDepartment(t, stack.Academics, sci, "CS", "Computer Science")
	year := testutil.CreateAcademicYear(t, stack.Academics, 2023, true)
	ada := testutil.CreateStudent(t, stack.Students, cs, year, "GRW-CS-2021", "", "Ada", student.StatusActive)
	alan := testutil.CreateStudent(t, stack.Students, cs, year, "GRW-CS-2022", "", "Alan", student.StatusActive)

	req, rec := newRequest(http.MethodDelete, "/api/students")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// one unknown id deletes nothing
	req, rec = newRequest(http.MethodDelete, "/api/students?id="+ada.ID+"&id=bogus")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	req, rec = newRequest(http.MethodGet, "/api/students/"+ada.ID)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req, rec = newRequest(http.MethodDelete, "/api/students?id="+ada.ID+"&id="+alan.ID)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req, rec = newRequest(http.MethodDelete, "/api/students/"+ada.ID)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// the department is free again
	req, rec = newRequest(http.MethodDelete, "/api/departments/"+cs.ID)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func Test_verificationApi(t *testing.T) {
	app, stack := newApp(t)
	sci := testutil.CreateFaculty(t, stack.Academics, "SCI", "Science")
	cs := testutil.CreateDepartment(t, stack.Academics, sci, "CS", "Computer Science")
	year := testutil.CreateAcademicYear(t, stack.Academics, 2023, true)
	testutil.CreateStudent(t, stack.Students, cs, year, "GRW-CS-2020", "CERT-1", "Grace Hopper", student.StatusGraduated)
	testutil.CreateStudent(t, stack.Students, cs, year, "GRW-CS-2019", "CERT-2", "Left Early", student.StatusWithdrawn)

	tests := []struct {
		certID    string
		wantValid bool
		wantName  string
	}{
		{"cert-1", true, "Grace Hopper"},
		{"CERT-2", false, "Left Early"},
		{"CERT-404", false, ""},
	}
	for _, tc := range tests {
		t.Run(tc.certID, func(t *testing.T) {
			req, rec := newRequest(http.MethodGet, "/api/verify/"+tc.certID)
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var res verification.Result
			decode(t, rec, &res)
			assert.Equal(t, tc.wantValid, res.Valid)
			assert.Equal(t, tc.wantName, res.FullName)
			if !tc.wantValid {
				assert.NotEmpty(t, res.Message)
			}
		})
	}
}
