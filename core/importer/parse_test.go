package importer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Row
		wantErr error
	}{
		{
			name: "aliases and cleaning",
			input: "\xef\xbb\xbfReg No,Student Name,Dept,GPA,Status,Academic-Year\n" +
				" grw-bcs-2021 ,  Alice  ,CS,3.5,GRADUATED,2021-2022\n",
			want: []Row{{
				Line: 2, RegistrationID: "GRW-BCS-2021", FullName: "Alice", Department: "CS",
				GPA: "3.5", Status: "graduated", AcademicYear: "2021-2022",
			}},
		},
		{
			name:  "blank lines and short rows",
			input: "registration_id,full_name,department,grade\n\nGRW-BCS-2021,A,CS\n,,,\nGRW-BCS-2022,B,CS,First\n",
			want: []Row{
				{Line: 3, RegistrationID: "GRW-BCS-2021", FullName: "A", Department: "CS"},
				{Line: 5, RegistrationID: "GRW-BCS-2022", FullName: "B", Department: "CS", Grade: "First"},
			},
		},
		{name: "empty file", input: "", wantErr: ErrEmptyFile},
		{name: "whitespace only", input: " \n\n", wantErr: ErrEmptyFile},
		{name: "header only", input: "registration_id,full_name,department\n", wantErr: ErrEmptyFile},
		{name: "invalid utf8", input: "registration_id,full_name,department\nGRW-BCS-2021,\xff\xfe,CS\n", wantErr: ErrUnreadableEncoding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCSV(strings.NewReader(tt.input))
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseCSV() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseCSV_missingColumns(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("name,gpa\nAlice,3.0\n"))

	var mcErr *MissingColumnsError
	require.ErrorAs(t, err, &mcErr)
	assert.Equal(t, []string{"registration_id", "department"}, mcErr.Columns)
	assert.Equal(t, "missing required columns: registration_id, department", err.Error())
}

func TestParseCSV_malformed(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("registration_id,full_name,department\n\"GRW-BCS-2021,A,CS\n"))
	assert.Equal(t, ErrUnreadableFile, errors.Cause(err))
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Registration ID", "Full Name", "Department", "CGPA"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"GRW-BCS-2020", "Bob", "BCS", "2.75"}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]interface{}{"grw-bee-2020", "Carol", "BEE", 3}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	got, err := Parse("students.XLSX", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	want := []Row{
		{Line: 2, RegistrationID: "GRW-BCS-2020", FullName: "Bob", Department: "BCS", GPA: "2.75"},
		{Line: 4, RegistrationID: "GRW-BEE-2020", FullName: "Carol", Department: "BEE", GPA: "3"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_format(t *testing.T) {
	_, err := Parse("students.pdf", strings.NewReader("x"))
	assert.Equal(t, ErrUnsupportedFormat, err)

	_, err = Parse("students.xlsx", strings.NewReader("definitely not a zip"))
	assert.Equal(t, ErrUnreadableFile, errors.Cause(err))
}
