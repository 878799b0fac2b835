package academic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchDepartment(t *testing.T) {
	depts := []Department{
		{ID: "cs", Code: "CS", Name: "Computer Science"},
		{ID: "math", Code: "MATH", Name: "Mathematics"},
	}
	tests := []struct {
		name   string
		ref    string
		wantID string
	}{
		{name: "code", ref: "cs", wantID: "cs"},
		{name: "name", ref: " mathematics ", wantID: "math"},
		{name: "unknown", ref: "Physics"},
		{name: "empty", ref: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := MatchDepartment(depts, tt.ref)
			assert.Equal(t, tt.wantID != "", ok)
			assert.Equal(t, tt.wantID, d.ID)
		})
	}
}

func TestMatchAcademicYear(t *testing.T) {
	years := []AcademicYear{
		{ID: "y1", Label: "2022-2023", StartYear: 2022, EndYear: 2023},
		{ID: "y2", Label: "2023-2024", StartYear: 2023, EndYear: 2024},
	}
	tests := []struct {
		name   string
		ref    string
		wantID string
	}{
		{name: "label", ref: "2023-2024", wantID: "y2"},
		{name: "start year", ref: "2022", wantID: "y1"},
		{name: "end year is not a start year", ref: "2024"},
		{name: "unknown", ref: "2030-2031"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			y, ok := MatchAcademicYear(years, tt.ref)
			assert.Equal(t, tt.wantID != "", ok)
			assert.Equal(t, tt.wantID, y.ID)
		})
	}
}
