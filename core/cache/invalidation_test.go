package cache

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

type recordedCall struct {
	ns   string
	keys []string
}

type recordingTarget struct {
	calls []recordedCall
	panic string
}

func (r *recordingTarget) Invalidate(ns string, keys ...string) {
	if ns == r.panic {
		panic("unavailable")
	}
	r.calls = append(r.calls, recordedCall{ns: ns, keys: keys})
}

func TestInvalidator_Mutated(t *testing.T) {
	tests := []struct {
		name   string
		entity Entity
		keys   []string
		want   []recordedCall
	}{
		{
			name:   "department",
			entity: EntityDepartment,
			keys:   []string{"d1"},
			want: []recordedCall{
				{ns: Departments}, {ns: Students}, {ns: StudentDetail}, {ns: Verification},
			},
		},
		{
			name:   "student by key",
			entity: EntityStudent,
			keys:   []string{"s1", "s2"},
			want: []recordedCall{
				{ns: Students},
				{ns: StudentDetail, keys: []string{"s1", "s2"}},
				{ns: Documents, keys: []string{"s1", "s2"}},
				{ns: Verification},
			},
		},
		{
			name:   "student without key clears everything",
			entity: EntityStudent,
			want: []recordedCall{
				{ns: Students}, {ns: StudentDetail}, {ns: Documents}, {ns: Verification},
			},
		},
		{
			name:   "document",
			entity: EntityDocument,
			keys:   []string{"s1"},
			want: []recordedCall{
				{ns: Documents, keys: []string{"s1"}},
				{ns: StudentDetail, keys: []string{"s1"}},
			},
		},
		{name: "unknown entity", entity: Entity("course")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := &recordingTarget{}
			NewInvalidator(target, nil, nil).Mutated(tt.entity, tt.keys...)

			if diff := cmp.Diff(tt.want, target.calls, cmp.AllowUnexported(recordedCall{})); diff != "" {
				t.Errorf("Mutated() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInvalidator_bestEffort(t *testing.T) {
	target := &recordingTarget{panic: Students}
	inv := NewInvalidator(target, nil, nil)

	assert.NotPanics(t, func() { inv.Mutated(EntityDepartment, "d1") })
	assert.Len(t, target.calls, 3, "remaining rules still apply")

	var nilInv *Invalidator
	assert.NotPanics(t, func() { nilInv.Mutated(EntityStudent) })
	assert.NotPanics(t, func() { NewInvalidator(nil, nil, nil).Mutated(EntityStudent) })
}

func TestInvalidator_registry(t *testing.T) {
	reg, _ := newTestRegistry()
	depts := NewNamespace[string](reg, Departments, time.Hour)
	detail := NewNamespace[string](reg, StudentDetail, time.Hour)
	years := NewNamespace[string](reg, AcademicYears, time.Hour)
	depts.Set("all", "x", 0)
	detail.Set("s1", "x", 0)
	detail.Set("s2", "x", 0)
	years.Set("all", "x", 0)

	inv := NewInvalidator(reg, DefaultDependencies(), nil)
	inv.Mutated(EntityDocument, "s1")

	assert.Equal(t, []string{"s2"}, reg.Stats(StudentDetail).Keys)
	assert.Equal(t, 1, reg.Stats(Departments).Size)

	inv.Mutated(EntityFaculty, "f1")
	assert.Equal(t, 0, reg.Stats(Departments).Size)
	assert.Equal(t, 0, reg.Stats(StudentDetail).Size)
	assert.Equal(t, 1, reg.Stats(AcademicYears).Size)
}

func TestDefaultDependencies_coverEveryEntity(t *testing.T) {
	deps := DefaultDependencies()
	for _, entity := range []Entity{
		EntityFaculty, EntityDepartment, EntityAcademicYear, EntityStudent, EntityDocument, EntityAudit,
	} {
		assert.NotEmpty(t, deps.Namespaces(entity), "entity %s", entity)
	}
	assert.Contains(t, deps.Namespaces(EntityAcademicYear), Students)
}
