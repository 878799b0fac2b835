// Package inmemdb implements the core repositories in memory, for tests and local development.
package inmemdb

import (
	"sync"

	"github.com/trezcool/registrar/core/academic"
	"github.com/trezcool/registrar/core/audit"
	"github.com/trezcool/registrar/core/document"
	"github.com/trezcool/registrar/core/student"
)

// DB mimics the postgres schema: unique columns and foreign keys are enforced by the repositories.
// A single lock guards every table so cross-table checks see a consistent state.
type DB struct {
	mutex         sync.RWMutex
	faculties     map[string]*academic.Faculty
	departments   map[string]*academic.Department
	academicYears map[string]*academic.AcademicYear
	students      map[string]*student.Student
	documents     map[string]*document.Document
	auditLogs     []audit.Entry
}

func Open() *DB {
	return &DB{
		faculties:     make(map[string]*academic.Faculty),
		departments:   make(map[string]*academic.Department),
		academicYears: make(map[string]*academic.AcademicYear),
		students:      make(map[string]*student.Student),
		documents:     make(map[string]*document.Document),
	}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	clear(db.faculties)
	clear(db.departments)
	clear(db.academicYears)
	clear(db.students)
	clear(db.documents)
	db.auditLogs = nil
}
