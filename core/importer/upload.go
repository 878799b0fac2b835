package importer

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/registrar/core"
	"github.com/trezcool/registrar/core/document"
	"github.com/trezcool/registrar/core/student"
)

// DefaultUploadLimit is the number of batches uploaded concurrently.
const DefaultUploadLimit = 3

// Batch is the files of one student and one document type, sent in a single request.
type Batch struct {
	RegistrationID string          `json:"registration_id"`
	Type           document.Type   `json:"type"`
	Files          []document.File `json:"-"`
}

type Planned struct {
	Batches         []Batch  `json:"batches"`
	UnknownStudents []string `json:"unknown_students"`
}

// Plan groups organized files into batches. Documents cannot be attached to unknown students:
// their registration IDs are reported instead.
func Plan(o Organized, existing []student.Identity) Planned {
	known := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		known[core.CleanRegistrationID(id.RegistrationID)] = struct{}{}
	}

	p := Planned{Batches: []Batch{}, UnknownStudents: []string{}}
	for _, regID := range o.RegistrationIDs() {
		if _, ok := known[regID]; !ok {
			p.UnknownStudents = append(p.UnknownStudents, regID)
			continue
		}
		for _, typ := range document.Types {
			if files := o.Files[regID][typ]; len(files) > 0 {
				p.Batches = append(p.Batches, Batch{RegistrationID: regID, Type: typ, Files: files})
			}
		}
	}
	return p
}

// Uploader sends one batch. A partial failure is reported with a *document.UploadError.
type Uploader interface {
	UploadBatch(ctx context.Context, registrationID string, typ document.Type, files []document.File) error
}

type FileReport struct {
	RegistrationID string        `json:"registration_id"`
	Type           document.Type `json:"type"`
	File           string        `json:"file"`
	Uploaded       bool          `json:"uploaded"`
	Error          string        `json:"error,omitempty"`
}

type UploadReport struct {
	Batches  int          `json:"batches"`
	Uploaded int          `json:"uploaded"`
	Failed   int          `json:"failed"`
	Files    []FileReport `json:"files"`
}

func (rep *UploadReport) add(b Batch, err error) {
	rep.Batches++

	// by position: two files of a batch may share a name
	failed := make(map[int]string)
	if err != nil {
		if upErr, ok := errors.Cause(err).(*document.UploadError); ok {
			for _, f := range upErr.Failed {
				failed[f.Index] = f.Error
			}
		} else {
			for i := range b.Files {
				failed[i] = errors.Cause(err).Error()
			}
		}
	}

	for i, f := range b.Files {
		fr := FileReport{RegistrationID: b.RegistrationID, Type: b.Type, File: f.Name}
		if msg, ok := failed[i]; ok {
			fr.Error = msg
			rep.Failed++
		} else {
			fr.Uploaded = true
			rep.Uploaded++
		}
		rep.Files = append(rep.Files, fr)
	}
}

// UploadBatches sends every batch through up with at most limit requests in flight.
// A failed batch does not stop the others and nothing is rolled back.
func UploadBatches(ctx context.Context, batches []Batch, up Uploader, limit int) UploadReport {
	if limit < 1 {
		limit = DefaultUploadLimit
	}

	var (
		g   errgroup.Group
		mu  sync.Mutex
		rep = UploadReport{Files: []FileReport{}}
	)
	g.SetLimit(limit)

	for _, b := range batches {
		g.Go(func() error {
			err := up.UploadBatch(ctx, b.RegistrationID, b.Type, b.Files)

			mu.Lock()
			rep.add(b, err)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(rep.Files, func(i, j int) bool {
		a, b := rep.Files[i], rep.Files[j]
		if a.RegistrationID != b.RegistrationID {
			return a.RegistrationID < b.RegistrationID
		}
		if a.Type != b.Type {
			return typeIndex(a.Type) < typeIndex(b.Type)
		}
		return a.File < b.File
	})
	return rep
}

func typeIndex(t document.Type) int {
	for i, typ := range document.Types {
		if typ == t {
			return i
		}
	}
	return len(document.Types)
}
