package importer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/registrar/core/document"
	"github.com/trezcool/registrar/core/student"
)

func TestPlan(t *testing.T) {
	o := Organized{Files: map[string]map[document.Type][]document.File{
		"GRW-BCS-2020": {
			document.TypeTranscript: {{Name: "GRW-BCS-2020.pdf"}},
			document.TypePhoto:      {{Name: "GRW-BCS-2020.jpg"}},
		},
		"GRW-BCS-2099": {document.TypePhoto: {{Name: "GRW-BCS-2099.jpg"}}},
	}}
	existing := []student.Identity{{ID: "1", RegistrationID: "GRW-BCS-2020"}}

	p := Plan(o, existing)

	want := Planned{
		Batches: []Batch{
			{RegistrationID: "GRW-BCS-2020", Type: document.TypePhoto, Files: []document.File{{Name: "GRW-BCS-2020.jpg"}}},
			{RegistrationID: "GRW-BCS-2020", Type: document.TypeTranscript, Files: []document.File{{Name: "GRW-BCS-2020.pdf"}}},
		},
		UnknownStudents: []string{"GRW-BCS-2099"},
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("Plan() mismatch (-want +got):\n%s", diff)
	}
}

type fakeUploader struct {
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32

	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (u *fakeUploader) UploadBatch(ctx context.Context, regID string, typ document.Type, files []document.File) error {
	n := u.inFlight.Add(1)
	defer u.inFlight.Add(-1)
	for {
		seen := u.maxSeen.Load()
		if n <= seen || u.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(u.delay)

	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, regID+"/"+string(typ))
	return u.fail[regID+"/"+string(typ)]
}

func TestUploadBatches(t *testing.T) {
	var batches []Batch
	for _, id := range []string{"GRW-A1-2020", "GRW-A2-2020", "GRW-A3-2020", "GRW-A4-2020", "GRW-A5-2020"} {
		batches = append(batches,
			Batch{RegistrationID: id, Type: document.TypePhoto, Files: []document.File{{Name: id + ".jpg"}}},
			Batch{RegistrationID: id, Type: document.TypeTranscript, Files: []document.File{{Name: id + "-1.pdf"}, {Name: id + "-2.pdf"}}},
		)
	}
	up := &fakeUploader{
		delay: 10 * time.Millisecond,
		fail: map[string]error{
			"GRW-A2-2020/PHOTO": errors.New("server unavailable"),
			"GRW-A4-2020/TRANSCRIPT": &document.UploadError{Failed: []document.FileError{
				{Index: 1, File: "GRW-A4-2020-2.pdf", Error: "file is empty"},
			}},
		},
	}

	rep := UploadBatches(context.Background(), batches, up, 3)

	assert.Len(t, up.calls, 10, "one request per (student, type)")
	assert.LessOrEqual(t, up.maxSeen.Load(), int32(3))
	assert.Equal(t, 10, rep.Batches)
	assert.Equal(t, 15, rep.Uploaded+rep.Failed)
	assert.Equal(t, 2, rep.Failed)

	failed := make(map[string]string)
	for _, f := range rep.Files {
		if !f.Uploaded {
			failed[f.File] = f.Error
		}
	}
	assert.Equal(t, map[string]string{
		"GRW-A2-2020.jpg":   "server unavailable",
		"GRW-A4-2020-2.pdf": "file is empty",
	}, failed)

	assert.Equal(t, "GRW-A1-2020.jpg", rep.Files[0].File, "report is sorted")
}

func TestUploadBatches_sameFileNames(t *testing.T) {
	// a/Photo/GRW-X-2020.jpg and b/Photos/GRW-X-2020.jpg end up in one batch
	batches := []Batch{{RegistrationID: "GRW-X-2020", Type: document.TypePhoto, Files: []document.File{
		{Name: "GRW-X-2020.jpg", Content: []byte("jpeg")},
		{Name: "GRW-X-2020.jpg"},
	}}}
	up := &fakeUploader{fail: map[string]error{
		"GRW-X-2020/PHOTO": &document.UploadError{Failed: []document.FileError{
			{Index: 1, File: "GRW-X-2020.jpg", Error: "file is empty"},
		}},
	}}

	rep := UploadBatches(context.Background(), batches, up, 1)

	assert.Equal(t, 1, rep.Uploaded)
	assert.Equal(t, 1, rep.Failed)
	want := []FileReport{
		{RegistrationID: "GRW-X-2020", Type: document.TypePhoto, File: "GRW-X-2020.jpg", Uploaded: true},
		{RegistrationID: "GRW-X-2020", Type: document.TypePhoto, File: "GRW-X-2020.jpg", Error: "file is empty"},
	}
	if diff := cmp.Diff(want, rep.Files); diff != "" {
		t.Errorf("UploadBatches() mismatch (-want +got):\n%s", diff)
	}
}

func TestUploadBatches_defaultLimit(t *testing.T) {
	up := &fakeUploader{delay: 5 * time.Millisecond}
	var batches []Batch
	for i := 0; i < 8; i++ {
		batches = append(batches, Batch{RegistrationID: "GRW-X-2020", Type: document.Types[i%4], Files: []document.File{{Name: "f"}}})
	}

	rep := UploadBatches(context.Background(), batches, up, 0)
	assert.Equal(t, 8, rep.Uploaded)
	assert.LessOrEqual(t, up.maxSeen.Load(), int32(DefaultUploadLimit))
}
