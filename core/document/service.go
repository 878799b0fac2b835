package document

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/registrar/core"
	"github.com/trezcool/registrar/core/audit"
	"github.com/trezcool/registrar/core/cache"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("document not found")
	ErrStudentNotFound = core.NewNotFoundError("student not found")
	ErrNoFiles         = errors.New("no files provided")
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file is too large")
)

type (
	Repository interface {
		CreateDocument(ctx context.Context, doc Document) (Document, error)
		GetDocument(ctx context.Context, id string) (Document, error)
		// ListDocuments returns the documents of a student, oldest first.
		ListDocuments(ctx context.Context, studentID string) ([]Document, error)
		DeleteDocument(ctx context.Context, id string) error
	}

	// BlobStore keeps document contents.
	BlobStore interface {
		Put(ctx context.Context, key, contentType string, body []byte) error
		Delete(ctx context.Context, key string) error
	}

	// StudentResolver finds the ID of the student owning a registration ID.
	// It returns an error satisfying core.IsNotFound for unknown registration IDs.
	StudentResolver interface {
		StudentIDByRegistrationID(ctx context.Context, registrationID string) (string, error)
	}

	Service struct {
		repo        Repository
		blobs       BlobStore
		students    StudentResolver
		docs        *cache.Namespace[[]Document]
		invalidator *cache.Invalidator
		auditor     audit.Recorder
		maxSize     int64
	}
)

func NewService(
	repo Repository,
	blobs BlobStore,
	students StudentResolver,
	reg *cache.Registry,
	ttl time.Duration,
	maxSize int64,
	inv *cache.Invalidator,
	auditor audit.Recorder,
) *Service {
	return &Service{
		repo:        repo,
		blobs:       blobs,
		students:    students,
		docs:        cache.NewNamespace[[]Document](reg, cache.Documents, ttl),
		invalidator: inv,
		auditor:     auditor,
		maxSize:     maxSize,
	}
}

func storageKey(studentID string, typ Type, id, name string) string {
	name = strings.ReplaceAll(path.Base(strings.ReplaceAll(name, `\`, "/")), " ", "_")
	return fmt.Sprintf("students/%s/%s/%s-%s", studentID, strings.ToLower(string(typ)), id, name)
}

// Upload stores every file as a document of type typ for the student owning registrationID.
// Files are independent: a failed file does not undo the others. When some files failed, the created
// documents are returned along with an *UploadError.
func (svc *Service) Upload(ctx context.Context, registrationID string, typ Type, files ...File) ([]Document, error) {
	if len(files) == 0 {
		return nil, core.NewValidationError(ErrNoFiles, core.FieldError{Field: "files", Error: ErrNoFiles.Error()})
	}
	studentID, err := svc.students.StudentIDByRegistrationID(ctx, core.CleanRegistrationID(registrationID))
	if err != nil {
		if core.IsNotFound(err) {
			return nil, ErrStudentNotFound
		}
		return nil, errors.Wrap(err, "resolving registration id")
	}

	var (
		created = make([]Document, 0, len(files))
		failed  []FileError
	)
	for i, f := range files {
		doc, err := svc.uploadOne(ctx, studentID, typ, f)
		if err != nil {
			failed = append(failed, FileError{Index: i, File: f.Name, Error: errors.Cause(err).Error()})
			continue
		}
		created = append(created, doc)
	}

	if len(created) > 0 {
		svc.invalidator.Mutated(cache.EntityDocument, studentID)
		svc.auditor.Record(ctx, audit.NewEntry{
			Action:   audit.ActionUpload,
			Entity:   audit.EntityDocument,
			EntityID: studentID,
			Details: map[string]interface{}{
				"registration_id": core.CleanRegistrationID(registrationID),
				"type":            string(typ),
				"files":           len(created),
			},
		})
	}
	if len(failed) > 0 {
		return created, &UploadError{Failed: failed}
	}
	return created, nil
}

func (svc *Service) uploadOne(ctx context.Context, studentID string, typ Type, f File) (Document, error) {
	size := int64(len(f.Content))
	if size == 0 {
		return Document{}, ErrEmptyFile
	}
	if svc.maxSize > 0 && size > svc.maxSize {
		return Document{}, ErrFileTooLarge
	}

	id := uuid.NewString()
	doc := Document{
		ID:          id,
		StudentID:   studentID,
		Type:        typ,
		FileName:    path.Base(strings.ReplaceAll(f.Name, `\`, "/")),
		ContentType: f.DetectContentType(),
		Size:        size,
		StorageKey:  storageKey(studentID, typ, id, f.Name),
		CreatedAt:   time.Now().UTC(),
	}
	if err := svc.blobs.Put(ctx, doc.StorageKey, doc.ContentType, f.Content); err != nil {
		return Document{}, errors.Wrap(err, "storing blob")
	}
	created, err := svc.repo.CreateDocument(ctx, doc)
	if err != nil {
		// the row is what makes the blob reachable
		_ = svc.blobs.Delete(ctx, doc.StorageKey)
		return Document{}, errors.Wrap(err, "creating document")
	}
	return created, nil
}

func (svc *Service) List(ctx context.Context, studentID string) ([]Document, error) {
	return svc.docs.GetOrLoad(ctx, studentID, func(ctx context.Context) ([]Document, error) {
		docs, err := svc.repo.ListDocuments(ctx, studentID)
		if err != nil {
			return nil, errors.Wrap(err, "listing documents")
		}
		if docs == nil {
			docs = []Document{}
		}
		return docs, nil
	})
}

func (svc *Service) Get(ctx context.Context, id string) (Document, error) {
	return svc.repo.GetDocument(ctx, id)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	doc, err := svc.repo.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	// the row may be gone even when the blob delete failed
	defer svc.invalidator.Mutated(cache.EntityDocument, doc.StudentID)

	if err := svc.remove(ctx, doc); err != nil {
		return err
	}
	svc.auditor.Record(ctx, audit.NewEntry{
		Action:   audit.ActionDelete,
		Entity:   audit.EntityDocument,
		EntityID: doc.ID,
		Details:  map[string]interface{}{"student_id": doc.StudentID, "type": string(doc.Type)},
	})
	return nil
}

// DeleteForStudent removes every document of a student. The caller owns cache invalidation.
func (svc *Service) DeleteForStudent(ctx context.Context, studentID string) error {
	docs, err := svc.repo.ListDocuments(ctx, studentID)
	if err != nil {
		return errors.Wrap(err, "listing documents")
	}
	for _, doc := range docs {
		if err := svc.remove(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

func (svc *Service) remove(ctx context.Context, doc Document) error {
	if err := svc.repo.DeleteDocument(ctx, doc.ID); err != nil {
		return errors.Wrap(err, "deleting document")
	}
	if err := svc.blobs.Delete(ctx, doc.StorageKey); err != nil {
		return errors.Wrap(err, "deleting blob")
	}
	return nil
}
