package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/registrar/core/document"
)

type documentRepository struct {
	db *sqlx.DB
}

var _ document.Repository = (*documentRepository)(nil) // interface compliance check

func NewDocumentRepository(db *sqlx.DB) *documentRepository {
	return &documentRepository{db: db}
}

func (repo *documentRepository) CreateDocument(ctx context.Context, doc document.Document) (document.Document, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO documents (id, student_id, type, file_name, content_type, size, storage_key, created_at)
		VALUES (:id, :student_id, :type, :file_name, :content_type, :size, :storage_key, :created_at)`, doc)
	if err != nil {
		return document.Document{}, mapErr(err, nil, document.ErrStudentNotFound, "inserting document")
	}
	return doc, nil
}

func (repo *documentRepository) GetDocument(ctx context.Context, id string) (document.Document, error) {
	var doc document.Document
	if err := repo.db.GetContext(ctx, &doc, `SELECT * FROM documents WHERE id::text = $1`, id); err != nil {
		return document.Document{}, trapNoRowsErr(err, document.ErrNotFound, "getting document")
	}
	return doc, nil
}

func (repo *documentRepository) ListDocuments(ctx context.Context, studentID string) ([]document.Document, error) {
	docs := make([]document.Document, 0)
	err := repo.db.SelectContext(ctx, &docs,
		`SELECT * FROM documents WHERE student_id::text = $1 ORDER BY created_at, id`, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting documents")
	}
	return docs, nil
}

func (repo *documentRepository) DeleteDocument(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM documents WHERE id::text = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting document")
	}
	return affected(res, document.ErrNotFound)
}
