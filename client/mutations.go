package client

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/trezcool/registrar/core/academic"
	"github.com/trezcool/registrar/core/cache"
	"github.com/trezcool/registrar/core/document"
	"github.com/trezcool/registrar/core/importer"
	"github.com/trezcool/registrar/core/student"
)

var _ importer.Uploader = (*Client)(nil)

func sendJSON[V any](ctx context.Context, c *Client, method, path string, in interface{}, ok int) (V, error) {
	var v V
	req, err := c.newJSONRequest(ctx, method, path, in)
	if err != nil {
		return v, err
	}
	_, err = c.do(req, &v, ok)
	return v, err
}

func (c *Client) destroy(ctx context.Context, path string, query url.Values) error {
	req, err := c.newRequest(ctx, http.MethodDelete, path, query, nil)
	if err != nil {
		return err
	}
	_, err = c.do(req, nil, http.StatusNoContent)
	return err
}

// Faculties

func (c *Client) CreateFaculty(ctx context.Context, in academic.FacultyInput) (academic.Faculty, error) {
	f, err := sendJSON[academic.Faculty](ctx, c, http.MethodPost, facultiesPath, in, http.StatusCreated)
	if err == nil {
		c.Mutated(cache.EntityFaculty, f.ID)
	}
	return f, err
}

func (c *Client) UpdateFaculty(ctx context.Context, id string, in academic.FacultyInput) (academic.Faculty, error) {
	f, err := sendJSON[academic.Faculty](ctx, c, http.MethodPut, facultiesPath+"/"+url.PathEscape(id), in, http.StatusOK)
	if err == nil {
		c.Mutated(cache.EntityFaculty, id)
	}
	return f, err
}

func (c *Client) DeleteFaculty(ctx context.Context, id string) error {
	if err := c.destroy(ctx, facultiesPath+"/"+url.PathEscape(id), nil); err != nil {
		return err
	}
	c.Mutated(cache.EntityFaculty, id)
	return nil
}

// Departments

func (c *Client) CreateDepartment(ctx context.Context, in academic.DepartmentInput) (academic.Department, error) {
	d, err := sendJSON[academic.Department](ctx, c, http.MethodPost, departmentsPath, in, http.StatusCreated)
	if err == nil {
		c.Mutated(cache.EntityDepartment, d.ID)
	}
	return d, err
}

func (c *Client) UpdateDepartment(ctx context.Context, id string, in academic.DepartmentInput) (academic.Department, error) {
	d, err := sendJSON[academic.Department](ctx, c, http.MethodPut, departmentsPath+"/"+url.PathEscape(id), in, http.StatusOK)
	if err == nil {
		c.Mutated(cache.EntityDepartment, id)
	}
	return d, err
}

func (c *Client) DeleteDepartment(ctx context.Context, id string) error {
	if err := c.destroy(ctx, departmentsPath+"/"+url.PathEscape(id), nil); err != nil {
		return err
	}
	c.Mutated(cache.EntityDepartment, id)
	return nil
}

// Academic years

func (c *Client) CreateAcademicYear(ctx context.Context, in academic.AcademicYearInput) (academic.AcademicYear, error) {
	y, err := sendJSON[academic.AcademicYear](ctx, c, http.MethodPost, academicYearsPath, in, http.StatusCreated)
	if err == nil {
		c.Mutated(cache.EntityAcademicYear, y.ID)
	}
	return y, err
}

func (c *Client) UpdateAcademicYear(ctx context.Context, id string, in academic.AcademicYearInput) (academic.AcademicYear, error) {
	y, err := sendJSON[academic.AcademicYear](ctx, c, http.MethodPut, academicYearsPath+"/"+url.PathEscape(id), in, http.StatusOK)
	if err == nil {
		c.Mutated(cache.EntityAcademicYear, id)
	}
	return y, err
}

func (c *Client) DeleteAcademicYear(ctx context.Context, id string) error {
	if err := c.destroy(ctx, academicYearsPath+"/"+url.PathEscape(id), nil); err != nil {
		return err
	}
	c.Mutated(cache.EntityAcademicYear, id)
	return nil
}

// Students

func (c *Client) CreateStudent(ctx context.Context, ns student.NewStudent) (student.Student, error) {
	s, err := sendJSON[student.Student](ctx, c, http.MethodPost, studentsPath, ns, http.StatusCreated)
	if err == nil {
		c.Mutated(cache.EntityStudent, s.ID)
	}
	return s, err
}

func (c *Client) UpdateStudent(ctx context.Context, id string, us student.UpdateStudent) (student.Student, error) {
	s, err := sendJSON[student.Student](ctx, c, http.MethodPut, studentPath(id), us, http.StatusOK)
	if err == nil {
		c.Mutated(cache.EntityStudent, id)
	}
	return s, err
}

// DeleteStudents deletes the students and their documents.
func (c *Client) DeleteStudents(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	var err error
	if len(ids) == 1 {
		err = c.destroy(ctx, studentPath(ids[0]), nil)
	} else {
		err = c.destroy(ctx, studentsPath, url.Values{"id": ids})
	}
	if err != nil {
		return err
	}
	c.Mutated(cache.EntityStudent, ids...)
	return nil
}

// Documents

type formFile struct {
	field   string
	name    string
	content []byte
}

func (c *Client) newMultipartRequest(ctx context.Context, path string, fields map[string]string, files ...formFile) (*http.Request, error) {
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, errors.Wrap(err, "writing form field")
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		if err != nil {
			return nil, errors.Wrap(err, "creating form file")
		}
		if _, err = part.Write(f.content); err != nil {
			return nil, errors.Wrap(err, "writing form file")
		}
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "closing multipart writer")
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}

type uploadResponse struct {
	Documents []document.Document  `json:"documents"`
	Failed    []document.FileError `json:"failed"`
}

// UploadDocuments uploads files as documents of type typ for the student owning registrationID.
// When some files were rejected, the stored documents are returned with a *document.UploadError.
func (c *Client) UploadDocuments(ctx context.Context, registrationID string, typ document.Type, files []document.File) ([]document.Document, error) {
	parts := make([]formFile, 0, len(files))
	for _, f := range files {
		parts = append(parts, formFile{field: "files", name: f.Name, content: f.Content})
	}
	path := documentsPath + "/" + url.PathEscape(registrationID) + "/" + url.PathEscape(string(typ))
	req, err := c.newMultipartRequest(ctx, path, nil, parts...)
	if err != nil {
		return nil, err
	}

	code, data, err := c.send(req)
	if err != nil {
		return nil, err
	}
	var resp uploadResponse
	switch code {
	case http.StatusCreated, http.StatusMultiStatus:
		if err = decode(data, &resp); err != nil {
			return nil, err
		}
	case http.StatusBadRequest:
		// every file was rejected, the body says why
		if decode(data, &resp) != nil || len(resp.Failed) == 0 {
			return nil, decodeError(code, data)
		}
	default:
		return nil, decodeError(code, data)
	}
	for _, doc := range resp.Documents {
		c.Mutated(cache.EntityDocument, doc.StudentID)
	}
	if len(resp.Failed) > 0 {
		return resp.Documents, &document.UploadError{Failed: resp.Failed}
	}
	return resp.Documents, nil
}

// UploadBatch sends one import batch.
func (c *Client) UploadBatch(ctx context.Context, registrationID string, typ document.Type, files []document.File) error {
	_, err := c.UploadDocuments(ctx, registrationID, typ, files)
	return err
}

func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	if err := c.destroy(ctx, documentsPath+"/"+url.PathEscape(id), nil); err != nil {
		return err
	}
	c.Mutated(cache.EntityDocument)
	return nil
}

// Imports

func (c *Client) importFile(ctx context.Context, path, filename string, r io.Reader, fields map[string]string, out interface{}, ok ...int) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading import file")
	}
	req, err := c.newMultipartRequest(ctx, path, fields, formFile{field: "file", name: filename, content: data})
	if err != nil {
		return err
	}
	_, err = c.do(req, out, ok...)
	return err
}

// PreviewStudents reconciles a CSV/XLSX file against the current students without writing anything.
func (c *Client) PreviewStudents(ctx context.Context, filename string, r io.Reader) (importer.Preview, error) {
	var preview importer.Preview
	err := c.importFile(ctx, importsPath+"/students/preview", filename, r, nil, &preview, http.StatusOK)
	return preview, err
}

// CommitStudents creates the valid rows of a CSV/XLSX file. Rows that failed are listed in the report.
func (c *Client) CommitStudents(ctx context.Context, filename string, r io.Reader) (importer.CommitReport, error) {
	var report importer.CommitReport
	err := c.importFile(ctx, importsPath+"/students", filename, r, map[string]string{"confirm": "true"},
		&report, http.StatusCreated, http.StatusMultiStatus)
	if err != nil {
		return report, err
	}
	if len(report.Created) > 0 {
		c.Mutated(cache.EntityStudent)
	}
	return report, nil
}

// ImportDocuments uploads a ZIP archive for the server to organize and store.
func (c *Client) ImportDocuments(ctx context.Context, filename string, r io.Reader) (importer.DocumentReport, error) {
	var report importer.DocumentReport
	err := c.importFile(ctx, importsPath+"/documents", filename, r, nil, &report, http.StatusOK, http.StatusMultiStatus)
	if err != nil {
		return report, err
	}
	if report.Upload.Uploaded > 0 {
		c.Mutated(cache.EntityDocument)
	}
	return report, nil
}

// ClearCache clears the server cache of ns, or all of it when ns is empty. The client cache is cleared too.
func (c *Client) ClearCache(ctx context.Context, ns string) error {
	path := cachePath + "/clear"
	if ns != "" {
		path = cachePath + "/" + url.PathEscape(ns) + "/clear"
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, nil, nil)
	if err != nil {
		return err
	}
	if _, err = c.do(req, nil, http.StatusNoContent); err != nil {
		return err
	}
	if ns == "" {
		c.registry.InvalidateAll()
	} else if c.registry.Has(ns) {
		c.registry.Invalidate(ns)
	}
	return nil
}
