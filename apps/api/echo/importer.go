package echoapi

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/registrar/core/importer"
)

type importApi struct {
	svc     *importer.Service
	maxSize int64
}

func registerImportAPI(g *echo.Group, svc *importer.Service, maxSize int64) {
	api := importApi{svc: svc, maxSize: maxSize}

	ig := g.Group("/imports")
	ig.POST("/students/preview", api.previewStudents)
	ig.POST("/students", api.commitStudents)
	ig.POST("/documents", api.importDocuments)
}

// formFile reads the `file` multipart field.
func (api *importApi) formFile(ctx echo.Context) (string, []byte, error) {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return "", nil, errMissingFile
	}
	data, err := readFormFile(fh, api.maxSize)
	if err != nil {
		return "", nil, err
	}
	return fh.Filename, data, nil
}

func (api *importApi) previewStudents(ctx echo.Context) error {
	name, data, err := api.formFile(ctx)
	if err != nil {
		return err
	}
	preview, err := api.svc.PreviewStudents(ctx.Request().Context(), name, bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "previewing students import")
	}
	return ctx.JSON(http.StatusOK, preview)
}

func (api *importApi) commitStudents(ctx echo.Context) error {
	name, data, err := api.formFile(ctx)
	if err != nil {
		return err
	}
	confirmed, _ := strconv.ParseBool(ctx.FormValue("confirm"))

	report, err := api.svc.CommitStudents(ctx.Request().Context(), name, bytes.NewReader(data), confirmed)
	if err != nil {
		return errors.Wrap(err, "importing students")
	}
	code := http.StatusCreated
	if len(report.Failed) > 0 {
		code = http.StatusMultiStatus
	}
	return ctx.JSON(code, report)
}

func (api *importApi) importDocuments(ctx echo.Context) error {
	_, data, err := api.formFile(ctx)
	if err != nil {
		return err
	}
	report, err := api.svc.ImportDocuments(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "importing documents")
	}
	code := http.StatusOK
	if report.Upload.Failed > 0 {
		code = http.StatusMultiStatus
	}
	return ctx.JSON(code, report)
}
