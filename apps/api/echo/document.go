package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/registrar/core/document"
)

type documentApi struct {
	svc *document.Service
}

func registerDocumentAPI(g *echo.Group, svc *document.Service) {
	api := documentApi{svc: svc}

	dg := g.Group("/documents")
	dg.GET("/:id", api.retrieve)
	dg.DELETE("/:id", api.destroy)
	dg.POST("/:registrationId/:documentType", api.upload)
}

// UploadResponse lists the stored documents and, on partial failure, the files that were rejected.
type UploadResponse struct {
	Documents []document.Document  `json:"documents"`
	Failed    []document.FileError `json:"failed,omitempty"`
}

func (api *documentApi) upload(ctx echo.Context) error {
	typ, ok := document.ParseType(ctx.Param("documentType"))
	if !ok {
		return errUnknownDocType
	}
	files, err := bindFiles(ctx)
	if err != nil {
		return err
	}

	docs, err := api.svc.Upload(ctx.Request().Context(), ctx.Param("registrationId"), typ, files...)
	if err != nil {
		upErr, ok := errors.Cause(err).(*document.UploadError)
		if !ok {
			return errors.Wrap(err, "uploading documents")
		}
		code := http.StatusMultiStatus
		if len(docs) == 0 {
			code = http.StatusBadRequest
		}
		return ctx.JSON(code, UploadResponse{Documents: docs, Failed: upErr.Failed})
	}
	return ctx.JSON(http.StatusCreated, UploadResponse{Documents: docs})
}

func (api *documentApi) retrieve(ctx echo.Context) error {
	doc, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting document")
	}
	return ctx.JSON(http.StatusOK, doc)
}

func (api *documentApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting document")
	}
	return ctx.NoContent(http.StatusNoContent)
}
