package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/registrar/core"
	"github.com/trezcool/registrar/core/document"
	"github.com/trezcool/registrar/core/student"
)

var errNoIDs = core.NewValidationError(nil, core.FieldError{Field: "id", Error: "at least one id is required"})

type studentApi struct {
	svc      *student.Service
	docs     *document.Service
	validate *validator.Validate
}

func registerStudentAPI(g *echo.Group, svc *student.Service, docs *document.Service, validate *validator.Validate) {
	api := studentApi{svc: svc, docs: docs, validate: validate}

	sg := g.Group("/students")
	sg.GET("", api.query)
	sg.POST("", api.create)
	sg.DELETE("", api.destroyMultiple)
	sg.GET("/identities", api.identities)

	// detail endpoints
	dg := sg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.GET("/documents", api.documents)
}

func bindStudentFilter(ctx echo.Context) (student.QueryFilter, error) {
	var (
		filter student.QueryFilter
		status string
	)
	err := echo.QueryParamsBinder(ctx).
		String("search", &filter.Search).
		String("department_id", &filter.DepartmentID).
		String("faculty_id", &filter.FacultyID).
		String("academic_year_id", &filter.AcademicYearID).
		String("status", &status).
		BindError()
	if err != nil {
		return filter, errors.Wrap(err, "binding to QueryFilter")
	}
	if status != "" {
		st, ok := student.ParseStatus(status)
		if !ok {
			return filter, core.NewValidationError(nil, core.FieldError{Field: "status", Error: "unknown status"})
		}
		filter.Status = st
	}
	return filter, nil
}

func (api *studentApi) query(ctx echo.Context) error {
	filter, err := bindStudentFilter(ctx)
	if err != nil {
		return err
	}
	var ord Ordering
	ord.Bind(ctx)

	students, err := api.svc.Query(ctx.Request().Context(), filter, ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) identities(ctx echo.Context) error {
	identities, err := api.svc.Identities(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing student identities")
	}
	return ctx.JSON(http.StatusOK, identities)
}

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	detail, err := api.svc.Detail(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting student detail")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *studentApi) update(ctx echo.Context) error {
	var data student.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) destroyMultiple(ctx echo.Context) error {
	ids := ctx.QueryParams()["id"]
	if len(ids) == 0 {
		return errNoIDs
	}
	if err := api.svc.Delete(ctx.Request().Context(), ids...); err != nil {
		return errors.Wrap(err, "deleting students")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) documents(ctx echo.Context) error {
	id := ctx.Param("id")
	if _, err := api.svc.Get(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "getting student")
	}
	docs, err := api.docs.List(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "listing documents")
	}
	return ctx.JSON(http.StatusOK, docs)
}
