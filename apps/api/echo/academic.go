package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/registrar/core/academic"
)

type academicApi struct {
	svc      *academic.Service
	validate *validator.Validate
}

func registerAcademicAPI(g *echo.Group, svc *academic.Service, validate *validator.Validate) {
	api := academicApi{svc: svc, validate: validate}

	fg := g.Group("/faculties")
	fg.GET("", api.listFaculties)
	fg.POST("", api.createFaculty)
	fg.GET("/:id", api.retrieveFaculty)
	fg.PUT("/:id", api.updateFaculty)
	fg.DELETE("/:id", api.destroyFaculty)

	dg := g.Group("/departments")
	dg.GET("", api.listDepartments)
	dg.POST("", api.createDepartment)
	dg.GET("/:id", api.retrieveDepartment)
	dg.PUT("/:id", api.updateDepartment)
	dg.DELETE("/:id", api.destroyDepartment)

	yg := g.Group("/academic-years")
	yg.GET("", api.listAcademicYears)
	yg.POST("", api.createAcademicYear)
	yg.GET("/current", api.currentAcademicYear)
	yg.GET("/:id", api.retrieveAcademicYear)
	yg.PUT("/:id", api.updateAcademicYear)
	yg.DELETE("/:id", api.destroyAcademicYear)
}

// Faculties

func (api *academicApi) listFaculties(ctx echo.Context) error {
	faculties, err := api.svc.ListFaculties(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing faculties")
	}
	return ctx.JSON(http.StatusOK, faculties)
}

func (api *academicApi) retrieveFaculty(ctx echo.Context) error {
	f, err := api.svc.GetFaculty(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting faculty")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *academicApi) bindFaculty(ctx echo.Context) (academic.FacultyInput, error) {
	var data academic.FacultyInput
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to FacultyInput")
	}
	return data, data.Validate(api.validate)
}

func (api *academicApi) createFaculty(ctx echo.Context) error {
	data, err := api.bindFaculty(ctx)
	if err != nil {
		return err
	}
	f, err := api.svc.CreateFaculty(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating faculty")
	}
	return ctx.JSON(http.StatusCreated, f)
}

func (api *academicApi) updateFaculty(ctx echo.Context) error {
	data, err := api.bindFaculty(ctx)
	if err != nil {
		return err
	}
	f, err := api.svc.UpdateFaculty(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating faculty")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *academicApi) destroyFaculty(ctx echo.Context) error {
	if err := api.svc.DeleteFaculty(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting faculty")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Departments

func (api *academicApi) listDepartments(ctx echo.Context) error {
	depts, err := api.svc.ListDepartments(ctx.Request().Context(), ctx.QueryParam("faculty_id"))
	if err != nil {
		return errors.Wrap(err, "listing departments")
	}
	return ctx.JSON(http.StatusOK, depts)
}

func (api *academicApi) retrieveDepartment(ctx echo.Context) error {
	d, err := api.svc.GetDepartment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting department")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *academicApi) bindDepartment(ctx echo.Context) (academic.DepartmentInput, error) {
	var data academic.DepartmentInput
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to DepartmentInput")
	}
	return data, data.Validate(api.validate)
}

func (api *academicApi) createDepartment(ctx echo.Context) error {
	data, err := api.bindDepartment(ctx)
	if err != nil {
		return err
	}
	d, err := api.svc.CreateDepartment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating department")
	}
	return ctx.JSON(http.StatusCreated, d)
}

func (api *academicApi) updateDepartment(ctx echo.Context) error {
	data, err := api.bindDepartment(ctx)
	if err != nil {
		return err
	}
	d, err := api.svc.UpdateDepartment(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating department")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *academicApi) destroyDepartment(ctx echo.Context) error {
	if err := api.svc.DeleteDepartment(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting department")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Academic years

func (api *academicApi) listAcademicYears(ctx echo.Context) error {
	years, err := api.svc.ListAcademicYears(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing academic years")
	}
	return ctx.JSON(http.StatusOK, years)
}

func (api *academicApi) currentAcademicYear(ctx echo.Context) error {
	y, err := api.svc.CurrentAcademicYear(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting current academic year")
	}
	return ctx.JSON(http.StatusOK, y)
}

func (api *academicApi) retrieveAcademicYear(ctx echo.Context) error {
	y, err := api.svc.GetAcademicYear(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting academic year")
	}
	return ctx.JSON(http.StatusOK, y)
}

func (api *academicApi) bindAcademicYear(ctx echo.Context) (academic.AcademicYearInput, error) {
	var data academic.AcademicYearInput
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to AcademicYearInput")
	}
	return data, data.Validate(api.validate)
}

func (api *academicApi) createAcademicYear(ctx echo.Context) error {
	data, err := api.bindAcademicYear(ctx)
	if err != nil {
		return err
	}
	y, err := api.svc.CreateAcademicYear(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating academic year")
	}
	return ctx.JSON(http.StatusCreated, y)
}

func (api *academicApi) updateAcademicYear(ctx echo.Context) error {
	data, err := api.bindAcademicYear(ctx)
	if err != nil {
		return err
	}
	y, err := api.svc.UpdateAcademicYear(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating academic year")
	}
	return ctx.JSON(http.StatusOK, y)
}

func (api *academicApi) destroyAcademicYear(ctx echo.Context) error {
	if err := api.svc.DeleteAcademicYear(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting academic year")
	}
	return ctx.NoContent(http.StatusNoContent)
}
