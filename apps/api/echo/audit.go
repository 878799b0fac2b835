package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/registrar/core"
	"github.com/trezcool/registrar/core/audit"
)

type auditApi struct {
	svc *audit.Service
}

func registerAuditAPI(g *echo.Group, svc *audit.Service) {
	api := auditApi{svc: svc}
	g.GET("/audit-logs", api.query)
}

func (api *auditApi) query(ctx echo.Context) error {
	var filter audit.QueryFilter
	errs := echo.QueryParamsBinder(ctx).
		String("entity", &filter.Entity).
		String("entity_id", &filter.EntityID).
		String("actor", &filter.Actor).
		String("action", &filter.Action).
		Time("from", &filter.From, time.RFC3339).
		Time("to", &filter.To, time.RFC3339).
		Int("limit", &filter.Limit).
		BindErrors()
	if len(errs) > 0 {
		fields := make([]core.FieldError, 0, len(errs))
		for _, e := range errs {
			if bErr, ok := e.(*echo.BindingError); ok {
				fields = append(fields, core.FieldError{Field: bErr.Field, Error: "invalid value"})
			}
		}
		return core.NewValidationError(errors.New("invalid audit filter"), fields...)
	}

	entries, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying audit logs")
	}
	return ctx.JSON(http.StatusOK, entries)
}
