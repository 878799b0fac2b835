package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/registrar/core"
)

const actorHeader = "X-Actor"

// actorMiddleware attributes the request to the actor named in the X-Actor header.
// The header is trusted as is: it only feeds the audit log.
func actorMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if id := strings.TrimSpace(ctx.Request().Header.Get(actorHeader)); id != "" {
			req := ctx.Request()
			ctx.SetRequest(req.WithContext(core.WithActor(req.Context(), core.Actor{ID: id, Name: id})))
		}
		return next(ctx)
	}
}
