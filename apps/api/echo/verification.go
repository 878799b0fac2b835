package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/registrar/core/verification"
)

type verificationApi struct {
	svc *verification.Service
}

// registerVerificationAPI exposes the public certificate verification portal.
func registerVerificationAPI(g *echo.Group, svc *verification.Service) {
	api := verificationApi{svc: svc}
	g.GET("/verify/:certificateId", api.verify)
}

// verify answers 200 for unknown certificates too: Valid tells the outcome.
func (api *verificationApi) verify(ctx echo.Context) error {
	res, err := api.svc.Verify(ctx.Request().Context(), ctx.Param("certificateId"))
	if err != nil {
		return errors.Wrap(err, "verifying certificate")
	}
	return ctx.JSON(http.StatusOK, res)
}
