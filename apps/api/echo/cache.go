package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/registrar/core/cache"
)

type cacheApi struct {
	reg *cache.Registry
}

func registerCacheAPI(g *echo.Group, reg *cache.Registry) {
	api := cacheApi{reg: reg}

	cg := g.Group("/cache")
	cg.GET("/stats", api.allStats)
	cg.POST("/clear", api.clearAll)
	cg.GET("/:namespace/stats", api.stats)
	cg.POST("/:namespace/clear", api.clear)
}

func (api *cacheApi) namespace(ctx echo.Context) (string, error) {
	ns := ctx.Param("namespace")
	if !api.reg.Has(ns) {
		return "", errHttpNotFound
	}
	return ns, nil
}

func (api *cacheApi) allStats(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.reg.AllStats())
}

func (api *cacheApi) stats(ctx echo.Context) error {
	ns, err := api.namespace(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.reg.Stats(ns))
}

func (api *cacheApi) clearAll(ctx echo.Context) error {
	api.reg.InvalidateAll()
	return ctx.NoContent(http.StatusNoContent)
}

func (api *cacheApi) clear(ctx echo.Context) error {
	ns, err := api.namespace(ctx)
	if err != nil {
		return err
	}
	api.reg.Invalidate(ns)
	return ctx.NoContent(http.StatusNoContent)
}
