package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/neuromagic/academy/core/catalog"
)

type catalogApi struct {
	catalog *catalog.Catalog
}

func registerCatalogAPI(g *echo.Group, cat *catalog.Catalog) {
	api := catalogApi{catalog: cat}

	cg := g.Group("/catalog")
	cg.GET("/courses", api.query)
	cg.GET("/courses/featured", api.featured)
	cg.GET("/courses/:slug", api.retrieve)
	cg.GET("/reviews", api.reviews)
}

func (api *catalogApi) query(ctx echo.Context) error {
	var filter catalog.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []catalog.Course{})
	}
	return ctx.JSON(http.StatusOK, api.catalog.Filter(filter))
}

func (api *catalogApi) featured(ctx echo.Context) error {
	limit, _ := strconv.Atoi(ctx.QueryParam("limit")) // <= 0: default
	return ctx.JSON(http.StatusOK, api.catalog.Featured(limit))
}

func (api *catalogApi) retrieve(ctx echo.Context) error {
	course, err := api.catalog.GetBySlug(ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "finding course")
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *catalogApi) reviews(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.catalog.Reviews())
}
