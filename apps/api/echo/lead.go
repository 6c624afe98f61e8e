package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/neuromagic/academy/core/lead"
)

type leadApi struct {
	svc      *lead.Service
	validate *validator.Validate
}

func registerLeadAPI(g *echo.Group, deps ServerDeps) {
	api := leadApi{svc: deps.LeadSvc, validate: deps.Validate}
	g.POST("/leads", api.submit)
}

func (api *leadApi) submit(ctx echo.Context) error {
	var data lead.Lead
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	if err := api.svc.Submit(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "submitting lead")
	}
	return ctx.JSON(http.StatusCreated, SuccessResponse{Success: "Thank you! We will contact you shortly."})
}
