package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/payment"
	"github.com/neuromagic/academy/core/user"
)

type paymentApi struct {
	svc      payment.Service
	users    user.Service
	logger   core.Logger
	validate *validator.Validate
}

func registerPaymentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := paymentApi{
		svc:      deps.PaymentSvc,
		users:    deps.UserSvc,
		logger:   deps.Logger,
		validate: deps.Validate,
	}

	pg := g.Group("/payments")
	// the gateway authenticates by source IP only
	pg.POST("/webhook", api.webhook)

	ag := pg.Group("", jwt)
	ag.POST("", api.create)
	ag.GET("", api.query)
	ag.POST("/mock", api.purchaseMock, debugOnlyMiddleware(deps.Conf.Debug))
	ag.GET("/:id", api.retrieve)
}

func (api *paymentApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	var data CheckoutRequest
	if err = bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	checkout, err := api.svc.Create(ctx.Request().Context(), usr.ID, data.CourseSlug, data.ReturnURL)
	if err != nil {
		return errors.Wrap(err, "creating payment")
	}
	return ctx.JSON(http.StatusCreated, checkout)
}

func (api *paymentApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	pays, err := api.svc.ListForUser(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing payments")
	}
	return ctx.JSON(http.StatusOK, pays)
}

func (api *paymentApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	pay, err := api.svc.Get(ctx.Request().Context(), usr.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding payment")
	}
	return ctx.JSON(http.StatusOK, pay)
}

func (api *paymentApi) purchaseMock(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	var data CheckoutRequest
	if err = bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	enr, err := api.svc.PurchaseMock(ctx.Request().Context(), usr.ID, data.CourseSlug)
	if err != nil {
		return errors.Wrap(err, "mock purchase")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

// webhook always answers with a status body; the gateway retries on anything but 200.
func (api *paymentApi) webhook(ctx echo.Context) error {
	var n payment.Notification
	if err := ctx.Bind(&n); err != nil {
		return ctx.JSON(http.StatusBadRequest, WebhookResponse{Status: "error"})
	}

	err := api.svc.HandleNotification(ctx.Request().Context(), ctx.RealIP(), n)
	if err != nil {
		api.logger.Warn("payment notification rejected", err, map[string]interface{}{
			"event":      n.Event,
			"payment_id": n.Object.ID,
			"source_ip":  ctx.RealIP(),
		})
		return ctx.JSON(http.StatusBadRequest, WebhookResponse{Status: "error"})
	}
	return ctx.JSON(http.StatusOK, WebhookResponse{Status: "ok"})
}

type (
	CheckoutRequest struct {
		CourseSlug string `json:"course_slug" validate:"required,slug"`
		ReturnURL  string `json:"return_url" validate:"omitempty,web_url"`
	}

	WebhookResponse struct {
		Status string `json:"status"`
	}
)

func (cr *CheckoutRequest) Validate(validate *validator.Validate) error {
	cr.CourseSlug = core.CleanString(cr.CourseSlug, true /* lower */)
	cr.ReturnURL = core.CleanString(cr.ReturnURL)
	return validate.Struct(cr)
}
