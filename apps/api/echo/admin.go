package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/access"
	"github.com/neuromagic/academy/core/learning"
	"github.com/neuromagic/academy/core/user"
)

type adminApi struct {
	learning learning.Service
	access   access.Service
	users    user.Service
	validate *validator.Validate
}

func registerAdminAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := adminApi{
		learning: deps.LearningSvc,
		access:   deps.AccessSvc,
		users:    deps.UserSvc,
		validate: deps.Validate,
	}

	ag := g.Group("/admin", jwt, adminMiddleware())
	ag.PUT("/courses/:slug/content", api.importCourse)
	ag.POST("/enrollments", api.grant)
	ag.DELETE("/enrollments", api.revoke)
}

func (api *adminApi) importCourse(ctx echo.Context) error {
	var data learning.CourseContent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CourseContent")
	}
	data.CourseSlug = ctx.Param("slug")
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	mods, err := api.learning.ImportCourse(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "importing course")
	}
	return ctx.JSON(http.StatusOK, mods)
}

func (api *adminApi) grant(ctx echo.Context) error {
	var data EnrollmentRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	usr, err := api.users.GetByUsernameOrEmail(ctx.Request().Context(), data.User)
	if err != nil {
		return errors.Wrap(err, "finding user")
	}
	enr, created, err := api.access.Grant(ctx.Request().Context(), access.Grant{
		UserID:     usr.ID,
		CourseSlug: data.CourseSlug,
		Price:      data.Price,
		Method:     access.MethodAdmin,
	})
	if err != nil {
		return errors.Wrap(err, "granting access")
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	return ctx.JSON(code, enr)
}

func (api *adminApi) revoke(ctx echo.Context) error {
	var data EnrollmentRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	usr, err := api.users.GetByUsernameOrEmail(ctx.Request().Context(), data.User)
	if err != nil {
		return errors.Wrap(err, "finding user")
	}
	if err = api.access.Revoke(ctx.Request().Context(), usr.ID, data.CourseSlug); err != nil {
		return errors.Wrap(err, "revoking access")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// EnrollmentRequest identifies the user by username or email.
type EnrollmentRequest struct {
	User       string          `json:"user" validate:"required"`
	CourseSlug string          `json:"course_slug" validate:"required,slug"`
	Price      decimal.Decimal `json:"price"` // zero: catalog price
}

func (er *EnrollmentRequest) Validate(validate *validator.Validate) error {
	er.User = core.CleanString(er.User, true /* lower */)
	er.CourseSlug = core.CleanString(er.CourseSlug, true /* lower */)
	if er.Price.IsNegative() {
		return core.NewValidationError(nil, core.FieldError{Field: "price", Error: "must not be negative"})
	}
	return validate.Struct(er)
}
