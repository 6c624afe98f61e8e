package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/access"
	"github.com/neuromagic/academy/core/user"
)

type userApi struct {
	svc      user.Service
	access   access.Service
	conf     *core.Config
	logger   core.Logger
	validate *validator.Validate
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := userApi{
		svc:      deps.UserSvc,
		access:   deps.AccessSvc,
		conf:     deps.Conf,
		logger:   deps.Logger,
		validate: deps.Validate,
	}

	ag := g.Group("/auth")
	ag.POST("/register", api.register)
	ag.POST("/register/confirm", api.confirmRegistration)
	ag.POST("/register/resend", api.resendCode)
	ag.POST("/login", api.login)
	ag.POST("/telegram", api.telegramLogin)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)
	ag.POST("/token-refresh", api.refreshToken, jwt)

	mg := g.Group("/me", jwt)
	mg.GET("", api.me)
	mg.PUT("", api.updateProfile)
	mg.GET("/courses", api.myCourses)
}

// Handlers

func (api *userApi) register(ctx echo.Context) error {
	var data user.Registration
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	if err := api.svc.RequestRegistration(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "requesting registration")
	}
	return ctx.JSON(http.StatusAccepted, SuccessResponse{
		Success: "A confirmation code has been sent to " + data.Email + ".",
	})
}

func (api *userApi) confirmRegistration(ctx echo.Context) error {
	var data user.ConfirmRegistration
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	usr, err := api.svc.ConfirmRegistration(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "confirming registration")
	}
	return api.respondWithToken(ctx, http.StatusCreated, usr)
}

func (api *userApi) resendCode(ctx echo.Context) error {
	var data user.ResendCode
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	if err := api.svc.ResendCode(ctx.Request().Context(), data.Email); err != nil {
		return errors.Wrap(err, "resending code")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "A new code has been sent to " + data.Email + "."})
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Username, data.Password, ctx.RealIP())
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	return api.respondWithToken(ctx, http.StatusOK, usr)
}

func (api *userApi) telegramLogin(ctx echo.Context) error {
	var data user.TelegramAuth
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	usr, err := api.svc.TelegramLogin(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "telegram login")
	}
	return api.respondWithToken(ctx, http.StatusOK, usr)
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}

	// the answer never tells whether the account exists or is active
	err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email)
	switch cause := errors.Cause(err); {
	case err == nil, cause == user.ErrNotFound:
	case cause == user.ErrAccountDeactivated:
		api.logger.Warn("password reset requested for a deactivated account")
	default:
		api.logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc, api.conf)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token, User: usr})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) updateProfile(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	var data user.UpdateProfile
	if err = bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	usr, err = api.svc.UpdateProfile(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) myCourses(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	enrs, err := api.access.ListForUser(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing enrollments")
	}
	return ctx.JSON(http.StatusOK, enrs)
}

func (api *userApi) respondWithToken(ctx echo.Context, code int, usr user.User) error {
	resp, err := tokenResponse(api.conf, usr)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(code, resp)
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	TokenResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
