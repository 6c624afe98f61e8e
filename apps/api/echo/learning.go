package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/neuromagic/academy/core/learning"
	"github.com/neuromagic/academy/core/user"
)

type learningApi struct {
	svc      learning.Service
	users    user.Service
	validate *validator.Validate
}

func registerLearningAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := learningApi{
		svc:      deps.LearningSvc,
		users:    deps.UserSvc,
		validate: deps.Validate,
	}

	cg := g.Group("/me/courses/:slug", jwt)
	cg.GET("", api.courseOutline)
	cg.GET("/progress", api.courseProgress)

	lg := g.Group("/lessons/:id", jwt)
	lg.GET("", api.openLesson)
	lg.POST("/time", api.trackTime)
	lg.POST("/complete", api.completeLesson)
	lg.POST("/quiz", api.submitQuiz)
}

func (api *learningApi) courseOutline(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	outline, err := api.svc.CourseOutline(ctx.Request().Context(), usr.ID, ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "building course outline")
	}
	return ctx.JSON(http.StatusOK, outline)
}

func (api *learningApi) courseProgress(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	prog, err := api.svc.CourseProgress(ctx.Request().Context(), usr.ID, ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "computing course progress")
	}
	return ctx.JSON(http.StatusOK, prog)
}

func (api *learningApi) openLesson(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	detail, err := api.svc.OpenLesson(ctx.Request().Context(), usr.ID, id)
	if err != nil {
		return errors.Wrap(err, "opening lesson")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *learningApi) trackTime(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	var data TrackTimeRequest
	if err = bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	prog, err := api.svc.TrackTime(ctx.Request().Context(), usr.ID, id, data.Seconds)
	if err != nil {
		return errors.Wrap(err, "tracking time")
	}
	return ctx.JSON(http.StatusOK, prog)
}

func (api *learningApi) completeLesson(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	prog, err := api.svc.CompleteLesson(ctx.Request().Context(), usr.ID, id)
	if err != nil {
		return errors.Wrap(err, "completing lesson")
	}
	return ctx.JSON(http.StatusOK, prog)
}

func (api *learningApi) submitQuiz(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	var data QuizRequest
	if err = bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	res, err := api.svc.SubmitQuiz(ctx.Request().Context(), usr.ID, id, data.Answers)
	if err != nil {
		return errors.Wrap(err, "submitting quiz")
	}
	return ctx.JSON(http.StatusOK, res)
}

type (
	TrackTimeRequest struct {
		Seconds int `json:"seconds"`
	}

	QuizRequest struct {
		Answers []int `json:"answers" validate:"required"`
	}
)

// range checks are left to the learning service
func (tr *TrackTimeRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(tr)
}

func (qr *QuizRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(qr)
}
