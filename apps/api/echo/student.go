package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/educa/core/content"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/enrollment"
)

type (
	studentApi struct {
		svc        *enrollment.Service
		courseSvc  *course.Service
		contentSvc *content.Service
		validate   *validator.Validate
	}

	timeSpent struct {
		Seconds *int `json:"seconds" validate:"required"`
	}

	moduleContents struct {
		Module   course.Module     `json:"module"`
		Contents []content.Content `json:"contents"`
	}
)

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := studentApi{
		svc:        deps.EnrollmentSvc,
		courseSvc:  deps.CourseSvc,
		contentSvc: deps.ContentSvc,
		validate:   deps.Validate,
	}

	ag := g.Group("", jwt, activeUserMiddleware(deps.UserSvc))
	ag.POST("/courses/:id/enroll", api.enroll)

	sg := ag.Group("/students")
	sg.GET("/courses", api.queryCourses)
	sg.GET("/courses/:id/modules/:mid/contents", api.moduleContents)
	sg.GET("/courses/:id/progress", api.courseProgress)
	sg.POST("/modules/:id/complete", api.completeModule)
	sg.POST("/modules/:id/time", api.trackTime)
	sg.GET("/progress", api.overallProgress)
}

// Handlers

func (api *studentApi) enroll(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	crs, err := api.svc.Enroll(ctx.Request().Context(), contextUser(ctx).ID, id)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *studentApi) queryCourses(ctx echo.Context) error {
	courses, err := api.svc.QueryEnrolledCourses(ctx.Request().Context(), contextUser(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "querying enrolled courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

// moduleContents returns the contents of a module of the course; opening a module marks it completed.
func (api *studentApi) moduleContents(ctx echo.Context) error {
	courseID, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	moduleID, err := pathID(ctx, "mid")
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	usr := contextUser(ctx)

	if err := api.svc.RequireEnrolled(reqCtx, usr.ID, courseID); err != nil {
		return err
	}
	mod, err := api.courseSvc.GetModule(reqCtx, moduleID)
	if err != nil {
		return errors.Wrap(err, "getting module")
	}
	if mod.CourseID != courseID {
		return course.ErrModuleNotFound
	}
	if err := api.svc.MarkModuleCompleted(reqCtx, usr.ID, mod.ID); err != nil {
		return errors.Wrap(err, "marking module completed")
	}

	contents, err := api.contentSvc.QueryModuleContents(reqCtx, mod.ID)
	if err != nil {
		return errors.Wrap(err, "querying contents")
	}
	return ctx.JSON(http.StatusOK, moduleContents{Module: mod, Contents: contents})
}

func (api *studentApi) completeModule(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	if err := api.svc.MarkModuleCompleted(ctx.Request().Context(), contextUser(ctx).ID, id); err != nil {
		return errors.Wrap(err, "marking module completed")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"status": "completed"})
}

func (api *studentApi) trackTime(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data timeSpent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to timeSpent")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	seconds := *data.Seconds
	if err := api.svc.AddTimeSpent(ctx.Request().Context(), contextUser(ctx).ID, id, seconds); err != nil {
		return errors.Wrap(err, "adding time spent")
	}
	if seconds == 0 {
		return ctx.JSON(http.StatusOK, echo.Map{"status": "ignored", "reason": "0 seconds"})
	}
	return ctx.JSON(http.StatusOK, echo.Map{"status": "tracked", "seconds": seconds})
}

func (api *studentApi) courseProgress(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	progress, err := api.svc.CourseProgress(ctx.Request().Context(), contextUser(ctx).ID, id)
	if err != nil {
		return errors.Wrap(err, "getting course progress")
	}
	return ctx.JSON(http.StatusOK, progress)
}

func (api *studentApi) overallProgress(ctx echo.Context) error {
	progress, err := api.svc.OverallProgress(ctx.Request().Context(), contextUser(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "getting overall progress")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"overall_progress": progress})
}
