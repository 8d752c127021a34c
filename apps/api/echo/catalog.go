package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/educa/core/course"
)

type catalogApi struct {
	svc *course.Service
}

// courseDetail is a course with its modules, by order.
type courseDetail struct {
	course.Course
	Modules []course.Module `json:"modules"`
}

func registerCatalogAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := catalogApi{svc: deps.CourseSvc}

	cg := g.Group("", jwt, activeUserMiddleware(deps.UserSvc))
	cg.GET("/subjects", api.querySubjects)
	cg.GET("/subjects/:slug", api.retrieveSubject)
	cg.GET("/courses", api.queryCourses)
	cg.GET("/courses/:id", api.retrieveCourse)
}

// Handlers

func (api *catalogApi) querySubjects(ctx echo.Context) error {
	subjects, err := api.svc.QuerySubjects(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *catalogApi) retrieveSubject(ctx echo.Context) error {
	subj, err := api.svc.GetSubject(ctx.Request().Context(), ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "getting subject")
	}
	return ctx.JSON(http.StatusOK, subj)
}

// queryCourses lists every course, or only those of ?subject=<slug>.
func (api *catalogApi) queryCourses(ctx echo.Context) error {
	courses, err := api.svc.QueryCatalog(ctx.Request().Context(), ctx.QueryParam("subject"))
	if err != nil {
		return errors.Wrap(err, "querying catalog")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *catalogApi) retrieveCourse(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	crs, err := api.svc.GetCourse(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	mods, err := api.svc.QueryModules(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "querying modules")
	}
	return ctx.JSON(http.StatusOK, courseDetail{Course: crs, Modules: mods})
}
