package echoapi

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/content"
	"github.com/trezcool/educa/core/course"
)

var savedOK = echo.Map{"saved": "OK"}

type manageApi struct {
	courseSvc  *course.Service
	contentSvc *content.Service
	validate   *validator.Validate
	logger     core.Logger
}

func registerManageAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := manageApi{
		courseSvc:  deps.CourseSvc,
		contentSvc: deps.ContentSvc,
		validate:   deps.Validate,
		logger:     deps.Logger,
	}

	ig := g.Group("", jwt, activeUserMiddleware(deps.UserSvc), instructorMiddleware)
	ig.GET("/items/:kind/:id", api.resolveItem)

	mg := ig.Group("/manage")

	// courses
	mg.GET("/courses", api.queryCourses)
	mg.POST("/courses", api.createCourse)
	mg.PUT("/courses/:id", api.updateCourse)
	mg.DELETE("/courses/:id", api.destroyCourse)

	// modules
	mg.GET("/courses/:id/modules", api.queryModules, ownedObjectMiddleware(api.courseSvc.GetOwnedCourse))
	mg.POST("/courses/:id/modules", api.createModule)
	mg.PUT("/modules/:id", api.updateModule)
	mg.DELETE("/modules/:id", api.destroyModule)
	mg.POST("/modules/order", api.orderModules)

	// contents
	mg.GET("/modules/:id/contents", api.queryContents, ownedObjectMiddleware(api.courseSvc.GetOwnedModule))
	mg.POST("/modules/:id/contents/:kind", api.createContent)
	mg.PUT("/contents/:id", api.updateContent)
	mg.DELETE("/contents/:id", api.destroyContent)
	mg.POST("/contents/order", api.orderContents)
}

// Courses

func (api *manageApi) queryCourses(ctx echo.Context) error {
	courses, err := api.courseSvc.QueryOwnedCourses(ctx.Request().Context(), contextUser(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "querying owned courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *manageApi) createCourse(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	crs, err := api.courseSvc.CreateCourse(ctx.Request().Context(), contextUser(ctx).ID, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *manageApi) updateCourse(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	crs, err := api.courseSvc.UpdateCourse(ctx.Request().Context(), contextUser(ctx).ID, id, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *manageApi) destroyCourse(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	if err := api.courseSvc.DeleteCourse(ctx.Request().Context(), contextUser(ctx).ID, id); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Modules

func (api *manageApi) queryModules(ctx echo.Context) error {
	crs := contextObject[course.Course](ctx)
	mods, err := api.courseSvc.QueryModules(ctx.Request().Context(), crs.ID)
	if err != nil {
		return errors.Wrap(err, "querying modules")
	}
	return ctx.JSON(http.StatusOK, mods)
}

func (api *manageApi) createModule(ctx echo.Context) error {
	courseID, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data course.NewModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewModule")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mod, err := api.courseSvc.CreateModule(ctx.Request().Context(), contextUser(ctx).ID, courseID, data)
	if err != nil {
		return errors.Wrap(err, "creating module")
	}
	return ctx.JSON(http.StatusCreated, mod)
}

func (api *manageApi) updateModule(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data course.UpdateModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateModule")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mod, err := api.courseSvc.UpdateModule(ctx.Request().Context(), contextUser(ctx).ID, id, data)
	if err != nil {
		return errors.Wrap(err, "updating module")
	}
	return ctx.JSON(http.StatusOK, mod)
}

func (api *manageApi) destroyModule(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	if err := api.courseSvc.DeleteModule(ctx.Request().Context(), contextUser(ctx).ID, id); err != nil {
		return errors.Wrap(err, "deleting module")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *manageApi) orderModules(ctx echo.Context) error {
	var orders OrderMap
	if err := orders.Bind(ctx); err != nil {
		return errors.Wrap(err, "binding to OrderMap")
	}
	if err := api.courseSvc.ReorderModules(ctx.Request().Context(), contextUser(ctx).ID, orders); err != nil {
		return errors.Wrap(err, "ordering modules")
	}
	return ctx.JSON(http.StatusOK, savedOK)
}

// Contents

func (api *manageApi) queryContents(ctx echo.Context) error {
	mod := contextObject[course.Module](ctx)
	contents, err := api.contentSvc.QueryModuleContents(ctx.Request().Context(), mod.ID)
	if err != nil {
		return errors.Wrap(err, "querying contents")
	}
	return ctx.JSON(http.StatusOK, contents)
}

// bindItemData reads the item fields from a JSON body or a multipart form.
// The multipart `file` field becomes the item upload.
func bindItemData(ctx echo.Context) (content.ItemData, error) {
	var data content.ItemData
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to ItemData")
	}
	if !strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return data, nil
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		if err == http.ErrMissingFile {
			return data, nil
		}
		return data, errors.Wrap(err, "reading uploaded file")
	}
	f, err := fh.Open()
	if err != nil {
		return data, errors.Wrap(err, "opening uploaded file")
	}
	data.Upload = &content.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Reader:      f,
	}
	return data, nil
}

func closeUpload(data content.ItemData) {
	if data.Upload == nil {
		return
	}
	if c, ok := data.Upload.Reader.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}

func (api *manageApi) createContent(ctx echo.Context) error {
	moduleID, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	kind, err := content.ParseKind(ctx.Param("kind"))
	if err != nil {
		return err
	}

	data, err := bindItemData(ctx)
	defer closeUpload(data)
	if err != nil {
		return err
	}
	if err := data.Validate(api.validate, kind, true /* creating */); err != nil {
		return err
	}

	slot, err := api.contentSvc.Create(ctx.Request().Context(), contextUser(ctx).ID, moduleID, string(kind), data)
	if err != nil {
		return errors.Wrap(err, "creating content")
	}
	return ctx.JSON(http.StatusCreated, slot)
}

func (api *manageApi) updateContent(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	slot, err := api.contentSvc.GetOwnedContent(ctx.Request().Context(), contextUser(ctx).ID, id)
	if err != nil {
		return errors.Wrap(err, "getting content")
	}

	data, err := bindItemData(ctx)
	defer closeUpload(data)
	if err != nil {
		return err
	}
	if err := data.Validate(api.validate, slot.Kind, false /* creating */); err != nil {
		return err
	}

	slot, err = api.contentSvc.UpdateItem(ctx.Request().Context(), contextUser(ctx).ID, id, data)
	if err != nil {
		return errors.Wrap(err, "updating content")
	}
	return ctx.JSON(http.StatusOK, slot)
}

func (api *manageApi) destroyContent(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	if err := api.contentSvc.Delete(ctx.Request().Context(), contextUser(ctx).ID, id); err != nil {
		return errors.Wrap(err, "deleting content")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *manageApi) orderContents(ctx echo.Context) error {
	var orders OrderMap
	if err := orders.Bind(ctx); err != nil {
		return errors.Wrap(err, "binding to OrderMap")
	}
	if err := api.contentSvc.ReorderContents(ctx.Request().Context(), contextUser(ctx).ID, orders); err != nil {
		return errors.Wrap(err, "ordering contents")
	}
	return ctx.JSON(http.StatusOK, savedOK)
}

// Items

// resolveItem returns the item behind a (kind, id) reference. Items of other instructors are not found.
func (api *manageApi) resolveItem(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	item, err := api.contentSvc.Resolve(ctx.Request().Context(), ctx.Param("kind"), id)
	if err != nil {
		return errors.Wrap(err, "resolving item")
	}
	if item.Owner() != contextUser(ctx).ID {
		return content.ErrItemNotFound
	}
	return ctx.JSON(http.StatusOK, item)
}
