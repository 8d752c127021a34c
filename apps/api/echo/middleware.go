package echoapi

import (
	"context"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/educa/core/user"
)

const contextObjectKey = "object"

// activeUserMiddleware loads the caller of the request and rejects deactivated accounts.
func activeUserMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := getContextUser(ctx, svc); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

func adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, ok := ctx.Get(contextUserKey).(user.User)
		if !ok {
			return errUnauthorized
		}
		if usr.IsAdmin() {
			return next(ctx)
		}
		return errHttpForbidden
	}
}

// instructorMiddleware lets through instructors and admins.
func instructorMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, ok := ctx.Get(contextUserKey).(user.User)
		if !ok {
			return errUnauthorized
		}
		if usr.IsInstructor() || usr.IsAdmin() {
			return next(ctx)
		}
		return errHttpForbidden
	}
}

// ownedObjectMiddleware loads the object identified by the `id` path param on behalf of the caller
// and stores it in the context under "object".
func ownedObjectMiddleware[T any](load func(ctx context.Context, ownerID, id int) (T, error)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := pathID(ctx, "id")
			if err != nil {
				return err
			}
			obj, err := load(ctx.Request().Context(), contextUser(ctx).ID, id)
			if err != nil {
				return errors.Wrap(err, "loading object")
			}
			ctx.Set(contextObjectKey, obj)
			return next(ctx)
		}
	}
}

func contextObject[T any](ctx echo.Context) T {
	obj, _ := ctx.Get(contextObjectKey).(T)
	return obj
}

// contextUser returns the caller loaded by activeUserMiddleware.
func contextUser(ctx echo.Context) user.User {
	usr, _ := ctx.Get(contextUserKey).(user.User)
	return usr
}

func pathID(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}
