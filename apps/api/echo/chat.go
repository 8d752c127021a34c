package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/educa/core/chat"
)

type chatApi struct {
	svc      *chat.Service
	validate *validator.Validate
}

func registerChatAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := chatApi{
		svc:      deps.ChatSvc,
		validate: deps.Validate,
	}

	cg := g.Group("/courses/:id/chat", jwt, activeUserMiddleware(deps.UserSvc))
	cg.GET("", api.history)
	cg.POST("", api.post)
}

// Handlers

// history returns ?page=N of the course chat, counted from the newest message.
func (api *chatApi) history(ctx echo.Context) error {
	courseID, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var page Page
	page.Bind(ctx)

	hist, err := api.svc.History(ctx.Request().Context(), contextUser(ctx).ID, courseID, int(page))
	if err != nil {
		return errors.Wrap(err, "getting chat history")
	}
	return ctx.JSON(http.StatusOK, hist)
}

func (api *chatApi) post(ctx echo.Context) error {
	courseID, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data chat.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr := contextUser(ctx)
	msg, err := api.svc.Post(ctx.Request().Context(), usr.ID, usr.Username, courseID, data)
	if err != nil {
		return errors.Wrap(err, "posting message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}
