package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/educa/core/ordering"
)

const pageParam = "page"

// Page is the 1-based page number of a paginated listing.
// Missing or non numeric values fall back to the first page.
type Page int

func (p *Page) Bind(ctx echo.Context) {
	*p = 1
	val := ctx.QueryParam(pageParam)
	if val == "" {
		return
	}
	if n, err := strconv.Atoi(val); err == nil {
		*p = Page(n)
	}
}

// OrderMap is a reorder batch: {"<id>": <order>, ...}.
type OrderMap map[int]int

func (om *OrderMap) Bind(ctx echo.Context) error {
	var raw map[string]int
	if err := ctx.Bind(&raw); err != nil {
		return err
	}
	orders := make(OrderMap, len(raw))
	for key, order := range raw {
		id, err := strconv.Atoi(key)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid id: "+key)
		}
		orders[id] = order
	}
	if err := ordering.Validate(orders); err != nil {
		return err
	}
	*om = orders
	return nil
}
