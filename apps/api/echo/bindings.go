package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

// listParams reads page, page_size, search, ordering and filters from the query string.
func listParams(ctx echo.Context) core.ListParams {
	return core.NewListParams(ctx.QueryParams())
}

// pathID parses the `:id` path parameter; malformed ids are reported as a missing resource.
func pathID(ctx echo.Context, resource string) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, core.NewNotFoundError(resource)
	}
	return id, nil
}

func bind(ctx echo.Context, data interface{}, what string) error {
	return errors.Wrap(ctx.Bind(data), "binding to "+what)
}
