package handler // handler defines http handlers

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// pageParams reads skip/limit/search query parameters with the usual
// bounds: skip >= 0, 1 <= limit <= 100, default limit 10.
func pageParams(c echo.Context) (skip, limit int, search string) {
	skip, limit = 0, 10
	if v, err := strconv.Atoi(c.QueryParam("skip")); err == nil && v >= 0 {
		skip = v
	}
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v >= 1 && v <= 100 {
		limit = v
	}
	return skip, limit, c.QueryParam("search")
}

// idParam parses a numeric path parameter.
func idParam(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}
