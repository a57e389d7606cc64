package handlers

import (
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	apperrors "github.com/anonto42/byteboard/internal/errors"
)

// httpError converts a service error into an echo HTTP error. Coded domain
// errors keep their message; anything else is reported as a 500.
func httpError(err error) error {
	var domainErr *apperrors.Error
	if apperrors.As(err, &domainErr) {
		return echo.NewHTTPError(domainErr.HTTPStatus(), domainErr.Message).SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "Something went wrong. Please try again.").SetInternal(err)
}

func ok(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": data})
}

const (
	maxLimit = 50
	// maxPage keeps (page-1)*limit far from overflowing.
	maxPage = 1 << 20
)

// pageParams reads page and limit query parameters.
func pageParams(c echo.Context, defaultLimit int) (page, limit int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	page = min(page, maxPage)
	if limit < 1 || limit > maxLimit {
		limit = defaultLimit
	}
	return page, limit
}

func pageMeta(page, limit int, totalItems int64) echo.Map {
	totalPages := int(math.Ceil(float64(totalItems) / float64(limit)))
	return echo.Map{
		"currentPage":     page,
		"totalPages":      totalPages,
		"totalItems":      totalItems,
		"itemsPerPage":    limit,
		"hasNextPage":     page < totalPages,
		"hasPreviousPage": page > 1,
	}
}
