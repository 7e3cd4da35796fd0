package common

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"thirdcoast.systems/fetchd/internal/downloads"
)

// ErrBadRequest returns a 400 Bad Request error.
func ErrBadRequest(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}

// ErrNotFound returns a 404 Not Found error.
func ErrNotFound(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusNotFound, msg)
}

// ErrInternal returns a 500 Internal Server Error.
func ErrInternal(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusInternalServerError, msg)
}

// ServiceError maps download service errors to HTTP errors. Unknown errors
// are logged and reported as 500 without detail.
func ServiceError(c echo.Context, err error) *echo.HTTPError {
	switch {
	case errors.Is(err, downloads.ErrInvalidOptions):
		return ErrBadRequest(err.Error())
	case errors.Is(err, downloads.ErrNotFound):
		return ErrNotFound("not found")
	case errors.Is(err, downloads.ErrBlocked):
		return echo.NewHTTPError(http.StatusForbidden, "download is blocked")
	case errors.Is(err, downloads.ErrLocked):
		return echo.NewHTTPError(http.StatusConflict, "download is busy, retry later")
	case errors.Is(err, downloads.ErrExtractor):
		slog.Warn("extractor failed", "path", c.Path(), "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		slog.Error("request failed", "path", c.Path(), "error", err)
		return ErrInternal("internal error")
	}
}
