package common

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"thirdcoast.systems/fetchd/internal/videoid"
)

// RequireVideoIDParam extracts a video id route parameter or returns a 404 error.
func RequireVideoIDParam(c echo.Context, param string) (string, error) {
	id := c.Param(param)
	if err := videoid.ValidateVideoID(id); err != nil {
		return "", ErrNotFound("unknown video id")
	}
	return id, nil
}

// RequirePlaylistIDParam extracts a playlist id route parameter or returns a 404 error.
func RequirePlaylistIDParam(c echo.Context, param string) (string, error) {
	id := c.Param(param)
	if err := videoid.ValidatePlaylistID(id); err != nil {
		return "", ErrNotFound("unknown playlist id")
	}
	return id, nil
}

// BindOptionalJSON decodes a JSON body into v, rejecting unknown fields.
// An empty body leaves v untouched and reports false.
func BindOptionalJSON(c echo.Context, v any) (bool, error) {
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if dec.More() {
		return false, echo.NewHTTPError(http.StatusBadRequest, "invalid request body: trailing data")
	}
	return true, nil
}
