// package download_api provides the download lifecycle handlers.
package download_api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"thirdcoast.systems/fetchd/cmd/web/handlers/common"
	"thirdcoast.systems/fetchd/internal/downloads"
)

// HandleCreate starts a download of the video, or returns the existing one
// while its latest attempt is live or finished.
func HandleCreate(svc *downloads.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		videoID, err := common.RequireVideoIDParam(c, "id")
		if err != nil {
			return err
		}

		var opts *downloads.RequestOptions
		var body downloads.RequestOptions
		ok, err := common.BindOptionalJSON(c, &body)
		if err != nil {
			return err
		}
		if ok {
			opts = &body
		}

		d, err := svc.Start(c.Request().Context(), videoID, opts)
		if err != nil {
			return common.ServiceError(c, err)
		}
		return c.JSON(http.StatusOK, d)
	}
}
