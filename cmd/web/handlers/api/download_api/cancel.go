package download_api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"thirdcoast.systems/fetchd/cmd/web/handlers/common"
	"thirdcoast.systems/fetchd/internal/downloads"
)

// HandleCancel cancels the live attempt, if any. It always answers 204.
func HandleCancel(svc *downloads.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		videoID, err := common.RequireVideoIDParam(c, "id")
		if err != nil {
			return err
		}

		if err := svc.Cancel(c.Request().Context(), videoID); err != nil {
			return common.ServiceError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}
