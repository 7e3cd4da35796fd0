package download_api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"thirdcoast.systems/fetchd/cmd/web/handlers/common"
	"thirdcoast.systems/fetchd/internal/downloads"
)

func HandleShow(svc *downloads.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		videoID, err := common.RequireVideoIDParam(c, "id")
		if err != nil {
			return err
		}

		d, err := svc.Get(c.Request().Context(), videoID)
		if err != nil {
			return common.ServiceError(c, err)
		}
		return c.JSON(http.StatusOK, d)
	}
}

func HandleLatest(svc *downloads.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		videoID, err := common.RequireVideoIDParam(c, "id")
		if err != nil {
			return err
		}

		a, err := svc.Latest(c.Request().Context(), videoID)
		if err != nil {
			return common.ServiceError(c, err)
		}
		return c.JSON(http.StatusOK, a)
	}
}
