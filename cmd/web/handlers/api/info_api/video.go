// package info_api provides extractor metadata lookups.
package info_api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"thirdcoast.systems/fetchd/cmd/web/handlers/common"
	"thirdcoast.systems/fetchd/internal/downloads"
)

// HandleVideoInfo returns the extractor's raw metadata without storing it.
func HandleVideoInfo(svc *downloads.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		videoID, err := common.RequireVideoIDParam(c, "id")
		if err != nil {
			return err
		}

		info, err := svc.VideoInfo(c.Request().Context(), videoID)
		if err != nil {
			return common.ServiceError(c, err)
		}
		return c.JSON(http.StatusOK, info)
	}
}

// HandleStoreVideoInfo fetches metadata and creates or refreshes the video.
func HandleStoreVideoInfo(svc *downloads.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		videoID, err := common.RequireVideoIDParam(c, "id")
		if err != nil {
			return err
		}

		v, err := svc.StoreVideoInfo(c.Request().Context(), videoID)
		if err != nil {
			return common.ServiceError(c, err)
		}
		return c.JSON(http.StatusOK, v)
	}
}
