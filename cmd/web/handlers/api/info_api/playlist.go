package info_api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"thirdcoast.systems/fetchd/cmd/web/handlers/common"
	"thirdcoast.systems/fetchd/internal/downloads"
)

func HandlePlaylistInfo(svc *downloads.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		playlistID, err := common.RequirePlaylistIDParam(c, "id")
		if err != nil {
			return err
		}

		info, err := svc.PlaylistInfo(c.Request().Context(), playlistID)
		if err != nil {
			return common.ServiceError(c, err)
		}
		return c.JSON(http.StatusOK, info)
	}
}

// HandleStorePlaylistInfo stores the playlist and links each entry as a video.
func HandleStorePlaylistInfo(svc *downloads.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		playlistID, err := common.RequirePlaylistIDParam(c, "id")
		if err != nil {
			return err
		}

		p, err := svc.StorePlaylistInfo(c.Request().Context(), playlistID)
		if err != nil {
			return common.ServiceError(c, err)
		}
		return c.JSON(http.StatusOK, p)
	}
}
