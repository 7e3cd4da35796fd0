package download_api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/starfederation/datastar-go/datastar"
	"thirdcoast.systems/fetchd/cmd/web/handlers/common"
	"thirdcoast.systems/fetchd/internal/downloads"
)

// StreamInterval is how often the stream re-reads the latest attempt.
var StreamInterval = time.Second

const streamTimeout = 30 * time.Minute

type progressSignals struct {
	Download attemptSignals `json:"download"`
}

type attemptSignals struct {
	AttemptID       int64    `json:"attempt_id"`
	Status          string   `json:"status"`
	Message         string   `json:"message"`
	DownloadedBytes *int64   `json:"downloaded_bytes"`
	TotalBytes      *int64   `json:"total_bytes"`
	ETA             *int64   `json:"eta"`
	Speed           *float64 `json:"speed"`
	Filename        string   `json:"filename"`
	Percent         *float64 `json:"percent"`
}

func signalsFor(a *downloads.Attempt) attemptSignals {
	s := attemptSignals{
		AttemptID:       a.ID,
		Status:          string(a.Status),
		Message:         a.Message,
		DownloadedBytes: a.DownloadedBytes,
		TotalBytes:      a.TotalBytes,
		ETA:             a.ETA,
		Speed:           a.Speed,
		Filename:        common.DerefString(a.Filename),
	}
	if a.DownloadedBytes != nil && a.TotalBytes != nil && *a.TotalBytes > 0 {
		p := float64(*a.DownloadedBytes) * 100 / float64(*a.TotalBytes)
		s.Percent = &p
	}
	return s
}

// HandleStream pushes the latest attempt's progress as datastar signals until
// the attempt is terminal or the client goes away.
func HandleStream(svc *downloads.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		videoID, err := common.RequireVideoIDParam(c, "id")
		if err != nil {
			return err
		}

		ctx := c.Request().Context()
		if _, err := svc.Latest(ctx, videoID); err != nil {
			return common.ServiceError(c, err)
		}

		// Set up SSE
		common.SetSSEHeaders(c)
		sse := datastar.NewSSE(c.Response().Writer, c.Request())

		ticker := time.NewTicker(StreamInterval)
		defer ticker.Stop()

		// Add timeout to prevent zombie connections
		timeout := time.NewTimer(streamTimeout)
		defer timeout.Stop()

		var last []byte
		for {
			a, err := svc.Latest(ctx, videoID)
			if err != nil {
				if errors.Is(err, ctx.Err()) {
					return nil
				}
				slog.Error("failed to fetch attempt for SSE", "video_id", videoID, "error", err)
				return nil
			}

			payload, err := json.Marshal(progressSignals{Download: signalsFor(a)})
			if err != nil {
				return err
			}
			if string(payload) != string(last) {
				last = payload
				if err := sse.PatchSignals(payload); err != nil {
					slog.Debug("SSE client went away", "video_id", videoID, "error", err)
					return nil
				}
			}
			if a.IsTerminal() {
				return nil
			}

			select {
			case <-ctx.Done():
				return nil
			case <-timeout.C:
				slog.Warn("SSE connection timeout", "video_id", videoID)
				return nil
			case <-ticker.C:
			}
		}
	}
}
