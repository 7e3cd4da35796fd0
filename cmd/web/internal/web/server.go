package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"thirdcoast.systems/fetchd/cmd/web/handlers/api/download_api"
	"thirdcoast.systems/fetchd/cmd/web/handlers/api/info_api"
	"thirdcoast.systems/fetchd/internal/downloads"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Webserver struct {
	*echo.Echo
	svc    *downloads.Service
	pinger Pinger
}

func NewWebserver(svc *downloads.Service, pinger Pinger) (*Webserver, error) {
	e := echo.New()

	webserver := &Webserver{
		Echo:   e,
		svc:    svc,
		pinger: pinger,
	}

	if err := webserver.registerRoutes(); err != nil {
		return nil, err
	}

	if err := webserver.setupMiddleware(); err != nil {
		return nil, err
	}

	return webserver, nil
}

func (s *Webserver) setupMiddleware() error {
	s.HideBanner = true
	s.HidePort = true
	s.Use(middleware.BodyLimit("2M"))
	s.Use(middleware.Recover())
	s.Use(middleware.RequestID())
	s.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		// Compression buffers the event stream.
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/download/video/:id/stream"
		},
	}))
	s.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/healthz"
		},
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  false,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				fields = append(fields, "error", v.Error)
			}
			slog.Info("request", fields...)
			return nil
		},
	}))

	return nil
}

func (s *Webserver) registerRoutes() error {
	downloadGroup := s.Group("/download/video")
	downloadGroup.POST("/:id", download_api.HandleCreate(s.svc))
	downloadGroup.GET("/:id", download_api.HandleShow(s.svc))
	downloadGroup.GET("/:id/latest", download_api.HandleLatest(s.svc))
	downloadGroup.DELETE("/:id", download_api.HandleCancel(s.svc))
	downloadGroup.GET("/:id/stream", download_api.HandleStream(s.svc))

	infoGroup := s.Group("/info")
	infoGroup.GET("/video/:id", info_api.HandleVideoInfo(s.svc))
	infoGroup.POST("/video/:id", info_api.HandleStoreVideoInfo(s.svc))
	infoGroup.GET("/playlist/:id", info_api.HandlePlaylistInfo(s.svc))
	infoGroup.POST("/playlist/:id", info_api.HandleStorePlaylistInfo(s.svc))

	// Health check
	s.GET("/healthz", s.handleHealth)

	return nil
}

func (s *Webserver) handleHealth(c echo.Context) error {
	if s.pinger == nil {
		return c.String(http.StatusOK, "ok")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := s.pinger.Ping(ctx); err != nil {
		slog.Warn("health check failed", "error", err)
		return c.String(http.StatusServiceUnavailable, "database unavailable")
	}
	return c.String(http.StatusOK, "ok")
}
