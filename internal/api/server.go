// Package api serves the small operational HTTP surface: health and store
// status.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/reportsync/internal/store"
)

// StatusSource provides the counts surfaced on /status
type StatusSource interface {
	Stats(ctx context.Context) (store.Counts, error)
}

// Server represents the ops API server
type Server struct {
	echo  *echo.Echo
	port  int
	stats StatusSource
}

// NewServer creates the API server
func NewServer(port int, stats StatusSource) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())

	server := &Server{
		echo:  e,
		port:  port,
		stats: stats,
	}
	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	s.echo.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	s.echo.GET("/status", func(c echo.Context) error {
		counts, err := s.stats.Stats(c.Request().Context())
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, counts)
	})
}

// Start begins serving; it blocks until the server stops
func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%d", s.port))
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
