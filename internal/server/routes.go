package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/version", s.handleVersion)

	// Catalog API
	s.echo.GET("/api/live", s.handleLiveBroadcast)
	s.echo.GET("/api/archive", s.handleArchive)
	s.echo.GET("/api/search", s.handleSearch)

	// Completed recording downloads
	s.echo.GET("/recordings/:filename", s.handleRecording)

	// WebSocket gateways
	s.echo.GET("/ws/broadcast", s.handleBroadcasterSocket)
	s.echo.GET("/ws/listen", s.handleListenerSocket)
}
