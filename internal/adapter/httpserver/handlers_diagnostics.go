package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/chatrelay/internal/domain"
)

type diagnosticsResponse struct {
	Channels   map[string]domain.ChannelSnapshot `json:"channels"`
	Transports int64                             `json:"transports"`
}

func (s *Server) registerDiagnosticsRoutes() {
	s.echo.GET("/api/diagnostics", s.handleDiagnostics)
}

func (s *Server) handleDiagnostics(c echo.Context) error {
	return c.JSON(http.StatusOK, diagnosticsResponse{
		Channels:   s.app.Diagnostics(),
		Transports: s.limits.Current(),
	})
}
