package httpserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	apperrors "github.com/pscheid92/chatrelay/internal/platform/errors"
)

type connectRequest struct {
	URL     string `json:"url"`
	Channel string `json:"channel"`
}

// ref accepts either field; the URL wins when both are set.
func (r connectRequest) ref() string {
	if ref := strings.TrimSpace(r.URL); ref != "" {
		return ref
	}
	return strings.TrimSpace(r.Channel)
}

type connectResponse struct {
	Message          string `json:"message"`
	Channel          string `json:"channel"`
	AlreadyConnected bool   `json:"alreadyConnected"`
}

type disconnectResponse struct {
	Message      string `json:"message"`
	Disconnected bool   `json:"disconnected"`
}

type logoutResponse struct {
	Message  string   `json:"message"`
	Channels []string `json:"channels"`
}

type channelsResponse struct {
	Channels []string `json:"channels"`
}

func (s *Server) registerChannelRoutes() {
	limiter := newRateLimiter(s.config.ControlRateLimit, s.config.ControlRateBurst)

	api := s.echo.Group("/api", s.requireAuth)
	api.GET("/channels", s.handleListChannels)
	api.POST("/channels/connect", s.handleConnect, limiter)
	api.POST("/channels/disconnect", s.handleDisconnect, limiter)
	api.POST("/logout", s.handleLogout, limiter)

	s.echo.GET("/api/channels/:channel/stats", s.handleStats)
}

func (s *Server) handleConnect(c echo.Context) error {
	var req connectRequest
	if err := c.Bind(&req); err != nil {
		return HandleValidationError(c, "invalid request body")
	}
	if req.ref() == "" {
		return HandleValidationError(c, "url or channel is required")
	}

	principal, _ := principalFrom(c)
	res, err := s.app.Connect(c.Request().Context(), principal, req.ref())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, connectResponse{
		Message:          fmt.Sprintf("Connected to %s's chat", res.Channel),
		Channel:          res.Channel,
		AlreadyConnected: res.AlreadyAttached,
	})
}

func (s *Server) handleDisconnect(c echo.Context) error {
	var req connectRequest
	if err := c.Bind(&req); err != nil {
		return HandleValidationError(c, "invalid request body")
	}
	if req.ref() == "" {
		return HandleValidationError(c, "channel is required")
	}

	principal, _ := principalFrom(c)
	res, err := s.app.Disconnect(c.Request().Context(), principal, req.ref())
	if err != nil {
		return err
	}

	if !res.WasAttached {
		return c.JSON(http.StatusOK, disconnectResponse{Message: "Already disconnected"})
	}
	return c.JSON(http.StatusOK, disconnectResponse{
		Message:      fmt.Sprintf("Disconnected from %s's chat", res.Channel),
		Disconnected: true,
	})
}

func (s *Server) handleLogout(c echo.Context) error {
	principal, _ := principalFrom(c)
	results, err := s.app.Logout(c.Request().Context(), principal)

	channels := make([]string, 0, len(results))
	for _, r := range results {
		if r.WasAttached {
			channels = append(channels, r.Channel)
		}
	}
	if err != nil {
		return apperrors.UnavailableError("logout incomplete", err).WithField("detached", channels)
	}

	return c.JSON(http.StatusOK, logoutResponse{
		Message:  "Logged out",
		Channels: channels,
	})
}

func (s *Server) handleListChannels(c echo.Context) error {
	principal, _ := principalFrom(c)
	channels := s.app.Channels(principal)
	if channels == nil {
		channels = []string{}
	}
	return c.JSON(http.StatusOK, channelsResponse{Channels: channels})
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.app.Stats(c.Request().Context(), c.Param("channel"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}
