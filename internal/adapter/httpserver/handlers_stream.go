package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	apperrors "github.com/pscheid92/chatrelay/internal/platform/errors"
	"github.com/pscheid92/chatrelay/internal/transport"
)

const (
	closeReasonEnded       = "stream ended"
	closeReasonWriteFailed = "write failed"
)

func (s *Server) registerStreamRoutes() {
	s.echo.GET("/ws/chat/:channel", s.handleWebSocket)
	s.echo.GET("/api/sse/chat/:channel", s.handleSSE)
}

func (s *Server) handleWebSocket(c echo.Context) error {
	return s.serveStream(c, func(sub transport.Subscription) error {
		conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			// The upgrader has already written the error response.
			s.app.CloseTransport(sub)
			slog.DebugContext(c.Request().Context(), "WebSocket upgrade failed", "channel", sub.Channel, "error", err)
			return nil
		}

		sink := transport.NewWebSocketSink(conn, 2*s.config.HeartbeatInterval)
		runErr := s.consume(c.Request().Context(), sub, sink)

		reason := closeReasonEnded
		if runErr != nil {
			reason = closeReasonWriteFailed
		}
		_ = sink.Close(reason)
		return nil
	})
}

func (s *Server) handleSSE(c echo.Context) error {
	return s.serveStream(c, func(sub transport.Subscription) error {
		sink, err := transport.NewSSESink(c.Response(), c.Request())
		if err != nil {
			s.app.CloseTransport(sub)
			return apperrors.InternalError("streaming not supported", err)
		}

		_ = s.consume(c.Request().Context(), sub, sink)
		return nil
	})
}

// serveStream applies the connection limits, registers a transport on the
// channel and hands it to attach. attach owns the transport from then on.
func (s *Server) serveStream(c echo.Context, attach func(sub transport.Subscription) error) error {
	ip := c.RealIP()
	if ok, reason := s.limits.Acquire(ip); !ok {
		if s.transportMetrics != nil {
			s.transportMetrics.Rejected.WithLabelValues(string(reason)).Inc()
		}
		slog.WarnContext(c.Request().Context(), "Transport connection rejected", "ip", ip, "reason", reason)
		return c.JSON(http.StatusTooManyRequests, map[string]string{
			"error": "too many connections",
		})
	}
	defer s.limits.Release(ip)

	sub, err := s.app.OpenTransport(c.Request().Context(), c.Param("channel"))
	if err != nil {
		return err
	}
	return attach(sub)
}

func (s *Server) consume(ctx context.Context, sub transport.Subscription, sink transport.Sink) error {
	consumer := transport.NewConsumer(sub, sink, s.app.Registry(), s.clock, s.transportMetrics, transport.Config{
		PollInterval:      s.config.MailboxPollInterval,
		HeartbeatInterval: s.config.HeartbeatInterval,
	})
	err := consumer.Run(ctx)
	if err != nil {
		slog.DebugContext(ctx, "Transport ended with error", "channel", sub.Channel, "transport_id", sub.TransportID, "error", err)
	}
	return err
}
