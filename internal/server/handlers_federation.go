package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Federation peers connect from their own origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleFederationSocket(c echo.Context) error {
	ip := c.RealIP()
	ok, reason := s.connLimits.Acquire(ip)
	if !ok {
		slog.WarnContext(c.Request().Context(), "Federation connection refused",
			"reason", string(reason), "ip", ip)
		if reason == LimitReasonRate {
			return echo.NewHTTPError(http.StatusTooManyRequests, "connection rate exceeded")
		}
		return echo.NewHTTPError(http.StatusServiceUnavailable, "connection limit reached")
	}
	defer s.connLimits.Release(ip)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade federation socket: %w", err)
	}

	if err := s.hub.Register(conn); err != nil {
		slog.WarnContext(c.Request().Context(), "Federation registration refused", "error", err)
		conn.Close()
		return nil
	}

	// The socket is outbound-only; the read pump exists to notice the
	// peer going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.Unregister(conn)
	return nil //nolint:nilerr // read errors mean disconnect, not handler failure
}
