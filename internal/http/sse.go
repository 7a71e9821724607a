package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// handleEvents streams a session's audit events over SSE. Ping comments
// keep idle connections alive through proxies. The stream ends when the
// client disconnects or the event source closes.
func (s *Server) handleEvents(c echo.Context) error {
	sessionID := c.Param("id")

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	events, cancel := s.deps.Events.Subscribe(sessionID)
	defer cancel()

	ping := time.NewTicker(s.cfg.PingInterval.Duration())
	defer ping.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			data, err := json.Marshal(event)
			if err != nil {
				s.logger.Warn(ctx, "dropping unmarshalable audit event",
					zap.String("session_id", sessionID), zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: audit\ndata: %s\n\n", data)
			w.Flush()
		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
			w.Flush()
		}
	}
}
