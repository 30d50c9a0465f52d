package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// eventBuffer is the per-subscriber queue; session publishes drop events
// for subscribers that fall this far behind.
const eventBuffer = 32

// eventWriteTimeout bounds a single frame write to a stalled client.
const eventWriteTimeout = 5 * time.Second

// handleEvents upgrades to a WebSocket and streams session events as JSON
// frames until the client disconnects.
func (s *DashboardServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn("websocket accept failed", "error", err)
		return
	}
	defer c.CloseNow()

	// The client never sends data; CloseRead watches for the close frame
	// and cancels the returned context.
	ctx := c.CloseRead(r.Context())

	id, events := s.session.Subscribe(eventBuffer)
	defer s.session.Unsubscribe(id)
	s.log.Debug("event stream opened", "subscriber", id)

	for {
		select {
		case <-ctx.Done():
			c.Close(websocket.StatusNormalClosure, "")
			return
		case evt, ok := <-events:
			if !ok {
				c.Close(websocket.StatusGoingAway, "session closed")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
			err := wsjson.Write(wctx, c, evt)
			cancel()
			if err != nil {
				s.log.Debug("event stream closed", "subscriber", id, "error", err)
				return
			}
		}
	}
}
