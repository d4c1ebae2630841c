package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/GriffinCanCode/sessiongate/internal/shared/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Stream timings
const (
	streamBuffer     = 16
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
)

// StreamSession upgrades to a websocket carrying the session's lifecycle
// events. The first message is the current state; the socket is closed
// after the session is deleted.
func (h *Handlers) StreamSession(c *gin.Context) {
	id := c.Param("id")
	if err := utils.ValidateSessionID(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, cancel, err := h.sessions.Subscribe(id, streamBuffer)
	if err != nil {
		h.fail(c, err, gin.H{"error": "Session " + id + " does not exist"})
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.logger.Debug("websocket upgrade failed", zap.String("session", id), zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.IncStreamConnections()
		defer h.metrics.DecStreamConnections()
	}

	log := h.logger.With(zap.String("session", id))
	log.Debug("stream opened")

	// The reader only tracks liveness; clients have nothing to say
	gone := make(chan struct{})
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				h.closeStream(conn, "session closed")
				log.Debug("stream ended")
				return
			}
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug("stream write failed", zap.Error(err))
				return
			}
			if h.metrics != nil {
				h.metrics.RecordStreamEvent(string(ev.Type))
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			log.Debug("stream client went away")
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (h *Handlers) closeStream(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		h.logger.Debug("stream close failed", zap.Error(err))
	}
}
