package controller

import (
	"context"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/canopy-network/canopyvote/pkg/hub"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingInterval = 30 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket upgrades the connection and streams hub events to it.
//
// Server sends {"type": "connect", ...} first, then every vote, election_created and
// election_error event. Client messages are only logged.
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	closeConn := sync.OnceFunc(func() {
		if err := conn.Close(); err != nil {
			c.App.Logger.Debug("Failed to close WebSocket connection", zap.Error(err))
		}
	})
	defer closeConn()

	sub := c.App.Hub.Add()
	logger := c.App.Logger.With(zap.String("remote_addr", r.RemoteAddr), zap.String("subscriber_id", sub.ID))
	logger.Info("WebSocket client connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	recoverTo := func(name string) {
		if rec := recover(); rec != nil {
			logger.Error("Panic in "+name+" goroutine",
				zap.Any("panic", rec),
				zap.String("stack", string(debug.Stack())))
			cancel()
			closeConn()
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer recoverTo("ping ticker")
		c.sendPings(ctx, conn, logger)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer recoverTo("message writer")
		// a dead writer must unblock the reader below
		defer closeConn()
		c.writeEvents(ctx, conn, sub.Events(), logger)
	}()

	// Blocks until the client goes away or the writer closes the connection.
	c.readClientMessages(conn, logger)

	cancel()
	c.App.Hub.Remove(sub.ID)
	wg.Wait()

	logger.Info("WebSocket client disconnected")
}

// writeEvents sends the connect greeting, then forwards events until the subscriber is
// closed or ctx is done. A closed subscriber means the hub is shutting down.
func (c *Controller) writeEvents(ctx context.Context, conn *websocket.Conn, events <-chan hub.Event, logger *zap.Logger) {
	if err := writeEvent(conn, hub.Connect()); err != nil {
		logger.Debug("Failed to send connect message", zap.Error(err))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
				return
			}
			if err := writeEvent(conn, e); err != nil {
				logger.Error("Failed to write WebSocket message", zap.Error(err))
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, e hub.Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(e)
}

// sendPings sends periodic WebSocket ping frames to keep the connection alive.
// The client will automatically respond with pong frames, which resets the read deadline.
func (c *Controller) sendPings(ctx context.Context, conn *websocket.Conn, logger *zap.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeTimeout)); err != nil {
				logger.Debug("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

// readClientMessages logs client frames and returns when the connection fails or closes.
func (c *Controller) readClientMessages(conn *websocket.Conn, logger *zap.Logger) {
	if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		logger.Error("Failed to set read deadline", zap.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}
		logger.Debug("WebSocket client message", zap.ByteString("message", msg))
	}
}
