package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/automated-mda/backend/internal/models"
)

// WebSocket message types for the job status protocol
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeProgress  = "progress"
	MsgTypeComplete  = "complete"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WebSocket error response
type WSErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WebSocketHandler streams job updates to WebSocket clients
type WebSocketHandler struct {
	jobs     JobManager
	upgrader websocket.Upgrader
	timeout  time.Duration
}

// NewWebSocketHandler creates a new WebSocket job stream handler
func NewWebSocketHandler(jobs JobManager, streamTimeout time.Duration) *WebSocketHandler {
	if streamTimeout <= 0 {
		streamTimeout = DefaultStreamTimeout
	}
	return &WebSocketHandler{
		jobs: jobs,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
		timeout: streamTimeout,
	}
}

// wsConn serializes writes from the watch loop and the ping responder.
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (w *wsConn) send(msg WSMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ws.WriteJSON(msg); err != nil {
		log.Debug().Err(err).Msg("WebSocket send failed")
	}
}

func (w *wsConn) sendError(id, message, code string) {
	w.send(WSMessage{
		Type:      MsgTypeError,
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSErrorResponse{
			Type:    MsgTypeError,
			Message: message,
			Code:    code,
		}),
	})
}

// HandleJobSocket upgrades the connection and pushes a message for every
// job stage change until the job finishes
func (wsh *WebSocketHandler) HandleJobSocket(c echo.Context) error {
	id := c.Param("jobId")

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	conn := &wsConn{ws: ws}

	log.Debug().Str("job", id).Msg("WebSocket client connected")
	conn.send(WSMessage{Type: MsgTypeConnected, ID: id, Timestamp: time.Now().UnixMilli()})

	ctx, cancel := context.WithTimeout(c.Request().Context(), wsh.timeout)
	defer cancel()

	// Reader loop: answer pings, detect disconnects
	go func() {
		defer cancel()
		for {
			var msg WSMessage
			if err := ws.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
					log.Debug().Err(err).Msg("WebSocket connection error")
				}
				return
			}
			switch msg.Type {
			case MsgTypePing:
				conn.send(WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})
			default:
				conn.sendError(id, "Unknown message type: "+msg.Type, "INVALID_TYPE")
			}
		}
	}()

	updates, err := wsh.jobs.Watch(ctx, id)
	if err != nil {
		conn.sendError(id, "job not found", "NOT_FOUND")
		return nil
	}

	for job := range updates {
		conn.send(jobMessage(job))
	}

	if ctx.Err() == context.DeadlineExceeded {
		conn.sendError(id, "stream timeout", "TIMEOUT")
	}

	conn.mu.Lock()
	ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	conn.mu.Unlock()

	log.Debug().Str("job", id).Msg("WebSocket client disconnected")
	return nil
}

func jobMessage(job models.Job) WSMessage {
	msgType := MsgTypeProgress
	switch job.Status {
	case models.JobStatusComplete:
		msgType = MsgTypeComplete
	case models.JobStatusError:
		msgType = MsgTypeError
	}
	return WSMessage{
		Type:      msgType,
		ID:        job.ID,
		Payload:   mustJSON(job),
		Timestamp: time.Now().UnixMilli(),
	}
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
