package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/luminadash/backend/internal/infrastructure/monitoring"
	"github.com/luminadash/backend/internal/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

// Handler manages WebSocket connections for the job event stream
type Handler struct {
	hub     *Hub
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewHandler creates a new WebSocket handler. metrics may be nil.
func NewHandler(hub *Hub, logger *logging.Logger, metrics *monitoring.Metrics) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		hub:     hub,
		logger:  logger.Named("ws"),
		metrics: metrics,
	}
}

// HandleConnection upgrades the request and streams job updates until the
// client disconnects.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	updates := h.hub.Subscribe()
	defer h.hub.Unsubscribe(updates)

	connID := uuid.NewString()
	h.logger.Debug("client connected", zap.String("conn_id", connID))

	// Send welcome message
	h.send(conn, map[string]interface{}{
		"type":    "system",
		"conn_id": connID,
		"message": "Connected to job event stream",
	})

	// Reader goroutine: consume pings and detect disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg struct {
				Type string `json:"type"`
			}
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type == "ping" {
				h.send(conn, map[string]interface{}{"type": "pong"})
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := h.send(conn, update); err != nil {
				h.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
			if h.metrics != nil {
				h.metrics.RecordWSMessage("out", update.Type)
			}
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, data interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(data)
}
