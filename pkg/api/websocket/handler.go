package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aescanero/reelgen/internal/domain"
	"github.com/aescanero/reelgen/internal/ports"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for MVP
	},
}

// sendBuffer bounds each subscriber's queue. A subscriber that falls this
// far behind starts losing events; the seq field exposes the gap.
const sendBuffer = 16

var pongMessage = []byte(`{"type":"pong"}`)

// RunSource provides the snapshot sent to a new subscriber.
type RunSource interface {
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
}

type subscriber struct {
	send chan []byte
}

// Hub fans run events out to per-run WebSocket subscribers. One bus
// subscription feeds every connection.
type Hub struct {
	bus     ports.EventBus
	runs    RunSource
	metrics ports.MetricsCollector
	logger  *zap.Logger

	mu    sync.Mutex
	subs  map[string]map[*subscriber]struct{}
	total int
}

// NewHub creates a new WebSocket hub
func NewHub(bus ports.EventBus, runs RunSource, metrics ports.MetricsCollector, logger *zap.Logger) *Hub {
	return &Hub{
		bus:     bus,
		runs:    runs,
		metrics: metrics,
		logger:  logger,
		subs:    make(map[string]map[*subscriber]struct{}),
	}
}

// Start subscribes the hub to the run event topic. Call once before serving
// connections.
func (h *Hub) Start(ctx context.Context) error {
	return h.bus.Subscribe(ctx, ports.TopicRunEvents, h.dispatch)
}

// HandleRunStream upgrades the connection and streams one run's events.
func (h *Hub) HandleRunStream(c *gin.Context) {
	runID := c.Param("run_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("run_id", runID),
		zap.String("client", c.ClientIP()))

	sub := h.register(runID)
	defer h.unregister(runID, sub)

	// Snapshot first so a late subscriber does not miss history. Events
	// queued between register and this write follow it; seq exposes any
	// overlap. Unknown runs keep a bare subscription, matching clients
	// that connect before creation lands.
	if run, err := h.runs.GetRun(c.Request.Context(), runID); err == nil {
		data, err := json.Marshal(domain.NewInitialState(run))
		if err != nil {
			h.logger.Error("failed to marshal snapshot", zap.Error(err))
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}

	go h.readLoop(conn, runID, sub)

	for data := range sub.send {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// readLoop answers every client message with a pong and tears the
// subscription down when the client goes away.
func (h *Hub) readLoop(conn *websocket.Conn, runID string, sub *subscriber) {
	defer func() { _ = conn.Close() }()
	defer h.unregister(runID, sub)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.logger.Info("WebSocket connection closed",
				zap.String("run_id", runID))
			return
		}
		h.deliver(runID, sub, pongMessage)
	}
}

// dispatch is the bus handler. It marshals once and enqueues the same bytes
// to every subscriber of the event's run, dropping when a buffer is full.
func (h *Hub) dispatch(_ context.Context, event domain.Event) error {
	if event.RunID == "" {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event", zap.Error(err))
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[event.RunID] {
		select {
		case sub.send <- data:
		default:
			h.logger.Warn("subscriber buffer full, dropping event",
				zap.String("run_id", event.RunID),
				zap.Uint64("seq", event.Seq))
		}
	}
	return nil
}

// deliver enqueues data to one subscriber if it is still registered.
func (h *Hub) deliver(runID string, sub *subscriber, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[runID][sub]; !ok {
		return
	}
	select {
	case sub.send <- data:
	default:
	}
}

func (h *Hub) register(runID string) *subscriber {
	sub := &subscriber{send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.subs[runID] == nil {
		h.subs[runID] = make(map[*subscriber]struct{})
	}
	h.subs[runID][sub] = struct{}{}
	h.total++
	total := h.total
	h.mu.Unlock()

	h.metrics.SetWebsocketSubscribers(total)
	return sub
}

// unregister closes the subscriber's queue. Safe to call twice; the send
// channel is closed only while the subscriber is still in the map.
func (h *Hub) unregister(runID string, sub *subscriber) {
	h.mu.Lock()
	set, ok := h.subs[runID]
	if ok {
		if _, member := set[sub]; member {
			delete(set, sub)
			close(sub.send)
			h.total--
			if len(set) == 0 {
				delete(h.subs, runID)
			}
		}
	}
	total := h.total
	h.mu.Unlock()

	h.metrics.SetWebsocketSubscribers(total)
}
