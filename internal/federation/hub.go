package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/domain"
	"github.com/cryptomx1/truth-unveiled-dao-sub001/internal/metrics"
)

// ErrHubStopped is returned for operations arriving after Stop.
var ErrHubStopped = errors.New("federation hub stopped")

const writeTimeout = 5 * time.Second

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	conn  *websocket.Conn
	errCh chan error
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	conn *websocket.Conn
}

func (cmdUnregister) hubCmd() {}

type cmdPublish struct {
	data []byte
}

func (cmdPublish) hubCmd() {}

type cmdClientCount struct {
	replyCh chan int
}

func (cmdClientCount) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// --- Per-connection writer ---

// peerWriter serializes writes to one relay connection. A full send buffer
// marks the peer slow; the hub evicts it instead of blocking the fan-out.
type peerWriter struct {
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
}

func newPeerWriter(conn *websocket.Conn) *peerWriter {
	pw := &peerWriter{
		conn:   conn,
		sendCh: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	go pw.run()
	return pw
}

func (pw *peerWriter) run() {
	for {
		select {
		case msg, ok := <-pw.sendCh:
			if !ok {
				return
			}
			pw.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := pw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-pw.done:
			return
		}
	}
}

func (pw *peerWriter) stop() {
	close(pw.done)
	pw.conn.Close()
}

// --- Hub ---

// Hub fans volatility alerts out to connected federation peers. A single
// actor goroutine owns the peer set; every mutation travels through the
// command channel, so the map needs no lock.
type Hub struct {
	cmdCh      chan hubCmd
	done       chan struct{}
	stopOnce   sync.Once
	maxClients int
	metrics    *metrics.FederationMetrics

	clients map[*websocket.Conn]*peerWriter
}

// NewHub starts the relay actor. maxClients bounds concurrent peers.
func NewHub(maxClients int, m *metrics.FederationMetrics) *Hub {
	h := &Hub{
		cmdCh:      make(chan hubCmd, 256),
		done:       make(chan struct{}),
		maxClients: maxClients,
		metrics:    m,
		clients:    make(map[*websocket.Conn]*peerWriter),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.handleRegister(c)
		case cmdUnregister:
			h.handleUnregister(c.conn)
		case cmdPublish:
			h.handlePublish(c.data)
		case cmdClientCount:
			c.replyCh <- len(h.clients)
		case cmdStop:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	if len(h.clients) >= h.maxClients {
		slog.Warn("rejecting federation peer, client limit reached", "limit", h.maxClients)
		c.conn.Close()
		c.errCh <- fmt.Errorf("federation client limit (%d) reached", h.maxClients)
		return
	}

	h.clients[c.conn] = newPeerWriter(c.conn)
	h.metrics.ActiveClients.Set(float64(len(h.clients)))
	slog.Info("federation peer connected", "clients", len(h.clients))
	c.errCh <- nil
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	pw, ok := h.clients[conn]
	if !ok {
		return
	}

	pw.stop()
	delete(h.clients, conn)
	h.metrics.ActiveClients.Set(float64(len(h.clients)))
	slog.Info("federation peer disconnected", "clients", len(h.clients))
}

func (h *Hub) handlePublish(data []byte) {
	var slow []*websocket.Conn
	for conn, pw := range h.clients {
		select {
		case pw.sendCh <- data:
		default:
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("evicting slow federation peer")
		h.metrics.ClientsEvicted.Inc()
		h.handleUnregister(conn)
	}

	h.metrics.AlertsPublished.Inc()
}

func (h *Hub) handleStop() {
	for conn, pw := range h.clients {
		pw.stop()
		delete(h.clients, conn)
	}
	h.metrics.ActiveClients.Set(0)
	close(h.done)
}

// --- Public API ---

// Register adds a relay connection to the fan-out set. The hub owns the
// connection from here on and closes it on eviction or shutdown.
func (h *Hub) Register(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	select {
	case h.cmdCh <- cmdRegister{conn: conn, errCh: errCh}:
	case <-h.done:
		return ErrHubStopped
	}
	select {
	case err := <-errCh:
		return err
	case <-h.done:
		return ErrHubStopped
	}
}

// Unregister removes a relay connection and closes it.
func (h *Hub) Unregister(conn *websocket.Conn) {
	select {
	case h.cmdCh <- cmdUnregister{conn: conn}:
	case <-h.done:
	}
}

// ClientCount returns the number of connected peers.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	select {
	case h.cmdCh <- cmdClientCount{replyCh: replyCh}:
	case <-h.done:
		return 0
	}
	select {
	case n := <-replyCh:
		return n
	case <-h.done:
		return 0
	}
}

// Stop disconnects every peer and shuts the actor down. It blocks until
// cleanup finishes and is safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.cmdCh <- cmdStop{}
	})
	<-h.done
}

// --- Broadcast sink ---

// alertEnvelope is the wire form fanned out to relay peers.
type alertEnvelope struct {
	Event     string             `json:"event"`
	AlertID   string             `json:"alert_id"`
	AlertType string             `json:"alert_type"`
	Severity  string             `json:"severity"`
	Target    string             `json:"target,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// BroadcastAlert queues one alert for fan-out to every connected peer.
// Acceptance means queued, not delivered; delivery confirmation arrives
// separately through the broadcast acknowledgment endpoint.
func (h *Hub) BroadcastAlert(_ context.Context, alert domain.Alert) error {
	env := alertEnvelope{
		Event:     "alert",
		AlertID:   alert.ID,
		AlertType: string(alert.Type),
		Severity:  string(alert.Severity),
		Target:    alert.Target.String(),
		Metrics:   alert.Metrics,
		CreatedAt: alert.CreatedAt,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal alert broadcast: %w", err)
	}

	select {
	case h.cmdCh <- cmdPublish{data: data}:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}
