package status

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Frame is the JSON structure broadcast to all WebSocket clients.
type Frame struct {
	Pattern Pattern `json:"pattern"`
	Message string  `json:"message,omitempty"`
	Row     string  `json:"row,omitempty"`
	Stamp   int64   `json:"stamp"` // Unix ms
}

// Hub broadcasts status frames to WebSocket clients and turns HTTP requests
// into operator commands. It implements Notifier.
type Hub struct {
	addr string

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex
	upgrader  websocket.Upgrader

	cmds chan Command

	// OnClockSet, if non-nil, receives operator clock-set requests.
	OnClockSet func(time.Time)

	lastMu sync.Mutex
	last   Frame
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub listening (once Run is called) on addr.
func NewHub(addr string) *Hub {
	return &Hub{
		addr:    addr,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		cmds: make(chan Command, 8),
	}
}

// Commands is the operator command queue the session drains.
func (h *Hub) Commands() <-chan Command { return h.cmds }

// Notify implements Notifier by broadcasting a status frame.
func (h *Hub) Notify(p Pattern, msg string) {
	h.broadcast(Frame{Pattern: p, Message: msg, Stamp: time.Now().UnixMilli()})
}

// PublishRow pushes the latest decoded row to connected clients.
func (h *Hub) PublishRow(row string) {
	h.lastMu.Lock()
	f := h.last
	h.lastMu.Unlock()
	f.Row = row
	f.Stamp = time.Now().UnixMilli()
	h.broadcast(f)
}

func (h *Hub) broadcast(f Frame) {
	h.lastMu.Lock()
	if f.Row == "" {
		h.last = f
	}
	h.lastMu.Unlock()

	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default: // slow client, drop the frame
		}
	}
}

// Run serves the hub until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)
	mux.HandleFunc("/api/stop", h.command(CommandStop))
	mux.HandleFunc("/api/resume", h.command(CommandResume))
	mux.HandleFunc("/api/clock", h.handleClock)

	srv := &http.Server{Addr: h.addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[ws] status hub listening on %s", h.addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, 64)}

	h.clientsMu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.clientsMu.Unlock()
	log.Printf("[ws] client connected (%d total)", total)

	// Replay the latest status so a fresh client sees state immediately.
	h.lastMu.Lock()
	last := h.last
	h.lastMu.Unlock()
	if data, err := json.Marshal(last); err == nil {
		client.send <- data
	}

	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	go func() {
		defer func() {
			h.clientsMu.Lock()
			delete(h.clients, client)
			total := len(h.clients)
			h.clientsMu.Unlock()
			close(client.send)
			log.Printf("[ws] client disconnected (%d total)", total)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *Hub) command(cmd Command) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		select {
		case h.cmds <- cmd:
			w.WriteHeader(http.StatusAccepted)
		default:
			http.Error(w, "command queue full", http.StatusServiceUnavailable)
		}
	}
}

// handleClock accepts `POST /api/clock?unix=<seconds>` and forwards the
// time to the clock-set callback. Used to name log files sensibly on a
// device with no battery-backed clock.
func (h *Hub) handleClock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	sec, err := strconv.ParseInt(r.URL.Query().Get("unix"), 10, 64)
	if err != nil {
		http.Error(w, "bad unix timestamp", http.StatusBadRequest)
		return
	}
	if h.OnClockSet != nil {
		h.OnClockSet(time.Unix(sec, 0))
	}
	w.WriteHeader(http.StatusAccepted)
}
