package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mapembed/pkg/world"
)

const (
	writeWait      = 10 * time.Second
	viewerBacklog  = 8
	maxViewerFrame = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type renderMessage struct {
	Type       string       `json:"type"`
	Sprites    []string     `json:"sprites,omitempty"`
	ServerTime int64        `json:"server_time"`
	Galaxy     world.Export `json:"galaxy"`
}

type viewer struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub redraws connected map viewers. It is the Renderer a merge pass calls
// while holding the galaxy write lock, so none of its Renderer methods block:
// they only mark work, and Run exports the galaxy once the lock is free.
type Hub struct {
	export func() world.Export

	mu      sync.Mutex
	viewers map[*viewer]struct{}
	sprites map[string]bool

	dirty chan struct{}
}

func NewHub(export func() world.Export) *Hub {
	return &Hub{
		export:  export,
		viewers: make(map[*viewer]struct{}),
		sprites: make(map[string]bool),
		dirty:   make(chan struct{}, 1),
	}
}

// galaxyExport reads the shared galaxy for the hub.
func galaxyExport() world.Export {
	var out world.Export
	galaxy.View(func(s *world.State) { out = s.Export() })
	return out
}

// --- Renderer ---

func (h *Hub) CreateSpritesStars()  { h.markSprites("stars") }
func (h *Hub) CreateSpritesFleets() { h.markSprites("fleets") }

func (h *Hub) markSprites(kind string) {
	h.mu.Lock()
	h.sprites[kind] = true
	h.mu.Unlock()
}

// Draw schedules a broadcast. Several draws before Run gets to it collapse
// into one.
func (h *Hub) Draw() {
	select {
	case h.dirty <- struct{}{}:
	default:
	}
}

// --- Fan Out ---

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-h.dirty:
			h.broadcast()
		}
	}
}

// takeSprites returns the sprite sets rebuilt since the last broadcast.
func (h *Hub) takeSprites() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var sprites []string
	for _, kind := range []string{"stars", "fleets"} {
		if h.sprites[kind] {
			sprites = append(sprites, kind)
		}
	}
	clear(h.sprites)
	return sprites
}

func (h *Hub) encode(sprites []string) ([]byte, error) {
	return json.Marshal(renderMessage{
		Type:       "draw",
		Sprites:    sprites,
		ServerTime: time.Now().UnixMilli(),
		Galaxy:     h.export(),
	})
}

func (h *Hub) broadcast() {
	data, err := h.encode(h.takeSprites())
	if err != nil {
		ErrorLog.Printf("Encode redraw: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for v := range h.viewers {
		select {
		case v.send <- data:
		default:
			// too slow to keep up; it can reconnect for a fresh copy
			delete(h.viewers, v)
			close(v.send)
		}
	}
}

func (h *Hub) ViewerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

func (h *Hub) register(v *viewer) {
	h.mu.Lock()
	h.viewers[v] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(v *viewer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.viewers[v]; ok {
		delete(h.viewers, v)
		close(v.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for v := range h.viewers {
		delete(h.viewers, v)
		close(v.send)
	}
}

// ServeWS upgrades a map viewer and sends it the current galaxy right away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ErrorLog.Printf("Upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	v := &viewer{conn: conn, send: make(chan []byte, viewerBacklog)}
	initial, err := h.encode(nil)
	if err != nil {
		ErrorLog.Printf("Encode initial state: %v", err)
		conn.Close()
		return
	}
	v.send <- initial
	h.register(v)

	go v.writeLoop()
	v.readLoop()
	h.unregister(v)
}

func (v *viewer) writeLoop() {
	defer v.conn.Close()
	for data := range v.send {
		v.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := v.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	v.conn.SetWriteDeadline(time.Now().Add(writeWait))
	v.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readLoop only drains the connection; viewers have nothing to say.
func (v *viewer) readLoop() {
	v.conn.SetReadLimit(maxViewerFrame)
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			return
		}
	}
}
