// Package live streams simulation updates to browsers over a websocket.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kilianp07/evgrid/core/events"
	"github.com/kilianp07/evgrid/core/model"
	"github.com/kilianp07/evgrid/infra/logger"
	"github.com/kilianp07/evgrid/internal/eventbus"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 16
)

// Message is one frame sent to clients.
type Message struct {
	Type  string                `json:"type"`
	RunID string                `json:"run_id"`
	Step  int                   `json:"step"`
	Time  time.Time             `json:"time"`
	City  *CityFrame            `json:"city,omitempty"`
	Grid  *events.GridStepEvent `json:"grid,omitempty"`
}

// CityFrame is the compact city state streamed after every step.
type CityFrame struct {
	Vehicles []VehicleFrame    `json:"vehicles"`
	Occupied []string          `json:"occupied_stations"`
	Balance  model.GridBalance `json:"balance"`
}

// VehicleFrame is the per-vehicle part of a CityFrame.
type VehicleFrame struct {
	ID     string  `json:"id"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	SoC    float64 `json:"soc"`
	Status string  `json:"status"`
	Color  string  `json:"color"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans bus events out to connected websocket clients. Slow clients
// miss frames rather than blocking the broadcast.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	log      logger.Logger
}

// NewHub creates an empty hub.
func NewHub(log logger.Logger) *Hub {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run forwards bus events until ctx is done. The returned channel is closed
// when the hub has unsubscribed and disconnected its clients.
func (h *Hub) Run(ctx context.Context, bus eventbus.EventBus) <-chan struct{} {
	done := make(chan struct{})
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer h.closeAll()
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				msg, ok := frame(ev)
				if !ok {
					continue
				}
				data, err := json.Marshal(msg)
				if err != nil {
					h.log.Errorf("encode live frame: %v", err)
					continue
				}
				h.Broadcast(data)
			}
		}
	}()
	return done
}

func frame(ev eventbus.Event) (Message, bool) {
	switch e := ev.(type) {
	case events.CityStepEvent:
		cf := &CityFrame{Balance: e.Balance, Occupied: []string{}}
		for _, v := range e.Vehicles {
			cf.Vehicles = append(cf.Vehicles, VehicleFrame{
				ID: v.ID, Lat: v.Position.Lat, Lon: v.Position.Lon,
				SoC: v.SoC(), Status: string(v.Status()), Color: v.Color,
			})
		}
		for _, st := range e.Stations {
			if st.Occupied() {
				cf.Occupied = append(cf.Occupied, st.ID)
			}
		}
		return Message{Type: "city_step", RunID: e.RunID, Step: e.Step, Time: e.Time, City: cf}, true
	case events.GridStepEvent:
		return Message{Type: "grid_step", RunID: e.RunID, Step: e.Step, Time: e.Time, Grid: &e}, true
	}
	return Message{}, false
}

// Broadcast queues data for every client.
func (h *Hub) Broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Debugf("dropping live frame for slow client %s", c.conn.RemoteAddr())
		}
	}
}

// ServeHTTP upgrades the request and keeps the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("websocket upgrade: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debugf("live client connected from %s", conn.RemoteAddr())

	go h.writeLoop(c)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

func (h *Hub) writeLoop(c *client) {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.remove(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	_ = c.conn.Close()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
