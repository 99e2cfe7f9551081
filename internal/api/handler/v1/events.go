package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vietanh2810/shopstore/internal/api/handler/v1/response"
	"github.com/vietanh2810/shopstore/internal/service"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

type subscriber struct {
	conn  *websocket.Conn
	send  chan []byte
	owner uuid.UUID
}

func (s *subscriber) wants(e service.Event) bool {
	return e.OwnerID == s.owner || e.Kind == service.EventReloaded
}

// EventHub fans store events out to websocket subscribers. It implements
// service.Observer; Notify never blocks and drops events when the hub is
// saturated.
type EventHub struct {
	subscribers map[*subscriber]struct{}
	events      chan service.Event
	register    chan *subscriber
	unregister  chan *subscriber
	done        chan struct{}
	count       atomic.Int64
}

func NewEventHub() *EventHub {
	return &EventHub{
		subscribers: make(map[*subscriber]struct{}),
		events:      make(chan service.Event, 256),
		register:    make(chan *subscriber),
		unregister:  make(chan *subscriber),
		done:        make(chan struct{}),
	}
}

func (h *EventHub) Notify(e service.Event) {
	select {
	case h.events <- e:
	default:
		zap.L().Warn("event hub saturated, dropping event", zap.String("kind", string(e.Kind)))
	}
}

// Subscribers returns the number of connected subscribers.
func (h *EventHub) Subscribers() int {
	return int(h.count.Load())
}

// Run delivers events until ctx is done, then disconnects every subscriber.
func (h *EventHub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for s := range h.subscribers {
				h.drop(s)
			}
			return
		case s := <-h.register:
			h.subscribers[s] = struct{}{}
			h.count.Store(int64(len(h.subscribers)))
		case s := <-h.unregister:
			if _, ok := h.subscribers[s]; ok {
				h.drop(s)
			}
		case e := <-h.events:
			message, err := json.Marshal(e)
			if err != nil {
				zap.L().Error("failed to encode event", zap.Error(err))
				continue
			}
			for s := range h.subscribers {
				if !s.wants(e) {
					continue
				}
				select {
				case s.send <- message:
				default:
					h.drop(s)
				}
			}
		}
	}
}

func (h *EventHub) drop(s *subscriber) {
	delete(h.subscribers, s)
	close(s.send)
	h.count.Store(int64(len(h.subscribers)))
}

// HandleEvents godoc
// @Summary      Stream shop events
// @Description  Upgrades to a websocket that receives every change to the shop as JSON.
// @Tags         shops
// @Param        ownerID  path      string  true  "Owner ID"
// @Success      101      {string}  string  "Switching Protocols to WebSocket"
// @Failure      400      {object}  response.Err
// @Router       /shops/{ownerID}/events [get]
func (h *EventHub) HandleEvents(ctx *gin.Context) {
	owner, respErr := ownerParam(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		zap.L().Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s := &subscriber{
		conn:  conn,
		send:  make(chan []byte, 64),
		owner: owner,
	}
	select {
	case h.register <- s:
	case <-h.done:
		conn.Close()
		return
	}

	go s.writePump()
	go s.readPump(h)
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only watches for the peer going away; subscribers do not send.
func (s *subscriber) readPump(h *EventHub) {
	defer func() {
		select {
		case h.unregister <- s:
		case <-h.done:
		}
		s.conn.Close()
	}()

	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				zap.L().Debug("event subscriber disconnected", zap.Error(err))
			}
			return
		}
	}
}
