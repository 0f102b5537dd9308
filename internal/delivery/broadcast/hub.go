package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"goplay/internal/domain/game"
)

var ErrHubClosed = errors.New("broadcast hub is closed")

// Subscriber is one connection's outbound queue. Only the hub writes to or
// closes send.
type Subscriber struct {
	ID    string
	send  chan []byte
	rooms map[int64]bool
}

func NewSubscriber(id string, buffer int) *Subscriber {
	return &Subscriber{
		ID:    id,
		send:  make(chan []byte, buffer),
		rooms: make(map[int64]bool),
	}
}

// Messages yields queued frames and is closed once the hub drops the subscriber.
func (s *Subscriber) Messages() <-chan []byte {
	return s.send
}

type membership struct {
	sub    *Subscriber
	gameID int64
}

type roomMessage struct {
	gameID int64
	data   []byte
}

type directMessage struct {
	sub  *Subscriber
	data []byte
}

// Hub fans game events out to every subscriber of a game. All state is owned
// by the Run goroutine.
type Hub struct {
	log *zap.SugaredLogger

	subscribers map[*Subscriber]bool
	rooms       map[int64]map[*Subscriber]bool

	register   chan *Subscriber
	unregister chan *Subscriber
	join       chan membership
	leave      chan membership
	broadcast  chan roomMessage
	direct     chan directMessage
	done       chan struct{}
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		log:         log,
		subscribers: make(map[*Subscriber]bool),
		rooms:       make(map[int64]map[*Subscriber]bool),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		join:        make(chan membership),
		leave:       make(chan membership),
		broadcast:   make(chan roomMessage),
		direct:      make(chan directMessage),
		done:        make(chan struct{}),
	}
}

// Run is the hub's event loop. Every subscriber is dropped when ctx ends.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for sub := range h.subscribers {
				h.drop(sub)
			}
			return
		case sub := <-h.register:
			h.subscribers[sub] = true
		case sub := <-h.unregister:
			h.drop(sub)
		case m := <-h.join:
			h.addToRoom(m.sub, m.gameID)
		case m := <-h.leave:
			h.removeFromRoom(m.sub, m.gameID)
		case msg := <-h.broadcast:
			for sub := range h.rooms[msg.gameID] {
				h.deliver(sub, msg.data)
			}
		case msg := <-h.direct:
			h.deliver(msg.sub, msg.data)
		}
	}
}

func (h *Hub) addToRoom(sub *Subscriber, gameID int64) {
	if !h.subscribers[sub] {
		return
	}
	if h.rooms[gameID] == nil {
		h.rooms[gameID] = make(map[*Subscriber]bool)
	}
	h.rooms[gameID][sub] = true
	sub.rooms[gameID] = true
}

// deliver queues data without blocking; a subscriber that cannot keep up is dropped.
func (h *Hub) deliver(sub *Subscriber, data []byte) {
	if !h.subscribers[sub] {
		return
	}
	select {
	case sub.send <- data:
	default:
		h.log.Warnw("dropping slow subscriber", "conn_id", sub.ID)
		h.drop(sub)
	}
}

func (h *Hub) removeFromRoom(sub *Subscriber, gameID int64) {
	room := h.rooms[gameID]
	delete(room, sub)
	if len(room) == 0 {
		delete(h.rooms, gameID)
	}
	delete(sub.rooms, gameID)
}

func (h *Hub) drop(sub *Subscriber) {
	if !h.subscribers[sub] {
		return
	}
	for gameID := range sub.rooms {
		h.removeFromRoom(sub, gameID)
	}
	delete(h.subscribers, sub)
	close(sub.send)
}

func (h *Hub) Register(sub *Subscriber) error {
	return sendTo(context.Background(), h, h.register, sub)
}

func (h *Hub) Unregister(sub *Subscriber) {
	_ = sendTo(context.Background(), h, h.unregister, sub)
}

// Join subscribes sub to every later event of gameID.
func (h *Hub) Join(sub *Subscriber, gameID int64) error {
	return sendTo(context.Background(), h, h.join, membership{sub: sub, gameID: gameID})
}

// Leave stops delivering events of gameID to sub.
func (h *Hub) Leave(sub *Subscriber, gameID int64) error {
	return sendTo(context.Background(), h, h.leave, membership{sub: sub, gameID: gameID})
}

// Publish fans event out to the room of gameID.
func (h *Hub) Publish(ctx context.Context, gameID int64, event game.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	return h.PublishRaw(ctx, gameID, data)
}

// PublishRaw fans an already encoded frame out to the room of gameID.
func (h *Hub) PublishRaw(ctx context.Context, gameID int64, data []byte) error {
	return sendTo(ctx, h, h.broadcast, roomMessage{gameID: gameID, data: data})
}

// SendTo queues event for sub alone.
func (h *Hub) SendTo(ctx context.Context, sub *Subscriber, event game.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	return sendTo(ctx, h, h.direct, directMessage{sub: sub, data: data})
}

func sendTo[T any](ctx context.Context, h *Hub, ch chan<- T, v T) error {
	select {
	case ch <- v:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
