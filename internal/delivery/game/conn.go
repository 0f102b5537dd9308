package game

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"goplay/internal/delivery/broadcast"
	"goplay/internal/domain/game"
	errs "goplay/internal/errors"
	"goplay/internal/ratelimit"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512

	sendBuffer = 256
)

// connection is one player's socket. Frames from it are handled in order on
// the read goroutine; the write goroutine drains its subscriber queue.
type connection struct {
	id      string
	userID  string
	conn    *websocket.Conn
	sub     *broadcast.Subscriber
	limiter *ratelimit.Window
	handler *GameHandler
	// rooms joined so far, touched only by the read goroutine
	rooms map[int64]bool
}

func (g *GameHandler) newConnection(conn *websocket.Conn, userID string) *connection {
	id := uuid.NewString()
	return &connection{
		id:      id,
		userID:  userID,
		conn:    conn,
		sub:     broadcast.NewSubscriber(id, sendBuffer),
		limiter: ratelimit.NewWindow(g.rateEvents, g.rateWindow),
		handler: g,
		rooms:   make(map[int64]bool),
	}
}

func (c *connection) readPump(ctx context.Context) {
	defer func() {
		c.handler.hub.Unregister(c.sub)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.handler.log.Infow("websocket closed", "conn_id", c.id, "user_id", c.userID, "err", err)
			}
			return
		}

		if !c.limiter.Allow() {
			c.reply(ctx, errorEvent(0, errs.ErrRateLimited))
			continue
		}

		c.handle(ctx, data)
	}
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.sub.Messages():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) handle(ctx context.Context, data []byte) {
	req, err := ParseRequest(c.handler.validate, data)
	if err != nil {
		c.fail(ctx, 0, err)
		return
	}

	uc := c.handler.gameUC
	switch req.Type {
	case EventJoinGame:
		err = c.join(ctx, req.GameID)
	case EventPlaceStone:
		err = uc.PlayMove(ctx, req.GameID, c.userID, *req.X, *req.Y)
	case EventPass:
		err = uc.Pass(ctx, req.GameID, c.userID)
	case EventResign:
		err = uc.Resign(ctx, req.GameID, c.userID)
	}

	if err != nil {
		c.fail(ctx, req.GameID, err)
	}
}

// join enters the room before the snapshot is taken, so every move after
// the snapshot reaches this connection behind its game-state.
func (c *connection) join(ctx context.Context, gameID int64) error {
	hub := c.handler.hub
	if err := hub.Join(c.sub, gameID); err != nil {
		return err
	}

	err := c.handler.gameUC.JoinGame(ctx, gameID, c.userID, func(view game.GameStateView) error {
		return hub.SendTo(ctx, c.sub, game.Event{Type: game.EventGameState, GameID: gameID, Data: view})
	})
	if err != nil {
		if !c.rooms[gameID] {
			_ = hub.Leave(c.sub, gameID)
		}
		return err
	}

	c.rooms[gameID] = true
	return nil
}

// fail logs err by class and tells only this connection about it.
func (c *connection) fail(ctx context.Context, gameID int64, err error) {
	log := c.handler.log.With("conn_id", c.id, "user_id", c.userID, "game_id", gameID)
	switch kind := errs.KindOf(err); kind {
	case errs.KindInput, errs.KindRule:
		log.Debugw("request rejected", "kind", kind.String(), "err", err)
	case errs.KindAvailability:
		log.Infow("request refused", "err", err)
	default:
		log.Errorw("request failed", "err", err)
	}
	c.reply(ctx, errorEvent(gameID, err))
}

func (c *connection) reply(ctx context.Context, event game.Event) {
	if err := c.handler.hub.SendTo(ctx, c.sub, event); err != nil {
		c.handler.log.Debugw("reply dropped", "conn_id", c.id, "err", err)
	}
}
