package game

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"goplay/internal/delivery/auth"
	"goplay/internal/delivery/broadcast"
	"goplay/internal/domain/game"
	"goplay/internal/domain/user"
	errs "goplay/internal/errors"
	"goplay/internal/httpresponse"
	"goplay/internal/utils"
)

type GameUseCase interface {
	CreateGame(ctx context.Context, req game.CreateGameRequest, creatorID string) (game.Game, error)
	GetGame(ctx context.Context, gameID int64) (game.GameWithMoves, error)
	GetSgf(ctx context.Context, gameID int64) (string, error)
	GetUserStats(ctx context.Context, userID string) (user.User, error)
	JoinGame(ctx context.Context, gameID int64, userID string, deliver func(game.GameStateView) error) error
	PlayMove(ctx context.Context, gameID int64, userID string, x, y int) error
	Pass(ctx context.Context, gameID int64, userID string) error
	Resign(ctx context.Context, gameID int64, userID string) error
}

type SgfResponse struct {
	Sgf string `json:"sgf"`
}

type GameHandler struct {
	log         *zap.SugaredLogger
	gameUC      GameUseCase
	hub         *broadcast.Hub
	authHandler *auth.AuthHandler
	validate    *validator.Validate
	upgrader    websocket.Upgrader
	rateEvents  int
	rateWindow  time.Duration
	// connections live until the server shuts down, not until the upgrade request ends
	baseCtx context.Context
}

func NewGameHandler(ctx context.Context, log *zap.SugaredLogger, gameUC GameUseCase, hub *broadcast.Hub,
	authHandler *auth.AuthHandler, rateEvents int, rateWindow time.Duration) *GameHandler {
	return &GameHandler{
		log:         log,
		gameUC:      gameUC,
		hub:         hub,
		authHandler: authHandler,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		rateEvents: rateEvents,
		rateWindow: rateWindow,
		baseCtx:    ctx,
	}
}

// Routes mounts the game surface on r.
func (g *GameHandler) Routes(r chi.Router) {
	r.Get("/ws", g.ServeWS)
	r.Post("/games", g.HandleNewGame)
	r.Get("/games/{id}", g.HandleGetGame)
	r.Get("/games/{id}/sgf", g.HandleGetSgf)
	r.Get("/users/{id}/stats", g.HandleGetUserStats)
}

func (g *GameHandler) HandleNewGame(w http.ResponseWriter, r *http.Request) {
	userID := g.authHandler.GetUserID(w, r)
	if userID == "" {
		return
	}

	var req game.CreateGameRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		g.log.Debugw("HandleNewGame: bad body", "user_id", userID, "err", err)
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest,
			httpresponse.ErrorResponse{ErrorDescription: httpresponse.MALFORMEDJSON_errorDesc})
		return
	}
	if err := g.validate.Struct(req); err != nil {
		g.log.Debugw("HandleNewGame: invalid request", "user_id", userID, "err", err)
		httpresponse.WriteError(w, createError(err))
		return
	}

	created, err := g.gameUC.CreateGame(r.Context(), req, userID)
	if err != nil {
		g.logFailure("HandleNewGame", err, "user_id", userID)
		httpresponse.WriteError(w, err)
		return
	}

	httpresponse.WriteResponseWithStatus(w, http.StatusCreated, game.GameCreateResponse{ID: created.ID})
}

func (g *GameHandler) HandleGetGame(w http.ResponseWriter, r *http.Request) {
	gameID, ok := g.gameIDParam(w, r)
	if !ok {
		return
	}

	found, err := g.gameUC.GetGame(r.Context(), gameID)
	if err != nil {
		g.logFailure("HandleGetGame", err, "game_id", gameID)
		httpresponse.WriteError(w, err)
		return
	}

	httpresponse.WriteResponseWithStatus(w, http.StatusOK, found)
}

func (g *GameHandler) HandleGetSgf(w http.ResponseWriter, r *http.Request) {
	gameID, ok := g.gameIDParam(w, r)
	if !ok {
		return
	}

	sgf, err := g.gameUC.GetSgf(r.Context(), gameID)
	if err != nil {
		g.logFailure("HandleGetSgf", err, "game_id", gameID)
		httpresponse.WriteError(w, err)
		return
	}

	httpresponse.WriteResponseWithStatus(w, http.StatusOK, SgfResponse{Sgf: sgf})
}

func (g *GameHandler) HandleGetUserStats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	stats, err := g.gameUC.GetUserStats(r.Context(), userID)
	if err != nil {
		g.logFailure("HandleGetUserStats", err, "user_id", userID)
		httpresponse.WriteError(w, err)
		return
	}

	httpresponse.WriteResponseWithStatus(w, http.StatusOK, stats)
}

// ServeWS upgrades an authenticated request and serves the connection until
// either side closes it.
func (g *GameHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := g.authHandler.GetUserID(w, r)
	if userID == "" {
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Infow("ServeWS: upgrade failed", "user_id", userID, "err", err)
		return
	}

	c := g.newConnection(ws, userID)
	if err = g.hub.Register(c.sub); err != nil {
		g.log.Errorw("ServeWS: register subscriber", "conn_id", c.id, "err", err)
		ws.Close()
		return
	}
	g.log.Infow("websocket connected", "conn_id", c.id, "user_id", userID)

	go c.writePump()
	go c.readPump(g.baseCtx)
}

func createError(err error) error {
	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) && len(invalid) > 0 && invalid[0].Field() == "BoardSize" {
		return errs.ErrInvalidBoardSize
	}
	return errs.ErrInvalidInput
}

func (g *GameHandler) gameIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	gameID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || gameID <= 0 {
		httpresponse.WriteError(w, errs.ErrInvalidGameID)
		return 0, false
	}
	return gameID, true
}

func (g *GameHandler) logFailure(op string, err error, keysAndValues ...any) {
	keysAndValues = append(keysAndValues, "err", err)
	if errs.KindOf(err) == errs.KindInfrastructure {
		g.log.Errorw(op+": failed", keysAndValues...)
		return
	}
	g.log.Debugw(op+": rejected", keysAndValues...)
}
