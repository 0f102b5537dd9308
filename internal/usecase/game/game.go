package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"goplay/internal/domain/game"
	"goplay/internal/domain/user"
	errs "goplay/internal/errors"
	"goplay/internal/statuses"
	"goplay/internal/usecase/registry"
)

// MaxOpenGames caps how many waiting or active games one player may be in.
const MaxOpenGames = 5

type GameStore interface {
	CreateGame(ctx context.Context, newGame game.Game) (game.Game, error)
	ReadGameMeta(ctx context.Context, gameID int64) (game.Game, error)
	ListMoves(ctx context.Context, gameID int64) ([]game.MoveRecord, error)
	AppendMove(ctx context.Context, move game.MoveRecord) error
	UpdateGameStatus(ctx context.Context, gameID int64, update game.StatusUpdate) error
	CASJoin(ctx context.Context, gameID int64, whiteID string) (bool, error)
	CountOpenGames(ctx context.Context, userID string) (int64, error)
}

type SGFStore interface {
	SaveSGF(ctx context.Context, gameID int64, text string) error
	LoadSGF(ctx context.Context, gameID int64) (string, error)
}

type StatsStore interface {
	RecordResult(ctx context.Context, winnerID, loserID string) error
	GetUserByID(ctx context.Context, userID string) (user.User, error)
}

type Publisher interface {
	Publish(ctx context.Context, gameID int64, event game.Event) error
}

type Registry interface {
	Inspect(ctx context.Context, gameID int64, fn func(game.State) error) error
	Mutate(ctx context.Context, gameID int64, fn func(*game.Session) error) error
	Forget(gameID int64)
}

type GameUseCase struct {
	store       GameStore
	sgf         SGFStore
	stats       StatsStore
	registry    Registry
	publisher   Publisher
	log         *zap.SugaredLogger
	defaultKomi float64
	now         func() time.Time
}

func NewGameUseCase(store GameStore, sgf SGFStore, stats StatsStore, registry Registry, publisher Publisher, log *zap.SugaredLogger, defaultKomi float64) *GameUseCase {
	return &GameUseCase{
		store:       store,
		sgf:         sgf,
		stats:       stats,
		registry:    registry,
		publisher:   publisher,
		log:         log,
		defaultKomi: defaultKomi,
		now:         time.Now,
	}
}

// CreateGame opens a waiting game with the creator playing Black.
func (g *GameUseCase) CreateGame(ctx context.Context, req game.CreateGameRequest, creatorID string) (game.Game, error) {
	if !game.IsValidBoardSize(req.BoardSize) {
		return game.Game{}, errs.ErrInvalidBoardSize
	}

	open, err := g.store.CountOpenGames(ctx, creatorID)
	if err != nil {
		return game.Game{}, err
	}
	if open >= MaxOpenGames {
		return game.Game{}, errs.ErrTooManyGames
	}

	komi := g.defaultKomi
	if req.Komi != nil {
		komi = *req.Komi
	}

	return g.store.CreateGame(ctx, game.Game{
		BoardSize:   req.BoardSize,
		Komi:        komi,
		PlayerBlack: creatorID,
		Status:      statuses.StatusWaitOpponent,
		CreatedAt:   g.now(),
	})
}

func (g *GameUseCase) GetGame(ctx context.Context, gameID int64) (game.GameWithMoves, error) {
	meta, err := g.store.ReadGameMeta(ctx, gameID)
	if err != nil {
		return game.GameWithMoves{}, err
	}
	moves, err := g.store.ListMoves(ctx, gameID)
	if err != nil {
		return game.GameWithMoves{}, err
	}
	return game.GameWithMoves{Game: meta, Moves: moves}, nil
}

// GetSgf returns the cached record, rebuilding it from the move log when the
// cache has nothing.
func (g *GameUseCase) GetSgf(ctx context.Context, gameID int64) (string, error) {
	text, err := g.sgf.LoadSGF(ctx, gameID)
	if err == nil {
		return text, nil
	}
	if !errors.Is(err, errs.ErrGameNotFound) {
		g.log.Warnw("sgf cache read failed", "game_id", gameID, "err", err)
	}

	found, err := g.GetGame(ctx, gameID)
	if err != nil {
		return "", err
	}
	return BuildSGF(found.Game, found.Moves), nil
}

func (g *GameUseCase) GetUserStats(ctx context.Context, userID string) (user.User, error) {
	return g.stats.GetUserByID(ctx, userID)
}

// ReplayGame rebuilds a stored game without touching the live registry.
func (g *GameUseCase) ReplayGame(ctx context.Context, gameID int64) (game.Game, *game.Session, error) {
	found, err := g.GetGame(ctx, gameID)
	if err != nil {
		return game.Game{}, nil, err
	}
	session, err := registry.Rehydrate(found.Game, found.Moves)
	if err != nil {
		return game.Game{}, nil, err
	}
	return found.Game, session, nil
}

// JoinGame seats userID as White when the game is still waiting for an
// opponent and hands the full state of the game to deliver. For an active game
// deliver runs inside the game's section, so no move lands between the
// snapshot and its delivery.
func (g *GameUseCase) JoinGame(ctx context.Context, gameID int64, userID string, deliver func(game.GameStateView) error) error {
	meta, err := g.store.ReadGameMeta(ctx, gameID)
	if err != nil {
		return err
	}

	if meta.IsWaiting() && meta.PlayerBlack != userID && meta.PlayerWhite == "" {
		meta, err = g.claimWhite(ctx, meta, userID)
		if err != nil {
			return err
		}
	}

	switch {
	case meta.IsWaiting():
		session, err := game.NewSession(meta.BoardSize, meta.Komi)
		if err != nil {
			return err
		}
		return deliver(game.NewGameStateView(meta, session.State()))
	case meta.IsActive():
		err = g.registry.Inspect(ctx, gameID, func(state game.State) error {
			return deliver(game.NewGameStateView(meta, state))
		})
		if !errors.Is(err, errs.ErrGameNotActive) {
			return err
		}
		// finished after the meta was read
		if meta, err = g.store.ReadGameMeta(ctx, gameID); err != nil {
			return err
		}
		if !meta.IsFinished() {
			return errs.ErrGameNotActive
		}
		return g.deliverFinished(ctx, meta, deliver)
	case meta.IsFinished():
		return g.deliverFinished(ctx, meta, deliver)
	}
	return errs.ErrGameNotActive
}

// deliverFinished rebuilds a finished game outside the registry, which only
// holds games still being played.
func (g *GameUseCase) deliverFinished(ctx context.Context, meta game.Game, deliver func(game.GameStateView) error) error {
	moves, err := g.store.ListMoves(ctx, meta.ID)
	if err != nil {
		return err
	}
	session, err := registry.Rehydrate(meta, moves)
	if err != nil {
		return err
	}
	return deliver(game.NewGameStateView(meta, session.State()))
}

func (g *GameUseCase) claimWhite(ctx context.Context, meta game.Game, userID string) (game.Game, error) {
	ok, err := g.store.CASJoin(ctx, meta.ID, userID)
	if err != nil {
		return game.Game{}, err
	}
	if !ok {
		// lost the race, show whatever the winner left behind
		return g.store.ReadGameMeta(ctx, meta.ID)
	}

	meta.PlayerWhite = userID
	meta.Status = statuses.StatusActive
	g.log.Infow("player joined", "game_id", meta.ID, "user_id", userID)

	g.publish(ctx, game.Event{
		Type:   game.EventPlayerJoined,
		GameID: meta.ID,
		Data:   game.PlayerJoined{UserID: userID, Color: game.White},
	})

	record := PrepareSgfFile(meta)
	if err := g.sgf.SaveSGF(ctx, meta.ID, SerializeSGF(&record)); err != nil {
		g.log.Warnw("sgf save failed", "game_id", meta.ID, "err", err)
	}
	return meta, nil
}

// seat loads the game and the color userID plays in it.
func (g *GameUseCase) seat(ctx context.Context, gameID int64, userID string) (game.Game, game.Color, error) {
	meta, err := g.store.ReadGameMeta(ctx, gameID)
	if err != nil {
		return game.Game{}, game.Empty, err
	}
	if !meta.IsActive() {
		return game.Game{}, game.Empty, errs.ErrGameNotActive
	}
	color := meta.ColorOf(userID)
	if color == game.Empty {
		return game.Game{}, game.Empty, errs.ErrNotInGame
	}
	return meta, color, nil
}

func (g *GameUseCase) PlayMove(ctx context.Context, gameID int64, userID string, x, y int) error {
	meta, color, err := g.seat(ctx, gameID, userID)
	if err != nil {
		return err
	}
	if x < 0 || y < 0 || x >= meta.BoardSize || y >= meta.BoardSize {
		return fmt.Errorf("%w: point (%d,%d) on a %d board", errs.ErrInvalidInput, x, y, meta.BoardSize)
	}

	return g.registry.Mutate(ctx, gameID, func(s *game.Session) error {
		res, err := s.PlayMove(x, y, color)
		if err != nil {
			return err
		}
		if err = g.store.AppendMove(ctx, newMoveRecord(gameID, userID, res.Move)); err != nil {
			return err
		}

		g.appendSgf(ctx, gameID, res.Move)
		g.publish(ctx, game.NewMoveMade(gameID, res.Move))
		return nil
	})
}

func (g *GameUseCase) Pass(ctx context.Context, gameID int64, userID string) error {
	meta, color, err := g.seat(ctx, gameID, userID)
	if err != nil {
		return err
	}

	var over bool
	err = g.registry.Mutate(ctx, gameID, func(s *game.Session) error {
		res, err := s.Pass(color)
		if err != nil {
			return err
		}
		if err = g.store.AppendMove(ctx, newMoveRecord(gameID, userID, res.Move)); err != nil {
			return err
		}

		g.appendSgf(ctx, gameID, res.Move)
		g.publish(ctx, game.Event{
			Type:   game.EventPlayerPassed,
			GameID: gameID,
			Data:   game.PlayerPassed{Color: color},
		})

		if !res.GameOver {
			return nil
		}
		over = true

		// both passes are in the log, so a replay reaches the same end
		if err := g.saveFinish(ctx, meta, s); err != nil {
			g.log.Errorw("finish status not saved", "game_id", gameID, "err", err)
		}
		g.announceFinish(ctx, meta, s.Outcome())
		return nil
	})
	if over {
		g.registry.Forget(gameID)
	}
	return err
}

func (g *GameUseCase) Resign(ctx context.Context, gameID int64, userID string) error {
	meta, color, err := g.seat(ctx, gameID, userID)
	if err != nil {
		return err
	}

	err = g.registry.Mutate(ctx, gameID, func(s *game.Session) error {
		outcome, err := s.Resign(color)
		if err != nil {
			return err
		}
		// a resignation exists only in the game status
		if err = g.saveFinish(ctx, meta, s); err != nil {
			return err
		}
		g.announceFinish(ctx, meta, outcome)
		return nil
	})
	if err != nil {
		return err
	}

	g.registry.Forget(gameID)
	return nil
}

func (g *GameUseCase) saveFinish(ctx context.Context, meta game.Game, s *game.Session) error {
	outcome := s.Outcome()
	board := s.Board().Snapshot()
	return g.store.UpdateGameStatus(ctx, meta.ID, game.StatusUpdate{
		Status:     statuses.StatusFinished,
		WinnerID:   meta.PlayerOf(outcome.Winner),
		Result:     outcome.Result,
		FinalBoard: &board,
	})
}

// announceFinish updates counters, closes the SGF record and tells the room.
// None of it can undo the finish, so failures are only logged.
func (g *GameUseCase) announceFinish(ctx context.Context, meta game.Game, outcome game.Outcome) {
	if outcome.Winner != game.Empty {
		winnerID := meta.PlayerOf(outcome.Winner)
		loserID := meta.PlayerOf(outcome.Winner.Opponent())
		if err := g.stats.RecordResult(ctx, winnerID, loserID); err != nil {
			g.log.Errorw("win/loss not recorded", "game_id", meta.ID, "winner_id", winnerID, "err", err)
		}
	}

	if text, err := g.sgf.LoadSGF(ctx, meta.ID); err == nil {
		if err = g.sgf.SaveSGF(ctx, meta.ID, SetSgfResult(text, outcome.Result)); err != nil {
			g.log.Warnw("sgf save failed", "game_id", meta.ID, "err", err)
		}
	}

	g.log.Infow("game finished", "game_id", meta.ID, "result", outcome.Result)
	g.publish(ctx, game.NewGameOver(meta.ID, outcome))
}

func (g *GameUseCase) appendSgf(ctx context.Context, gameID int64, move game.Move) {
	text, err := g.sgf.LoadSGF(ctx, gameID)
	if err != nil {
		g.log.Debugw("no sgf record to extend", "game_id", gameID, "err", err)
		return
	}
	if err = g.sgf.SaveSGF(ctx, gameID, AppendMoveToSgf(text, move)); err != nil {
		g.log.Warnw("sgf save failed", "game_id", gameID, "err", err)
	}
}

func (g *GameUseCase) publish(ctx context.Context, event game.Event) {
	if err := g.publisher.Publish(ctx, event.GameID, event); err != nil {
		g.log.Errorw("publish failed", "game_id", event.GameID, "type", event.Type, "err", err)
	}
}

func newMoveRecord(gameID int64, userID string, move game.Move) game.MoveRecord {
	return game.MoveRecord{
		GameID:   gameID,
		Number:   move.Number,
		PlayerID: userID,
		X:        move.Point.X,
		Y:        move.Point.Y,
		IsPass:   move.IsPass,
		Captured: move.Captured,
	}
}
