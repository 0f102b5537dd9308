package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"goplay/internal/domain/game"
	errs "goplay/internal/errors"
	"goplay/internal/statuses"
)

const (
	gamesCollection    = "games"
	movesCollection    = "moves"
	countersCollection = "counters"
)

// GameRepository keeps game metadata and the append-only move log in MongoDB.
type GameRepository struct {
	log     *zap.SugaredLogger
	mongo   *mongo.Database
	timeout time.Duration
	now     func() time.Time
}

func NewGameRepository(log *zap.SugaredLogger, mongo *mongo.Database, timeout time.Duration) *GameRepository {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GameRepository{
		log:     log,
		mongo:   mongo,
		timeout: timeout,
		now:     time.Now,
	}
}

// EnsureIndexes creates the indexes the queries below rely on. The unique
// move index is what makes a duplicate append fail.
func (g *GameRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	_, err := g.mongo.Collection(movesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "game_id", Value: 1}, {Key: "move_number", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create moves index: %w", err)
	}

	_, err = g.mongo.Collection(gamesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "player_black", Value: 1}}},
		{Keys: bson.D{{Key: "player_white", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create games indexes: %w", err)
	}
	return nil
}

func (g *GameRepository) nextGameID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := g.mongo.Collection(countersCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": gamesCollection},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next game id: %w", err)
	}
	return counter.Seq, nil
}

// CreateGame assigns the next numeric id and stores the game.
func (g *GameRepository) CreateGame(ctx context.Context, newGame game.Game) (game.Game, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	id, err := g.nextGameID(ctx)
	if err != nil {
		return game.Game{}, err
	}
	newGame.ID = id

	if _, err = g.mongo.Collection(gamesCollection).InsertOne(ctx, newGame); err != nil {
		return game.Game{}, fmt.Errorf("insert game %d: %w", id, err)
	}

	g.log.Infow("game created", "game_id", id, "user_id", newGame.PlayerBlack, "board_size", newGame.BoardSize)
	return newGame, nil
}

func (g *GameRepository) ReadGameMeta(ctx context.Context, gameID int64) (game.Game, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var found game.Game
	err := g.mongo.Collection(gamesCollection).FindOne(ctx, bson.M{"_id": gameID}).Decode(&found)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return game.Game{}, errs.ErrGameNotFound
	}
	if err != nil {
		return game.Game{}, fmt.Errorf("read game %d: %w", gameID, err)
	}
	return found, nil
}

// ListMoves returns the move log of a game in play order.
func (g *GameRepository) ListMoves(ctx context.Context, gameID int64) ([]game.MoveRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cursor, err := g.mongo.Collection(movesCollection).Find(ctx,
		bson.M{"game_id": gameID},
		options.Find().SetSort(bson.D{{Key: "move_number", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find moves of game %d: %w", gameID, err)
	}

	moves := make([]game.MoveRecord, 0)
	if err = cursor.All(ctx, &moves); err != nil {
		return nil, fmt.Errorf("decode moves of game %d: %w", gameID, err)
	}
	return moves, nil
}

func (g *GameRepository) AppendMove(ctx context.Context, move game.MoveRecord) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if move.CreatedAt.IsZero() {
		move.CreatedAt = g.now()
	}
	if move.Captured == nil {
		move.Captured = []game.Point{}
	}

	_, err := g.mongo.Collection(movesCollection).InsertOne(ctx, move)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("move %d of game %d already stored: %w", move.Number, move.GameID, err)
	}
	if err != nil {
		return fmt.Errorf("append move %d of game %d: %w", move.Number, move.GameID, err)
	}
	return nil
}

func (g *GameRepository) UpdateGameStatus(ctx context.Context, gameID int64, update game.StatusUpdate) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	set := bson.M{"status": update.Status}
	if update.WinnerID != "" {
		set["winner_id"] = update.WinnerID
	}
	if update.Result != "" {
		set["result"] = update.Result
	}
	if update.FinalBoard != nil {
		set["final_board"] = update.FinalBoard
	}
	if update.Status == statuses.StatusFinished || update.Status == statuses.StatusCancelled {
		set["finished_at"] = g.now()
	}

	res, err := g.mongo.Collection(gamesCollection).UpdateOne(ctx, bson.M{"_id": gameID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update status of game %d: %w", gameID, err)
	}
	if res.MatchedCount == 0 {
		return errs.ErrGameNotFound
	}
	return nil
}

// CASJoin seats whiteID in a waiting game. It reports false when someone
// else got there first or the game is no longer waiting.
func (g *GameRepository) CASJoin(ctx context.Context, gameID int64, whiteID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	filter := bson.M{
		"_id":          gameID,
		"status":       statuses.StatusWaitOpponent,
		"player_white": "",
		"player_black": bson.M{"$ne": whiteID},
	}
	update := bson.M{
		"$set": bson.M{
			"player_white": whiteID,
			"status":       statuses.StatusActive,
			"started_at":   g.now(),
		},
	}

	res, err := g.mongo.Collection(gamesCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("join game %d: %w", gameID, err)
	}
	return res.ModifiedCount == 1, nil
}

// CancelStaleWaiting cancels every game that has been waiting for an
// opponent since before olderThan and returns their ids.
func (g *GameRepository) CancelStaleWaiting(ctx context.Context, olderThan time.Time) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	collection := g.mongo.Collection(gamesCollection)
	filter := bson.M{
		"status":     statuses.StatusWaitOpponent,
		"created_at": bson.M{"$lt": olderThan},
	}

	cursor, err := collection.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("find stale games: %w", err)
	}
	var found []struct {
		ID int64 `bson:"_id"`
	}
	if err = cursor.All(ctx, &found); err != nil {
		return nil, fmt.Errorf("decode stale games: %w", err)
	}
	if len(found) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(found))
	for _, f := range found {
		ids = append(ids, f.ID)
	}

	_, err = collection.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "status": statuses.StatusWaitOpponent},
		bson.M{"$set": bson.M{"status": statuses.StatusCancelled, "finished_at": g.now()}},
	)
	if err != nil {
		return nil, fmt.Errorf("cancel stale games: %w", err)
	}
	return ids, nil
}

// CountOpenGames counts the waiting and active games userID takes part in.
func (g *GameRepository) CountOpenGames(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	filter := bson.M{
		"$or": []bson.M{
			{"player_black": userID},
			{"player_white": userID},
		},
		"status": bson.M{"$in": []string{statuses.StatusWaitOpponent, statuses.StatusActive}},
	}
	n, err := g.mongo.Collection(gamesCollection).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count games of %s: %w", userID, err)
	}
	return n, nil
}
