package repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goplay/internal/domain/game"
	errs "goplay/internal/errors"
	"goplay/internal/statuses"
	"goplay/internal/testing/suite"
)

func newWaitingGame(black string) game.Game {
	return game.Game{
		BoardSize:   9,
		Komi:        game.DefaultKomi,
		PlayerBlack: black,
		Status:      statuses.StatusWaitOpponent,
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestGameRepository_CreateAndRead(t *testing.T) {
	ctx, st := suite.New(t)
	repo := NewGameRepository(st.Logger, st.Mongo, time.Second)
	require.NoError(t, repo.EnsureIndexes(ctx))

	// Given: two created games
	first, err := repo.CreateGame(ctx, newWaitingGame("alice"))
	require.NoError(t, err)
	second, err := repo.CreateGame(ctx, newWaitingGame("carol"))
	require.NoError(t, err)

	// When: reading the first back
	found, err := repo.ReadGameMeta(ctx, first.ID)

	// Then: ids are sequential and fields round trip
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, "alice", found.PlayerBlack)
	assert.Empty(t, found.PlayerWhite)
	assert.Equal(t, statuses.StatusWaitOpponent, found.Status)

	_, err = repo.ReadGameMeta(ctx, 999)
	assert.ErrorIs(t, err, errs.ErrGameNotFound)
}

func TestGameRepository_Moves(t *testing.T) {
	ctx, st := suite.New(t)
	repo := NewGameRepository(st.Logger, st.Mongo, time.Second)
	require.NoError(t, repo.EnsureIndexes(ctx))

	// Given: moves appended out of order
	require.NoError(t, repo.AppendMove(ctx, game.MoveRecord{GameID: 1, Number: 2, PlayerID: "bob", X: 3, Y: 3}))
	require.NoError(t, repo.AppendMove(ctx, game.MoveRecord{GameID: 1, Number: 1, PlayerID: "alice", X: 2, Y: 2}))
	require.NoError(t, repo.AppendMove(ctx, game.MoveRecord{GameID: 2, Number: 1, PlayerID: "carol", IsPass: true}))

	// When
	moves, err := repo.ListMoves(ctx, 1)

	// Then: they come back in play order and only for that game
	require.NoError(t, err)
	require.Len(t, moves, 2)
	assert.Equal(t, 1, moves[0].Number)
	assert.Equal(t, "alice", moves[0].PlayerID)
	assert.Equal(t, 2, moves[1].Number)

	// a second move with the same number is refused
	err = repo.AppendMove(ctx, game.MoveRecord{GameID: 1, Number: 2, PlayerID: "bob", X: 4, Y: 4})
	assert.Error(t, err)

	empty, err := repo.ListMoves(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGameRepository_CASJoin(t *testing.T) {
	t.Run("first joiner wins", func(t *testing.T) {
		ctx, st := suite.New(t)
		repo := NewGameRepository(st.Logger, st.Mongo, time.Second)
		created, err := repo.CreateGame(ctx, newWaitingGame("alice"))
		require.NoError(t, err)

		ok, err := repo.CASJoin(ctx, created.ID, "bob")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.CASJoin(ctx, created.ID, "carol")
		require.NoError(t, err)
		assert.False(t, ok)

		found, err := repo.ReadGameMeta(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "bob", found.PlayerWhite)
		assert.Equal(t, statuses.StatusActive, found.Status)
		assert.NotNil(t, found.StartedAt)
	})

	t.Run("creator cannot join their own game", func(t *testing.T) {
		ctx, st := suite.New(t)
		repo := NewGameRepository(st.Logger, st.Mongo, time.Second)
		created, err := repo.CreateGame(ctx, newWaitingGame("alice"))
		require.NoError(t, err)

		ok, err := repo.CASJoin(ctx, created.ID, "alice")

		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestGameRepository_UpdateGameStatus(t *testing.T) {
	ctx, st := suite.New(t)
	repo := NewGameRepository(st.Logger, st.Mongo, time.Second)
	created, err := repo.CreateGame(ctx, newWaitingGame("alice"))
	require.NoError(t, err)

	board, err := game.NewBoard(9)
	require.NoError(t, err)
	board.Set(2, 2, game.Black)
	snapshot := board.Snapshot()

	err = repo.UpdateGameStatus(ctx, created.ID, game.StatusUpdate{
		Status:     statuses.StatusFinished,
		WinnerID:   "alice",
		Result:     "B+Resign",
		FinalBoard: &snapshot,
	})
	require.NoError(t, err)

	found, err := repo.ReadGameMeta(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, statuses.StatusFinished, found.Status)
	assert.Equal(t, "alice", found.WinnerID)
	assert.Equal(t, "B+Resign", found.Result)
	require.NotNil(t, found.FinalBoard)
	assert.Equal(t, snapshot, *found.FinalBoard)
	assert.NotNil(t, found.FinishedAt)

	err = repo.UpdateGameStatus(ctx, 999, game.StatusUpdate{Status: statuses.StatusFinished})
	assert.ErrorIs(t, err, errs.ErrGameNotFound)
}

func TestGameRepository_CancelStaleWaiting(t *testing.T) {
	ctx, st := suite.New(t)
	repo := NewGameRepository(st.Logger, st.Mongo, time.Second)

	old := newWaitingGame("alice")
	old.CreatedAt = time.Now().Add(-time.Hour)
	stale, err := repo.CreateGame(ctx, old)
	require.NoError(t, err)
	fresh, err := repo.CreateGame(ctx, newWaitingGame("carol"))
	require.NoError(t, err)

	ids, err := repo.CancelStaleWaiting(ctx, time.Now().Add(-30*time.Minute))

	require.NoError(t, err)
	assert.Equal(t, []int64{stale.ID}, ids)

	found, err := repo.ReadGameMeta(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, statuses.StatusCancelled, found.Status)

	found, err = repo.ReadGameMeta(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, statuses.StatusWaitOpponent, found.Status)
}

func TestGameRepository_CountOpenGames(t *testing.T) {
	ctx, st := suite.New(t)
	repo := NewGameRepository(st.Logger, st.Mongo, time.Second)

	first, err := repo.CreateGame(ctx, newWaitingGame("alice"))
	require.NoError(t, err)
	_, err = repo.CreateGame(ctx, newWaitingGame("alice"))
	require.NoError(t, err)
	joined, err := repo.CreateGame(ctx, newWaitingGame("bob"))
	require.NoError(t, err)
	ok, err := repo.CASJoin(ctx, joined.ID, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, repo.UpdateGameStatus(ctx, first.ID, game.StatusUpdate{Status: statuses.StatusFinished}))

	n, err := repo.CountOpenGames(ctx, "alice")

	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
