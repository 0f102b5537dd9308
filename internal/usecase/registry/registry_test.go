package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goplay/internal/domain/game"
	errs "goplay/internal/errors"
	"goplay/internal/statuses"
)

type fakeStore struct {
	mu        sync.Mutex
	games     map[int64]game.Game
	moves     map[int64][]game.MoveRecord
	metaCalls atomic.Int32
	gate      chan struct{}

	staleIDs    []int64
	staleCutoff time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		games: make(map[int64]game.Game),
		moves: make(map[int64][]game.MoveRecord),
	}
}

func (f *fakeStore) addActive(id int64, moves ...game.MoveRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.games[id] = game.Game{
		ID:          id,
		BoardSize:   9,
		Komi:        game.DefaultKomi,
		PlayerBlack: "alice",
		PlayerWhite: "bob",
		Status:      statuses.StatusActive,
	}
	f.moves[id] = moves
}

func (f *fakeStore) ReadGameMeta(_ context.Context, id int64) (game.Game, error) {
	f.metaCalls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.games[id]
	if !ok {
		return game.Game{}, errs.ErrGameNotFound
	}
	return g, nil
}

func (f *fakeStore) ListMoves(_ context.Context, id int64) ([]game.MoveRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.moves[id], nil
}

func (f *fakeStore) CancelStaleWaiting(_ context.Context, olderThan time.Time) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staleCutoff = olderThan
	return f.staleIDs, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry(store Store, cfg Config) (*Registry, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return New(cfg, store, zap.NewNop().Sugar(), WithClock(clock.Now)), clock
}

func resolve(r *Registry, gameID int64) (game.State, error) {
	var state game.State
	err := r.Inspect(context.Background(), gameID, func(s game.State) error {
		state = s
		return nil
	})
	return state, err
}

func TestRegistry_Rehydrate(t *testing.T) {
	t.Run("replays the stored log once", func(t *testing.T) {
		// Given: a game with two stored moves
		store := newFakeStore()
		store.addActive(1,
			game.MoveRecord{GameID: 1, Number: 1, PlayerID: "alice", X: 2, Y: 2},
			game.MoveRecord{GameID: 1, Number: 2, PlayerID: "bob", X: 6, Y: 6},
		)
		r, _ := newTestRegistry(store, Config{})

		// When: resolving twice
		state, err := resolve(r, 1)
		require.NoError(t, err)
		_, err = resolve(r, 1)
		require.NoError(t, err)

		// Then: the second access is served from memory
		assert.Equal(t, 2, state.MoveCount)
		assert.Equal(t, game.Black, state.CurrentPlayer)
		assert.EqualValues(t, 1, store.metaCalls.Load())
		assert.Equal(t, 1, r.Len())
	})

	t.Run("restores a resignation from the stored result", func(t *testing.T) {
		meta := game.Game{
			ID:          7,
			BoardSize:   9,
			Komi:        game.DefaultKomi,
			PlayerBlack: "alice",
			PlayerWhite: "bob",
			Status:      statuses.StatusFinished,
			WinnerID:    "bob",
			Result:      "W+Resign",
		}

		session, err := Rehydrate(meta, []game.MoveRecord{{GameID: 7, Number: 1, PlayerID: "alice", X: 4, Y: 4}})

		require.NoError(t, err)
		state := session.State()
		assert.True(t, state.IsOver)
		assert.Equal(t, game.White, state.Winner)
		assert.Equal(t, "W+Resign", state.Result)
		assert.Equal(t, 1, state.MoveCount)
	})

	t.Run("finished game is not loaded", func(t *testing.T) {
		// Given: a game that already ended
		store := newFakeStore()
		store.addActive(8)
		finished := store.games[8]
		finished.Status = statuses.StatusFinished
		finished.Result = "B+Resign"
		store.games[8] = finished
		r, _ := newTestRegistry(store, Config{Capacity: 1})

		// When: someone looks at it through the registry
		_, err := resolve(r, 8)

		// Then: it takes no live slot
		assert.ErrorIs(t, err, errs.ErrGameNotActive)
		assert.Zero(t, r.Len())
	})

	t.Run("waiting game is not loaded", func(t *testing.T) {
		store := newFakeStore()
		store.addActive(2)
		waiting := store.games[2]
		waiting.Status = statuses.StatusWaitOpponent
		store.games[2] = waiting
		r, _ := newTestRegistry(store, Config{})

		_, err := resolve(r, 2)

		assert.ErrorIs(t, err, errs.ErrGameNotActive)
		assert.Zero(t, r.Len())
	})

	t.Run("unknown game", func(t *testing.T) {
		r, _ := newTestRegistry(newFakeStore(), Config{})

		_, err := resolve(r, 404)

		assert.ErrorIs(t, err, errs.ErrGameNotFound)
	})

	t.Run("corrupt log is reported and not cached", func(t *testing.T) {
		store := newFakeStore()
		store.addActive(3,
			game.MoveRecord{GameID: 3, Number: 1, PlayerID: "alice", X: 1, Y: 1},
			game.MoveRecord{GameID: 3, Number: 2, PlayerID: "bob", X: 1, Y: 1},
		)
		r, _ := newTestRegistry(store, Config{})

		_, err := resolve(r, 3)

		assert.ErrorIs(t, err, errs.ErrCorruptMoveLog)
		assert.Zero(t, r.Len())
	})
}

func TestRegistry_Capacity(t *testing.T) {
	store := newFakeStore()
	store.addActive(1)
	store.addActive(2)
	r, _ := newTestRegistry(store, Config{Capacity: 1})

	_, err := resolve(r, 1)
	require.NoError(t, err)

	_, err = resolve(r, 2)
	assert.ErrorIs(t, err, errs.ErrRegistryFull)

	// resident games stay reachable while full
	_, err = resolve(r, 1)
	assert.NoError(t, err)

	r.Forget(1)
	_, err = resolve(r, 2)
	assert.NoError(t, err)
}

func TestRegistry_MutateRollsBack(t *testing.T) {
	// Given
	store := newFakeStore()
	store.addActive(1)
	r, _ := newTestRegistry(store, Config{})
	failure := errors.New("append failed")

	// When: the callback applies a move and then fails
	err := r.Mutate(context.Background(), 1, func(s *game.Session) error {
		_, err := s.PlayMove(4, 4, game.Black)
		require.NoError(t, err)
		return failure
	})

	// Then: the move is gone
	assert.ErrorIs(t, err, failure)
	state, err := resolve(r, 1)
	require.NoError(t, err)
	assert.Zero(t, state.MoveCount)
	assert.Equal(t, game.Black, state.CurrentPlayer)
	assert.Equal(t, 0, state.Board.Grid[4*9+4])
}

func TestRegistry_EvictIdle(t *testing.T) {
	t.Run("drops entries past the ttl", func(t *testing.T) {
		store := newFakeStore()
		store.addActive(1)
		store.addActive(2)
		r, clock := newTestRegistry(store, Config{TTL: time.Hour})

		_, err := resolve(r, 1)
		require.NoError(t, err)
		clock.Advance(50 * time.Minute)
		_, err = resolve(r, 2)
		require.NoError(t, err)
		clock.Advance(20 * time.Minute)

		assert.Equal(t, 1, r.EvictIdle())
		assert.Equal(t, 1, r.Len())
	})

	t.Run("busy entry survives", func(t *testing.T) {
		store := newFakeStore()
		store.addActive(1)
		r, clock := newTestRegistry(store, Config{TTL: time.Hour})

		var evicted int
		err := r.Mutate(context.Background(), 1, func(*game.Session) error {
			clock.Advance(2 * time.Hour)
			evicted = r.EvictIdle()
			return nil
		})

		require.NoError(t, err)
		assert.Zero(t, evicted)
		assert.Equal(t, 1, r.Len())
	})
}

func TestRegistry_GamesRunInParallel(t *testing.T) {
	store := newFakeStore()
	store.addActive(1)
	store.addActive(2)
	r, _ := newTestRegistry(store, Config{})

	// Given: game 1 is inside its section
	err := r.Mutate(context.Background(), 1, func(*game.Session) error {
		// When: game 2 is touched from within
		_, err := resolve(r, 2)
		return err
	})

	// Then: nothing blocks
	assert.NoError(t, err)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_OneMutationPerGame(t *testing.T) {
	store := newFakeStore()
	store.addActive(1)
	r, _ := newTestRegistry(store, Config{})

	var inFlight atomic.Int32
	var overlapped atomic.Bool
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Mutate(context.Background(), 1, func(*game.Session) error {
				if inFlight.Add(1) > 1 {
					overlapped.Store(true)
				}
				time.Sleep(time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.False(t, overlapped.Load())
}

func TestRegistry_ConcurrentFirstAccessSharesLoad(t *testing.T) {
	store := newFakeStore()
	store.addActive(1)
	store.gate = make(chan struct{})
	r, _ := newTestRegistry(store, Config{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := resolve(r, 1)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(store.gate)
	wg.Wait()

	assert.EqualValues(t, 1, store.metaCalls.Load())
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_CancelStale(t *testing.T) {
	store := newFakeStore()
	store.addActive(5)
	store.staleIDs = []int64{5}
	r, clock := newTestRegistry(store, Config{WaitingTimeout: 30 * time.Minute})
	_, err := resolve(r, 5)
	require.NoError(t, err)

	ids, err := r.CancelStale(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []int64{5}, ids)
	assert.Zero(t, r.Len())
	assert.Equal(t, clock.Now().Add(-30*time.Minute), store.staleCutoff)
}

func TestRegistry_Lifecycle(t *testing.T) {
	r, _ := newTestRegistry(newFakeStore(), Config{})

	require.NoError(t, r.Start(context.Background()))
	assert.True(t, r.Running())
	assert.Error(t, r.Start(context.Background()))

	r.Stop()
	assert.False(t, r.Running())

	// stopping twice is harmless
	r.Stop()
}
