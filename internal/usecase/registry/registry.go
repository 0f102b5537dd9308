package registry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"goplay/internal/domain/game"
	errs "goplay/internal/errors"
)

// Store is the durable side the registry rebuilds sessions from.
type Store interface {
	ReadGameMeta(ctx context.Context, gameID int64) (game.Game, error)
	ListMoves(ctx context.Context, gameID int64) ([]game.MoveRecord, error)
	CancelStaleWaiting(ctx context.Context, olderThan time.Time) ([]int64, error)
}

type Config struct {
	Capacity         int
	TTL              time.Duration
	EvictionInterval time.Duration
	WaitingTimeout   time.Duration
	CleanupInterval  time.Duration
	StoreTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = 500
	}
	if c.TTL <= 0 {
		c.TTL = time.Hour
	}
	if c.EvictionInterval <= 0 {
		c.EvictionInterval = 5 * time.Minute
	}
	if c.WaitingTimeout <= 0 {
		c.WaitingTimeout = 30 * time.Minute
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 10 * time.Minute
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 5 * time.Second
	}
	return c
}

type Option func(*Registry)

// WithClock replaces time.Now, used by the sweeps and activity stamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// entry is one live game. mu is the per-game section; the remaining fields
// are guarded by Registry.mu.
type entry struct {
	mu      sync.Mutex
	session *game.Session

	lastActivity time.Time
	refs         int
	removed      atomic.Bool
}

// Registry holds at most one authoritative session per game and serializes
// every operation on it.
type Registry struct {
	cfg   Config
	store Store
	log   *zap.SugaredLogger
	now   func() time.Time

	mu      sync.Mutex
	entries map[int64]*entry
	loads   singleflight.Group

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	running   atomic.Bool
}

func New(cfg Config, store Store, log *zap.SugaredLogger, opts ...Option) *Registry {
	r := &Registry{
		cfg:     cfg.withDefaults(),
		store:   store,
		log:     log,
		now:     time.Now,
		entries: make(map[int64]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Inspect hands the current state of an active game to fn inside the game's
// section, loading the game on first access. Mutations of the game are held
// back until fn returns.
func (r *Registry) Inspect(ctx context.Context, gameID int64, fn func(game.State) error) error {
	return r.with(ctx, gameID, func(e *entry) error {
		return fn(e.session.State())
	})
}

// Mutate runs fn inside the game's section. If fn fails the session is put
// back exactly as it was before the call.
func (r *Registry) Mutate(ctx context.Context, gameID int64, fn func(*game.Session) error) error {
	return r.with(ctx, gameID, func(e *entry) error {
		backup := e.session.Clone()
		if err := fn(e.session); err != nil {
			e.session = backup
			return err
		}
		return nil
	})
}

// Forget drops the in-memory entry. An operation already inside the section
// finishes against the old session.
func (r *Registry) Forget(gameID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[gameID]; ok {
		e.removed.Store(true)
		delete(r.entries, gameID)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) with(ctx context.Context, gameID int64, fn func(*entry) error) error {
	for {
		e, err := r.acquire(ctx, gameID)
		if err != nil {
			return err
		}

		e.mu.Lock()
		if e.removed.Load() {
			e.mu.Unlock()
			r.release(e)
			continue
		}
		err = fn(e)
		e.mu.Unlock()
		r.release(e)
		return err
	}
}

// acquire finds or loads the entry and pins it so the idle sweep skips it.
func (r *Registry) acquire(ctx context.Context, gameID int64) (*entry, error) {
	if e, err := r.pin(gameID); e != nil || err != nil {
		return e, err
	}

	session, err := r.load(ctx, gameID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[gameID]; ok {
		e.refs++
		e.lastActivity = r.now()
		return e, nil
	}
	if len(r.entries) >= r.cfg.Capacity {
		return nil, errs.ErrRegistryFull
	}

	e := &entry{session: session, lastActivity: r.now(), refs: 1}
	r.entries[gameID] = e
	r.log.Debugw("session loaded", "game_id", gameID, "moves", session.MoveCount())
	return e, nil
}

func (r *Registry) pin(gameID int64) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[gameID]; ok {
		e.refs++
		e.lastActivity = r.now()
		return e, nil
	}
	if len(r.entries) >= r.cfg.Capacity {
		return nil, errs.ErrRegistryFull
	}
	return nil, nil
}

func (r *Registry) release(e *entry) {
	r.mu.Lock()
	e.refs--
	e.lastActivity = r.now()
	r.mu.Unlock()
}

type stored struct {
	meta  game.Game
	moves []game.MoveRecord
}

// load reads meta and moves once per game no matter how many callers are
// waiting, then builds a private session for this caller.
func (r *Registry) load(ctx context.Context, gameID int64) (*game.Session, error) {
	v, err, _ := r.loads.Do(strconv.FormatInt(gameID, 10), func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.StoreTimeout)
		defer cancel()

		meta, err := r.store.ReadGameMeta(ctx, gameID)
		if err != nil {
			return nil, err
		}
		if !meta.IsActive() {
			return nil, errs.ErrGameNotActive
		}
		moves, err := r.store.ListMoves(ctx, gameID)
		if err != nil {
			return nil, fmt.Errorf("list moves of game %d: %w", gameID, err)
		}
		return stored{meta: meta, moves: moves}, nil
	})
	if err != nil {
		return nil, err
	}

	loaded := v.(stored)
	return Rehydrate(loaded.meta, loaded.moves)
}

// Rehydrate rebuilds the session of a stored game from its move log.
func Rehydrate(meta game.Game, moves []game.MoveRecord) (*game.Session, error) {
	session, err := game.Replay(meta.BoardSize, meta.Komi, moves, meta.PlayerBlack)
	if err != nil {
		return nil, fmt.Errorf("game %d: %w", meta.ID, err)
	}

	// resignation leaves no move behind
	if meta.IsFinished() && !session.IsOver() {
		session.RestoreResignation(meta.ColorOf(meta.WinnerID), meta.Result)
	}
	return session, nil
}

// EvictIdle drops entries idle for longer than the TTL. Entries with an
// operation in flight are kept.
func (r *Registry) EvictIdle() int {
	cutoff := r.now().Add(-r.cfg.TTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, e := range r.entries {
		if e.refs > 0 || !e.lastActivity.Before(cutoff) {
			continue
		}
		e.removed.Store(true)
		delete(r.entries, id)
		evicted++
	}
	return evicted
}

// CancelStale cancels games that waited for an opponent longer than the
// waiting timeout and drops whatever is cached for them.
func (r *Registry) CancelStale(ctx context.Context) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
	defer cancel()

	ids, err := r.store.CancelStaleWaiting(ctx, r.now().Add(-r.cfg.WaitingTimeout))
	if err != nil {
		return nil, fmt.Errorf("cancel stale games: %w", err)
	}
	for _, id := range ids {
		r.Forget(id)
	}
	return ids, nil
}

// Start launches the background sweeps. It returns once they are scheduled.
func (r *Registry) Start(ctx context.Context) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	if r.cancel != nil {
		return errors.New("registry already started")
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	r.running.Store(true)

	go r.sweep(ctx)
	return nil
}

// Stop halts the sweeps and waits for them to exit.
func (r *Registry) Stop() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.cancel = nil
	r.running.Store(false)
}

// Running reports whether Start was called and Stop was not.
func (r *Registry) Running() bool {
	return r.running.Load()
}

func (r *Registry) sweep(ctx context.Context) {
	defer close(r.done)

	eviction := time.NewTicker(r.cfg.EvictionInterval)
	defer eviction.Stop()
	cleanup := time.NewTicker(r.cfg.CleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-eviction.C:
			if n := r.EvictIdle(); n > 0 {
				r.log.Infow("evicted idle sessions", "count", n, "live", r.Len())
			}
		case <-cleanup.C:
			ids, err := r.CancelStale(ctx)
			if err != nil {
				r.log.Errorw("stale game cleanup failed", "err", err)
				continue
			}
			if len(ids) > 0 {
				r.log.Infow("cancelled stale games", "count", len(ids), "game_ids", ids)
			}
		}
	}
}
