package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"goplay/internal/bootstrap"
	"goplay/internal/delivery/auth"
	"goplay/internal/delivery/broadcast"
	gameDelivery "goplay/internal/delivery/game"
	"goplay/internal/delivery/health"
	"goplay/internal/domain/game"
)

const (
	shutdownTimeout = 10 * time.Second
	healthInterval  = 5 * time.Second
)

func serve(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd.String("config"))
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.hub.Run(gctx)
		return nil
	})

	if a.cfg.BroadcastMode == bootstrap.BroadcastRedis {
		relay := broadcast.NewRelay(a.redis.GetClient(), a.hub, a.log)
		if err = relay.Start(gctx); err != nil {
			return err
		}
	}

	if err = a.registry.Start(gctx); err != nil {
		return err
	}
	defer a.registry.Stop()

	authHandler := auth.NewAuthHandler(a.identity, a.log)
	gameHandler := gameDelivery.NewGameHandler(gctx, a.log, a.gameUC, a.hub, authHandler,
		a.cfg.RateLimitEvents, a.cfg.RateLimitWindow)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	gameHandler.Routes(r)

	httpServer := &http.Server{
		Addr:    ":" + a.cfg.ServerPort,
		Handler: r,
	}

	lis, err := net.Listen("tcp", ":"+a.cfg.GrpcPort)
	if err != nil {
		return fmt.Errorf("listen grpc port: %w", err)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer(a.registry, healthInterval, a.log)
	healthServer.Register(grpcServer)

	g.Go(func() error {
		healthServer.Watch(gctx)
		return nil
	})

	g.Go(func() error {
		a.log.Infow("grpc health server is running", "port", a.cfg.GrpcPort)
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		a.log.Infow("server is running", "port", a.cfg.ServerPort, "broadcast", a.cfg.BroadcastMode)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Infow("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		grpcServer.GracefulStop()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func replay(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd.String("config"))
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	meta, session, err := a.gameUC.ReplayGame(ctx, cmd.Int64("game"))
	if err != nil {
		return err
	}

	board := session.Board()
	byBlack, byWhite := session.Captures()

	fmt.Fprintf(os.Stdout, "game %d  %dx%d  komi %g  status %s\n", meta.ID, board.Size(), board.Size(), meta.Komi, meta.Status)
	fmt.Fprintf(os.Stdout, "black %s  white %s\n", meta.PlayerBlack, meta.PlayerWhite)
	fmt.Fprintf(os.Stdout, "moves %d  captures B:%d W:%d\n\n", session.MoveCount(), byBlack, byWhite)
	fmt.Fprint(os.Stdout, board.String())

	if session.IsOver() {
		fmt.Fprintf(os.Stdout, "\nresult %s\n", session.Result())
		return nil
	}
	score := game.ScoreBoard(board, meta.Komi)
	fmt.Fprintf(os.Stdout, "\nB %g  W %g  (%s if scored now)\n", score.BlackScore, score.WhiteScore, score.Result)
	return nil
}

func cleanup(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd.String("config"))
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	ids, err := a.registry.CancelStale(ctx)
	if err != nil {
		return err
	}
	a.log.Infow("cancelled stale games", "count", len(ids), "game_ids", ids)
	return nil
}

func issueSession(ctx context.Context, cmd *cli.Command) error {
	userID, revoke := cmd.String("user"), cmd.String("revoke")
	if (userID == "") == (revoke == "") {
		return errors.New("exactly one of --user and --revoke is required")
	}

	a, err := newApp(ctx, cmd.String("config"))
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	if revoke != "" {
		if err = a.identity.RevokeSession(ctx, revoke); err != nil {
			return err
		}
		a.log.Infow("session revoked")
		return nil
	}

	sessionID, err := a.identity.IssueSession(ctx, userID)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "%s=%s\n", auth.SessionCookie, sessionID)
	return nil
}
