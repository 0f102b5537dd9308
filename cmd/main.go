package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "goplay",
		Usage: "live Go match server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: ".env",
				Usage: "optional env file, environment variables take precedence",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the http, websocket and grpc health servers",
				Action: serve,
			},
			{
				Name:  "replay",
				Usage: "rebuild a stored game from its move log and print the board",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "game", Required: true, Usage: "game id"},
				},
				Action: replay,
			},
			{
				Name:   "cleanup",
				Usage:  "cancel games that waited too long for an opponent",
				Action: cleanup,
			},
			{
				Name:  "session",
				Usage: "issue a session cookie value for a user id (local play), or revoke one",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Usage: "user id to issue a session for"},
					&cli.StringFlag{Name: "revoke", Usage: "session id to revoke"},
				},
				Action: issueSession,
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
