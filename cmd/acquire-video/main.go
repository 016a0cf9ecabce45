package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-acquirer"
	"github.com/alanbriolat/video-acquirer/async"
	_ "github.com/alanbriolat/video-acquirer/providers"
)

func main() {
	// Replaced once the configuration is loaded
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := &cli.App{
		Name:  "acquire-video",
		Usage: "acquire videos, retrying across client strategies",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "read configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "save acquired videos under `DIR`",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "fetch",
				Usage:     "acquire one or more videos",
				ArgsUsage: "SOURCE...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "quality",
						Value: video_acquirer.QualityBest,
						Usage: "acquire encoding `ID`, or \"best\"",
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "show progress while acquiring",
					},
				},
				Action: func(c *cli.Context) error {
					return withEnv(ctx, c, func(e *env) error { return fetch(ctx, e, c) })
				},
			},
			{
				Name:  "history",
				Usage: "list previous acquisitions",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "prune",
						Usage: "delete records older than history.max_age first",
					},
				},
				Action: func(c *cli.Context) error {
					return withEnv(ctx, c, func(e *env) error { return history(e, c) })
				},
			},
			{
				Name:  "backends",
				Usage: "list registered backends in priority order",
				Action: func(c *cli.Context) error {
					for _, name := range video_acquirer.DefaultBackendRegistry.List() {
						fmt.Println(name)
					}
					return nil
				},
			},
		},
		HideHelpCommand: true,
	}

	result := async.Run(func() error { return app.Run(os.Args) })

	select {
	case err = <-result:
	case <-ctx.Done():
		stop()
		err = <-result
	}
	_ = zap.L().Sync()
	if err != nil {
		zap.L().Fatal(err.Error())
	}
}
