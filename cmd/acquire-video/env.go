package main

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-acquirer"
	"github.com/alanbriolat/video-acquirer/internal/config"
	"github.com/alanbriolat/video-acquirer/internal/session"
)

// env is everything a command needs, built from the configuration.
type env struct {
	config  *config.Config
	session *session.Session
	log     *zap.SugaredLogger
}

func withEnv(ctx context.Context, c *cli.Context, f func(e *env) error) error {
	cfg, err := config.Load(afero.NewOsFs(), c.String("config"), ".", "$HOME/.config/acquire-video", "/etc/acquire-video")
	if err != nil {
		return err
	}
	if output := c.String("output"); output != "" {
		cfg.OutputDir = output
	}

	logger, err := cfg.Logger()
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %w", err)
	}
	defer logger.Sync()
	undo := zap.ReplaceGlobals(logger)
	defer undo()
	restoreStdLog := zap.RedirectStdLog(logger)
	defer restoreStdLog()

	db, closeDB, err := cfg.OpenHistory(logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeDB(); err != nil {
			logger.Sugar().Errorf("failed to close history: %v", err)
		}
	}()

	sessionConfig, err := cfg.Session()
	if err != nil {
		return err
	}
	sessionConfig.Database = db
	sessionConfig.Primary, sessionConfig.Secondary, err = session.BackendsFromRegistry(&video_acquirer.DefaultBackendRegistry, cfg.BackendOptions())
	if err != nil {
		return err
	}
	ses, err := session.New(video_acquirer.WithLogger(ctx, logger), sessionConfig)
	if err != nil {
		return err
	}
	defer ses.Close()

	return f(&env{config: cfg, session: ses, log: logger.Sugar()})
}
