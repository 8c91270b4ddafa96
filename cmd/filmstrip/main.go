package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/goldcast/filmstrip-migration/async"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("can't load .env: %v", err)
	}

	logger, err := newLogger(false, false)
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	zap.RedirectStdLog(logger)
	zap.ReplaceGlobals(logger)
	defer func() { _ = zap.L().Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp()
	err = async.Interruptible(ctx, func() error { return app.RunContext(ctx, os.Args) }, func() {
		stop()
		zap.S().Info("Interrupted, waiting for running jobs to stop...")
	})
	if err != nil {
		zap.L().Fatal(err.Error())
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "filmstrip",
		Usage: "generate filmstrip previews for recordings and uploads",
		Flags: globalFlags(),
		Before: func(c *cli.Context) error {
			if !c.Bool("log-json") && !c.Bool("debug") {
				return nil
			}
			logger, err := newLogger(c.Bool("log-json"), c.Bool("debug"))
			if err != nil {
				return err
			}
			zap.RedirectStdLog(logger)
			zap.ReplaceGlobals(logger)
			return nil
		},
		Commands: []*cli.Command{
			recordingsCommand(),
			uploadsCommand(),
			preseedCommand(),
			historyCommand(),
			configCommand(),
		},
		HideHelpCommand: true,
	}
}

func newLogger(json bool, debug bool) (*zap.Logger, error) {
	var config zap.Config
	if json {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	if debug {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return config.Build()
}
