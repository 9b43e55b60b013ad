package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/quantrail/barfetch/internal/config"
	"github.com/quantrail/barfetch/internal/logger"
	"github.com/quantrail/barfetch/internal/web"
)

// serveAction loads configuration, builds the web server and runs it
// until SIGINT/SIGTERM.
func serveAction(_ context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	if addr := cmd.String("bind"); addr != "" {
		cfg.Server.BindAddr = addr
	}

	zapLogger, err := logger.NewLoggerWithLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	server, err := web.NewServer(&cfg, zapLogger)
	if err != nil {
		return err
	}

	if err := server.Start(cfg.Server.BindAddr); err != nil {
		return err
	}

	zapLogger.Info("open the UI in a browser",
		zap.String("url", server.BaseURL()),
		zap.String("provider", cfg.Provider),
		zap.String("writer", cfg.Writer),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	zapLogger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}

func main() {
	// Credentials may live in a local .env file.
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:  "barfetch-server",
		Usage: "Browser UI for fetching daily OHLCV bars into CSV files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
			},
			&cli.StringFlag{
				Name:    "bind",
				Aliases: []string{"b"},
				Usage:   "Bind address, overrides the configuration file",
			},
		},
		Action: serveAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
