// echo-server runs the echo service on the configured port.
//
// Configuration comes from an optional YAML file (--config), optional .env
// files (--env-file) and the environment. When no key pair is configured a
// fresh one is generated, so tokens do not survive a restart.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/Wang-tianhao/echo-auth-service/internal/config"
	"github.com/Wang-tianhao/echo-auth-service/internal/server"
)

func main() {
	var (
		configPath string
		envFiles   []string
	)

	flagSet := pflag.NewFlagSet("echo-server", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	flagSet.StringSliceVar(&envFiles, "env-file", nil, "load variables from these .env files (default: ./.env if present)")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load(configPath, envFiles...)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	slog.SetDefault(logger)

	if cfg.Auth.KeysGenerated {
		logger.Warn("no key pair configured, generated an ephemeral Ed25519 pair")
	}

	gin.SetMode(gin.ReleaseMode)
	srv, err := server.New(cfg, logger)
	if err != nil {
		log.Fatalf("Server setup error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func newLogger(cfg *config.AppConfig) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
}
