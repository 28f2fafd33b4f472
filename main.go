package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"rowriver/internal/app"
	"rowriver/internal/config"
	_ "rowriver/internal/etl/sources"
	"rowriver/internal/logging"
)

func main() {
	configPath := flag.String("config", "rowriver.yaml", "path to the YAML config file")
	mode := flag.String("mode", "serve", "serve | run | mcp")
	riverName := flag.String("river", "", "river to run (mode=run)")
	flag.Parse()

	if err := run(*configPath, *mode, *riverName); err != nil {
		fmt.Fprintln(os.Stderr, "rowriver:", err)
		os.Exit(1)
	}
}

func run(configPath, mode, riverName string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a := app.New(cfg, logger)
	if err := a.Startup(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		a.Shutdown(shutdownCtx)
	}()

	switch mode {
	case "serve":
		return a.Serve(ctx)
	case "run":
		_, err := a.RunOnce(ctx, riverName)
		return err
	case "mcp":
		return a.ServeMCP()
	default:
		logger.Error("unknown mode", zap.String("mode", mode))
		return fmt.Errorf("unknown mode %q", mode)
	}
}
