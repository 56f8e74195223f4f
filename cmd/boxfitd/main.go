// Command boxfitd serves oriented bounding box fitting and scene queries
// over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chazu/boxfit/pkg/config"
	"github.com/chazu/boxfit/pkg/engine"
	"github.com/chazu/boxfit/pkg/kernel/sdfx"
	"github.com/chazu/boxfit/pkg/obb"
	"github.com/chazu/boxfit/pkg/scene"
	"github.com/chazu/boxfit/pkg/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "boxfitd:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a YAML config file")
	jsonLogs := flag.Bool("json-logs", false, "emit logs as JSON")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}

	hopts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, hopts)
	if *jsonLogs {
		handler = slog.NewJSONHandler(os.Stderr, hopts)
	}
	log := slog.New(handler)
	slog.SetDefault(log)

	st, err := cfg.OpenStore()
	if err != nil {
		return err
	}

	var fitOpts []obb.FitOption
	if cfg.Fit.AccumulateCenter {
		fitOpts = append(fitOpts, obb.WithAccumulatedCenter())
	}
	eng := engine.NewEngine(
		sdfx.New(sdfx.WithMeshCells(cfg.Fit.MeshCells)),
		engine.WithTimeout(cfg.Eval.Timeout),
		engine.WithSceneOptions(scene.WithFitOptions(fitOpts...)),
	)

	log.Info("boxfitd starting",
		"storage", cfg.Storage.Backend,
		"mesh_cells", cfg.Fit.MeshCells,
		"eval_timeout", cfg.Eval.Timeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.New(cfg, st, eng, server.WithLogger(log)).ListenAndServe(ctx)
}
