// cluster-reaper stops every running idle cluster and exits. Run it on a
// schedule to reclaim clusters left behind by finished pipelines.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/LotharSee/mortar-luigi/internal/config"
	"github.com/LotharSee/mortar-luigi/internal/mortar"
	"github.com/LotharSee/mortar-luigi/internal/observability"
	"github.com/LotharSee/mortar-luigi/internal/task"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("Reaper failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics, _, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	backend := mortar.NewClient(config.LoadCredentials())
	reaper := task.NewReaper(backend, metrics)
	return reaper.ShutdownIdleClusters(ctx)
}
