// mortar-run drives one task to completion: a remote script run with
// token-based idempotency, or a local shell command. Configuration comes
// from the environment; exit code 0 means the task is satisfied.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/LotharSee/mortar-luigi/internal/config"
	"github.com/LotharSee/mortar-luigi/internal/dispatcher"
	"github.com/LotharSee/mortar-luigi/internal/mortar"
	"github.com/LotharSee/mortar-luigi/internal/mortar/localrun"
	"github.com/LotharSee/mortar-luigi/internal/observability"
	"github.com/LotharSee/mortar-luigi/internal/task"
	"github.com/LotharSee/mortar-luigi/internal/token"
)

const paramPrefix = "MORTAR_PARAM_"

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("Task failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	// Metrics listener is optional for a one-shot binary.
	var metricsServer *http.Server
	if port := config.GetEnv("METRICS_PORT", ""); port != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", metricsHandler)
		metricsServer = &http.Server{
			Addr:         ":" + port,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("Starting metrics server", "port", port)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	tokenPath := config.GetEnv("TOKEN_PATH", "")
	store, err := token.NewStore(ctx, tokenPath)
	if err != nil {
		return err
	}

	taskID := config.GetEnv("TASK_ID", "")

	// Shell mode runs a local command instead of a remote job.
	if command := config.GetEnv("SHELL_COMMAND", ""); command != "" {
		shellTask, err := task.NewShellTask(task.ShellConfig{
			TaskID:    taskID,
			TokenPath: tokenPath,
			Command:   command,
		}, store)
		if err != nil {
			return err
		}
		err = shellTask.Run(ctx)
		shutdownMetrics(metricsServer)
		return err
	}

	backend, err := newBackend()
	if err != nil {
		return err
	}

	// Callback dispatcher, only when a destination is configured.
	var eventDispatcher dispatcher.Dispatcher
	var events *task.Notifier
	if callbackURL := config.GetEnv("CALLBACK_URL", ""); callbackURL != "" {
		eventDispatcher = dispatcher.NewMemory(dispatcher.LoadConfigFromEnv(), metrics)
		events = task.NewNotifier(eventDispatcher, callbackURL, config.GetEnv("CALLBACK_KEY", ""), taskID)
	}

	cfg := task.DefaultProjectConfig()
	cfg.TaskID = taskID
	cfg.Project = config.GetEnv("MORTAR_PROJECT_NAME", "")
	cfg.Script = config.GetEnv("MORTAR_SCRIPT_NAME", "")
	cfg.TokenPath = tokenPath
	cfg.IsControlScript = config.GetBoolEnv("IS_CONTROL_SCRIPT", false)
	cfg.Parameters = parametersFromEnv()
	cfg.ScriptOutputs = splitList(config.GetEnv("SCRIPT_OUTPUTS", ""))
	cfg.ClusterSize = config.GetIntEnv("CLUSTER_SIZE", cfg.ClusterSize)
	cfg.SingleUseCluster = config.GetBoolEnv("SINGLE_USE_CLUSTER", false)
	cfg.UseSpotInstances = config.GetBoolEnv("USE_SPOT_INSTANCES", cfg.UseSpotInstances)
	cfg.GitRef = config.GetEnv("GIT_REF", cfg.GitRef)
	cfg.NotifyOnJobFinish = config.GetBoolEnv("NOTIFY_ON_JOB_FINISH", false)
	cfg.PollInterval = config.GetDurationEnv("POLL_INTERVAL", cfg.PollInterval)
	cfg.PollMaxRetries = config.GetIntEnv("POLL_MAX_RETRIES", cfg.PollMaxRetries)
	cfg.PigVersion = config.GetEnv("PIG_VERSION", cfg.PigVersion)
	cfg.Metrics = metrics
	cfg.Events = events

	projectTask, err := task.NewProjectTask(cfg, backend, store)
	if err != nil {
		return err
	}

	runErr := projectTask.Run(ctx)

	if eventDispatcher != nil {
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := eventDispatcher.Close(drainCtx); err != nil {
			slog.Warn("Dispatcher shutdown error", "error", err)
		}
	}
	shutdownMetrics(metricsServer)

	return runErr
}

// newBackend picks the job backend: the remote API by default, the local
// Docker daemon when BACKEND=local.
func newBackend() (mortar.Backend, error) {
	if config.GetEnv("BACKEND", "remote") == "local" {
		return localrun.New(localrun.Config{
			Image: config.GetEnv("LOCAL_IMAGE", "alpine:latest"),
		})
	}
	return mortar.NewClient(config.LoadCredentials()), nil
}

func shutdownMetrics(server *http.Server) {
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Metrics server shutdown error", "error", err)
	}
}

// parametersFromEnv collects MORTAR_PARAM_* variables into script
// parameters, stripping the prefix.
func parametersFromEnv() map[string]string {
	params := make(map[string]string)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, paramPrefix) {
			continue
		}
		params[strings.TrimPrefix(key, paramPrefix)] = value
	}
	if len(params) == 0 {
		return nil
	}
	return params
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
