// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// debugbundled is a small standalone driver for the debug-bundle
// service. It loads a YAML config, constructs the Lifecycle
// Controller with a real SQLite-backed metadata store and OS process
// spawner, then either executes exactly one of the five public
// operations named on the command line, or — for the serve
// subcommand — runs as a daemon exposing /healthz and /status over
// HTTP for operational monitoring. The control API itself has no
// HTTP or gRPC surface; its contract is the in-process Go API in
// lib/debugbundle. This binary exists to exercise that API from a
// shell and to double as the reference wiring for embedding it into
// a larger daemon.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/streamkit/debugbundle/lib/debugbundle"
	"github.com/streamkit/debugbundle/lib/gate"
	"github.com/streamkit/debugbundle/lib/kvstore"
	"github.com/streamkit/debugbundle/lib/liveconfig"
	"github.com/streamkit/debugbundle/lib/process"
	"github.com/streamkit/debugbundle/lib/shard"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var configPath string
	var jobIDFlag string
	var k8sNamespace string
	var logsSince string
	var logsUntil string
	var listenAddress string

	flagSet := pflag.NewFlagSet("debugbundled", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "debugbundled.yaml", "path to the YAML configuration file")
	flagSet.StringVar(&jobIDFlag, "job-id", "", "job id (required for cancel/status/path/delete; generated for initiate if omitted)")
	flagSet.StringVar(&k8sNamespace, "k8s-namespace", "", "Kubernetes namespace parameter for initiate")
	flagSet.StringVar(&logsSince, "logs-since", "", "logs-since parameter for initiate")
	flagSet.StringVar(&logsUntil, "logs-until", "", "logs-until parameter for initiate")
	flagSet.StringVar(&listenAddress, "listen-address", "", "address for the /healthz and /status endpoints when running the serve subcommand (e.g. 127.0.0.1:8080)")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}

	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	args := flagSet.Args()
	if len(args) != 1 {
		printHelp(flagSet)
		return fmt.Errorf("expected exactly one subcommand")
	}
	subcommand := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	watcher, err := liveconfig.Watch(ctx, configPath, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	kv, err := kvstore.Open(ctx, watcher.KVStorePath())
	if err != nil {
		return fmt.Errorf("opening metadata store: %w", err)
	}
	defer kv.Close()

	pool := shard.NewPool(ctx, watcher.ShardCount())
	admission := gate.New()
	metadata := debugbundle.NewMetadataStore(kv, logger)
	svc := debugbundle.NewService(pool, shard.ID(0), admission, process.CommandSpawner{},
		watcher.CollectorBinaryPath(), watcher.StorageDir(), metadata, logger)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := svc.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown did not complete cleanly", "error", err)
		}
	}()

	switch subcommand {
	case "initiate":
		return runInitiate(ctx, svc, jobIDFlag, k8sNamespace, logsSince, logsUntil)
	case "cancel":
		return runCancel(ctx, svc, jobIDFlag)
	case "status":
		return runStatus(ctx, svc)
	case "path":
		return runPath(ctx, svc, jobIDFlag)
	case "delete":
		return runDelete(ctx, svc, jobIDFlag)
	case "serve":
		return runServe(ctx, svc, logger, listenAddress)
	default:
		printHelp(flagSet)
		return fmt.Errorf("unknown subcommand %q", subcommand)
	}
}

// statusHandler builds the /healthz and /status mux for the serve
// subcommand. Split out from runServe so it can be exercised directly
// against httptest.NewServer without going through the listener and
// signal-driven shutdown loop.
func statusHandler(svc *debugbundle.Service) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := svc.Status(r.Context())
		if err != nil {
			if errors.Is(err, debugbundle.ErrNeverStarted) {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(statusView{
			JobID:       snapshot.JobID.String(),
			Status:      snapshot.Status.String(),
			CreatedAt:   snapshot.CreatedAt,
			FileName:    snapshot.FileName,
			FileSize:    snapshot.FileSize,
			StdoutLines: snapshot.StdoutLines,
			StderrLines: snapshot.StderrLines,
		})
	})
	return mux
}

// runServe starts an HTTP server exposing /healthz and /status and
// blocks until ctx is cancelled (SIGINT/SIGTERM), performing a
// graceful shutdown that waits up to 10 seconds for in-flight
// requests to drain. This is the daemon mode of debugbundled;
// initiate/cancel/status/path/delete remain available as one-shot CLI
// operations run against a config pointing at the same kv_store_path
// and storage_dir.
func runServe(ctx context.Context, svc *debugbundle.Service, logger *slog.Logger, listenAddress string) error {
	if listenAddress == "" {
		return fmt.Errorf("serve requires --listen-address")
	}

	listener, err := net.Listen("tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", listenAddress, err)
	}

	server := &http.Server{
		Handler:           statusHandler(svc),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("http server listening", "address", listener.Addr().String())

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
			return
		}
		serveDone <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("http server shutting down")
	case err := <-serveDone:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
		return fmt.Errorf("http server shutdown: %w", err)
	}

	logger.Info("http server stopped")
	return nil
}

func runInitiate(ctx context.Context, svc *debugbundle.Service, jobIDFlag, k8sNamespace, logsSince, logsUntil string) error {
	jobID := debugbundle.NewJobId()
	if jobIDFlag != "" {
		parsed, err := debugbundle.ParseJobId(jobIDFlag)
		if err != nil {
			return err
		}
		jobID = parsed
	}

	var params debugbundle.Parameters
	if k8sNamespace != "" {
		params.K8sNamespace = &k8sNamespace
	}
	if logsSince != "" {
		params.LogsSince = &logsSince
	}
	if logsUntil != "" {
		params.LogsUntil = &logsUntil
	}

	if err := svc.Initiate(ctx, jobID, params); err != nil {
		return err
	}
	fmt.Println(jobID.String())
	return nil
}

func runCancel(ctx context.Context, svc *debugbundle.Service, jobIDFlag string) error {
	jobID, err := requireJobID(jobIDFlag)
	if err != nil {
		return err
	}
	return svc.Cancel(ctx, jobID)
}

func runStatus(ctx context.Context, svc *debugbundle.Service) error {
	snapshot, err := svc.Status(ctx)
	if err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(statusView{
		JobID:       snapshot.JobID.String(),
		Status:      snapshot.Status.String(),
		CreatedAt:   snapshot.CreatedAt,
		FileName:    snapshot.FileName,
		FileSize:    snapshot.FileSize,
		StdoutLines: snapshot.StdoutLines,
		StderrLines: snapshot.StderrLines,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func runPath(ctx context.Context, svc *debugbundle.Service, jobIDFlag string) error {
	jobID, err := requireJobID(jobIDFlag)
	if err != nil {
		return err
	}
	path, err := svc.Path(ctx, jobID)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func runDelete(ctx context.Context, svc *debugbundle.Service, jobIDFlag string) error {
	jobID, err := requireJobID(jobIDFlag)
	if err != nil {
		return err
	}
	return svc.Delete(ctx, jobID)
}

func requireJobID(jobIDFlag string) (debugbundle.JobId, error) {
	if jobIDFlag == "" {
		return debugbundle.JobId{}, fmt.Errorf("--job-id is required")
	}
	return debugbundle.ParseJobId(jobIDFlag)
}

// statusView is the JSON-serializable shape printed by the status
// subcommand; it exists so CreatedAt and the enum Status print as
// readable text rather than the unexported internal representation.
type statusView struct {
	JobID       string    `json:"job_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	FileName    string    `json:"file_name"`
	FileSize    *int64    `json:"file_size,omitempty"`
	StdoutLines []string  `json:"stdout_lines"`
	StderrLines []string  `json:"stderr_lines"`
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `debugbundled — run-once driver for the debug-bundle service.

Usage:
  debugbundled [flags] <initiate|cancel|status|path|delete|serve>

serve starts a long-running HTTP server exposing /healthz and /status
for operational monitoring; the other subcommands run one operation
and exit.

Flags:
`)
	flagSet.PrintDefaults()
}
