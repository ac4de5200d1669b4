// unityctl-bridge is the per-project daemon that joins the unityctl CLI to
// the Unity editor plugin.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/unityctl/unityctl/internal/bridge"
	"github.com/unityctl/unityctl/internal/config"
	"github.com/unityctl/unityctl/internal/history"
	"github.com/unityctl/unityctl/internal/project"
	"github.com/unityctl/unityctl/internal/server"
	"github.com/unityctl/unityctl/internal/tailer"
)

// version is stamped by the release build.
var version = "dev"

func main() {
	projectFlag := flag.String("project", ".", "Unity project root")
	portFlag := flag.Int("port", 0, "listen port (0 picks an ephemeral port)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	projectRoot, err := filepath.Abs(*projectFlag)
	if err != nil {
		logger.Error("resolve project path", "error", err)
		os.Exit(1)
	}
	projectID := project.ComputeProjectID(projectRoot)

	cfg, err := config.Load(projectRoot)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	if *portFlag != 0 {
		cfg.Port = *portFlag
	}

	if err := project.EnsureNotRunning(projectRoot); err != nil {
		logger.Error("startup refused", "error", err)
		os.Exit(1)
	}

	// Core pipeline.
	logs := bridge.NewLogBuffer(cfg.LogBufferSize)
	events := bridge.NewEventBus()
	correlator := bridge.NewCorrelator()
	session := bridge.NewSessionManager(logger, projectID, correlator, events, logs,
		cfg.Timeouts.ReloadGrace, cfg.Timeouts.Ready)
	orch := bridge.NewOrchestrator(logger, session, events, logs, cfg.Timeouts.ExitCompileWindow)

	hist, err := history.Open(cfg.HistoryPath)
	if err != nil {
		logger.Warn("history journal disabled", "error", err)
		hist = nil
	} else {
		defer hist.Close()
	}

	srv := server.New(logger, projectID, version, session, orch, logs, cfg.Timeouts, hist)

	ln, err := net.Listen("tcp", net.JoinHostPort(cfg.Listen, fmt.Sprintf("%d", cfg.Port)))
	if err != nil {
		logger.Error("listen", "error", err)
		os.Exit(1)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	// Publish discovery. The descriptor is deliberately left behind on
	// shutdown so the editor can find a restarted bridge.
	desc := project.Descriptor{ProjectID: projectID, Port: port, PID: os.Getpid()}
	if err := project.WriteDescriptor(projectRoot, desc); err != nil {
		logger.Error("write descriptor", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		t := tailer.New(logger, cfg.EditorLogPath, logs)
		if err := t.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("editor log tailer stopped", "error", err)
		}
	}()

	httpSrv := &http.Server{Handler: srv.Routes()}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", "signal", sig.String())
		cancel()
		session.Close()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("bridge daemon started",
		"project_id", projectID,
		"project_root", projectRoot,
		"port", port,
		"pid", desc.PID,
		"version", version,
	)
	if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("serve", "error", err)
		os.Exit(1)
	}
}
