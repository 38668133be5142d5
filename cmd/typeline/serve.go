package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alucardeht/typeline/internal/checker"
	"github.com/alucardeht/typeline/internal/logger"
	"github.com/alucardeht/typeline/internal/pyenv"
	"github.com/alucardeht/typeline/internal/vdoc"
	"github.com/alucardeht/typeline/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the editor bridge: supervise a checker language server for the workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.ValidateServe(); err != nil {
			return err
		}

		binary, err := checker.ResolveBinary(cfg.Checker.Path)
		if err != nil {
			return err
		}

		log := logger.ForComponent("serve")
		log.Info("starting editor bridge", "checker", binary, "root", cfg.Root)

		procCfg := checker.DefaultProcessConfig(binary)
		procCfg.Args = cfg.Checker.Args
		procCfg.Client.Middleware = &checker.ConfigMiddleware{
			Resolver: &pyenv.Resolver{Override: cfg.Python.Interpreter},
		}
		procCfg.Client.Documents = vdoc.NewProvider()
		procCfg.Client.Diagnostics = func(params checker.PublishDiagnosticsParams) {
			log.Debug("diagnostics", "uri", params.URI, "count", len(params.Diagnostics))
		}

		supervisor := checker.NewSupervisor(checker.SupervisorConfig{
			Process:  procCfg,
			RootPath: cfg.Root,
		})

		ctx := cmd.Context()
		if err := supervisor.Start(ctx); err != nil {
			return err
		}
		defer supervisor.Close(context.Background())

		// Disk edits flow to the server as document-sync notifications,
		// provided it advertised textDocumentSync.
		docs := checker.NewDocSync()
		if cfg.Watcher.Enabled {
			w, err := watcher.New(cfg.Watcher, func(events []watcher.FileEvent) {
				client, err := supervisor.Client()
				if err != nil {
					return
				}
				if client.Capabilities().TextDocumentSync == nil {
					return
				}
				docs.Apply(ctx, client, events)
			})
			if err != nil {
				return err
			}
			if err := w.AddRoot(cfg.Root); err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()
		}

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		restart := make(chan os.Signal, 1)
		signal.Notify(restart, syscall.SIGHUP)

		// Editors signal shutdown by closing our stdin.
		stdinEOF := make(chan struct{})
		go func() {
			io.Copy(io.Discard, os.Stdin)
			close(stdinEOF)
		}()

		for {
			select {
			case <-stop:
				logCheckerStats(log, supervisor)
				log.Info("shutting down")
				return nil
			case <-stdinEOF:
				logCheckerStats(log, supervisor)
				log.Info("stdin closed, shutting down")
				return nil
			case <-ctx.Done():
				return nil
			case <-restart:
				log.Info("restarting checker")
				logCheckerStats(log, supervisor)
				if err := supervisor.Restart(ctx); err != nil {
					log.Error("restart failed", "error", err)
					continue
				}
				// The fresh server has no open documents.
				docs.Reset()
			}
		}
	},
}

func logCheckerStats(log *slog.Logger, supervisor *checker.Supervisor) {
	stats, err := supervisor.Stats()
	if err != nil {
		return
	}
	log.Info("checker stats",
		"state", stats.State,
		"circuit", stats.Circuit,
		"requests", stats.RequestCount,
		"errors", stats.ErrorCount,
		"uptime", stats.Uptime,
	)
}
