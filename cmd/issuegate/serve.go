package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/issuegate/issuegate/pkg/auth"
	"github.com/issuegate/issuegate/pkg/backend"
	"github.com/issuegate/issuegate/pkg/chat"
	"github.com/issuegate/issuegate/pkg/config"
	"github.com/issuegate/issuegate/pkg/gateway"
	"github.com/issuegate/issuegate/pkg/github"
	"github.com/issuegate/issuegate/pkg/server"
	"github.com/issuegate/issuegate/pkg/userconfig"
)

var (
	serveListen   string
	serveConfig   string
	serveBackend  string
	serveLogLevel string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the issuegate HTTP server",
	Long: `Start the HTTP server that receives chat-extension turns, files
issues or work items on behalf of the caller, and streams chat completions
back.

Configuration is resolved with precedence: CLI flags > environment
(ISSUEGATE_*) > config file > defaults.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(serveConfig)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		logLevel, _ := cfg.ResolveLogLevel(serveLogLevel)
		logger := newLogger(logLevel)
		slog.SetDefault(logger)

		srv, err := buildServer(cfg, logger)
		if err != nil {
			return err
		}

		listen, listenSource := cfg.ResolveListen(serveListen)
		logger.Info("starting server",
			"listen", listen,
			"listen_source", listenSource,
			"version", Version,
		)

		return runServer(cmd.Context(), logger, &http.Server{
			Addr:              listen,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		})
	},
}

// buildServer wires the orchestrator, backends and streaming proxy from the
// resolved configuration.
func buildServer(cfg *config.ServerConfig, logger *slog.Logger) (*server.Server, error) {
	var ghOpts []github.ClientOption
	if cfg.GitHubBaseURL != "" {
		ghOpts = append(ghOpts, github.WithBaseURL(cfg.GitHubBaseURL))
	}

	hosts := func(cred auth.Credential) gateway.HostClient {
		return github.NewClient(cred.Token(), ghOpts...)
	}

	var azureOpts []backend.AzureOption
	if cfg.AzureBaseURL != "" {
		azureOpts = append(azureOpts, backend.WithAzureBaseURL(cfg.AzureBaseURL))
	}

	if err := backend.Register(backend.NewGitHub(ghOpts...)); err != nil {
		return nil, err
	}
	if err := backend.Register(backend.NewAzureDevOps(azureOpts...)); err != nil {
		return nil, err
	}

	backendName, _ := cfg.ResolveBackend(serveBackend)
	issueBackend, err := backend.Get(backendName)
	if err != nil {
		return nil, fmt.Errorf("failed to select backend: %w", err)
	}

	workItemBackend, err := backend.Get(backend.AzureDevOpsName)
	if err != nil {
		return nil, fmt.Errorf("failed to select work item backend: %w", err)
	}

	labels := cfg.DefaultLabels
	if labels == nil {
		labels = []string{"bug"}
	}

	orch := gateway.New(hosts, issueBackend,
		gateway.WithLogger(logger),
		gateway.WithListLimit(cfg.ResolveRepoListLimit()),
		gateway.WithDefaultLabels(labels),
		gateway.WithWorkItemBackend(workItemBackend, userconfig.NewMemoryStore()),
	)

	var chatOpts []chat.ClientOption
	if cfg.CopilotEndpoint != "" {
		chatOpts = append(chatOpts, chat.WithEndpoint(cfg.CopilotEndpoint))
	}
	if len(cfg.SystemPrompts) > 0 {
		chatOpts = append(chatOpts, chat.WithSystemPrompts(cfg.SystemPrompts))
	}

	return server.New(orch, chat.NewClient(chatOpts...), server.WithLogger(logger)), nil
}

// runServer serves until SIGINT/SIGTERM, then drains in-flight requests.
func runServer(ctx context.Context, logger *slog.Logger, httpSrv *http.Server) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "Listen address (default \":3000\")")
	serveCmd.Flags().StringVarP(&serveConfig, "config", "c", "", "Path to config file (default \"issuegate.yaml\")")
	serveCmd.Flags().StringVarP(&serveBackend, "backend", "b", "", "Issue backend: github or azure-devops")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.AddCommand(serveCmd)
}
