package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"n8n-mcp/internal/api"
	"n8n-mcp/internal/auth"
	"n8n-mcp/internal/cache"
	"n8n-mcp/internal/config"
	"n8n-mcp/internal/logging"
	mcpserver "n8n-mcp/internal/mcp"
	"n8n-mcp/internal/observability"
	"n8n-mcp/internal/services"
	certs "n8n-mcp/internal/tls"
)

type rootFlags struct {
	useEnv    bool
	envFile   string
	transport string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "n8n-mcp [config_path]",
		Short: "MCP tool server for managing n8n workflows",
		Long: "Serves create, get, list, search, update, delete, activate, deactivate and\n" +
			"health_check tools for an n8n instance over stdio or HTTP.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, args)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	cmd.PersistentFlags().BoolVar(&flags.useEnv, "env", false, "read configuration from environment variables")
	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "load environment variables from this .env file first")
	cmd.Flags().StringVar(&flags.transport, "transport", "", "override mcp.transport (stdio or http)")

	cmd.AddCommand(newHealthCmd(flags), newExecuteCmd(flags), newConfigCmd())
	return cmd
}

func newHealthCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health [config_path]",
		Short: "Check connectivity to the n8n API",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, args)
			if err != nil {
				return err
			}
			defer a.close()

			healthy := a.workflows.HealthCheck(cmd.Context())
			if err := printJSON(cmd, map[string]any{"healthy": healthy, "endpoint": a.workflows.BaseURL()}); err != nil {
				return err
			}
			if !healthy {
				return errors.New("n8n API is not accessible")
			}
			return nil
		},
	}
}

func newExecuteCmd(flags *rootFlags) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "execute <workflow_id> [config_path]",
		Short: "Start an execution of a workflow",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data map[string]any
			if input != "" {
				if err := json.Unmarshal([]byte(input), &data); err != nil {
					return fmt.Errorf("--input must be a JSON object: %w", err)
				}
			}

			a, err := newApp(flags, args[1:])
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.workflows.ExecuteWorkflow(cmd.Context(), args[0], data)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "execution input as a JSON object")
	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write an example configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultExamplePath
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteExample(path); err != nil {
				return err
			}
			cmd.Printf("Example configuration written to %s\n", path)
			return nil
		},
	})
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// app holds the wired dependencies shared by every command.
type app struct {
	cfg            *config.Config
	logger         *logging.Logger
	meterProvider  *sdkmetric.MeterProvider
	metricsHandler http.Handler
	metrics        *observability.Metrics
	workflows      *services.WorkflowService
}

func newApp(flags *rootFlags, args []string) (*app, error) {
	opts := config.Options{UseEnv: flags.useEnv, EnvFile: flags.envFile}
	if len(args) > 0 {
		opts.Path = args[0]
	}
	cfg, err := config.LoadConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if flags.transport != "" {
		cfg.MCP.Transport = flags.transport
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		File:        cfg.LogFilePath(),
		MaxBytes:    cfg.Logging.MaxBytes,
		BackupCount: cfg.Logging.BackupCount,
	})
	if err != nil {
		return nil, fmt.Errorf("logging setup: %w", err)
	}
	logger.Info("Configuration loaded", "source", cfg.Source, "base_url", cfg.N8n.BaseURL, "transport", cfg.MCP.Transport)

	provider, handler, err := observability.NewPrometheusProvider()
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("metrics setup: %w", err)
	}
	metrics, err := observability.NewMetrics(provider)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("metrics setup: %w", err)
	}

	clientOpts := []services.ClientOption{
		services.WithLogger(logger),
		services.WithMetrics(metrics),
		services.WithTimeout(cfg.RequestTimeout()),
		services.WithMaxRetries(cfg.N8n.MaxRetries),
		services.WithRetryBaseDelay(cfg.RetryBaseDelay()),
		services.WithCache(cache.NewMemoryStore(cfg.Performance.CacheSize, cfg.CacheTTL())),
		services.WithMaxConcurrentRequests(cfg.Performance.MaxConcurrentRequests),
	}
	if cfg.Security.RateLimiting.Enabled {
		clientOpts = append(clientOpts, services.WithRateLimit(cfg.Security.RateLimiting.RequestsPerMinute))
	}
	client := services.NewClient(cfg.N8n.BaseURL, cfg.N8n.APIKey, clientOpts...)

	return &app{
		cfg:            cfg,
		logger:         logger,
		meterProvider:  provider,
		metricsHandler: handler,
		metrics:        metrics,
		workflows:      services.NewWorkflowService(client),
	}, nil
}

func (a *app) close() {
	a.workflows.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.meterProvider.Shutdown(ctx); err != nil {
		a.logger.Warn("metrics shutdown", "error", err)
	}
	a.logger.Close()
}

func (a *app) serve(ctx context.Context) error {
	a.logger.Info("Starting n8n MCP Server", "version", a.cfg.MCP.Version)

	if a.workflows.HealthCheck(ctx) {
		a.logger.Info("n8n API connection verified")
	} else {
		a.logger.Warn("n8n API health check failed, but continuing...")
	}

	srv, err := mcpserver.NewServer(a.workflows, mcpserver.Options{
		Name:              a.cfg.MCP.ServerName,
		Version:           a.cfg.MCP.Version,
		Logger:            a.logger,
		Metrics:           a.metrics,
		SlowCallThreshold: a.cfg.ResponseTimeout(),
	})
	if err != nil {
		return err
	}

	if a.cfg.MCP.Transport == "http" {
		return a.serveHTTP(ctx, srv)
	}

	if err := srv.ServeStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if ctx.Err() != nil {
		a.logger.Info("Server stopped by user")
	}
	return nil
}

func (a *app) serveHTTP(ctx context.Context, srv *mcpserver.Server) error {
	var authMW echo.MiddlewareFunc
	if a.cfg.Security.EnableAuthentication {
		authz, err := auth.New(ctx, a.cfg.Security.OIDCIssuer, a.logger)
		if err != nil {
			return fmt.Errorf("auth initialization failed: %w", err)
		}
		authMW = authz.Middleware()
		a.logger.Info("Bearer authentication enabled", "issuer", a.cfg.Security.OIDCIssuer)
	}

	router := api.NewRouter(api.RouterOptions{
		ServiceName: a.cfg.MCP.ServerName,
		Logger:      a.logger,
		Health:      api.NewHandler(a.workflows, a.cfg.MCP.ServerName, a.cfg.MCP.Version),
		Workflows:   api.NewServer(a.workflows),
		Metrics:     a.metricsHandler,
		Auth:        authMW,
		MountMCP:    func(g *echo.Group) { mcpserver.MountHTTPHandlers(g, srv) },
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.MCP.Port),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		a.logger.Info("Server starting", "address", server.Addr, "tls", a.cfg.TLS.Enable)
		if !a.cfg.TLS.Enable {
			serverErrors <- server.ListenAndServe()
			return
		}
		generated, err := certs.EnsureCertificate(a.cfg.TLS.CertFile, a.cfg.TLS.KeyFile, a.cfg.TLS.Hostnames)
		if err != nil {
			serverErrors <- err
			return
		}
		if generated {
			a.logger.Warn("Generated self-signed certificate", "cert_file", a.cfg.TLS.CertFile)
		}
		serverErrors <- server.ListenAndServeTLS(a.cfg.TLS.CertFile, a.cfg.TLS.KeyFile)
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Server shutdown error", "error", err)
			return server.Close()
		}
		a.logger.Info("Server stopped gracefully")
		return nil
	}
}
