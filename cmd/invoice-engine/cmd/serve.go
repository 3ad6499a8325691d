package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rezonia/invoice-engine/internal/config"
	"github.com/rezonia/invoice-engine/internal/logger"
	"github.com/rezonia/invoice-engine/internal/rules"
	"github.com/rezonia/invoice-engine/internal/server"
	"github.com/rezonia/invoice-engine/internal/service"
	"github.com/rezonia/invoice-engine/internal/storage"
	"github.com/rezonia/invoice-engine/internal/storage/memory"
	"github.com/rezonia/invoice-engine/internal/storage/sqlite"
)

var (
	serverAddr  string
	serverDebug bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server that stores and validates invoices.

Callers identify themselves with the X-User-ID header.

The API provides endpoints for:
  - GET    /api/v1/schemas              - List rule sets
  - POST   /api/v1/invoices             - Create an invoice
  - POST   /api/v1/invoices/validate    - Create and validate an invoice
  - GET    /api/v1/invoices             - List invoices
  - GET    /api/v1/invoices/:id         - Get an invoice (/xml for the document)
  - PUT    /api/v1/invoices/:id         - Replace an invoice
  - DELETE /api/v1/invoices/:id         - Delete an invoice
  - POST   /api/v1/invoices/:id/share   - Share an invoice
  - POST   /api/v1/validate             - Validate stored invoices
  - POST   /api/v1/xml/decode           - Decode UBL XML
  - GET    /health                      - Health check

Examples:
  # Start server with config.yaml or defaults
  invoice-engine serve

  # Start on a custom port in debug mode
  invoice-engine serve --address :9090 --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", "", "Server listen address (overrides config)")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serverAddr != "" {
		cfg.Server.Address = serverAddr
	}
	if serverDebug {
		cfg.Server.Debug = true
		cfg.Logging.Level = "debug"
	}

	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	store, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	engine := rules.NewEngine(rules.DefaultRegistry())
	svc := service.New(store, engine, service.Options{
		DefaultSchemas:   cfg.Validation.DefaultSchemas,
		BatchConcurrency: cfg.Validation.BatchConcurrency,
		ItemTimeout:      cfg.Validation.ItemTimeout,
		FailFast:         cfg.Validation.FailFast,
	}, log)

	srv := server.NewServer(&server.Config{
		Address:      cfg.Server.Address,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Debug:        cfg.Server.Debug,
	}, svc, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infow("starting invoice engine",
		"version", version,
		"storage", cfg.Storage.Driver,
		"default_schemas", cfg.Validation.DefaultSchemas,
	)
	return srv.Run(ctx)
}

func openStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "memory":
		return memory.NewStore(), nil
	case "sqlite":
		store, err := sqlite.NewStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
