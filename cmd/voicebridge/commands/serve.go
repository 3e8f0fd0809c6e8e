package commands

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

	"github.com/veridian-labs/voicebridge/cmd/voicebridge/internal/config"
	"github.com/veridian-labs/voicebridge/pkg/actions"
	"github.com/veridian-labs/voicebridge/pkg/bridge"
	"github.com/veridian-labs/voicebridge/pkg/provider"
	"github.com/veridian-labs/voicebridge/pkg/provider/evi"
	"github.com/veridian-labs/voicebridge/pkg/provider/openairt"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the carrier-facing bridge server",
	Long: `Run the bridge server.

Endpoints:
  /media   carrier media-stream WebSocket
  /status  JSON snapshot of live sessions and capacity

The provider backend is selected once at startup by provider.variant
in the configuration file.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if IsVerbose() {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	gw := bridge.New(
		bridge.Config{
			Environment:      cfg.Environment,
			SharedSecret:     cfg.SharedSecret,
			MaxSessions:      cfg.MaxSessions,
			PreConnectFrames: cfg.PreConnectFrames,
			ConnectTimeout:   cfg.Provider.ConnectTimeout,
		},
		cfg.ProviderConfig(),
		adapterFactory(cfg),
		registryFactory(cfg, logger),
		logger,
	)

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: gw.Routes(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
		gw.Shutdown()
	}()

	logger.Info("bridge server starting",
		"listen", cfg.Listen,
		"environment", cfg.Environment,
		"variant", cfg.Provider.Variant,
		"max_sessions", cfg.MaxSessions,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	<-ctx.Done()
	return nil
}

// adapterFactory fixes the provider variant for the whole process.
func adapterFactory(cfg *config.Config) bridge.AdapterFactory {
	return func(pc provider.Config) provider.Adapter {
		switch provider.Variant(cfg.Provider.Variant) {
		case provider.VariantEmpathic:
			return evi.New(pc)
		default:
			return openairt.New(pc)
		}
	}
}

// registryFactory builds the per-call action registry. The directory
// is shared; the caller phone is pinned per call so SMS and callbacks
// can only go to the verified number.
func registryFactory(cfg *config.Config, logger *slog.Logger) bridge.RegistryFactory {
	dir := actions.NewMemoryDirectory()
	for _, seed := range cfg.Actions.Customers {
		dir.AddCustomer(seed.Phone, actions.Customer{ID: seed.ID, Name: seed.Name})
		reqs := make([]actions.Requirement, 0, len(seed.Requirements))
		for _, r := range seed.Requirements {
			reqs = append(reqs, actions.Requirement{
				Code:        r.Code,
				Description: r.Description,
				DueDate:     r.DueDate,
			})
		}
		dir.SetRequirements(seed.ID, reqs)
	}
	messenger := &actions.LogMessenger{Logger: logger}
	scheduler := &actions.LogScheduler{Logger: logger}

	return func(caller string) *actions.Registry {
		reg := actions.NewRegistry()
		actions.RegisterStandard(reg, &actions.StandardActions{
			Directory:   dir,
			Messenger:   messenger,
			Scheduler:   scheduler,
			PortalURL:   cfg.Actions.PortalURL,
			CallerPhone: caller,
		})
		return reg
	}
}
