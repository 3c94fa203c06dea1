// Package cmd defines and implements the CLI commands for the rqctl
// executable: a command-line client for the request-queue coordinator.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brightcrawl/rqueue/internal/clock"
	"github.com/brightcrawl/rqueue/internal/clock/system"
	"github.com/brightcrawl/rqueue/internal/config"
	"github.com/brightcrawl/rqueue/internal/logging"
	"github.com/brightcrawl/rqueue/internal/metrics"
	"github.com/brightcrawl/rqueue/internal/storageopen"
)

var cfgFile string

type appKeyType string

const appKey appKeyType = "app"

// App bundles the services every subcommand needs: logging, the queue
// registry, the clock, and the loaded configuration. This indirection
// lets tests substitute a mock factory via newApp.
type App interface {
	Close()
	GetLogger() *zap.Logger
	GetRegistry() *storageopen.Registry
	GetClock() clock.Clock
	GetConfig() config.Config
}

type app struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *storageopen.Registry
	clock    clock.Clock
}

func (a *app) Close()                            { _ = a.logger.Sync() }
func (a *app) GetLogger() *zap.Logger            { return a.logger }
func (a *app) GetRegistry() *storageopen.Registry { return a.registry }
func (a *app) GetClock() clock.Clock              { return a.clock }
func (a *app) GetConfig() config.Config           { return a.cfg }

// newApp is the application factory. It's a variable so tests can replace
// it with a mock factory.
var newApp = func(_ context.Context) (App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	metrics.Init()

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: storageopen.NewRegistry(),
		clock:    system.New(),
	}, nil
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rqctl",
		Short: "A client-side request-queue coordinator CLI.",
		Long: `rqctl drives a request-queue coordinator: it prefetches a bounded
head window of pending requests, dispatches them to callers one at a time,
and tracks completion against a local or remote queue backend.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; no file is read when unset)")
	cmd.PersistentFlags().String("queue-id", "", "queue id to operate on")
	cmd.PersistentFlags().String("queue-name", "", "queue name to operate on (alternative to --queue-id)")

	cmd.AddCommand(
		newAddCmd(),
		newPeekCmd(),
		newFetchNextCmd(),
		newMarkHandledCmd(),
		newReclaimCmd(),
		newStatsCmd(),
		newDropCmd(),
	)

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}

func queueOptions(cmd *cobra.Command) storageopen.Options {
	id, _ := cmd.Flags().GetString("queue-id")
	name, _ := cmd.Flags().GetString("queue-name")
	return storageopen.Options{ID: id, Name: name}
}
