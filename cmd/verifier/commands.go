package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hxinn/amazon-listing-ai-assistant/config"
	httpDelivery "github.com/hxinn/amazon-listing-ai-assistant/internal/delivery/http"
	"github.com/hxinn/amazon-listing-ai-assistant/internal/infrastructure/ai"
	"github.com/hxinn/amazon-listing-ai-assistant/internal/infrastructure/cache"
	"github.com/hxinn/amazon-listing-ai-assistant/internal/infrastructure/catalog"
	"github.com/hxinn/amazon-listing-ai-assistant/internal/infrastructure/store"
	"github.com/hxinn/amazon-listing-ai-assistant/internal/infrastructure/syncapi"
	"github.com/hxinn/amazon-listing-ai-assistant/internal/usecase"
	"github.com/hxinn/amazon-listing-ai-assistant/pkg/logger"
	"github.com/hxinn/amazon-listing-ai-assistant/pkg/metrics"
)

// app bundles the wired service graph shared by all subcommands.
type app struct {
	cfg          *config.Config
	log          *zap.Logger
	store        *store.SQLiteStore
	orchestrator *usecase.Orchestrator
	syncService  *usecase.SyncService
}

func buildApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Server.Environment)
	if err != nil {
		return nil, err
	}

	metrics.Init()

	resultStore, err := store.NewSQLiteStore(cfg.Store.Path, log.Named("store"))
	if err != nil {
		return nil, err
	}

	catalogClient := catalog.NewClient(cfg.Catalog.APIKey, cfg.Catalog.BaseURL, cfg.Catalog.Timeout, log.Named("catalog"))
	genClient := ai.NewClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Timeout, cfg.AI.RequestsPerMinute, log.Named("ai"))
	syncClient := syncapi.NewClient(cfg.Sync.APIKey, cfg.Sync.BaseURL, cfg.Sync.Timeout, log.Named("syncapi"))
	schemaCache := cache.NewMemoryCache()

	orchestrator := usecase.NewOrchestrator(
		resultStore,
		catalogClient,
		genClient,
		schemaCache,
		usecase.OrchestratorConfig{
			BatchSize:                cfg.Verification.BatchSize,
			PriorityMarkets:          cfg.Verification.PriorityMarkets,
			RestrictedField:          cfg.Verification.RestrictedField,
			SchemaCacheTTL:           cfg.Verification.SchemaCacheTTL,
			MaxConcurrentGenerations: cfg.AI.MaxConcurrent,
		},
		log,
	)

	syncService := usecase.NewSyncService(
		resultStore,
		syncClient,
		catalogClient,
		usecase.SyncServiceConfig{RequestDelay: cfg.Sync.RequestDelay},
		log,
	)

	return &app{
		cfg:          cfg,
		log:          log,
		store:        resultStore,
		orchestrator: orchestrator,
		syncService:  syncService,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("failed to close store", zap.Error(err))
	}
	_ = a.log.Sync()
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP control surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			handler := httpDelivery.NewHandler(a.orchestrator, a.syncService, a.store, a.log)
			router := httpDelivery.SetupRouter(a.cfg, handler, a.log)

			addr := fmt.Sprintf(":%s", a.cfg.Server.Port)
			a.log.Info("server listening",
				zap.String("addr", addr),
				zap.String("environment", a.cfg.Server.Environment))
			return router.Run(addr)
		},
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute one full verification pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			state, err := a.orchestrator.Run(cmd.Context())
			if err != nil {
				return err
			}
			printState(state)
			return nil
		},
	}
}

func newRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Re-run verification for failed results only",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			state, err := a.orchestrator.RetryFailed(cmd.Context())
			if err != nil {
				return err
			}
			printState(state)
			return nil
		},
	}
}

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove duplicates and re-normalize stored results",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			removed, promoted, normalized, err := a.orchestrator.Cleanup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("duplicates removed: %d\npromoted: %d\nnormalized: %d\n", removed, promoted, normalized)
			return nil
		},
	}
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Submit grouped completed results to the remote system",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.syncService.SyncAll(cmd.Context())
			if err != nil && report == nil {
				return err
			}
			fmt.Printf("groups: %d, success: %d, failed: %d\n", report.Total, report.Success, report.Failed)
			for _, o := range report.Outcomes {
				if !o.Success {
					fmt.Printf("  failed %s=%s: %s\n", o.PropertyName, o.Value, o.Error)
				}
			}
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print result store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			stats, err := a.store.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("total: %d\ncompleted: %d\nfailed: %d\nlast updated: %s\n",
				stats.Total, stats.Completed, stats.Failed, stats.LastUpdated)
			return nil
		},
	}
}

func printState(state usecase.RunState) {
	fmt.Printf("status: %s\nprocessed: %d\ncompleted: %d\nfailed: %d\nskipped: %d\n",
		state.Status, state.Processed, state.Completed, state.Failed, state.Skipped)
}
