package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/routing-advisor/node-advisor/internal/clients/lndclient"
	"github.com/routing-advisor/node-advisor/internal/config"
	"github.com/routing-advisor/node-advisor/internal/db"
	dbmodel "github.com/routing-advisor/node-advisor/internal/db/model"
	"github.com/routing-advisor/node-advisor/internal/observability/metrics"
	"github.com/routing-advisor/node-advisor/internal/services"
)

func StartServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start-server",
		Short: "Keeps a snapshot of the node fresh and logs recommendations on every change",
		Args:  cobra.ExactArgs(0),
		RunE:  startServer,
	}

	return cmd
}

func startServer(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := log.Ctx(ctx)

	lndClient, err := lndclient.NewLndClient(&cfg.Lnd)
	if err != nil {
		return fmt.Errorf("error while creating lnd client: %w", err)
	}
	defer lndClient.Close() //nolint:errcheck
	lnd := lndclient.NewLndClientWithMetrics(lndClient)

	info, err := lnd.GetInfo(ctx)
	if err != nil {
		return err
	}
	log.Info().
		Str("alias", info.Alias).
		Str("pubkey", info.Pubkey).
		Uint32("block_height", info.BlockHeight).
		Msg("connected to lnd")
	if !info.SyncedToChain {
		log.Warn().Msg("lnd is not synced to chain, recommendations may be based on stale data")
	}

	dbClient, closeDb, err := openRecorder(ctx, cfg.Db)
	if err != nil {
		return err
	}
	defer closeDb()

	service, err := services.NewService(cfg, lnd, dbClient, nil)
	if err != nil {
		return fmt.Errorf("error while creating service: %w", err)
	}

	err = config.WatchEngine(GetConfigPath(), func(engineCfg *config.EngineConfig) {
		if err := service.UpdateEngineConfig(engineCfg); err != nil {
			log.Error().Err(err).Msg("failed to apply engine config")
		}
	})
	if err != nil {
		log.Warn().Err(err).Msg("engine config hot reload disabled")
	}

	metrics.Init(cfg.Metrics.GetMetricsAddr())

	if err := service.StartRefreshPoller(ctx); err != nil {
		return err
	}
	service.StartAdvisor(ctx)

	<-ctx.Done()
	log.Info().Msg("shutting down")
	return nil
}

// openRecorder connects to mongo when a db section is configured. Without
// one it returns a nil recorder.
func openRecorder(ctx context.Context, cfg *config.DbConfig) (db.DbInterface, func(), error) {
	if cfg == nil {
		log.Ctx(ctx).Info().Msg("no db configured, advisory runs are not recorded")
		return nil, func() {}, nil
	}

	if err := dbmodel.Setup(ctx, cfg); err != nil {
		return nil, nil, fmt.Errorf("error while setting up db model: %w", err)
	}

	database, err := db.New(ctx, *cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("error while creating db client: %w", err)
	}
	if err := database.Ping(ctx); err != nil {
		return nil, nil, fmt.Errorf("error while pinging db: %w", err)
	}

	closeDb := func() {
		if err := database.Close(context.Background()); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to close db client")
		}
	}
	return db.NewDbWithMetrics(database), closeDb, nil
}
