package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/routing-advisor/node-advisor/internal/clients/lndclient"
	"github.com/routing-advisor/node-advisor/internal/observability/tracing"
	"github.com/routing-advisor/node-advisor/internal/services"
)

func AdviseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advise",
		Short: "Fetches a snapshot of the node once and prints the ranked recommendations",
		Args:  cobra.ExactArgs(0),
		RunE:  advise,
	}

	cmd.Flags().Bool("json", false, "Print the recommendations as JSON")

	return cmd
}

func advise(cmd *cobra.Command, _ []string) error {
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := tracing.InjectRunID(cmd.Context())

	lndClient, err := lndclient.NewLndClient(&cfg.Lnd)
	if err != nil {
		return fmt.Errorf("error while creating lnd client: %w", err)
	}
	defer lndClient.Close() //nolint:errcheck

	service, err := services.NewService(cfg, lndClient, nil, nil)
	if err != nil {
		return fmt.Errorf("error while creating service: %w", err)
	}

	snapshot, err := service.FetchSnapshot(ctx)
	if err != nil {
		return err
	}
	advice, err := service.Advise(ctx, snapshot)
	if err != nil {
		return err
	}

	if asJSON {
		return writeJSON(cmd.OutOrStdout(), adviceOutput{
			RunID:        advice.RunID,
			EvaluatedAt:  advice.EvaluatedAt,
			ChannelCount: advice.ChannelCount,
			Actions:      advice.Actions,
		})
	}
	return writeActionsTable(cmd.OutOrStdout(), advice.Actions)
}
