package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/routing-advisor/node-advisor/internal/db"
	"github.com/routing-advisor/node-advisor/internal/db/model"
)

func HistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Prints the latest recorded advisory runs",
		Args:  cobra.ExactArgs(0),
		RunE:  history,
	}

	cmd.Flags().Int64("limit", 10, "Maximum number of runs to print")
	cmd.Flags().Bool("latest", false, "Print every action of the most recent run")
	cmd.Flags().Bool("json", false, "Print the runs as JSON")

	return cmd
}

func history(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	limit, err := cmd.Flags().GetInt64("limit")
	if err != nil {
		return err
	}
	latest, err := cmd.Flags().GetBool("latest")
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Db == nil {
		return fmt.Errorf("history requires a db section in %s", GetConfigPath())
	}

	database, err := db.New(ctx, *cfg.Db)
	if err != nil {
		return fmt.Errorf("error while creating db client: %w", err)
	}
	defer database.Close(ctx) //nolint:errcheck

	store := db.NewDbWithMetrics(database)
	if latest {
		return printLatestRun(ctx, cmd.OutOrStdout(), store, asJSON)
	}
	return printRuns(ctx, cmd.OutOrStdout(), store, limit, asJSON)
}

func printLatestRun(ctx context.Context, w io.Writer, store db.DbInterface, asJSON bool) error {
	run, err := store.GetLatestRecommendationRun(ctx)
	if db.IsNotFoundError(err) {
		_, err = fmt.Fprintln(w, "no advisory runs recorded")
		return err
	}
	if err != nil {
		return err
	}

	out := newRunOutput(run)
	if asJSON {
		return writeJSON(w, out)
	}
	if _, err := fmt.Fprintf(w, "run %s evaluated at %s over %d channels\n",
		out.RunID, out.EvaluatedAt.Format(time.RFC3339), out.ChannelCount); err != nil {
		return err
	}
	return writeActionsTable(w, out.Actions)
}

func printRuns(ctx context.Context, w io.Writer, store db.DbInterface, limit int64, asJSON bool) error {
	runs, err := store.FindRecommendationRuns(ctx, limit)
	if err != nil {
		return err
	}

	if asJSON {
		out := make([]adviceOutput, 0, len(runs))
		for _, run := range runs {
			out = append(out, newRunOutput(run))
		}
		return writeJSON(w, out)
	}
	return writeRunsTable(w, runs)
}

func newRunOutput(run *model.RecommendationRunDocument) adviceOutput {
	return adviceOutput{
		RunID:        run.RunID,
		EvaluatedAt:  run.EvaluatedAt,
		ChannelCount: run.ChannelCount,
		Actions:      run.ToActions(),
	}
}
