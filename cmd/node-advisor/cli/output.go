package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/routing-advisor/node-advisor/internal/db/model"
	"github.com/routing-advisor/node-advisor/internal/types"
)

type adviceOutput struct {
	RunID        string         `json:"runId"`
	EvaluatedAt  time.Time      `json:"evaluatedAt"`
	ChannelCount int            `json:"channelCount"`
	Actions      []types.Action `json:"actions"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeActionsTable(w io.Writer, actions []types.Action) error {
	if len(actions) == 0 {
		_, err := fmt.Fprintln(w, "no actions recommended")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PRIORITY\tENTITY\tCHANNEL\tALIAS\tVARIABLE\tACTUAL\tTARGET\tMAX\tREASON")
	for _, a := range actions {
		channel := "-"
		if a.Entity == types.EntityChannel {
			channel = fmt.Sprintf("%d", a.ChanID)
		}
		fmt.Fprintf(tw, "%g\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			a.Priority, a.Entity, channel, a.Alias, a.Variable, a.Actual, a.Target, a.Max, a.Reason)
	}
	return tw.Flush()
}

func writeRunsTable(w io.Writer, runs []*model.RecommendationRunDocument) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no advisory runs recorded")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tEVALUATED AT\tCHANNELS\tACTIONS\tTOP ACTION")
	for _, run := range runs {
		top := "-"
		if len(run.Actions) > 0 {
			a := run.Actions[0]
			top = fmt.Sprintf("%s %s %d -> %d", a.Entity, a.Variable, a.Actual, a.Target)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			run.RunID, run.EvaluatedAt.Format(time.RFC3339), run.ChannelCount, len(run.Actions), top)
	}
	return tw.Flush()
}
