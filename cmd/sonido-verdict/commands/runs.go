package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-verdict/runstore"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded training runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}

		var runs []*runstore.Run
		store, err := runstore.Open(runstore.Options{Dir: env.ws.RunsDir, ReadOnly: true})
		switch {
		case errors.Is(err, runstore.ErrNoStore):
		case err != nil:
			return err
		default:
			defer store.Close()
			if runs, err = store.List(cmd.Context(), runsLimit); err != nil {
				return err
			}
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFINISHED\tEPOCHS\tBATCH\tTRAIN/VAL\tACCURACY\tLOSS\tDATASET")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d/%d\t%.4f\t%.4f\t%s\n",
				r.ID, r.FinishedAt.Local().Format(time.DateTime), r.Epochs, r.BatchSize,
				r.TrainSize, r.ValSize, r.Accuracy, r.Loss, r.DatasetRoot)
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum runs to list (0 lists all)")
}
