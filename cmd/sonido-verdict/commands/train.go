package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-verdict/runstore"
	"github.com/RyanBlaney/sonido-verdict/service"
)

var (
	trainEpochs    int
	trainBatchSize int
)

var trainCmd = &cobra.Command{
	Use:   "train <dataset>",
	Short: "Train the classifier on <dataset>/<label>/*.wav",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}

		comps, err := service.NewComponents(env.cfg, env.ws, runstore.NewRecorder(env.ws.RunsDir))
		if err != nil {
			return err
		}

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		res, err := comps.Trainer.Train(ctx, args[0], trainEpochs, trainBatchSize)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "run:      %s\naccuracy: %g\nloss:     %g\nartifact: %s\nhistory:  %s\n",
			res.RunID, res.Accuracy, res.Loss, env.ws.ArtifactPath, env.ws.HistoryImagePath)
		return nil
	},
}

func init() {
	trainCmd.Flags().IntVarP(&trainEpochs, "epochs", "e", 0, "training epochs (default from config)")
	trainCmd.Flags().IntVarP(&trainBatchSize, "batch-size", "b", 0, "mini-batch size (default from config)")
}
