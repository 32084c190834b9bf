package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-verdict/service"
)

var predictArtifact string

var predictCmd = &cobra.Command{
	Use:   "predict <clip.wav>...",
	Short: "Classify clips with the trained artifact",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}

		comps, err := service.NewComponents(env.cfg, env.ws, nil)
		if err != nil {
			return err
		}

		artifact := predictArtifact
		if artifact == "" {
			artifact = env.ws.ArtifactPath
		}

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		for _, clip := range args {
			label, err := comps.Predictor.PredictFile(ctx, clip, artifact)
			if err != nil {
				return fmt.Errorf("%s: %w", clip, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", clip, label)
		}
		return nil
	},
}

func init() {
	predictCmd.Flags().StringVarP(&predictArtifact, "artifact", "a", "", "classifier artifact (default <root>/model.h5)")
}
