package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-verdict/logging"
	"github.com/RyanBlaney/sonido-verdict/runstore"
	"github.com/RyanBlaney/sonido-verdict/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Answer requests on the local socket until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}

		// the store is locked only while a run is written, so `runs` can read it
		comps, err := service.NewComponents(env.cfg, env.ws, runstore.NewRecorder(env.ws.RunsDir))
		if err != nil {
			return err
		}

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		if err := comps.Service().Serve(ctx); err != nil {
			logging.Error(err, "Service terminated")
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	},
}
