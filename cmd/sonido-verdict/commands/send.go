package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-verdict/protocol"
	"github.com/RyanBlaney/sonido-verdict/transport"
)

var sendTimeout time.Duration

var sendCmd = &cobra.Command{
	Use:   "send <request>",
	Short: "Send one raw request to a running service and print the response",
	Example: `  sonido-verdict send init@
  sonido-verdict send predict@3@$HOME/.sonido-verdict/model.h5
  sonido-verdict send train@./dataset@50@16`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}

		ctx, stop := signalContext(cmd.Context())
		defer stop()
		if sendTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, sendTimeout)
			defer cancel()
		}

		resp, err := transport.NewClient(transport.ConfigFrom(env.cfg)).Do(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), resp)
		if _, err := protocol.ParseResponse(resp); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 0, "give up after this long (0 waits forever)")
}
