package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-verdict/config"
	"github.com/RyanBlaney/sonido-verdict/logging"
	"github.com/RyanBlaney/sonido-verdict/workspace"
)

var (
	cfgFile  string
	rootDir  string
	endpoint string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "sonido-verdict",
	Short: "Local ok/ng audio classification service",
	Long: `sonido-verdict classifies short recordings with a small neural network
trained on a folder of labeled clips.

The serve command listens on a local Unix socket for three requests:
  init@                                    -> response:<working directory>
  predict@<index>@<artifact>               -> response:True|False
  train@<dataset>@<epochs>@<batch size>    -> response:<accuracy>:<loss>

Configuration is stored in ~/.sonido-verdict/config.yaml and created with
defaults on first use.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <root>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "working directory (default is ~/.sonido-verdict)")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "socket path, overrides the config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error, overrides the config")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(runsCmd)
}

// environment is the resolved workspace and configuration.
type environment struct {
	ws  *workspace.Workspace
	cfg *config.Config
}

// loadEnvironment creates the workspace, loads the config and applies flag
// overrides and the log level.
func loadEnvironment() (*environment, error) {
	root := rootDir
	if root == "" {
		var err error
		if root, err = workspace.DefaultRoot(); err != nil {
			return nil, err
		}
	}

	ws, err := workspace.New(root)
	if err != nil {
		return nil, err
	}

	path := cfgFile
	if path == "" {
		path = ws.ConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if endpoint != "" {
		cfg.Transport.Endpoint = endpoint
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logging.SetLevel(level)

	return &environment{ws: ws, cfg: cfg}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
