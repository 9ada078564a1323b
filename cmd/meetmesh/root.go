package main

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/meetmesh"
	"github.com/hupe1980/meetmesh/config"
	"github.com/hupe1980/meetmesh/logging"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "meetmesh",
		Short:         "meetmesh: turn-based multi-agent meetings",
		Long:          "meetmesh runs structured meetings between model-backed and human participants, either as an HTTP service streaming OpenAI-compatible chunks or directly in the terminal.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ./meetmesh.toml, then ~/.meetmesh/config.toml)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newModesCmd(),
		newServeCmd(&configPath),
		newRunCmd(&configPath),
	)

	return rootCmd
}

// loadApp reads the configuration and assembles the façade. Logs go to the
// command's stderr.
func loadApp(cmd *cobra.Command, configPath string, optFns ...func(cfg *config.Config)) (*meetmesh.MeetMesh, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	for _, fn := range optFns {
		fn(cfg)
	}

	logCfg := cfg.LoggingConfig()
	logCfg.Output = cmd.ErrOrStderr()

	return meetmesh.New(cmd.Context(), func(o *meetmesh.Options) {
		o.Config = cfg
		o.Logger = logging.New(logCfg)
	})
}
