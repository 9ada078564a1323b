package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/meetmesh/config"
)

func newServeCmd(configPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the meeting API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mm, err := loadApp(cmd, *configPath, func(cfg *config.Config) {
				if addr != "" {
					cfg.Server.Addr = addr
				}
			})
			if err != nil {
				return err
			}
			defer mm.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if f := mm.Config().File; f != "" {
				mm.Logger().Info("Loaded config", "file", f)
			}
			return mm.Serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}
