package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vozchat/internal/devserver"
	"vozchat/internal/observability"
)

func init() {
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local stand-in for the assistant service",
		Long:  "Serve /setup, /receive and /audio locally. Replies describe the received audio and come with a generated tone instead of speech.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			observability.Configure(os.Stderr, cfg.Observability.LogLevel, cfg.Observability.LogFormat)
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = cfg.DevServer.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return devserver.New().Run(ctx, addr)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default: $VOZCHAT_DEVSERVER_ADDR or 127.0.0.1:5000)")

	RootCmd.AddCommand(cmd)
}
