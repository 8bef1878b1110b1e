// Package cli implements the vozchat terminal client and development commands.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vozchat/internal/bootstrap"
	"vozchat/internal/config"
)

var (
	baseURLFlag string
	formatFlag  string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:          "vozchat",
	Short:        "Voice chat client for the María assistant",
	Long:         "Talk to the assistant from a terminal: submit a profile, record an utterance, read the reply and hear it played back.",
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&baseURLFlag, "base-url", "u", "", "Assistant service URL (default: $VOZCHAT_BASE_URL or http://127.0.0.1:5000)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "text", "Event output format: text or json")
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if strings.TrimSpace(baseURLFlag) != "" {
		cfg.Remote.BaseURL = strings.TrimSpace(baseURLFlag)
	}
	return cfg, nil
}

func buildRuntime(cmd *cobra.Command) (bootstrap.Services, error) {
	format := strings.ToLower(strings.TrimSpace(formatFlag))
	if format != "text" && format != "json" {
		return bootstrap.Services{}, fmt.Errorf("unknown format %q: use text or json", formatFlag)
	}
	cfg, err := loadConfig()
	if err != nil {
		return bootstrap.Services{}, err
	}
	services, err := bootstrap.BuildWithConfig(cfg, newEventPrinter(cmd.OutOrStdout(), format))
	if err != nil {
		return bootstrap.Services{}, err
	}
	services.StartMetrics(cmd.Context())
	return services, nil
}
