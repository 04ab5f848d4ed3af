// assetscan scans asset QR labels with a local camera and resolves them
// against the asset backend.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/assetscan/internal/config"
	"github.com/teslashibe/assetscan/internal/log"
)

// Global flags
var (
	logLevelFlag string
	apiURLFlag   string
	decoderFlag  string
)

// cfg is loaded before any subcommand runs.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "assetscan",
	Short: "Scan asset QR labels and look them up",
	Long: `assetscan drives a camera, decodes asset QR labels and resolves each
scanned identifier against the asset backend.

Configuration comes from ASSETSCAN_* environment variables; flags override.

Examples:
  assetscan serve --addr :8090
  assetscan scan --facing user
  assetscan devices
  assetscan watch --url ws://localhost:8090/ws/events`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if logLevelFlag != "" {
			loaded.LogLevel = logLevelFlag
		}
		if apiURLFlag != "" {
			loaded.APIBaseURL = apiURLFlag
		}
		if decoderFlag != "" {
			loaded.Decoder = decoderFlag
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		log.Init(cfg.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&apiURLFlag, "api-url", "", "Asset backend base URL")
	rootCmd.PersistentFlags().StringVar(&decoderFlag, "decoder", "", "QR decoder: zxing or opencv")

	rootCmd.AddCommand(serveCmd, scanCmd, devicesCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
