// -- cmd/root.go --
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Badis-tech/autoapply/internal/config"
	"github.com/Badis-tech/autoapply/internal/observability"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "autoapply",
	Short:   "Autoapply detects web application forms and submits candidate profiles into them.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(viper.GetViper(), cfgFile)
		if err != nil {
			// Initialize a fallback logger so the error itself gets logged.
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "autoapply"})
			return err
		}

		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Info("Starting autoapply", zap.String("version", Version))
		return nil
	},
}

// ExecuteContext runs the root command under a signal-aware context.
func ExecuteContext(ctx context.Context) {
	defer observability.Sync()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newDetectCmd())
	rootCmd.AddCommand(newApplyCmd())
	rootCmd.AddCommand(newRequeueCmd())
	rootCmd.AddCommand(newVersionCmd())
}
