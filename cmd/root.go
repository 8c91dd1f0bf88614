package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"Gin_postgres_redis_equipment_loans/app"
	"Gin_postgres_redis_equipment_loans/config"
)

var (
	cfgFile string
	envFile string
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:          "equipment-loans",
	Short:        "Equipment loan lifecycle and availability service",
	Long:         `Runs the equipment loan API and the maintenance tasks around it: migrations, overdue sweeps, users and sessions.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.LoadEnv(envFile)

		var err error
		if cfg, err = config.Load(cfgFile); err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}

		// CLI 命令输出给人看，serve 会换成 JSON
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
		slog.SetDefault(logger)
		return nil
	},
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
}

// openStorage opens the configured backend for one-shot commands.
func openStorage(migrate bool) (*app.Storage, error) {
	return app.OpenStorage(cfg, logger, migrate)
}
