package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"binarymlm/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "engine",
	Short:         "Binary tree compensation engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Setup() error {
	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(CreateRootCmd())
	rootCmd.AddCommand(RunMatchingCmd())
	rootCmd.AddCommand(RetryFailedCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func loadConfig() *config.Config {
	cfg := config.LoadConfig()
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return cfg
}
