package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/amanas96/slot-swapper/internal/app"
	"github.com/amanas96/slot-swapper/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewServeCommand запускает HTTP API и доставку уведомлений
func NewServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the outbox relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger, err := app.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Starting slotswapper",
		zap.String("environment", cfg.Environment),
		zap.String("store", cfg.StoreDriver),
		zap.Bool("redis", cfg.RedisAddr != ""),
		zap.Bool("telegram", cfg.TelegramEnabled()))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer application.Close()

	return application.Run(ctx)
}
