package cli

import (
	"os"

	"github.com/amanas96/slot-swapper/internal/app"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRootCommand создаёт корневую команду slotswapper
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "slotswapper",
		Short:         "SlotSwapper - peer-to-peer time slot exchange",
		Long:          "HTTP API for listing calendar slots and swapping them between users.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewMigrateCommand())
	cmd.AddCommand(NewTokenCommand())

	return cmd
}

// envLogger логгер для команд, которым не нужен полный конфиг
func envLogger() (*zap.Logger, error) {
	return app.NewLogger(os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))
}
