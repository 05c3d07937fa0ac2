package cli

import (
	"fmt"
	"os"

	"github.com/amanas96/slot-swapper/internal/app"
	"github.com/amanas96/slot-swapper/internal/config"
	"github.com/spf13/cobra"
)

// NewMigrateCommand управляет схемой БД
func NewMigrateCommand() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:       "migrate <up|down|version>",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadDotEnv()
			if dsn == "" {
				dsn = os.Getenv("DB_DSN")
			}
			if dsn == "" {
				return fmt.Errorf("DB_DSN is required but not set")
			}

			logger, err := envLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			pool, err := app.OpenPool(ctx, dsn, 2)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator, err := app.NewMigrator(pool, logger)
			if err != nil {
				return err
			}
			defer migrator.Close()

			switch args[0] {
			case "up":
				return migrator.Up(ctx)
			case "down":
				return migrator.Down(ctx)
			default:
				version, err := migrator.Version(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\n", version)
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "database connection string (defaults to DB_DSN)")
	return cmd
}
