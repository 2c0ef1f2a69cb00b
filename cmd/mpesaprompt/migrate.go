package main

import (
	"context"
	"fmt"

	"github.com/WordpressDesigne/mpesaprompt/internal/migration"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				conn *gorm.DB
				log  *zap.Logger
			)
			return runAdmin(cmd.Context(), *configPath, func(ctx context.Context) error {
				if err := migration.RunMigrations(ctx, conn, log); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			}, &conn, &log)
		},
	}
}
