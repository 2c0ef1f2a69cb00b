package main

import (
	"context"

	"github.com/WordpressDesigne/mpesaprompt/internal/customer"
	"github.com/WordpressDesigne/mpesaprompt/internal/events"
	"github.com/WordpressDesigne/mpesaprompt/internal/ledger"
	"github.com/WordpressDesigne/mpesaprompt/internal/migration"
	"github.com/WordpressDesigne/mpesaprompt/internal/mpesa"
	"github.com/WordpressDesigne/mpesaprompt/internal/payment"
	"github.com/WordpressDesigne/mpesaprompt/internal/scheduler"
	"github.com/WordpressDesigne/mpesaprompt/internal/server"
	"github.com/WordpressDesigne/mpesaprompt/internal/wallet"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, webhook dispatcher and stale initiation sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				coreModules(*configPath),
				fx.Invoke(func(lc fx.Lifecycle, conn *gorm.DB, log *zap.Logger) {
					lc.Append(fx.Hook{
						OnStart: func(ctx context.Context) error {
							return migration.RunMigrations(ctx, conn, log)
						},
					})
				}),
				mpesa.Module,
				ledger.Module,
				wallet.Module,
				customer.Module,
				events.Module,
				payment.Module,
				events.DispatcherModule,
				scheduler.Module,
				server.Module,
			)
			app.Run()
			return app.Err()
		},
	}
}
