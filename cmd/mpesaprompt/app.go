package main

import (
	"context"
	"os/user"
	"time"

	"github.com/WordpressDesigne/mpesaprompt/internal/apikey"
	"github.com/WordpressDesigne/mpesaprompt/internal/audit"
	auditdomain "github.com/WordpressDesigne/mpesaprompt/internal/audit/domain"
	"github.com/WordpressDesigne/mpesaprompt/internal/auditcontext"
	"github.com/WordpressDesigne/mpesaprompt/internal/business"
	"github.com/WordpressDesigne/mpesaprompt/internal/clock"
	"github.com/WordpressDesigne/mpesaprompt/internal/config"
	"github.com/WordpressDesigne/mpesaprompt/internal/observability"
	"github.com/WordpressDesigne/mpesaprompt/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

const stopTimeout = 15 * time.Second

// coreModules are shared by the server and the admin commands.
func coreModules(configPath string) fx.Option {
	return fx.Options(
		fx.Supply(config.Path(configPath)),
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		audit.Module,
		business.Module,
		apikey.Module,
	)
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

// runAdmin starts a short-lived app, hands the populated targets to fn and stops it.
func runAdmin(ctx context.Context, configPath string, fn func(context.Context) error, targets ...any) error {
	app := fx.New(
		coreModules(configPath),
		fx.NopLogger,
		fx.Populate(targets...),
	)
	if err := app.Start(ctx); err != nil {
		return err
	}
	ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeCLI), operator())
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()
	return fn(ctx)
}

func operator() string {
	u, err := user.Current()
	if err != nil {
		return ""
	}
	return u.Username
}
