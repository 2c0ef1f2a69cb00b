package wallet

import (
	"github.com/WordpressDesigne/mpesaprompt/internal/wallet/service"
	"go.uber.org/fx"
)

var Module = fx.Module("wallet.service",
	fx.Provide(service.New),
)
