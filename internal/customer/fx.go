package customer

import (
	"github.com/WordpressDesigne/mpesaprompt/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(service.New),
)
