package business

import (
	"github.com/WordpressDesigne/mpesaprompt/internal/business/repository"
	"github.com/WordpressDesigne/mpesaprompt/internal/business/service"
	"go.uber.org/fx"
)

var Module = fx.Module("business.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
