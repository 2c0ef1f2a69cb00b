package apikey

import (
	"github.com/WordpressDesigne/mpesaprompt/internal/apikey/repository"
	"github.com/WordpressDesigne/mpesaprompt/internal/apikey/service"
	"go.uber.org/fx"
)

var Module = fx.Module("apikey.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
