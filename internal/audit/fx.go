package audit

import (
	"github.com/WordpressDesigne/mpesaprompt/internal/audit/repository"
	"github.com/WordpressDesigne/mpesaprompt/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
