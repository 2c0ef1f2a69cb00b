package payment

import (
	"github.com/WordpressDesigne/mpesaprompt/internal/mpesa"
	"github.com/WordpressDesigne/mpesaprompt/internal/payment/domain"
	"github.com/WordpressDesigne/mpesaprompt/internal/payment/repository"
	"github.com/WordpressDesigne/mpesaprompt/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(client *mpesa.Client) domain.Gateway { return client }),
	fx.Provide(service.NewService),
)
