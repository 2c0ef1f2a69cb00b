package mpesa

import "go.uber.org/fx"

var Module = fx.Module("mpesa.client",
	fx.Provide(ConfigFrom),
	fx.Provide(NewClient),
)
