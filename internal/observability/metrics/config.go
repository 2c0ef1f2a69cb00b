package metrics

import "github.com/WordpressDesigne/mpesaprompt/internal/config"

// Config labels every exported series.
type Config struct {
	ServiceName string
	Environment string
}

func ConfigFrom(cfg config.Config) Config {
	return Config{
		ServiceName: cfg.AppName,
		Environment: cfg.Environment,
	}
}
