package config

import "go.uber.org/fx"

// Path is the optional config file location passed in from the command line.
type Path string

var Module = fx.Module("config",
	fx.Provide(func(path Path) (Config, error) {
		return Load(string(path))
	}),
)
