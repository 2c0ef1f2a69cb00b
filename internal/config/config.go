package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const envPrefix = "MPESAPROMPT"

const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
)

type Config struct {
	AppName     string `mapstructure:"app_name"`
	AppVersion  string `mapstructure:"app_version"`
	Environment string `mapstructure:"environment"`

	HTTP          HTTPConfig          `mapstructure:"http"`
	DB            DBConfig            `mapstructure:"db"`
	Log           LogConfig           `mapstructure:"log"`
	Mpesa         MpesaConfig         `mapstructure:"mpesa"`
	Payment       PaymentConfig       `mapstructure:"payment"`
	Credentials   CredentialsConfig   `mapstructure:"credentials"`
	Webhook       WebhookConfig       `mapstructure:"webhook"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MpesaConfig struct {
	SandboxBaseURL    string        `mapstructure:"sandbox_base_url"`
	ProductionBaseURL string        `mapstructure:"production_base_url"`
	CallbackURL       string        `mapstructure:"callback_url"`
	TokenTimeout      time.Duration `mapstructure:"token_timeout"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	CountryCode       string        `mapstructure:"country_code"`
	Timezone          string        `mapstructure:"timezone"`
}

type PaymentConfig struct {
	CommissionRate       float64       `mapstructure:"commission_rate"`
	Currency             string        `mapstructure:"currency"`
	InitiationRateLimit  int           `mapstructure:"initiation_rate_limit"`
	InitiationRateWindow time.Duration `mapstructure:"initiation_rate_window"`
	StaleInitiationAfter time.Duration `mapstructure:"stale_initiation_after"`
	SweepInterval        time.Duration `mapstructure:"sweep_interval"`
}

type CredentialsConfig struct {
	Secret string `mapstructure:"secret"`
}

type WebhookConfig struct {
	SigningSecret string        `mapstructure:"signing_secret"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	BatchSize     int           `mapstructure:"batch_size"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type ObservabilityConfig struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	OTLPProtocol   string  `mapstructure:"otlp_protocol"`
	SamplingRatio  float64 `mapstructure:"sampling_ratio"`
	MetricsEnabled bool    `mapstructure:"metrics_enabled"`
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), EnvironmentProduction)
}

// Rate returns the configured commission rate as an exact decimal.
func (c PaymentConfig) Rate() decimal.Decimal {
	return decimal.NewFromFloat(c.CommissionRate)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "mpesaprompt")
	v.SetDefault("app_version", "dev")
	v.SetDefault("environment", EnvironmentDevelopment)

	v.SetDefault("http.addr", ":8080")

	v.SetDefault("db.dsn", "host=localhost user=postgres password=postgres dbname=mpesaprompt port=5432 sslmode=disable")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("mpesa.sandbox_base_url", "https://sandbox.safaricom.co.ke")
	v.SetDefault("mpesa.production_base_url", "https://api.safaricom.co.ke")
	v.SetDefault("mpesa.callback_url", "")
	v.SetDefault("mpesa.token_timeout", 10*time.Second)
	v.SetDefault("mpesa.request_timeout", 30*time.Second)
	v.SetDefault("mpesa.country_code", "254")
	v.SetDefault("mpesa.timezone", "Africa/Nairobi")

	v.SetDefault("payment.commission_rate", 0.01)
	v.SetDefault("payment.currency", "KES")
	v.SetDefault("payment.initiation_rate_limit", 30)
	v.SetDefault("payment.initiation_rate_window", time.Minute)
	v.SetDefault("payment.stale_initiation_after", 10*time.Minute)
	v.SetDefault("payment.sweep_interval", time.Minute)

	v.SetDefault("credentials.secret", "")

	v.SetDefault("webhook.signing_secret", "")
	v.SetDefault("webhook.poll_interval", 5*time.Second)
	v.SetDefault("webhook.batch_size", 20)
	v.SetDefault("webhook.max_attempts", 5)
	v.SetDefault("webhook.timeout", 5*time.Second)

	v.SetDefault("observability.tracing_enabled", false)
	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.otlp_protocol", "grpc")
	v.SetDefault("observability.sampling_ratio", 0.1)
	v.SetDefault("observability.metrics_enabled", true)
}

// Load reads configuration from defaults, an optional YAML file and MPESAPROMPT_* env vars.
// A .env file in the working directory is loaded first when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Payment.CommissionRate < 0 || c.Payment.CommissionRate >= 1 {
		return errors.New("payment.commission_rate must be in [0, 1)")
	}
	if c.Mpesa.TokenTimeout <= 0 || c.Mpesa.RequestTimeout <= 0 {
		return errors.New("mpesa timeouts must be positive")
	}
	if strings.TrimSpace(c.Payment.Currency) == "" {
		return errors.New("payment.currency is required")
	}
	if c.IsProduction() && strings.TrimSpace(c.Credentials.Secret) == "" {
		return errors.New("credentials.secret is required in production")
	}
	return nil
}
