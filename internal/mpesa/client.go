package mpesa

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/WordpressDesigne/mpesaprompt/internal/clock"
	"github.com/WordpressDesigne/mpesaprompt/internal/config"
	"github.com/WordpressDesigne/mpesaprompt/internal/observability/metrics"
	"github.com/WordpressDesigne/mpesaprompt/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

func ParseEnvironment(value string) (Environment, bool) {
	switch Environment(strings.ToLower(strings.TrimSpace(value))) {
	case EnvironmentSandbox, "":
		return EnvironmentSandbox, true
	case EnvironmentProduction:
		return EnvironmentProduction, true
	default:
		return "", false
	}
}

// Credentials identify one gateway app. Tokens are cached per environment and consumer key.
type Credentials struct {
	Environment    Environment
	ConsumerKey    string
	ConsumerSecret string
}

func (c Credentials) cacheKey() string {
	return string(c.Environment) + ":" + c.ConsumerKey
}

const (
	tokenPath   = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath = "/mpesa/stkpush/v1/processrequest"

	maxResponseBytes = 1 << 20
)

type Config struct {
	SandboxBaseURL    string
	ProductionBaseURL string
	TokenTimeout      time.Duration
	RequestTimeout    time.Duration
	Location          *time.Location
	CountryCode       string
}

// ConfigFrom maps application config onto client settings. Timestamps use the
// configured zone, falling back to a fixed UTC+3 when tzdata is unavailable.
func ConfigFrom(cfg config.Config) Config {
	loc, err := time.LoadLocation(strings.TrimSpace(cfg.Mpesa.Timezone))
	if err != nil || cfg.Mpesa.Timezone == "" {
		loc = time.FixedZone("EAT", 3*60*60)
	}
	return Config{
		SandboxBaseURL:    cfg.Mpesa.SandboxBaseURL,
		ProductionBaseURL: cfg.Mpesa.ProductionBaseURL,
		TokenTimeout:      cfg.Mpesa.TokenTimeout,
		RequestTimeout:    cfg.Mpesa.RequestTimeout,
		Location:          loc,
		CountryCode:       cfg.Mpesa.CountryCode,
	}
}

func (c Config) withDefaults() Config {
	if c.SandboxBaseURL == "" {
		c.SandboxBaseURL = "https://sandbox.safaricom.co.ke"
	}
	if c.ProductionBaseURL == "" {
		c.ProductionBaseURL = "https://api.safaricom.co.ke"
	}
	if c.TokenTimeout <= 0 {
		c.TokenTimeout = 10 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.Location == nil {
		c.Location = time.FixedZone("EAT", 3*60*60)
	}
	if c.CountryCode == "" {
		c.CountryCode = DefaultCountryCode
	}
	c.SandboxBaseURL = strings.TrimRight(c.SandboxBaseURL, "/")
	c.ProductionBaseURL = strings.TrimRight(c.ProductionBaseURL, "/")
	return c
}

type Params struct {
	fx.In

	Cfg        Config
	Log        *zap.Logger
	Clock      clock.Clock
	HTTPClient *http.Client            `optional:"true"`
	Metrics    *metrics.PaymentMetrics `optional:"true"`
}

// Client talks to the M-Pesa Daraja API.
type Client struct {
	cfg     Config
	http    *http.Client
	clock   clock.Clock
	tokens  *TokenCache
	log     *zap.Logger
	metrics *metrics.PaymentMetrics
}

func NewClient(p Params) *Client {
	httpClient := p.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}

	c := &Client{
		cfg:     p.Cfg.withDefaults(),
		http:    tracing.WrapHTTPClient(httpClient),
		clock:   clk,
		log:     log.Named("mpesa.client"),
		metrics: p.Metrics,
	}
	c.tokens = NewTokenCache(c.exchangeToken, clk)
	return c
}

func (c *Client) Tokens() *TokenCache { return c.tokens }

func (c *Client) CountryCode() string { return c.cfg.CountryCode }

func (c *Client) Location() *time.Location { return c.cfg.Location }

func (c *Client) baseURL(env Environment) string {
	if env == EnvironmentProduction {
		return c.cfg.ProductionBaseURL
	}
	return c.cfg.SandboxBaseURL
}

type tokenResponse struct {
	AccessToken string         `json:"access_token"`
	ExpiresIn   numberOrString `json:"expires_in"`
}

func (c *Client) exchangeToken(ctx context.Context, creds Credentials) (Token, error) {
	if strings.TrimSpace(creds.ConsumerKey) == "" || strings.TrimSpace(creds.ConsumerSecret) == "" {
		return Token{}, &GatewayError{Kind: ErrCredentialsRejected, Message: "consumer key and secret are required"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.TokenTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL(creds.Environment)+tokenPath, nil)
	if err != nil {
		return Token{}, &GatewayError{Kind: ErrTokenUnavailable, Err: err}
	}
	req.SetBasicAuth(creds.ConsumerKey, creds.ConsumerSecret)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.ObserveGatewayLatency("token", time.Since(start))
	if err != nil {
		c.metrics.IncTokenExchange("failed")
		return Token{}, &GatewayError{Kind: ErrTokenUnavailable, Message: "token request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.metrics.IncTokenExchange("failed")
		return Token{}, &GatewayError{Kind: ErrTokenUnavailable, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.IncTokenExchange("failed")
		eb := parseErrorBody(body)
		kind := ErrTokenUnavailable
		switch resp.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			kind = ErrCredentialsRejected
		}
		message := eb.ErrorMessage
		if message == "" {
			message = "token endpoint returned " + strconv.Itoa(resp.StatusCode)
		}
		return Token{}, &GatewayError{Kind: kind, StatusCode: resp.StatusCode, Code: eb.ErrorCode.String(), Message: message}
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil || strings.TrimSpace(parsed.AccessToken) == "" {
		c.metrics.IncTokenExchange("failed")
		return Token{}, &GatewayError{Kind: ErrTokenUnavailable, StatusCode: resp.StatusCode, Message: "malformed token response"}
	}

	lifetime := defaultTokenLifetime
	if raw := parsed.ExpiresIn.String(); raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err == nil && seconds > 0 {
			lifetime = time.Duration(seconds) * time.Second
		}
	}

	c.metrics.IncTokenExchange("success")
	c.log.Debug("gateway token issued",
		zap.String("environment", string(creds.Environment)),
		zap.Duration("lifetime", lifetime),
	)
	return Token{
		AccessToken: parsed.AccessToken,
		ExpiresAt:   c.clock.Now().Add(lifetime),
	}, nil
}
