package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	apikeydomain "github.com/WordpressDesigne/mpesaprompt/internal/apikey/domain"
	"github.com/WordpressDesigne/mpesaprompt/internal/clock"
	"github.com/WordpressDesigne/mpesaprompt/internal/config"
	customerdomain "github.com/WordpressDesigne/mpesaprompt/internal/customer/domain"
	"github.com/WordpressDesigne/mpesaprompt/internal/observability/logger"
	"github.com/WordpressDesigne/mpesaprompt/internal/observability/metrics"
	paymentdomain "github.com/WordpressDesigne/mpesaprompt/internal/payment/domain"
	walletdomain "github.com/WordpressDesigne/mpesaprompt/internal/wallet/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const maxCallbackBytes = 64 << 10

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(RunHTTP),
)

type Params struct {
	fx.In

	Cfg         config.Config
	Log         *zap.Logger
	Engine      *gin.Engine
	Clock       clock.Clock
	APIKeySvc   apikeydomain.Service
	PaymentSvc  paymentdomain.Service
	CustomerSvc customerdomain.Service
	WalletSvc   walletdomain.Service
}

type Server struct {
	cfg         config.Config
	log         *zap.Logger
	engine      *gin.Engine
	apiKeySvc   apikeydomain.Service
	paymentSvc  paymentdomain.Service
	customerSvc customerdomain.Service
	walletSvc   walletdomain.Service
	initLimiter *rateLimiter
}

func NewServer(p Params) *Server {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	limit := p.Cfg.Payment.InitiationRateLimit
	window := p.Cfg.Payment.InitiationRateWindow
	if limit <= 0 {
		limit = 30
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Server{
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		engine:      p.Engine,
		apiKeySvc:   p.APIKeySvc,
		paymentSvc:  p.PaymentSvc,
		customerSvc: p.CustomerSvc,
		walletSvc:   p.WalletSvc,
		initLimiter: newRateLimiter(limit, window, clk),
	}
}

type EngineParams struct {
	fx.In

	Cfg         config.Config
	HTTPMetrics *metrics.HTTPMetrics `optional:"true"`
}

// NewEngine builds the gin engine with request logging and metrics middleware.
func NewEngine(p EngineParams) *gin.Engine {
	if p.Cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths:      []string{"/health", "/metrics"},
		LogBodyOnError: true,
	}))
	engine.Use(metrics.GinMiddleware(p.HTTPMetrics))
	return engine
}

func (s *Server) RegisterRoutes() {
	s.engine.GET("/health", s.Health)
	if s.cfg.Observability.MetricsEnabled {
		s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	s.engine.POST("/callback", s.Callback)

	api := s.engine.Group("/", s.APIKeyRequired())
	api.POST("/stk-push", s.RateLimit(s.initLimiter), s.InitiatePayment)
	api.GET("/transactions", s.ListTransactions)
	api.GET("/transactions/:id", s.GetTransaction)
	api.GET("/transactions/checkout/:checkout_request_id", s.GetTransactionByCheckout)
	api.GET("/customers", s.ListCustomers)
	api.GET("/customers/:id", s.GetCustomer)
	api.GET("/wallet", s.GetWallet)
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, engine *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
