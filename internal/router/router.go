package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/handler/health"
	"github.com/jwalitptl/clinic-api/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/pkg/logger"
)

// Handler is an unauthenticated route set.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// ProtectedHandler registers routes behind authentication and applies its own
// role checks.
type ProtectedHandler interface {
	RegisterRoutes(*gin.RouterGroup, *middleware.AuthMiddleware)
}

type Router struct {
	engine    *gin.Engine
	auth      *middleware.AuthMiddleware
	authH     Handler
	healthH   *health.Handler
	metricsH  *prometheus.Handler
	protected []ProtectedHandler
}

type RouterConfig struct {
	Mode           string
	RateLimit      rate.Limit
	RateBurst      int
	RateEnabled    bool
	CORSConfig     middleware.CORSConfig
	RequestTimeout time.Duration
	MaxBodySize    int64
}

func NewRouter(
	log *logger.Logger,
	auth *middleware.AuthMiddleware,
	authH Handler,
	healthH *health.Handler,
	metricsH *prometheus.Handler,
	protected []ProtectedHandler,
	config RouterConfig,
) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = middleware.DefaultMaxBodySize
	}
	middleware.RegisterValidators()

	engine := gin.New()

	r := &Router{
		engine:    engine,
		auth:      auth,
		authH:     authH,
		healthH:   healthH,
		metricsH:  metricsH,
		protected: protected,
	}

	engine.Use(
		middleware.Recovery(log),
		middleware.RequestID(),
		middleware.Logger(log),
		metricsH.Middleware(),
		middleware.CORS(config.CORSConfig),
	)
	if config.RateEnabled {
		engine.Use(middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		}).RateLimit())
	}
	engine.Use(
		middleware.Timeout(config.RequestTimeout),
		middleware.SizeLimit(config.MaxBodySize),
	)

	return r
}

func (r *Router) Setup() {
	r.healthH.RegisterRoutes(&r.engine.RouterGroup)
	r.engine.GET("/metrics", r.metricsH.Handler())

	api := r.engine.Group("/api/v1")
	r.authH.RegisterRoutes(api)

	secured := api.Group("", r.auth.Authenticate())
	for _, h := range r.protected {
		h.RegisterRoutes(secured, r.auth)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
