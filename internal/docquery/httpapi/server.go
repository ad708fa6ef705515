package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/docquery-backend/internal/docquery/config"
	"github.com/yungbote/docquery-backend/internal/docquery/service"
	"github.com/yungbote/docquery-backend/internal/observability"
	"github.com/yungbote/docquery-backend/internal/platform/logger"
)

type Deps struct {
	Service service.QueryService
	Auth    *Authenticator
	Metrics *observability.Metrics
	// Readiness checks run on GET /readyz, keyed by dependency name.
	Readiness map[string]ReadinessCheck
}

func NewServer(cfg *config.Config, log *logger.Logger, deps Deps) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           NewHandler(cfg, log, deps),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout.Duration,
		IdleTimeout:       cfg.HTTP.IdleTimeout.Duration,
	}
}

func NewHandler(cfg *config.Config, log *logger.Logger, deps Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(recoverPanics(log))
	r.Use(otelgin.Middleware("docquery"))
	r.Use(attachTraceContext())
	r.Use(requestLogger(log))
	r.Use(metricsMiddleware(deps.Metrics))
	r.Use(corsMiddleware(cfg.HTTP.CORSOrigins))

	r.GET("/healthz", handleHealthz)
	r.GET("/readyz", handleReadyz(deps.Readiness))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapF(deps.Metrics.WriteHTTP))
	}

	qh := &queryHandler{log: log.With("handler", "QueryHandler"), svc: deps.Service}
	v1 := r.Group("/v1")
	v1.Use(requestTimeout(cfg.HTTP.RequestTimeout.Duration))
	v1.Use(limitBody(cfg.HTTP.MaxRequestBytes))
	if deps.Auth != nil {
		v1.Use(deps.Auth.Middleware())
	}
	v1.POST("/query", qh.Query)

	return r
}
