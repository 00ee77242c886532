package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/speech-to-contract/internal/http/handlers"
	httpMW "github.com/yungbote/speech-to-contract/internal/http/middleware"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string

	AuthMiddleware *httpMW.AuthMiddleware

	TranscriptionHandler *httpH.TranscriptionHandler
	GenerationHandler    *httpH.GenerationHandler
	ContractHandler      *httpH.ContractHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
	}

	protected := r.Group("/api")
	{
		// Middleware
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Transcriptions
		if h := cfg.TranscriptionHandler; h != nil {
			protected.POST("/transcriptions", h.Upload)
			protected.GET("/transcriptions/status", h.Status)
			protected.GET("/transcriptions/:id/status", h.Status)
			protected.POST("/transcriptions/cancel", h.Cancel)
			protected.POST("/transcriptions/:id/cancel", h.Cancel)
			protected.POST("/transcriptions/retry", h.Retry)
			protected.POST("/transcriptions/:id/retry", h.Retry)
		}

		// Generations
		if h := cfg.GenerationHandler; h != nil {
			protected.POST("/generations", h.Create)
			protected.GET("/generations/status", h.Status)
			protected.GET("/generations/:id/status", h.Status)
			protected.POST("/generations/cancel", h.Cancel)
			protected.POST("/generations/:id/cancel", h.Cancel)
			protected.POST("/generations/retry", h.Retry)
			protected.POST("/generations/:id/retry", h.Retry)
		}

		// Contracts
		if cfg.ContractHandler != nil {
			protected.GET("/contracts/:id", cfg.ContractHandler.Get)
		}
	}

	return r
}
