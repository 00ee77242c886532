package app

import (
	"github.com/yungbote/speech-to-contract/internal/http"
	httpH "github.com/yungbote/speech-to-contract/internal/http/handlers"
	httpMW "github.com/yungbote/speech-to-contract/internal/http/middleware"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health        *httpH.HealthHandler
	Transcription *httpH.TranscriptionHandler
	Generation    *httpH.GenerationHandler
	Contract      *httpH.ContractHandler
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:        httpH.NewHealthHandler(),
		Transcription: httpH.NewTranscriptionHandler(services.Transcriptions),
		Generation:    httpH.NewGenerationHandler(services.Generations),
		Contract:      httpH.NewContractHandler(services.Contracts),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, cfg.JWTSecret),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:                  log,
		ServiceName:          cfg.ServiceName,
		AllowedOrigins:       cfg.AllowedOrigins,
		AuthMiddleware:       middleware.Auth,
		TranscriptionHandler: handlers.Transcription,
		GenerationHandler:    handlers.Generation,
		ContractHandler:      handlers.Contract,
		HealthHandler:        handlers.Health,
	})
}
