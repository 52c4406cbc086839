package app

import (
	"gorm.io/gorm"

	httpsrv "github.com/openviz/widget-service/internal/http"
	httpH "github.com/openviz/widget-service/internal/http/handlers"
	httpMW "github.com/openviz/widget-service/internal/http/middleware"
	"github.com/openviz/widget-service/internal/platform/logger"
)

type Handlers struct {
	Health *httpH.HealthHandler
	Widget *httpH.WidgetHandler
}

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

func wireHandlers(db *gorm.DB, log *logger.Logger, svcs Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(db),
		Widget: httpH.NewWidgetHandler(svcs.Widget),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, cfg.JWTSecretKey),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware) *httpsrv.Server {
	return httpsrv.NewServer(httpsrv.RouterConfig{
		Log:            log,
		ServiceName:    cfg.ServiceName,
		AuthMiddleware: middleware.Auth,
		WidgetHandler:  handlers.Widget,
		HealthHandler:  handlers.Health,
	})
}
