package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/openviz/widget-service/internal/http/handlers"
	httpMW "github.com/openviz/widget-service/internal/http/middleware"
	"github.com/openviz/widget-service/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AuthMiddleware *httpMW.AuthMiddleware

	WidgetHandler *httpH.WidgetHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")

	// Reads accept anonymous callers; a bad token is still rejected.
	reads := api.Group("/")
	if cfg.AuthMiddleware != nil {
		reads.Use(cfg.AuthMiddleware.OptionalAuth())
	}
	if cfg.WidgetHandler != nil {
		reads.GET("/widget", cfg.WidgetHandler.List)
		reads.GET("/widget/:widget", cfg.WidgetHandler.Get)
		reads.GET("/dataset/:dataset/widget", cfg.WidgetHandler.List)
		reads.GET("/dataset/:dataset/widget/:widget", cfg.WidgetHandler.Get)
	}

	protected := api.Group("/")
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())
	}
	if cfg.WidgetHandler != nil {
		protected.POST("/dataset/:dataset/widget", cfg.WidgetHandler.Create)
		protected.PATCH("/dataset/:dataset/widget/:widget", cfg.WidgetHandler.Update)
		protected.POST("/dataset/:dataset/widget/:widget/clone", cfg.WidgetHandler.Clone)
		protected.DELETE("/dataset/:dataset/widget/:widget", cfg.WidgetHandler.Delete)
		protected.DELETE("/dataset/:dataset/widget", cfg.WidgetHandler.DeleteByDataset)
		protected.DELETE("/widget/by-user/:userId", cfg.WidgetHandler.DeleteByUser)
		protected.PATCH("/widget/change-environment/:dataset/:env", cfg.WidgetHandler.ChangeEnvironment)
	}

	return r
}
