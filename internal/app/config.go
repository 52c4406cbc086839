package app

import (
	"github.com/openviz/widget-service/internal/platform/envutil"
	"github.com/openviz/widget-service/internal/platform/logger"
)

type Config struct {
	ServiceName  string
	Environment  string
	Version      string
	Port         string
	JWTSecretKey string
	LogMode      string
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		ServiceName:  envutil.String("SERVICE_NAME", "widget-service"),
		Environment:  envutil.String("ENVIRONMENT", "development"),
		Version:      envutil.String("SERVICE_VERSION", "dev"),
		Port:         envutil.String("PORT", "4300"),
		JWTSecretKey: envutil.String("JWT_SECRET_KEY", "defaultsecret"),
		LogMode:      envutil.String("LOG_MODE", "development"),
	}
	if cfg.JWTSecretKey == "defaultsecret" {
		log.Warn("JWT_SECRET_KEY not set, using the insecure default")
	}
	return cfg
}
