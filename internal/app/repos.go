package app

import (
	"gorm.io/gorm"

	widgetrepo "github.com/openviz/widget-service/internal/data/repos/widget"
	"github.com/openviz/widget-service/internal/platform/logger"
)

type Repos struct {
	Widget widgetrepo.WidgetRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Widget: widgetrepo.NewWidgetRepo(db, log),
	}
}
