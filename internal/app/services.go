package app

import (
	"gorm.io/gorm"

	"github.com/openviz/widget-service/internal/platform/logger"
	"github.com/openviz/widget-service/internal/services"
)

type Services struct {
	Slug      services.SlugService
	Sort      services.SortService
	Include   services.IncludeService
	Thumbnail services.ThumbnailService
	Widget    services.WidgetService
}

func wireServices(db *gorm.DB, log *logger.Logger, repos Repos, clients Clients) Services {
	log.Info("Wiring services...")
	slug := services.NewSlugService(log, repos.Widget)
	sort := services.NewSortService(log, clients.Users)
	include := services.NewIncludeService(log, clients.Users, clients.Vocabulary, clients.Metadata)
	thumbnail := services.NewThumbnailService(log, clients.Screenshot, repos.Widget)
	widget := services.NewWidgetService(
		db, log, repos.Widget,
		slug, sort, include, thumbnail,
		clients.Dataset, clients.Graph, clients.Metadata, clients.Users, clients.Collection,
	)
	return Services{
		Slug:      slug,
		Sort:      sort,
		Include:   include,
		Thumbnail: thumbnail,
		Widget:    widget,
	}
}
