package services

import (
	"context"
	"sync"
	"time"

	"github.com/openviz/widget-service/internal/clients/screenshot"
	widgetrepo "github.com/openviz/widget-service/internal/data/repos/widget"
	"github.com/openviz/widget-service/internal/platform/logger"
)

// ThumbnailService regenerates widget thumbnails through the webshot
// service. Dispatch is explicitly detached: the originating mutation has
// already returned by the time the screenshot lands, and the result is
// written back in an isolated store update. Failures are logged only.
type ThumbnailService interface {
	Dispatch(widgetID string)
	// Wait blocks until every dispatched regeneration has finished. Used by
	// graceful shutdown and tests.
	Wait()
}

type thumbnailService struct {
	log     *logger.Logger
	shots   screenshot.Client
	widgets widgetrepo.WidgetRepo
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewThumbnailService(baseLog *logger.Logger, shots screenshot.Client, widgets widgetrepo.WidgetRepo) ThumbnailService {
	return &thumbnailService{
		log:     baseLog.With("service", "ThumbnailService"),
		shots:   shots,
		widgets: widgets,
		timeout: 60 * time.Second,
	}
}

func (s *thumbnailService) Dispatch(widgetID string) {
	if s.shots == nil {
		s.log.Warn("screenshot client not configured; skipping thumbnail", "widget_id", widgetID)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Detached from the request: the originating context may already be
		// done by the time this runs.
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.run(ctx, widgetID)
	}()
}

func (s *thumbnailService) run(ctx context.Context, widgetID string) {
	url, err := s.shots.TakeScreenshot(ctx, widgetID)
	if err != nil {
		s.log.Warn("thumbnail generation failed", "widget_id", widgetID, "error", err)
		return
	}
	if err := s.widgets.UpdateThumbnail(ctx, nil, widgetID, url); err != nil {
		s.log.Warn("thumbnail store update failed", "widget_id", widgetID, "error", err)
		return
	}
	s.log.Debug("thumbnail updated", "widget_id", widgetID, "url", url)
}

func (s *thumbnailService) Wait() {
	s.wg.Wait()
}
