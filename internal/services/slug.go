package services

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"gorm.io/gorm"

	widgetrepo "github.com/openviz/widget-service/internal/data/repos/widget"
	"github.com/openviz/widget-service/internal/platform/logger"
)

// SlugService allocates a unique URL-safe slug for a widget name. The check
// is optimistic: two concurrent allocations can race to the same slug, and
// the store's unique index is the actual backstop. Callers must treat a
// duplicate-key write error as a retryable duplicate condition.
type SlugService interface {
	Allocate(ctx context.Context, tx *gorm.DB, name string) (string, error)
}

type slugService struct {
	log     *logger.Logger
	widgets widgetrepo.WidgetRepo
}

func NewSlugService(baseLog *logger.Logger, widgets widgetrepo.WidgetRepo) SlugService {
	return &slugService{
		log:     baseLog.With("service", "SlugService"),
		widgets: widgets,
	}
}

func (s *slugService) Allocate(ctx context.Context, tx *gorm.DB, name string) (string, error) {
	base := Slugify(name)
	if base == "" {
		base = "widget"
	}

	candidate := base
	for suffix := 1; ; suffix++ {
		exists, err := s.widgets.SlugExists(ctx, tx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d", base, suffix)
	}
}

// Slugify lowercases the name and collapses every non-alphanumeric run into
// a single hyphen.
func Slugify(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	return b.String()
}
