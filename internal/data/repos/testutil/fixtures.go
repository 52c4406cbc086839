package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/openviz/widget-service/internal/domain"
)

func SeedWidget(tb testing.TB, ctx context.Context, tx *gorm.DB, mutate func(*types.Widget)) *types.Widget {
	tb.Helper()
	w := &types.Widget{
		ID:          uuid.NewString(),
		Dataset:     uuid.NewString(),
		Name:        "Seed widget",
		Slug:        "seed-widget-" + uuid.NewString(),
		Application: []string{"rw"},
		Env:         types.DefaultEnv,
		Published:   true,
	}
	if mutate != nil {
		mutate(w)
	}
	if err := tx.WithContext(ctx).Create(w).Error; err != nil {
		tb.Fatalf("seed widget: %v", err)
	}
	return w
}
