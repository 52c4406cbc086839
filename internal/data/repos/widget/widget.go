package widget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	types "github.com/openviz/widget-service/internal/domain"
	"github.com/openviz/widget-service/internal/platform/logger"
)

type WidgetRepo interface {
	Create(ctx context.Context, tx *gorm.DB, w *types.Widget) (*types.Widget, error)
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*types.Widget, error)
	GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.Widget, error)
	SlugExists(ctx context.Context, tx *gorm.DB, slug string) (bool, error)
	List(ctx context.Context, tx *gorm.DB, f types.WidgetFilter, sort []types.SortKey, page types.Page) ([]*types.Widget, int64, error)
	ListAll(ctx context.Context, tx *gorm.DB, f types.WidgetFilter) ([]*types.Widget, error)
	ListByDataset(ctx context.Context, tx *gorm.DB, datasetID string) ([]*types.Widget, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*types.Widget, error)
	Update(ctx context.Context, tx *gorm.DB, w *types.Widget) error
	UpdateThumbnail(ctx context.Context, tx *gorm.DB, id, url string) error
	UpdateEnvByDataset(ctx context.Context, tx *gorm.DB, datasetID, env string) (int64, error)
	Delete(ctx context.Context, tx *gorm.DB, id string) error
}

// ErrBadQuery marks a filter or sort that references fields outside the
// whitelists. Callers can tell it apart from storage failures.
var ErrBadQuery = errors.New("bad query")

type widgetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWidgetRepo(db *gorm.DB, baseLog *logger.Logger) WidgetRepo {
	return &widgetRepo{db: db, log: baseLog.With("repo", "WidgetRepo")}
}

type columnKind int

const (
	kindString columnKind = iota
	kindBool
	kindArray
)

// filterColumns whitelists the fields a translated filter may touch and how
// their values bind. Anything else is rejected before reaching SQL.
var filterColumns = map[string]struct {
	column string
	kind   columnKind
}{
	"id":                    {"id", kindString},
	"dataset":               {"dataset", kindString},
	"name":                  {"name", kindString},
	"slug":                  {"slug", kindString},
	"description":           {"description", kindString},
	"source":                {"source", kindString},
	"sourceUrl":             {"source_url", kindString},
	"authors":               {"authors", kindString},
	"queryUrl":              {"query_url", kindString},
	"env":                   {"env", kindString},
	"layerId":               {"layer_id", kindString},
	"userId":                {"user_id", kindString},
	"application":           {"application", kindArray},
	"verified":              {"verified", kindBool},
	"default":               {"is_default", kindBool},
	"published":             {"published", kindBool},
	"protected":             {"protected", kindBool},
	"freeze":                {"freeze", kindBool},
	"template":              {"template", kindBool},
	"defaultEditableWidget": {"default_editable_widget", kindBool},
}

var sortColumns = map[string]string{
	"id":        "id",
	"name":      "name",
	"slug":      "slug",
	"dataset":   "dataset",
	"env":       "env",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

func (wr *widgetRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return wr.db
}

func (wr *widgetRepo) Create(ctx context.Context, tx *gorm.DB, w *types.Widget) (*types.Widget, error) {
	if err := wr.conn(tx).WithContext(ctx).Create(w).Error; err != nil {
		return nil, err
	}
	return w, nil
}

func (wr *widgetRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*types.Widget, error) {
	var w types.Widget
	err := wr.conn(tx).WithContext(ctx).Where("id = ?", id).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (wr *widgetRepo) GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.Widget, error) {
	var w types.Widget
	err := wr.conn(tx).WithContext(ctx).Where("slug = ?", slug).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (wr *widgetRepo) SlugExists(ctx context.Context, tx *gorm.DB, slug string) (bool, error) {
	var count int64
	err := wr.conn(tx).WithContext(ctx).
		Model(&types.Widget{}).
		Where("slug = ?", slug).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (wr *widgetRepo) List(ctx context.Context, tx *gorm.DB, f types.WidgetFilter, sort []types.SortKey, page types.Page) ([]*types.Widget, int64, error) {
	q, err := applyFilter(wr.conn(tx).WithContext(ctx).Model(&types.Widget{}), f)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order, err := orderClause(sort)
	if err != nil {
		return nil, 0, err
	}
	if order != "" {
		q = q.Order(order)
	}

	page = page.Normalized()
	var results []*types.Widget
	if err := q.Offset(page.Offset()).Limit(page.Size).Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (wr *widgetRepo) ListAll(ctx context.Context, tx *gorm.DB, f types.WidgetFilter) ([]*types.Widget, error) {
	q, err := applyFilter(wr.conn(tx).WithContext(ctx).Model(&types.Widget{}), f)
	if err != nil {
		return nil, err
	}
	var results []*types.Widget
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (wr *widgetRepo) ListByDataset(ctx context.Context, tx *gorm.DB, datasetID string) ([]*types.Widget, error) {
	var results []*types.Widget
	err := wr.conn(tx).WithContext(ctx).
		Where("dataset = ?", datasetID).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (wr *widgetRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*types.Widget, error) {
	var results []*types.Widget
	err := wr.conn(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (wr *widgetRepo) Update(ctx context.Context, tx *gorm.DB, w *types.Widget) error {
	return wr.conn(tx).WithContext(ctx).Save(w).Error
}

func (wr *widgetRepo) UpdateThumbnail(ctx context.Context, tx *gorm.DB, id, url string) error {
	return wr.conn(tx).WithContext(ctx).
		Model(&types.Widget{}).
		Where("id = ?", id).
		Update("thumbnail_url", url).Error
}

func (wr *widgetRepo) UpdateEnvByDataset(ctx context.Context, tx *gorm.DB, datasetID, env string) (int64, error) {
	res := wr.conn(tx).WithContext(ctx).
		Model(&types.Widget{}).
		Where("dataset = ?", datasetID).
		Update("env", env)
	return res.RowsAffected, res.Error
}

func (wr *widgetRepo) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	return wr.conn(tx).WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.Widget{}).Error
}

func applyFilter(q *gorm.DB, f types.WidgetFilter) (*gorm.DB, error) {
	for _, term := range f.Terms {
		col, ok := filterColumns[term.Field]
		if !ok {
			return nil, fmt.Errorf("%w: unrecognized filter field %q", ErrBadQuery, term.Field)
		}
		if len(term.Values) == 0 {
			// An empty membership set matches nothing; other empty terms
			// are vacuous and dropped.
			if term.Op == types.OpIn {
				q = q.Where("1 = 0")
			}
			continue
		}
		switch term.Op {
		case types.OpStringMatch:
			q = q.Where(
				fmt.Sprintf("LOWER(%s) LIKE ?", col.column),
				"%"+strings.ToLower(term.Values[0])+"%",
			)
		case types.OpExact:
			val, err := bindValue(col.kind, term.Values[0])
			if err != nil {
				return nil, err
			}
			q = q.Where(fmt.Sprintf("%s = ?", col.column), val)
		case types.OpIn:
			q = q.Where(fmt.Sprintf("%s IN ?", col.column), term.Values)
		case types.OpArrayAll:
			if col.kind != kindArray {
				return nil, fmt.Errorf("%w: field %q does not support array matching", ErrBadQuery, term.Field)
			}
			b, err := json.Marshal(term.Values)
			if err != nil {
				return nil, err
			}
			q = q.Where(fmt.Sprintf("%s @> ?::jsonb", col.column), string(b))
		case types.OpArrayAny:
			if col.kind != kindArray {
				return nil, fmt.Errorf("%w: field %q does not support array matching", ErrBadQuery, term.Field)
			}
			q = q.Where(
				fmt.Sprintf("EXISTS (SELECT 1 FROM jsonb_array_elements_text(%s) elem WHERE elem IN ?)", col.column),
				term.Values,
			)
		default:
			return nil, fmt.Errorf("%w: unrecognized filter op %q", ErrBadQuery, term.Op)
		}
	}
	if f.IDs != nil {
		if len(f.IDs) == 0 {
			// Non-nil empty allow-list matches nothing.
			q = q.Where("1 = 0")
		} else {
			q = q.Where("id IN ?", f.IDs)
		}
	}
	return q, nil
}

func bindValue(kind columnKind, raw string) (any, error) {
	if kind != kindBool {
		return raw, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: expected boolean value, got %q", ErrBadQuery, raw)
	}
	return b, nil
}

func orderClause(sort []types.SortKey) (string, error) {
	if len(sort) == 0 {
		return "created_at ASC", nil
	}
	parts := make([]string, 0, len(sort))
	for _, k := range sort {
		col, ok := sortColumns[k.Field]
		if !ok {
			return "", fmt.Errorf("%w: unsortable field %q", ErrBadQuery, k.Field)
		}
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
	}
	return strings.Join(parts, ", "), nil
}
