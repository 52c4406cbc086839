package services

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gorm.io/gorm"

	types "github.com/openviz/widget-service/internal/domain"
	"github.com/openviz/widget-service/internal/platform/httpx"
	"github.com/openviz/widget-service/internal/platform/logger"
)

func errNotFoundStatus(service string) error {
	return &httpx.StatusError{Service: service, Status: http.StatusNotFound}
}

func testLogger(tb interface{ Fatalf(string, ...any) }) *logger.Logger {
	log, err := logger.New("test")
	if err != nil {
		tb.Fatalf("logger.New: %v", err)
	}
	return log
}

// fakeWidgetRepo is an in-memory WidgetRepo. It keeps insertion order so
// listings without an explicit sort are deterministic.
type fakeWidgetRepo struct {
	mu      sync.Mutex
	order   []string
	byID    map[string]*types.Widget
	failSet map[string]error // method name -> injected error
}

func newFakeWidgetRepo() *fakeWidgetRepo {
	return &fakeWidgetRepo{byID: map[string]*types.Widget{}, failSet: map[string]error{}}
}

func (r *fakeWidgetRepo) fail(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failSet[method] = err
}

func (r *fakeWidgetRepo) injected(method string) error {
	return r.failSet[method]
}

func (r *fakeWidgetRepo) Create(_ context.Context, _ *gorm.DB, w *types.Widget) (*types.Widget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("Create"); err != nil {
		return nil, err
	}
	for _, existing := range r.byID {
		if existing.Slug == w.Slug {
			return nil, gorm.ErrDuplicatedKey
		}
	}
	cp := *w
	r.byID[w.ID] = &cp
	r.order = append(r.order, w.ID)
	return w, nil
}

func (r *fakeWidgetRepo) GetByID(_ context.Context, _ *gorm.DB, id string) (*types.Widget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *fakeWidgetRepo) GetBySlug(_ context.Context, _ *gorm.DB, slug string) (*types.Widget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		if r.byID[id].Slug == slug {
			cp := *r.byID[id]
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeWidgetRepo) SlugExists(_ context.Context, _ *gorm.DB, slug string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("SlugExists"); err != nil {
		return false, err
	}
	for _, w := range r.byID {
		if w.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeWidgetRepo) List(ctx context.Context, tx *gorm.DB, f types.WidgetFilter, sortKeys []types.SortKey, page types.Page) ([]*types.Widget, int64, error) {
	all, err := r.ListAll(ctx, tx, f)
	if err != nil {
		return nil, 0, err
	}
	if len(sortKeys) > 0 {
		key := sortKeys[0]
		sort.SliceStable(all, func(i, j int) bool {
			a, b := fieldValue(all[i], key.Field), fieldValue(all[j], key.Field)
			if key.Desc {
				return a > b
			}
			return a < b
		})
	}
	total := int64(len(all))
	page = page.Normalized()
	start := page.Offset()
	if start >= len(all) {
		return []*types.Widget{}, total, nil
	}
	end := start + page.Size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *fakeWidgetRepo) ListAll(_ context.Context, _ *gorm.DB, f types.WidgetFilter) ([]*types.Widget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("ListAll"); err != nil {
		return nil, err
	}
	allowed := map[string]struct{}{}
	for _, id := range f.IDs {
		allowed[id] = struct{}{}
	}
	var out []*types.Widget
	for _, id := range r.order {
		w := r.byID[id]
		if f.IDs != nil {
			if _, ok := allowed[w.ID]; !ok {
				continue
			}
		}
		if !matchesAll(w, f.Terms) {
			continue
		}
		cp := *w
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeWidgetRepo) ListByDataset(_ context.Context, _ *gorm.DB, datasetID string) ([]*types.Widget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Widget
	for _, id := range r.order {
		if r.byID[id].Dataset == datasetID {
			cp := *r.byID[id]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeWidgetRepo) ListByUser(_ context.Context, _ *gorm.DB, userID string) ([]*types.Widget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Widget
	for _, id := range r.order {
		if r.byID[id].UserID == userID {
			cp := *r.byID[id]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeWidgetRepo) Update(_ context.Context, _ *gorm.DB, w *types.Widget) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("Update"); err != nil {
		return err
	}
	cp := *w
	r.byID[w.ID] = &cp
	return nil
}

func (r *fakeWidgetRepo) UpdateThumbnail(_ context.Context, _ *gorm.DB, id, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.byID[id]; ok {
		w.ThumbnailURL = url
	}
	return nil
}

func (r *fakeWidgetRepo) UpdateEnvByDataset(_ context.Context, _ *gorm.DB, datasetID, env string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, w := range r.byID {
		if w.Dataset == datasetID {
			w.Env = env
			n++
		}
	}
	return n, nil
}

func (r *fakeWidgetRepo) Delete(_ context.Context, _ *gorm.DB, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("Delete"); err != nil {
		return err
	}
	delete(r.byID, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *fakeWidgetRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func matchesAll(w *types.Widget, terms []types.FilterTerm) bool {
	for _, t := range terms {
		if !matches(w, t) {
			return false
		}
	}
	return true
}

func matches(w *types.Widget, t types.FilterTerm) bool {
	values := fieldValues(w, t.Field)
	switch t.Op {
	case types.OpStringMatch:
		for _, v := range values {
			if strings.Contains(strings.ToLower(v), strings.ToLower(t.Values[0])) {
				return true
			}
		}
		return false
	case types.OpExact:
		for _, v := range values {
			if v == t.Values[0] {
				return true
			}
		}
		return false
	case types.OpIn:
		for _, v := range values {
			for _, want := range t.Values {
				if v == want {
					return true
				}
			}
		}
		return false
	case types.OpArrayAll:
		for _, want := range t.Values {
			found := false
			for _, v := range values {
				if v == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	case types.OpArrayAny:
		for _, want := range t.Values {
			for _, v := range values {
				if v == want {
					return true
				}
			}
		}
		return false
	}
	return false
}

func fieldValues(w *types.Widget, field string) []string {
	switch field {
	case "application":
		return w.Application
	default:
		return []string{fieldValue(w, field)}
	}
}

func fieldValue(w *types.Widget, field string) string {
	switch field {
	case "name":
		return w.Name
	case "slug":
		return w.Slug
	case "dataset":
		return w.Dataset
	case "env":
		return w.Env
	case "userId":
		return w.UserID
	case "layerId":
		return w.LayerID
	case "description":
		return w.Description
	case "source":
		return w.Source
	case "authors":
		return w.Authors
	case "published":
		return strconv.FormatBool(w.Published)
	case "verified":
		return strconv.FormatBool(w.Verified)
	case "protected":
		return strconv.FormatBool(w.Protected)
	case "default":
		return strconv.FormatBool(w.Default)
	case "template":
		return strconv.FormatBool(w.Template)
	case "createdAt":
		return w.CreatedAt.Format("2006-01-02T15:04:05.000000000")
	}
	return ""
}

// --- collaborator fakes ---

type fakeDataset struct {
	err     error
	missing map[string]bool
	mu      sync.Mutex
	checked []string
}

func (f *fakeDataset) Exists(_ context.Context, datasetID string) error {
	f.mu.Lock()
	f.checked = append(f.checked, datasetID)
	f.mu.Unlock()
	if f.missing[datasetID] {
		return errNotFoundStatus("dataset")
	}
	return f.err
}

type fakeGraph struct {
	mu        sync.Mutex
	createErr error
	deleteErr error
	created   []string
	deleted   []string
}

func (f *fakeGraph) CreateNode(_ context.Context, _, widgetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, widgetID)
	return nil
}

func (f *fakeGraph) DeleteNode(_ context.Context, widgetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, widgetID)
	return nil
}

func (f *fakeGraph) deletedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deleted)
}

type fakeScreenshot struct {
	url string
	err error
}

func (f *fakeScreenshot) TakeScreenshot(_ context.Context, widgetID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.url != "" {
		return f.url, nil
	}
	return "https://shots.example.com/" + widgetID + ".png", nil
}

type fakeMetadata struct {
	mu        sync.Mutex
	byWidget  map[string][]types.Metadata
	findErr   error
	deleteErr error
	deleted   []string
	lastEnv   string
}

func (f *fakeMetadata) FindByIDs(_ context.Context, widgetIDs []string, env string) ([]types.Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastEnv = env
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []types.Metadata
	for _, id := range widgetIDs {
		out = append(out, f.byWidget[id]...)
	}
	return out, nil
}

func (f *fakeMetadata) DeleteMetadata(_ context.Context, _, widgetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, widgetID)
	return nil
}

type fakeVocabulary struct {
	byWidget map[string][]types.Vocabulary
	errFor   map[string]error
}

func (f *fakeVocabulary) GetByWidget(_ context.Context, _, widgetID, _ string) ([]types.Vocabulary, error) {
	if err := f.errFor[widgetID]; err != nil {
		return nil, err
	}
	return f.byWidget[widgetID], nil
}

type fakeUsers struct {
	byID    map[string]types.UserRecord
	roleIDs map[string][]string
	findErr error
	roleErr error
}

func (f *fakeUsers) FindByIDs(_ context.Context, ids []string) ([]types.UserRecord, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []types.UserRecord
	for _, id := range ids {
		if u, ok := f.byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) FindIDsByRole(_ context.Context, role string) ([]string, error) {
	if f.roleErr != nil {
		return nil, f.roleErr
	}
	return f.roleIDs[role], nil
}

type fakeCollections struct {
	collections []types.Collection
	favIDs      []string
	err         error
}

func (f *fakeCollections) FindByIDs(_ context.Context, _ []string, _ string) ([]types.Collection, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.collections, nil
}

func (f *fakeCollections) FindFavouriteIDs(_ context.Context, _ string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.favIDs, nil
}
