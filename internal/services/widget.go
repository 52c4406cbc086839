package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/openviz/widget-service/internal/clients/collection"
	"github.com/openviz/widget-service/internal/clients/dataset"
	"github.com/openviz/widget-service/internal/clients/graph"
	"github.com/openviz/widget-service/internal/clients/metadata"
	"github.com/openviz/widget-service/internal/clients/userdir"
	widgetrepo "github.com/openviz/widget-service/internal/data/repos/widget"
	types "github.com/openviz/widget-service/internal/domain"
	"github.com/openviz/widget-service/internal/platform/apierr"
	"github.com/openviz/widget-service/internal/platform/ctxutil"
	"github.com/openviz/widget-service/internal/platform/httpx"
	"github.com/openviz/widget-service/internal/platform/logger"
)

type WidgetPage struct {
	Data     []*types.WidgetWithRelations `json:"data"`
	Total    int64                        `json:"total"`
	Page     int                          `json:"page"`
	PageSize int                          `json:"pageSize"`
}

type CreateWidgetInput struct {
	Name                  string            `json:"name"`
	Description           string            `json:"description"`
	Source                string            `json:"source"`
	SourceURL             string            `json:"sourceUrl"`
	Authors               string            `json:"authors"`
	QueryURL              string            `json:"queryUrl"`
	Application           []string          `json:"application"`
	Env                   string            `json:"env"`
	Verified              bool              `json:"verified"`
	Default               bool              `json:"default"`
	Published             *bool             `json:"published"`
	Protected             bool              `json:"protected"`
	Freeze                bool              `json:"freeze"`
	Template              bool              `json:"template"`
	DefaultEditableWidget bool              `json:"defaultEditableWidget"`
	WidgetConfig          datatypes.JSONMap `json:"widgetConfig"`
	LayerID               string            `json:"layerId"`
}

// UpdateWidgetInput uses pointers so an absent field can be told apart from
// an explicit false/empty value: only absent fields keep their old value.
// For the nullable reference fields (layerId, widgetConfig) an explicit JSON
// null also differs from absence: null clears the reference. UnmarshalJSON
// records which keys the body carried so a nil pointer plus a present key
// reads as an explicit null.
type UpdateWidgetInput struct {
	Dataset               *string           `json:"dataset"`
	Name                  *string           `json:"name"`
	Description           *string           `json:"description"`
	Source                *string           `json:"source"`
	SourceURL             *string           `json:"sourceUrl"`
	Authors               *string           `json:"authors"`
	QueryURL              *string           `json:"queryUrl"`
	Application           *[]string         `json:"application"`
	Env                   *string           `json:"env"`
	Verified              *bool             `json:"verified"`
	Default               *bool             `json:"default"`
	Published             *bool             `json:"published"`
	Protected             *bool             `json:"protected"`
	Freeze                *bool             `json:"freeze"`
	Template              *bool             `json:"template"`
	DefaultEditableWidget *bool             `json:"defaultEditableWidget"`
	WidgetConfig          datatypes.JSONMap `json:"widgetConfig"`
	LayerID               *string           `json:"layerId"`

	present map[string]struct{}
}

func (in *UpdateWidgetInput) UnmarshalJSON(b []byte) error {
	type plain UpdateWidgetInput
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(b, &keys); err != nil {
		return err
	}
	*in = UpdateWidgetInput(p)
	in.present = make(map[string]struct{}, len(keys))
	for k := range keys {
		in.present[k] = struct{}{}
	}
	return nil
}

func (in UpdateWidgetInput) has(key string) bool {
	_, ok := in.present[key]
	return ok
}

type CloneWidgetInput struct {
	Name string `json:"name"`
}

// WidgetService coordinates widget reads and writes across the local store
// and the external collaborators. Compensation is hardcoded per operation:
// the only rollback anywhere is create's compensating delete after a failed
// graph registration.
type WidgetService interface {
	Query(ctx context.Context, caller *ctxutil.RequestData, raw map[string]string) (*WidgetPage, error)
	Get(ctx context.Context, caller *ctxutil.RequestData, idOrSlug, datasetConstraint string, raw map[string]string) (*types.WidgetWithRelations, error)
	Create(ctx context.Context, caller *ctxutil.RequestData, datasetID string, in CreateWidgetInput) (*types.Widget, error)
	Update(ctx context.Context, caller *ctxutil.RequestData, datasetConstraint, idOrSlug string, in UpdateWidgetInput) (*types.Widget, error)
	Clone(ctx context.Context, caller *ctxutil.RequestData, datasetConstraint, idOrSlug string, in CloneWidgetInput) (*types.Widget, error)
	Delete(ctx context.Context, caller *ctxutil.RequestData, datasetConstraint, idOrSlug string) (*types.Widget, error)
	DeleteByDataset(ctx context.Context, caller *ctxutil.RequestData, datasetID string) ([]*types.Widget, error)
	DeleteByUser(ctx context.Context, caller *ctxutil.RequestData, userID string) (deleted, protected []*types.Widget, err error)
	UpdateEnvironment(ctx context.Context, caller *ctxutil.RequestData, datasetID, env string) (int64, error)
}

type widgetService struct {
	db          *gorm.DB
	log         *logger.Logger
	widgets     widgetrepo.WidgetRepo
	slugs       SlugService
	sorts       SortService
	includes    IncludeService
	thumbnails  ThumbnailService
	datasets    dataset.Client
	graphs      graph.Client
	meta        metadata.Client
	users       userdir.Client
	collections collection.Client
}

func NewWidgetService(
	db *gorm.DB,
	baseLog *logger.Logger,
	widgets widgetrepo.WidgetRepo,
	slugs SlugService,
	sorts SortService,
	includes IncludeService,
	thumbnails ThumbnailService,
	datasets dataset.Client,
	graphs graph.Client,
	meta metadata.Client,
	users userdir.Client,
	collections collection.Client,
) WidgetService {
	return &widgetService{
		db:          db,
		log:         baseLog.With("service", "WidgetService"),
		widgets:     widgets,
		slugs:       slugs,
		sorts:       sorts,
		includes:    includes,
		thumbnails:  thumbnails,
		datasets:    datasets,
		graphs:      graphs,
		meta:        meta,
		users:       users,
		collections: collections,
	}
}

// --- reads ---

func (s *widgetService) Query(ctx context.Context, caller *ctxutil.RequestData, raw map[string]string) (*WidgetPage, error) {
	sortKeys := ParseSort(raw["sort"])
	if err := s.sorts.Authorize(caller, sortKeys); err != nil {
		return nil, err
	}

	var roleUserIDs []string
	if role := strings.TrimSpace(raw["usersRole"]); role != "" {
		ids, err := s.users.FindIDsByRole(ctx, role)
		if err != nil {
			return nil, apierr.Upstream("user directory", err)
		}
		if ids == nil {
			ids = []string{}
		}
		roleUserIDs = ids
	}

	// loggedUser restricts the listing to the caller's own widgets by
	// narrowing the same owner membership set usersRole feeds.
	if _, ok := raw["loggedUser"]; ok {
		if caller == nil || caller.UserID == "" {
			return nil, apierr.Forbidden("loggedUser filtering requires authentication")
		}
		own := []string{caller.UserID}
		if roleUserIDs != nil {
			own = intersect([][]string{roleUserIDs, own})
		}
		roleUserIDs = own
	}

	allowIDs, err := s.resolveAllowList(ctx, caller, raw)
	if err != nil {
		return nil, err
	}

	filter := TranslateQuery(raw, roleUserIDs, allowIDs)
	page := parsePage(raw)

	var (
		widgets []*types.Widget
		total   int64
	)
	if userKey, joined := UserSortKey(sortKeys); joined {
		all, err := s.widgets.ListAll(ctx, nil, filter)
		if err != nil {
			return nil, err
		}
		widgets, total, err = s.sorts.OrderAndPage(ctx, all, userKey, page)
		if err != nil {
			return nil, err
		}
	} else {
		widgets, total, err = s.widgets.List(ctx, nil, filter, sortKeys, page)
		if errors.Is(err, widgetrepo.ErrBadQuery) {
			return nil, apierr.Invalid("invalid query: %v", err)
		}
		if err != nil {
			return nil, err
		}
	}

	enriched := s.includes.Attach(ctx, caller, widgets, includeOptions(raw))
	page = page.Normalized()
	return &WidgetPage{Data: enriched, Total: total, Page: page.Number, PageSize: page.Size}, nil
}

func (s *widgetService) Get(ctx context.Context, caller *ctxutil.RequestData, idOrSlug, datasetConstraint string, raw map[string]string) (*types.WidgetWithRelations, error) {
	w, err := s.resolve(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if datasetConstraint != "" && w.Dataset != datasetConstraint {
		return nil, apierr.NotFound("widget with id %s not found for dataset %s", idOrSlug, datasetConstraint)
	}
	enriched := s.includes.Attach(ctx, caller, []*types.Widget{w}, includeOptions(raw))
	return enriched[0], nil
}

// resolveAllowList turns explicit ids, a collection flag, or a favourite flag
// into a widget-id allow-list. Collection/favourite resolution failures are
// fatal for the query.
func (s *widgetService) resolveAllowList(ctx context.Context, caller *ctxutil.RequestData, raw map[string]string) ([]string, error) {
	var lists [][]string

	if ids, ok := raw["ids"]; ok {
		lists = append(lists, splitTrim(ids, ","))
	}

	if collectionIDs, ok := raw["collection"]; ok {
		if caller == nil {
			return nil, apierr.Forbidden("collection filtering requires authentication")
		}
		cols, err := s.collections.FindByIDs(ctx, splitTrim(collectionIDs, ","), caller.UserID)
		if err != nil {
			return nil, apierr.Upstream("collection", err)
		}
		var ids []string
		for _, col := range cols {
			for _, r := range col.Resources {
				if r.Type == "widget" {
					ids = append(ids, r.ID)
				}
			}
		}
		if ids == nil {
			ids = []string{}
		}
		lists = append(lists, ids)
	}

	if fav := strings.TrimSpace(raw["favourite"]); fav != "" {
		if caller == nil {
			return nil, apierr.Forbidden("favourite filtering requires authentication")
		}
		ids, err := s.collections.FindFavouriteIDs(ctx, caller.UserID)
		if err != nil {
			return nil, apierr.Upstream("collection", err)
		}
		if ids == nil {
			ids = []string{}
		}
		lists = append(lists, ids)
	}

	if len(lists) == 0 {
		return nil, nil
	}
	return intersect(lists), nil
}

// --- mutations ---

func (s *widgetService) Create(ctx context.Context, caller *ctxutil.RequestData, datasetID string, in CreateWidgetInput) (*types.Widget, error) {
	if caller == nil {
		return nil, apierr.Forbidden("authentication required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, apierr.Invalid("widget name is required")
	}
	if len(in.Application) == 0 {
		return nil, apierr.Invalid("widget application must not be empty")
	}
	if err := s.checkDataset(ctx, datasetID); err != nil {
		return nil, err
	}

	slug, err := s.slugs.Allocate(ctx, nil, in.Name)
	if err != nil {
		return nil, err
	}

	env := strings.TrimSpace(in.Env)
	if env == "" {
		env = types.DefaultEnv
	}
	published := true
	if in.Published != nil {
		published = *in.Published
	}

	w := &types.Widget{
		ID:                    uuid.NewString(),
		Dataset:               datasetID,
		Name:                  in.Name,
		Slug:                  slug,
		Description:           in.Description,
		Source:                in.Source,
		SourceURL:             in.SourceURL,
		Authors:               in.Authors,
		QueryURL:              in.QueryURL,
		Application:           in.Application,
		Env:                   env,
		Verified:              in.Verified,
		Default:               in.Default,
		Published:             published,
		Protected:             in.Protected,
		Freeze:                in.Freeze,
		Template:              in.Template,
		DefaultEditableWidget: in.DefaultEditableWidget,
		WidgetConfig:          in.WidgetConfig,
		LayerID:               in.LayerID,
		UserID:                caller.UserID,
	}

	if _, err := s.widgets.Create(ctx, nil, w); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apierr.Conflict("widget slug %q already exists", slug)
		}
		return nil, err
	}

	// Graph registration is the one step with rollback: a failure here
	// compensating-deletes the record we just wrote.
	if err := s.graphs.CreateNode(ctx, w.Dataset, w.ID); err != nil {
		if delErr := s.widgets.Delete(ctx, nil, w.ID); delErr != nil {
			s.log.Error("compensating delete failed after graph registration error",
				"widget_id", w.ID, "error", delErr)
		}
		return nil, apierr.Upstream("graph", err)
	}

	s.thumbnails.Dispatch(w.ID)
	return w, nil
}

func (s *widgetService) Update(ctx context.Context, caller *ctxutil.RequestData, datasetConstraint, idOrSlug string, in UpdateWidgetInput) (*types.Widget, error) {
	if caller == nil {
		return nil, apierr.Forbidden("authentication required")
	}
	w, err := s.resolve(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if datasetConstraint != "" && w.Dataset != datasetConstraint {
		return nil, apierr.NotFound("widget with id %s not found for dataset %s", idOrSlug, datasetConstraint)
	}
	if err := s.canMutate(caller, w); err != nil {
		return nil, err
	}

	applyUpdate(w, in)
	if len(w.Application) == 0 {
		return nil, apierr.Invalid("widget application must not be empty")
	}
	if err := s.checkDataset(ctx, w.Dataset); err != nil {
		return nil, err
	}

	if err := s.widgets.Update(ctx, nil, w); err != nil {
		return nil, err
	}
	s.thumbnails.Dispatch(w.ID)
	return w, nil
}

func (s *widgetService) Clone(ctx context.Context, caller *ctxutil.RequestData, datasetConstraint, idOrSlug string, in CloneWidgetInput) (*types.Widget, error) {
	if caller == nil {
		return nil, apierr.Forbidden("authentication required")
	}
	src, err := s.resolve(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if datasetConstraint != "" && src.Dataset != datasetConstraint {
		return nil, apierr.NotFound("widget with id %s not found for dataset %s", idOrSlug, datasetConstraint)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = fmt.Sprintf("%s - %d", src.Name, time.Now().UnixMilli())
	}

	// Explicit allow-list copy: identity, slug and timestamps never carry
	// over; the clone belongs to the acting identity.
	published := src.Published
	input := CreateWidgetInput{
		Name:                  name,
		Description:           src.Description,
		Source:                src.Source,
		SourceURL:             src.SourceURL,
		Authors:               src.Authors,
		QueryURL:              src.QueryURL,
		Application:           append([]string(nil), src.Application...),
		Env:                   src.Env,
		Verified:              src.Verified,
		Default:               src.Default,
		Published:             &published,
		Freeze:                src.Freeze,
		Template:              src.Template,
		DefaultEditableWidget: src.DefaultEditableWidget,
		WidgetConfig:          src.WidgetConfig,
		LayerID:               src.LayerID,
	}
	// Create inherits compensation and thumbnail dispatch; the source's own
	// thumbnail job may still be in flight, so a clone can trigger a second,
	// redundant screenshot.
	return s.Create(ctx, caller, src.Dataset, input)
}

func (s *widgetService) Delete(ctx context.Context, caller *ctxutil.RequestData, datasetConstraint, idOrSlug string) (*types.Widget, error) {
	if caller == nil {
		return nil, apierr.Forbidden("authentication required")
	}
	w, err := s.resolve(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if datasetConstraint != "" && w.Dataset != datasetConstraint {
		return nil, apierr.NotFound("widget with id %s not found for dataset %s", idOrSlug, datasetConstraint)
	}
	if err := s.canMutate(caller, w); err != nil {
		return nil, err
	}
	if w.Protected {
		return nil, apierr.Protected("widget is protected and cannot be deleted")
	}
	if err := s.deleteSequence(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// deleteSequence runs the three-step removal for one widget: best-effort
// graph deregistration, best-effort metadata deletion, then the
// authoritative local hard delete. Step order is fixed.
func (s *widgetService) deleteSequence(ctx context.Context, w *types.Widget) error {
	if err := s.graphs.DeleteNode(ctx, w.ID); err != nil {
		s.log.Warn("graph deregistration failed; continuing delete",
			"widget_id", w.ID, "error", err)
	}
	if err := s.meta.DeleteMetadata(ctx, w.Dataset, w.ID); err != nil {
		s.log.Warn("metadata deletion failed; continuing delete",
			"widget_id", w.ID, "dataset", w.Dataset, "error", err)
	}
	return s.widgets.Delete(ctx, nil, w.ID)
}

func (s *widgetService) DeleteByDataset(ctx context.Context, caller *ctxutil.RequestData, datasetID string) ([]*types.Widget, error) {
	if !caller.Elevated() {
		return nil, apierr.Forbidden("deleting all dataset widgets requires elevated permissions")
	}
	all, err := s.widgets.ListByDataset(ctx, nil, datasetID)
	if err != nil {
		return nil, err
	}

	var candidates []*types.Widget
	for _, w := range all {
		if w.Protected {
			s.log.Warn("skipping protected widget in dataset delete",
				"widget_id", w.ID, "dataset", datasetID)
			continue
		}
		candidates = append(candidates, w)
	}

	deleted, err := s.deleteMany(ctx, candidates)
	if err != nil {
		return deleted, err
	}
	return deleted, nil
}

func (s *widgetService) DeleteByUser(ctx context.Context, caller *ctxutil.RequestData, userID string) ([]*types.Widget, []*types.Widget, error) {
	if !caller.Elevated() && (caller == nil || caller.UserID != userID) {
		return nil, nil, apierr.Forbidden("cannot delete widgets belonging to another user")
	}
	// Every environment: the partition must be exhaustive over all of this
	// user's widgets.
	all, err := s.widgets.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, nil, err
	}

	protected := make([]*types.Widget, 0)
	candidates := make([]*types.Widget, 0, len(all))
	for _, w := range all {
		if w.Protected {
			protected = append(protected, w)
			continue
		}
		candidates = append(candidates, w)
	}

	deleted, err := s.deleteMany(ctx, candidates)
	if err != nil {
		return deleted, protected, err
	}
	return deleted, protected, nil
}

// deleteMany applies the per-widget three-step sequence, parallel across
// widgets but never interleaving the sub-steps of one widget.
func (s *widgetService) deleteMany(ctx context.Context, widgets []*types.Widget) ([]*types.Widget, error) {
	var (
		mu      sync.Mutex
		deleted = make([]*types.Widget, 0, len(widgets))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, w := range widgets {
		g.Go(func() error {
			if err := s.deleteSequence(gctx, w); err != nil {
				return err
			}
			mu.Lock()
			deleted = append(deleted, w)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return deleted, err
}

func (s *widgetService) UpdateEnvironment(ctx context.Context, caller *ctxutil.RequestData, datasetID, env string) (int64, error) {
	if caller == nil || !caller.Service {
		return 0, apierr.Forbidden("environment changes are restricted to service callers")
	}
	env = strings.TrimSpace(env)
	if env == "" {
		return 0, apierr.Invalid("environment must not be empty")
	}
	return s.widgets.UpdateEnvByDataset(ctx, nil, datasetID, env)
}

// --- helpers ---

// resolve looks a widget up by id, falling back to slug. The id column is
// uuid-typed, so the id lookup only runs for well-formed uuids.
func (s *widgetService) resolve(ctx context.Context, idOrSlug string) (*types.Widget, error) {
	var (
		w   *types.Widget
		err error
	)
	if _, parseErr := uuid.Parse(idOrSlug); parseErr == nil {
		w, err = s.widgets.GetByID(ctx, nil, idOrSlug)
		if err != nil {
			return nil, err
		}
	}
	if w == nil {
		w, err = s.widgets.GetBySlug(ctx, nil, idOrSlug)
		if err != nil {
			return nil, err
		}
	}
	if w == nil {
		return nil, apierr.NotFound("widget with id %s not found", idOrSlug)
	}
	return w, nil
}

func (s *widgetService) checkDataset(ctx context.Context, datasetID string) error {
	err := s.datasets.Exists(ctx, datasetID)
	if err == nil {
		return nil
	}
	if httpx.IsNotFoundStatus(err) {
		return apierr.NotFound("dataset %s not found", datasetID)
	}
	return apierr.Upstream("dataset", err)
}

func (s *widgetService) canMutate(caller *ctxutil.RequestData, w *types.Widget) error {
	if caller.Elevated() {
		return nil
	}
	if caller != nil && caller.UserID != "" && caller.UserID == w.UserID {
		return nil
	}
	return apierr.Forbidden("caller does not own widget %s", w.ID)
}

func applyUpdate(w *types.Widget, in UpdateWidgetInput) {
	if in.Dataset != nil {
		w.Dataset = *in.Dataset
	}
	if in.Name != nil {
		w.Name = *in.Name
	}
	if in.Description != nil {
		w.Description = *in.Description
	}
	if in.Source != nil {
		w.Source = *in.Source
	}
	if in.SourceURL != nil {
		w.SourceURL = *in.SourceURL
	}
	if in.Authors != nil {
		w.Authors = *in.Authors
	}
	if in.QueryURL != nil {
		w.QueryURL = *in.QueryURL
	}
	if in.Application != nil {
		w.Application = *in.Application
	}
	if in.Env != nil {
		w.Env = *in.Env
	}
	if in.Verified != nil {
		w.Verified = *in.Verified
	}
	if in.Default != nil {
		w.Default = *in.Default
	}
	if in.Published != nil {
		w.Published = *in.Published
	}
	if in.Protected != nil {
		w.Protected = *in.Protected
	}
	if in.Freeze != nil {
		w.Freeze = *in.Freeze
	}
	if in.Template != nil {
		w.Template = *in.Template
	}
	if in.DefaultEditableWidget != nil {
		w.DefaultEditableWidget = *in.DefaultEditableWidget
	}
	if in.WidgetConfig != nil {
		w.WidgetConfig = in.WidgetConfig
	} else if in.has("widgetConfig") {
		w.WidgetConfig = nil
	}
	if in.LayerID != nil {
		w.LayerID = *in.LayerID
	} else if in.has("layerId") {
		w.LayerID = ""
	}
}

func parsePage(raw map[string]string) types.Page {
	p := types.Page{Number: 1, Size: 10}
	if n, err := strconv.Atoi(strings.TrimSpace(raw["page[number]"])); err == nil && n > 0 {
		p.Number = n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(raw["page[size]"])); err == nil && n > 0 {
		p.Size = n
	}
	return p.Normalized()
}

func includeOptions(raw map[string]string) IncludeOptions {
	opts := IncludeOptions{Includes: splitTrim(raw["includes"], ",")}
	env := strings.TrimSpace(raw["env"])
	if env == "" {
		env = types.DefaultEnv
	}
	if env != "all" {
		opts.Env = env
	}
	_, opts.FilterByEnv = raw["filterIncludesByEnv"]
	return opts
}

func intersect(lists [][]string) []string {
	if len(lists) == 1 {
		return lists[0]
	}
	counts := map[string]int{}
	for _, list := range lists {
		seen := map[string]struct{}{}
		for _, id := range list {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			counts[id]++
		}
	}
	out := []string{}
	for _, id := range lists[0] {
		if counts[id] == len(lists) {
			out = append(out, id)
			counts[id] = 0
		}
	}
	return out
}
