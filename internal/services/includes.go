package services

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/openviz/widget-service/internal/clients/metadata"
	"github.com/openviz/widget-service/internal/clients/userdir"
	"github.com/openviz/widget-service/internal/clients/vocabulary"
	types "github.com/openviz/widget-service/internal/domain"
	"github.com/openviz/widget-service/internal/platform/ctxutil"
	"github.com/openviz/widget-service/internal/platform/logger"
)

const (
	IncludeUser       = "user"
	IncludeVocabulary = "vocabulary"
	IncludeMetadata   = "metadata"
)

// IncludeOptions selects which relationships to attach to a result page.
// Env is only passed to the vocabulary/metadata services when FilterByEnv
// was explicitly requested; the primary list being env-filtered does not
// imply the includes are.
type IncludeOptions struct {
	Includes    []string
	Env         string
	FilterByEnv bool
}

func (o IncludeOptions) wants(name string) bool {
	for _, inc := range o.Includes {
		if inc == name {
			return true
		}
	}
	return false
}

func (o IncludeOptions) includeEnv() string {
	if o.FilterByEnv {
		return o.Env
	}
	return ""
}

// IncludeService enriches an already-paginated widget page with externally
// owned relationships. Fetching is per-widget, per-include, independently
// fallible: a failed fetch is logged and that relationship omitted; it never
// fails the enclosing operation.
type IncludeService interface {
	Attach(ctx context.Context, caller *ctxutil.RequestData, widgets []*types.Widget, opts IncludeOptions) []*types.WidgetWithRelations
}

type includeService struct {
	log   *logger.Logger
	users userdir.Client
	vocab vocabulary.Client
	meta  metadata.Client
}

func NewIncludeService(
	baseLog *logger.Logger,
	users userdir.Client,
	vocab vocabulary.Client,
	meta metadata.Client,
) IncludeService {
	return &includeService{
		log:   baseLog.With("service", "IncludeService"),
		users: users,
		vocab: vocab,
		meta:  meta,
	}
}

func (s *includeService) Attach(ctx context.Context, caller *ctxutil.RequestData, widgets []*types.Widget, opts IncludeOptions) []*types.WidgetWithRelations {
	out := make([]*types.WidgetWithRelations, len(widgets))
	for i, w := range widgets {
		out[i] = &types.WidgetWithRelations{Widget: w}
	}
	if len(widgets) == 0 || len(opts.Includes) == 0 {
		return out
	}

	// Concurrent fetching is an optimization only; every failure stays
	// contained to the relationship it was fetching.
	var g errgroup.Group
	gctx := ctx
	if opts.wants(IncludeUser) {
		g.Go(func() error {
			s.attachUsers(gctx, caller, out)
			return nil
		})
	}
	if opts.wants(IncludeMetadata) {
		g.Go(func() error {
			s.attachMetadata(gctx, out, opts.includeEnv())
			return nil
		})
	}
	if opts.wants(IncludeVocabulary) {
		g.Go(func() error {
			s.attachVocabulary(gctx, out, opts.includeEnv())
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *includeService) attachUsers(ctx context.Context, caller *ctxutil.RequestData, out []*types.WidgetWithRelations) {
	distinct := map[string]struct{}{}
	ids := make([]string, 0, len(out))
	for _, w := range out {
		if w.UserID == "" {
			continue
		}
		if _, seen := distinct[w.UserID]; seen {
			continue
		}
		distinct[w.UserID] = struct{}{}
		ids = append(ids, w.UserID)
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		s.log.Warn("user include fetch failed", "count", len(ids), "error", err)
		return
	}
	byID := make(map[string]types.UserRecord, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	// Role exposure is a projection decision about the viewer, not about
	// whose data is being viewed.
	exposeRole := caller.IsAdmin()
	for _, w := range out {
		u, ok := byID[w.UserID]
		if !ok {
			continue
		}
		summary := &types.UserSummary{Name: u.Name, Email: u.Email}
		if exposeRole {
			summary.Role = u.Role
		}
		w.User = summary
	}
}

func (s *includeService) attachMetadata(ctx context.Context, out []*types.WidgetWithRelations, env string) {
	ids := make([]string, 0, len(out))
	for _, w := range out {
		ids = append(ids, w.ID)
	}
	records, err := s.meta.FindByIDs(ctx, ids, env)
	if err != nil {
		s.log.Warn("metadata include fetch failed", "count", len(ids), "error", err)
		return
	}
	byWidget := make(map[string][]types.Metadata, len(records))
	for _, m := range records {
		byWidget[m.ResourceID] = append(byWidget[m.ResourceID], m)
	}
	for _, w := range out {
		if md, ok := byWidget[w.ID]; ok {
			w.Metadata = md
		}
	}
}

func (s *includeService) attachVocabulary(ctx context.Context, out []*types.WidgetWithRelations, env string) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, 8)
	for _, w := range out {
		wg.Add(1)
		sem <- struct{}{}
		go func(w *types.WidgetWithRelations) {
			defer wg.Done()
			defer func() { <-sem }()
			vocab, err := s.vocab.GetByWidget(ctx, w.Dataset, w.ID, env)
			if err != nil {
				s.log.Warn("vocabulary include fetch failed",
					"widget_id", w.ID, "dataset", w.Dataset, "error", err)
				return
			}
			w.Vocabulary = vocab
		}(w)
	}
	wg.Wait()
}
