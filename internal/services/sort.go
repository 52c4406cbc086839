package services

import (
	"context"
	"sort"
	"strings"

	"github.com/openviz/widget-service/internal/clients/userdir"
	types "github.com/openviz/widget-service/internal/domain"
	"github.com/openviz/widget-service/internal/platform/apierr"
	"github.com/openviz/widget-service/internal/platform/ctxutil"
	"github.com/openviz/widget-service/internal/platform/logger"
)

const (
	sortUserRole = "user.role"
	sortUserName = "user.name"
)

// ParseSort turns a raw sort expression ("name,-createdAt") into sort keys.
func ParseSort(raw string) []types.SortKey {
	var keys []types.SortKey
	for _, part := range splitTrim(raw, ",") {
		desc := false
		if strings.HasPrefix(part, "-") {
			desc = true
			part = strings.TrimPrefix(part, "-")
		} else {
			part = strings.TrimPrefix(part, "+")
		}
		if part == "" {
			continue
		}
		keys = append(keys, types.SortKey{Field: part, Desc: desc})
	}
	return keys
}

// UserSortKey returns the first sort key owned by the user directory, if any.
func UserSortKey(keys []types.SortKey) (types.SortKey, bool) {
	for _, k := range keys {
		if k.Field == sortUserRole || k.Field == sortUserName {
			return k, true
		}
	}
	return types.SortKey{}, false
}

// SortService resolves sort keys that reference user-directory data. Those
// fields are not denormalized onto widgets, so ordering requires a directory
// lookup over every distinct owner in the candidate set.
type SortService interface {
	// Authorize rejects joined-sort requests from callers without elevated
	// identity. It must run before any data is touched.
	Authorize(caller *ctxutil.RequestData, keys []types.SortKey) error
	// OrderAndPage orders the full candidate set by the joined key and cuts
	// the requested page. Widgets whose owner does not resolve in the
	// directory sort first ascending and last descending, always.
	OrderAndPage(ctx context.Context, widgets []*types.Widget, key types.SortKey, page types.Page) ([]*types.Widget, int64, error)
}

type sortService struct {
	log   *logger.Logger
	users userdir.Client
}

func NewSortService(baseLog *logger.Logger, users userdir.Client) SortService {
	return &sortService{
		log:   baseLog.With("service", "SortService"),
		users: users,
	}
}

func (s *sortService) Authorize(caller *ctxutil.RequestData, keys []types.SortKey) error {
	if _, joined := UserSortKey(keys); !joined {
		return nil
	}
	if !caller.Elevated() {
		return apierr.Forbidden("sorting by user data requires elevated permissions")
	}
	return nil
}

func (s *sortService) OrderAndPage(ctx context.Context, widgets []*types.Widget, key types.SortKey, page types.Page) ([]*types.Widget, int64, error) {
	distinct := make(map[string]struct{}, len(widgets))
	ids := make([]string, 0, len(widgets))
	for _, w := range widgets {
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
		return nil, 0, apierr.Upstream("user directory", err)
	}
	byID := make(map[string]types.UserRecord, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	type entry struct {
		w          *types.Widget
		key        string
		unresolved bool
	}
	entries := make([]entry, len(widgets))
	for i, w := range widgets {
		u, ok := byID[w.UserID]
		e := entry{w: w, unresolved: !ok || w.UserID == ""}
		if !e.unresolved {
			if key.Field == sortUserRole {
				e.key = strings.ToLower(u.Role)
			} else {
				e.key = strings.ToLower(u.Name)
			}
		}
		entries[i] = e
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.unresolved != b.unresolved {
			// Unresolved owners pin to the start ascending, end descending.
			if key.Desc {
				return b.unresolved
			}
			return a.unresolved
		}
		if a.key != b.key {
			if key.Desc {
				return a.key > b.key
			}
			return a.key < b.key
		}
		// Secondary id key keeps ordering deterministic among ties.
		return a.w.ID < b.w.ID
	})

	total := int64(len(entries))
	page = page.Normalized()
	start := page.Offset()
	if start >= len(entries) {
		return []*types.Widget{}, total, nil
	}
	end := start + page.Size
	if end > len(entries) {
		end = len(entries)
	}
	out := make([]*types.Widget, 0, end-start)
	for _, e := range entries[start:end] {
		out = append(out, e.w)
	}
	return out, total, nil
}
