package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"gorm.io/datatypes"

	types "github.com/openviz/widget-service/internal/domain"
	"github.com/openviz/widget-service/internal/platform/apierr"
	"github.com/openviz/widget-service/internal/platform/ctxutil"
)

type widgetFixture struct {
	repo   *fakeWidgetRepo
	ds     *fakeDataset
	graph  *fakeGraph
	shots  *fakeScreenshot
	meta   *fakeMetadata
	vocab  *fakeVocabulary
	users  *fakeUsers
	cols   *fakeCollections
	thumbs ThumbnailService
	svc    WidgetService
}

func newWidgetFixture(t *testing.T) *widgetFixture {
	t.Helper()
	log := testLogger(t)
	f := &widgetFixture{
		repo:  newFakeWidgetRepo(),
		ds:    &fakeDataset{missing: map[string]bool{}},
		graph: &fakeGraph{},
		shots: &fakeScreenshot{},
		meta:  &fakeMetadata{byWidget: map[string][]types.Metadata{}},
		vocab: &fakeVocabulary{byWidget: map[string][]types.Vocabulary{}},
		users: &fakeUsers{byID: map[string]types.UserRecord{}, roleIDs: map[string][]string{}},
		cols:  &fakeCollections{},
	}
	f.thumbs = NewThumbnailService(log, f.shots, f.repo)
	f.svc = NewWidgetService(
		nil, log, f.repo,
		NewSlugService(log, f.repo),
		NewSortService(log, f.users),
		NewIncludeService(log, f.users, f.vocab, f.meta),
		f.thumbs,
		f.ds, f.graph, f.meta, f.users, f.cols,
	)
	return f
}

func adminCaller() *ctxutil.RequestData {
	return &ctxutil.RequestData{UserID: "admin-1", Role: ctxutil.RoleAdmin}
}

func userCaller(id string) *ctxutil.RequestData {
	return &ctxutil.RequestData{UserID: id, Role: ctxutil.RoleUser}
}

func serviceCaller() *ctxutil.RequestData {
	return &ctxutil.RequestData{Service: true}
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }

func mustCreate(t *testing.T, f *widgetFixture, caller *ctxutil.RequestData, dataset string, in CreateWidgetInput) *types.Widget {
	t.Helper()
	w, err := f.svc.Create(context.Background(), caller, dataset, in)
	if err != nil {
		t.Fatalf("Create(%q): %v", in.Name, err)
	}
	return w
}

func TestCreateGetRoundTrip(t *testing.T) {
	f := newWidgetFixture(t)
	caller := userCaller("user-1")

	w := mustCreate(t, f, caller, "ds-1", CreateWidgetInput{
		Name:        "Widget default",
		Application: []string{"viz"},
	})

	if w.Slug != "widget-default" {
		t.Fatalf("slug: want=widget-default got=%s", w.Slug)
	}
	if w.Env != types.DefaultEnv {
		t.Fatalf("env default: want=%s got=%s", types.DefaultEnv, w.Env)
	}
	if !w.Published {
		t.Fatalf("published default: want=true got=false")
	}
	if w.UserID != "user-1" {
		t.Fatalf("owner: want=user-1 got=%s", w.UserID)
	}
	if len(f.graph.created) != 1 || f.graph.created[0] != w.ID {
		t.Fatalf("graph registration: want=[%s] got=%v", w.ID, f.graph.created)
	}

	byID, err := f.svc.Get(context.Background(), caller, w.ID, "", nil)
	if err != nil {
		t.Fatalf("Get by id: %v", err)
	}
	bySlug, err := f.svc.Get(context.Background(), caller, w.Slug, "", nil)
	if err != nil {
		t.Fatalf("Get by slug: %v", err)
	}
	if byID.ID != w.ID || bySlug.ID != w.ID {
		t.Fatalf("round trip ids: want=%s got id=%s slug=%s", w.ID, byID.ID, bySlug.ID)
	}
	if byID.Name != "Widget default" {
		t.Fatalf("round trip name: want=%q got=%q", "Widget default", byID.Name)
	}

	f.thumbs.Wait()
	stored, _ := f.repo.GetByID(context.Background(), nil, w.ID)
	if stored.ThumbnailURL == "" {
		t.Fatalf("thumbnail url not written back after dispatch")
	}
}

func TestCreateSlugCollisionSuffix(t *testing.T) {
	f := newWidgetFixture(t)
	caller := userCaller("user-1")

	first := mustCreate(t, f, caller, "ds-1", CreateWidgetInput{Name: "Widget default", Application: []string{"viz"}})
	second := mustCreate(t, f, caller, "ds-1", CreateWidgetInput{Name: "Widget default", Application: []string{"viz"}})

	if first.Slug != "widget-default" || second.Slug != "widget-default_1" {
		t.Fatalf("slugs: want=widget-default/widget-default_1 got=%s/%s", first.Slug, second.Slug)
	}
}

func TestCreateGraphFailureCompensates(t *testing.T) {
	f := newWidgetFixture(t)
	f.graph.createErr = errors.New("graph down")

	_, err := f.svc.Create(context.Background(), userCaller("user-1"), "ds-1", CreateWidgetInput{
		Name:        "Doomed",
		Application: []string{"viz"},
	})
	if err == nil {
		t.Fatalf("expected upstream error, got nil")
	}
	if got := apierr.Status(err); got != http.StatusInternalServerError {
		t.Fatalf("status: want=500 got=%d", got)
	}
	if n := f.repo.count(); n != 0 {
		t.Fatalf("compensating delete: want=0 stored widgets got=%d", n)
	}
}

func TestCreateMissingDataset(t *testing.T) {
	f := newWidgetFixture(t)
	f.ds.missing["ds-nope"] = true

	_, err := f.svc.Create(context.Background(), userCaller("user-1"), "ds-nope", CreateWidgetInput{
		Name:        "Orphan",
		Application: []string{"viz"},
	})
	if got := apierr.Status(err); got != http.StatusNotFound {
		t.Fatalf("status: want=404 got=%d (err=%v)", got, err)
	}
	if n := f.repo.count(); n != 0 {
		t.Fatalf("nothing should be persisted, got %d widgets", n)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newWidgetFixture(t)
	caller := userCaller("user-1")

	cases := []CreateWidgetInput{
		{Name: "", Application: []string{"viz"}},
		{Name: "No apps", Application: nil},
	}
	for i, in := range cases {
		if _, err := f.svc.Create(context.Background(), caller, "ds-1", in); apierr.Status(err) != http.StatusBadRequest {
			t.Fatalf("case %d: want=400 got=%v", i, err)
		}
	}
}

func TestUpdateExplicitFalseApplies(t *testing.T) {
	f := newWidgetFixture(t)
	caller := userCaller("user-1")
	w := mustCreate(t, f, caller, "ds-1", CreateWidgetInput{
		Name:        "Flags",
		Application: []string{"viz"},
		Verified:    true,
	})

	updated, err := f.svc.Update(context.Background(), caller, "", w.ID, UpdateWidgetInput{
		Verified:  boolPtr(false),
		Published: boolPtr(false),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Verified || updated.Published {
		t.Fatalf("explicit false: want verified=false published=false got=%v/%v", updated.Verified, updated.Published)
	}
	if updated.Name != "Flags" {
		t.Fatalf("absent field changed: want=Flags got=%s", updated.Name)
	}
	if len(updated.Application) != 1 || updated.Application[0] != "viz" {
		t.Fatalf("absent application changed: got=%v", updated.Application)
	}
	if updated.Slug != w.Slug {
		t.Fatalf("slug must not change on update: want=%s got=%s", w.Slug, updated.Slug)
	}
}

func TestUpdateExplicitNullClearsReferences(t *testing.T) {
	f := newWidgetFixture(t)
	caller := userCaller("user-1")
	w := mustCreate(t, f, caller, "ds-1", CreateWidgetInput{
		Name:         "Layered",
		Application:  []string{"viz"},
		LayerID:      "layer-7",
		WidgetConfig: datatypes.JSONMap{"type": "map"},
	})

	// A body that omits both references leaves them alone.
	var keep UpdateWidgetInput
	if err := json.Unmarshal([]byte(`{"description":"annotated"}`), &keep); err != nil {
		t.Fatalf("unmarshal keep body: %v", err)
	}
	updated, err := f.svc.Update(context.Background(), caller, "", w.ID, keep)
	if err != nil {
		t.Fatalf("Update keep: %v", err)
	}
	if updated.LayerID != "layer-7" || updated.WidgetConfig == nil {
		t.Fatalf("absent references changed: layer=%q config=%v", updated.LayerID, updated.WidgetConfig)
	}

	// An explicit null clears them.
	var clear UpdateWidgetInput
	if err := json.Unmarshal([]byte(`{"layerId":null,"widgetConfig":null}`), &clear); err != nil {
		t.Fatalf("unmarshal clear body: %v", err)
	}
	updated, err = f.svc.Update(context.Background(), caller, "", w.ID, clear)
	if err != nil {
		t.Fatalf("Update clear: %v", err)
	}
	if updated.LayerID != "" {
		t.Fatalf("null layerId: want cleared got=%q", updated.LayerID)
	}
	if updated.WidgetConfig != nil {
		t.Fatalf("null widgetConfig: want cleared got=%v", updated.WidgetConfig)
	}
}

func TestUpdateOwnership(t *testing.T) {
	f := newWidgetFixture(t)
	owner := userCaller("user-1")
	w := mustCreate(t, f, owner, "ds-1", CreateWidgetInput{Name: "Mine", Application: []string{"viz"}})

	_, err := f.svc.Update(context.Background(), userCaller("user-2"), "", w.ID, UpdateWidgetInput{Name: strPtr("Stolen")})
	if got := apierr.Status(err); got != http.StatusForbidden {
		t.Fatalf("non-owner status: want=403 got=%d (err=%v)", got, err)
	}

	if _, err := f.svc.Update(context.Background(), adminCaller(), "", w.ID, UpdateWidgetInput{Name: strPtr("Renamed")}); err != nil {
		t.Fatalf("admin update: %v", err)
	}
}

func TestDeleteProtectedRefused(t *testing.T) {
	f := newWidgetFixture(t)
	caller := userCaller("user-1")
	w := mustCreate(t, f, caller, "ds-1", CreateWidgetInput{
		Name:        "Keeper",
		Application: []string{"viz"},
		Protected:   true,
	})

	_, err := f.svc.Delete(context.Background(), caller, "", w.ID)
	if got := apierr.Code(err); got != "widget_protected" {
		t.Fatalf("code: want=widget_protected got=%s (err=%v)", got, err)
	}
	if got := apierr.Status(err); got != http.StatusBadRequest {
		t.Fatalf("status: want=400 got=%d", got)
	}
	if f.repo.count() != 1 {
		t.Fatalf("protected widget must survive, store has %d", f.repo.count())
	}
}

func TestDeleteThenDeleteAgain(t *testing.T) {
	f := newWidgetFixture(t)
	caller := userCaller("user-1")
	w := mustCreate(t, f, caller, "ds-1", CreateWidgetInput{Name: "Short lived", Application: []string{"viz"}})

	got, err := f.svc.Delete(context.Background(), caller, "", w.ID)
	if err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if got.ID != w.ID {
		t.Fatalf("deleted id: want=%s got=%s", w.ID, got.ID)
	}
	if len(f.graph.deleted) != 1 || f.graph.deleted[0] != w.ID {
		t.Fatalf("graph deregistration: want=[%s] got=%v", w.ID, f.graph.deleted)
	}
	if len(f.meta.deleted) != 1 || f.meta.deleted[0] != w.ID {
		t.Fatalf("metadata deletion: want=[%s] got=%v", w.ID, f.meta.deleted)
	}

	_, err = f.svc.Delete(context.Background(), caller, "", w.ID)
	if !apierr.IsNotFound(err) {
		t.Fatalf("second delete: want not-found got=%v", err)
	}
}

func TestDeleteBestEffortStepsDoNotBlock(t *testing.T) {
	f := newWidgetFixture(t)
	caller := userCaller("user-1")
	w := mustCreate(t, f, caller, "ds-1", CreateWidgetInput{Name: "Resilient", Application: []string{"viz"}})

	f.graph.deleteErr = errors.New("graph down")
	f.meta.deleteErr = errors.New("metadata down")

	if _, err := f.svc.Delete(context.Background(), caller, "", w.ID); err != nil {
		t.Fatalf("delete must succeed past best-effort failures: %v", err)
	}
	if f.repo.count() != 0 {
		t.Fatalf("local record must be gone, store has %d", f.repo.count())
	}
}

func TestDeleteByUserPartition(t *testing.T) {
	f := newWidgetFixture(t)
	owner := userCaller("user-9")
	for i := 0; i < 100; i++ {
		mustCreate(t, f, owner, "ds-1", CreateWidgetInput{
			Name:        fmt.Sprintf("plain %03d", i),
			Application: []string{"viz"},
		})
		mustCreate(t, f, owner, "ds-1", CreateWidgetInput{
			Name:        fmt.Sprintf("locked %03d", i),
			Application: []string{"viz"},
			Protected:   true,
		})
	}

	deleted, protected, err := f.svc.DeleteByUser(context.Background(), adminCaller(), "user-9")
	if err != nil {
		t.Fatalf("DeleteByUser: %v", err)
	}
	if len(deleted) != 100 || len(protected) != 100 {
		t.Fatalf("partition: want=100/100 got=%d/%d", len(deleted), len(protected))
	}
	for _, w := range protected {
		if !w.Protected {
			t.Fatalf("unprotected widget %s reported as protected", w.ID)
		}
	}
	if f.repo.count() != 100 {
		t.Fatalf("store after delete: want=100 got=%d", f.repo.count())
	}
	if f.graph.deletedCount() != 100 {
		t.Fatalf("graph deregistrations: want=100 got=%d", f.graph.deletedCount())
	}
}

func TestDeleteByUserAuthorization(t *testing.T) {
	f := newWidgetFixture(t)
	mustCreate(t, f, userCaller("user-1"), "ds-1", CreateWidgetInput{Name: "W", Application: []string{"viz"}})

	if _, _, err := f.svc.DeleteByUser(context.Background(), userCaller("user-2"), "user-1"); apierr.Status(err) != http.StatusForbidden {
		t.Fatalf("other user: want=403 got=%v", err)
	}
	if _, _, err := f.svc.DeleteByUser(context.Background(), userCaller("user-1"), "user-1"); err != nil {
		t.Fatalf("self delete: %v", err)
	}
}

func TestDeleteByDatasetSkipsProtected(t *testing.T) {
	f := newWidgetFixture(t)
	caller := adminCaller()
	mustCreate(t, f, caller, "ds-1", CreateWidgetInput{Name: "a", Application: []string{"viz"}})
	mustCreate(t, f, caller, "ds-1", CreateWidgetInput{Name: "b", Application: []string{"viz"}, Protected: true})
	mustCreate(t, f, caller, "ds-2", CreateWidgetInput{Name: "c", Application: []string{"viz"}})

	deleted, err := f.svc.DeleteByDataset(context.Background(), caller, "ds-1")
	if err != nil {
		t.Fatalf("DeleteByDataset: %v", err)
	}
	if len(deleted) != 1 || deleted[0].Name != "a" {
		t.Fatalf("deleted: want=[a] got=%v", names(deleted))
	}
	if f.repo.count() != 2 {
		t.Fatalf("store after delete: want=2 got=%d", f.repo.count())
	}

	if _, err := f.svc.DeleteByDataset(context.Background(), userCaller("user-1"), "ds-1"); apierr.Status(err) != http.StatusForbidden {
		t.Fatalf("plain user: want=403 got=%v", err)
	}
}

func TestCloneDefaults(t *testing.T) {
	f := newWidgetFixture(t)
	owner := userCaller("user-1")
	src := mustCreate(t, f, owner, "ds-1", CreateWidgetInput{
		Name:        "Original",
		Description: "desc",
		Application: []string{"viz"},
		Protected:   true,
	})

	cloner := userCaller("user-2")
	clone, err := f.svc.Clone(context.Background(), cloner, "", src.ID, CloneWidgetInput{})
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if !strings.HasPrefix(clone.Name, "Original - ") {
		t.Fatalf("default clone name: want prefix %q got=%q", "Original - ", clone.Name)
	}
	if clone.ID == src.ID || clone.Slug == src.Slug {
		t.Fatalf("clone must get fresh identity: id=%s slug=%s", clone.ID, clone.Slug)
	}
	if clone.UserID != "user-2" {
		t.Fatalf("clone owner: want=user-2 got=%s", clone.UserID)
	}
	if clone.Description != "desc" {
		t.Fatalf("copied field: want=desc got=%s", clone.Description)
	}
	if clone.Protected {
		t.Fatalf("clone must not inherit protection")
	}

	named, err := f.svc.Clone(context.Background(), cloner, "", src.ID, CloneWidgetInput{Name: "My copy"})
	if err != nil {
		t.Fatalf("named Clone: %v", err)
	}
	if named.Name != "My copy" {
		t.Fatalf("clone name: want=My copy got=%s", named.Name)
	}
}

func TestQueryEnvDefaults(t *testing.T) {
	f := newWidgetFixture(t)
	caller := userCaller("user-1")
	mustCreate(t, f, caller, "ds-1", CreateWidgetInput{Name: "prod a", Application: []string{"viz"}})
	mustCreate(t, f, caller, "ds-1", CreateWidgetInput{Name: "prod b", Application: []string{"viz"}})
	mustCreate(t, f, caller, "ds-1", CreateWidgetInput{Name: "stage", Application: []string{"viz"}, Env: "staging"})

	page, err := f.svc.Query(context.Background(), caller, map[string]string{})
	if err != nil {
		t.Fatalf("Query default env: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("default env filters to production: want=2 got=%d", page.Total)
	}

	page, err = f.svc.Query(context.Background(), caller, map[string]string{"env": "all"})
	if err != nil {
		t.Fatalf("Query env=all: %v", err)
	}
	if page.Total != 3 {
		t.Fatalf("env=all: want=3 got=%d", page.Total)
	}

	page, err = f.svc.Query(context.Background(), caller, map[string]string{"env": "staging"})
	if err != nil {
		t.Fatalf("Query env=staging: %v", err)
	}
	if page.Total != 1 || page.Data[0].Name != "stage" {
		t.Fatalf("env=staging: want=[stage] got total=%d", page.Total)
	}
}

func TestQueryDatasetScopedExact(t *testing.T) {
	f := newWidgetFixture(t)
	caller := userCaller("user-1")
	mine := mustCreate(t, f, caller, "ds-1", CreateWidgetInput{Name: "mine", Application: []string{"viz"}})
	mustCreate(t, f, caller, "ds-10", CreateWidgetInput{Name: "other", Application: []string{"viz"}})

	// The dataset constraint is an identifier, never a substring: ds-1
	// must not pick up ds-10.
	page, err := f.svc.Query(context.Background(), caller, map[string]string{"dataset": "ds-1"})
	if err != nil {
		t.Fatalf("Query dataset=ds-1: %v", err)
	}
	if page.Total != 1 || page.Data[0].ID != mine.ID {
		t.Fatalf("dataset scope leaked: want=[%s] got=%v", mine.ID, ids(page.Data))
	}
}

func TestQueryJoinedSort(t *testing.T) {
	f := newWidgetFixture(t)
	f.users.byID["user-b"] = types.UserRecord{ID: "user-b", Name: "Beate", Role: "MANAGER"}
	f.users.byID["user-a"] = types.UserRecord{ID: "user-a", Name: "Ada", Role: "ADMIN"}

	wa := mustCreate(t, f, userCaller("user-a"), "ds-1", CreateWidgetInput{Name: "by ada", Application: []string{"viz"}})
	wb := mustCreate(t, f, userCaller("user-b"), "ds-1", CreateWidgetInput{Name: "by beate", Application: []string{"viz"}})
	wx := mustCreate(t, f, userCaller("user-ghost"), "ds-1", CreateWidgetInput{Name: "orphaned", Application: []string{"viz"}})

	if _, err := f.svc.Query(context.Background(), userCaller("user-a"), map[string]string{"sort": "user.name"}); apierr.Status(err) != http.StatusForbidden {
		t.Fatalf("plain caller joined sort: want=403 got=%v", err)
	}

	page, err := f.svc.Query(context.Background(), adminCaller(), map[string]string{"sort": "user.name"})
	if err != nil {
		t.Fatalf("admin joined sort: %v", err)
	}
	if got := ids(page.Data); len(got) != 3 || got[0] != wx.ID || got[1] != wa.ID || got[2] != wb.ID {
		t.Fatalf("asc order (unresolved first): want=[%s %s %s] got=%v", wx.ID, wa.ID, wb.ID, got)
	}

	page, err = f.svc.Query(context.Background(), adminCaller(), map[string]string{"sort": "-user.name"})
	if err != nil {
		t.Fatalf("admin joined sort desc: %v", err)
	}
	if got := ids(page.Data); len(got) != 3 || got[0] != wb.ID || got[1] != wa.ID || got[2] != wx.ID {
		t.Fatalf("desc order (unresolved last): want=[%s %s %s] got=%v", wb.ID, wa.ID, wx.ID, got)
	}
}

func TestQueryAllowListIntersection(t *testing.T) {
	f := newWidgetFixture(t)
	caller := userCaller("user-1")
	w1 := mustCreate(t, f, caller, "ds-1", CreateWidgetInput{Name: "one", Application: []string{"viz"}})
	w2 := mustCreate(t, f, caller, "ds-1", CreateWidgetInput{Name: "two", Application: []string{"viz"}})
	mustCreate(t, f, caller, "ds-1", CreateWidgetInput{Name: "three", Application: []string{"viz"}})

	f.cols.favIDs = []string{w1.ID, w2.ID}

	page, err := f.svc.Query(context.Background(), caller, map[string]string{
		"favourite": "true",
		"ids":       w1.ID,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if page.Total != 1 || page.Data[0].ID != w1.ID {
		t.Fatalf("intersection: want=[%s] got=%v", w1.ID, ids(page.Data))
	}
}

func TestQueryFavouriteFailureIsFatal(t *testing.T) {
	f := newWidgetFixture(t)
	caller := userCaller("user-1")
	mustCreate(t, f, caller, "ds-1", CreateWidgetInput{Name: "one", Application: []string{"viz"}})

	f.cols.err = errors.New("collection down")
	_, err := f.svc.Query(context.Background(), caller, map[string]string{"favourite": "true"})
	if got := apierr.Code(err); got != "upstream_failure" {
		t.Fatalf("code: want=upstream_failure got=%s (err=%v)", got, err)
	}
}

func TestQueryUsersRole(t *testing.T) {
	f := newWidgetFixture(t)
	f.users.roleIDs["MANAGER"] = []string{"user-m"}
	wm := mustCreate(t, f, userCaller("user-m"), "ds-1", CreateWidgetInput{Name: "managed", Application: []string{"viz"}})
	mustCreate(t, f, userCaller("user-x"), "ds-1", CreateWidgetInput{Name: "other", Application: []string{"viz"}})

	page, err := f.svc.Query(context.Background(), adminCaller(), map[string]string{"usersRole": "MANAGER"})
	if err != nil {
		t.Fatalf("Query usersRole: %v", err)
	}
	if page.Total != 1 || page.Data[0].ID != wm.ID {
		t.Fatalf("role filter: want=[%s] got=%v", wm.ID, ids(page.Data))
	}
}

func TestUpdateEnvironmentServiceOnly(t *testing.T) {
	f := newWidgetFixture(t)
	mustCreate(t, f, userCaller("user-1"), "ds-1", CreateWidgetInput{Name: "a", Application: []string{"viz"}})
	mustCreate(t, f, userCaller("user-1"), "ds-1", CreateWidgetInput{Name: "b", Application: []string{"viz"}})
	mustCreate(t, f, userCaller("user-1"), "ds-2", CreateWidgetInput{Name: "c", Application: []string{"viz"}})

	if _, err := f.svc.UpdateEnvironment(context.Background(), adminCaller(), "ds-1", "staging"); apierr.Status(err) != http.StatusForbidden {
		t.Fatalf("admin token: want=403 got=%v", err)
	}

	n, err := f.svc.UpdateEnvironment(context.Background(), serviceCaller(), "ds-1", "staging")
	if err != nil {
		t.Fatalf("UpdateEnvironment: %v", err)
	}
	if n != 2 {
		t.Fatalf("rows affected: want=2 got=%d", n)
	}
}

func names(ws []*types.Widget) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Name
	}
	return out
}

func ids(ws []*types.WidgetWithRelations) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.ID
	}
	return out
}
