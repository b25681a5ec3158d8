package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/statelink/statelink/internal/config"
	"github.com/statelink/statelink/internal/domain"
	"github.com/statelink/statelink/internal/httpserver/deps"
	"github.com/statelink/statelink/internal/httpserver/mw"
	"github.com/statelink/statelink/internal/identity"
)

// nopLogger satisfies the logger contract without producing output.
type nopLogger struct{}

func (nopLogger) Debug(string, ...zap.Field) {}
func (nopLogger) Info(string, ...zap.Field)  {}
func (nopLogger) Warn(string, ...zap.Field)  {}
func (nopLogger) Error(string, ...zap.Field) {}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

func (nopLogger) Sync() error { return nil }

type fakePermalink struct {
	data  []byte
	group string
}

// fakeStore is an in-memory stand-in for the postgres adapter.
type fakeStore struct {
	failCreate bool
	pingErr    error

	permalinks     map[string]fakePermalink
	userPermalinks map[string][]byte
	records        map[string][]byte
	descriptions   map[string]string
	order          []string
	counter        int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		permalinks:     map[string]fakePermalink{},
		userPermalinks: map[string][]byte{},
		records:        map[string][]byte{},
		descriptions:   map[string]string{},
	}
}

func (f *fakeStore) nextKey() string {
	f.counter++
	return fmt.Sprintf("%09x", f.counter)
}

func recordKey(kind domain.RecordKind, owner, key string) string {
	return kind.String() + "|" + owner + "|" + key
}

func (f *fakeStore) CreatePermalink(_ context.Context, _ config.TenantConfig, data []byte, permittedGroup string) (string, *time.Time, error) {
	if f.failCreate {
		return "", nil, domain.ErrKeyExhausted
	}
	key := f.nextKey()
	f.permalinks[key] = fakePermalink{data: data, group: permittedGroup}
	return key, nil, nil
}

func (f *fakeStore) ResolvePermalink(_ context.Context, _ config.TenantConfig, key string) ([]byte, string, error) {
	row, ok := f.permalinks[key]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	return row.data, row.group, nil
}

func (f *fakeStore) UpsertUserPermalink(_ context.Context, _ config.TenantConfig, username string, data []byte) error {
	f.userPermalinks[username] = data
	return nil
}

func (f *fakeStore) GetUserPermalink(_ context.Context, _ config.TenantConfig, username string) ([]byte, error) {
	data, ok := f.userPermalinks[username]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (f *fakeStore) ListOwnerRecords(_ context.Context, _ config.TenantConfig, kind domain.RecordKind, owner string) ([]domain.RecordSummary, error) {
	out := []domain.RecordSummary{}
	prefix := kind.String() + "|" + owner + "|"
	for _, id := range f.order {
		if _, ok := f.records[id]; !ok {
			continue
		}
		if strings.HasPrefix(id, prefix) {
			out = append(out, domain.RecordSummary{
				Key:         strings.TrimPrefix(id, prefix),
				Description: f.descriptions[id],
			})
		}
	}
	return out, nil
}

func (f *fakeStore) CreateOwnerRecord(_ context.Context, _ config.TenantConfig, kind domain.RecordKind, owner string, data []byte, description string) (string, error) {
	if f.failCreate {
		return "", domain.ErrKeyExhausted
	}
	key := f.nextKey()
	id := recordKey(kind, owner, key)
	f.records[id] = data
	f.descriptions[id] = description
	f.order = append(f.order, id)
	return key, nil
}

func (f *fakeStore) GetOwnerRecord(_ context.Context, _ config.TenantConfig, kind domain.RecordKind, owner, key string) ([]byte, error) {
	data, ok := f.records[recordKey(kind, owner, key)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (f *fakeStore) ReplaceOwnerRecord(_ context.Context, _ config.TenantConfig, kind domain.RecordKind, owner, key string, data []byte, description string) error {
	id := recordKey(kind, owner, key)
	if _, ok := f.records[id]; !ok {
		return domain.ErrNotFound
	}
	f.records[id] = data
	f.descriptions[id] = description
	return nil
}

func (f *fakeStore) DeleteOwnerRecord(_ context.Context, _ config.TenantConfig, kind domain.RecordKind, owner, key string) error {
	delete(f.records, recordKey(kind, owner, key))
	return nil
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

var _ deps.Store = (*fakeStore)(nil)

// fakeGroups maps usernames to group memberships.
type fakeGroups map[string][]string

func (f fakeGroups) Groups(_ config.TenantConfig, username string) ([]string, error) {
	return f[username], nil
}

func testDeps(t *testing.T, store *fakeStore, groups fakeGroups) deps.Deps {
	t.Helper()
	tenants, err := config.LoadTenants("")
	require.NoError(t, err)
	return deps.Deps{
		Logger:       nopLogger{},
		StartTime:    time.Now(),
		Store:        store,
		Tenants:      tenants,
		TenantHeader: "X-Tenant",
		Identity:     identity.New("X-Auth-User"),
		Permissions:  groups,
	}
}

// testRouter mirrors the production route layout over the fake store.
func testRouter(d deps.Deps) http.Handler {
	r := chi.NewRouter()
	sub := r.With(mw.Tenant(d.Tenants, d.TenantHeader, d.Logger))

	sub.Post("/createpermalink", CreatePermalink(d))
	sub.Get("/resolvepermalink", ResolvePermalink(d))
	sub.Get("/userpermalink", GetUserPermalink(d))
	sub.Post("/userpermalink", SetUserPermalink(d))

	mount := func(path string, kind domain.RecordKind) {
		sub.Route(path, func(rr chi.Router) {
			rr.Get("/", ListRecords(d, kind))
			rr.Post("/", CreateRecord(d, kind))
			rr.Get("/{key}", GetRecord(d, kind))
			rr.Put("/{key}", ReplaceRecord(d, kind))
			rr.Delete("/{key}", DeleteRecord(d, kind))
		})
	}
	mount("/bookmarks", domain.Bookmarks)
	mount("/visibility_presets", domain.VisibilityPresets)

	r.Get("/ready", Ready(d))
	r.Get("/healthz", Healthz(d))
	return r
}

func doRequest(t *testing.T, h http.Handler, method, target, body, user string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if user != "" {
		req.Header.Set("X-Auth-User", user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndResolvePermalink(t *testing.T) {
	store := newFakeStore()
	h := testRouter(testDeps(t, store, nil))

	rec := doRequest(t, h, http.MethodPost, "/createpermalink?url=http://x/?a=1", `{"n":1}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		Permalink string  `json:"permalink"`
		Expires   *string `json:"expires"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, strings.HasPrefix(created.Permalink, "http://x/?k="), created.Permalink)
	assert.Nil(t, created.Expires)

	key := strings.TrimPrefix(created.Permalink, "http://x/?k=")
	rec = doRequest(t, h, http.MethodGet, "/resolvepermalink?key="+key, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"query":{"a":"1"},"state":{"n":1}}`, rec.Body.String())
}

func TestCreatePermalinkURLInBodyWins(t *testing.T) {
	store := newFakeStore()
	h := testRouter(testDeps(t, store, nil))

	rec := doRequest(t, h, http.MethodPost, "/createpermalink?url=http://ignored/", `{"url":"http://x/?b=2","n":1}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		Permalink string `json:"permalink"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.True(t, strings.HasPrefix(created.Permalink, "http://x/?k="), created.Permalink)

	key := strings.TrimPrefix(created.Permalink, "http://x/?k=")
	rec = doRequest(t, h, http.MethodGet, "/resolvepermalink?key="+key, "", "")
	// The url member must not leak into the stored state.
	assert.JSONEq(t, `{"query":{"b":"2"},"state":{"n":1}}`, rec.Body.String())
}

func TestCreatePermalinkWithoutURL(t *testing.T) {
	h := testRouter(testDeps(t, newFakeStore(), nil))

	rec := doRequest(t, h, http.MethodPost, "/createpermalink", `{"n":1}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"No URL specified"}`, rec.Body.String())
}

func TestCreatePermalinkStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.failCreate = true
	h := testRouter(testDeps(t, store, nil))

	rec := doRequest(t, h, http.MethodPost, "/createpermalink?url=http://x/", `{}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Failed to generate compact permalink"}`, rec.Body.String())
}

func TestResolvePermalinkMissingKey(t *testing.T) {
	h := testRouter(testDeps(t, newFakeStore(), nil))

	rec := doRequest(t, h, http.MethodGet, "/resolvepermalink", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolvePermalinkUnknownKey(t *testing.T) {
	h := testRouter(testDeps(t, newFakeStore(), nil))

	rec := doRequest(t, h, http.MethodGet, "/resolvepermalink?key=deadbeef0", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())
}

func TestResolveRestrictedPermalink(t *testing.T) {
	store := newFakeStore()
	groups := fakeGroups{"alice": {"gis"}, "bob": {"sales"}}
	h := testRouter(testDeps(t, store, groups))

	rec := doRequest(t, h, http.MethodPost, "/createpermalink?url=http://x/&permitted_group=gis", `{}`, "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	var created struct {
		Permalink string `json:"permalink"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	key := strings.TrimPrefix(created.Permalink, "http://x/?k=")

	authorized := doRequest(t, h, http.MethodGet, "/resolvepermalink?key="+key, "", "alice")
	assert.JSONEq(t, `{"query":{},"state":{}}`, authorized.Body.String())

	// Denial is indistinguishable from an unknown key.
	denied := doRequest(t, h, http.MethodGet, "/resolvepermalink?key="+key, "", "bob")
	anonymous := doRequest(t, h, http.MethodGet, "/resolvepermalink?key="+key, "", "")
	missing := doRequest(t, h, http.MethodGet, "/resolvepermalink?key=000000000", "", "bob")
	assert.Equal(t, http.StatusOK, denied.Code)
	assert.JSONEq(t, `{}`, denied.Body.String())
	assert.Equal(t, missing.Body.String(), denied.Body.String())
	assert.Equal(t, missing.Body.String(), anonymous.Body.String())
}

func TestUserPermalinkSingleton(t *testing.T) {
	store := newFakeStore()
	h := testRouter(testDeps(t, store, nil))

	rec := doRequest(t, h, http.MethodPost, "/userpermalink?url=http://x/?v=1", `{}`, "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = doRequest(t, h, http.MethodPost, "/userpermalink?url=http://x/?v=2", `{"layer":"roads"}`, "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	// The second write replaced the first; there is one slot per user.
	rec = doRequest(t, h, http.MethodGet, "/userpermalink", "", "alice")
	assert.JSONEq(t, `{"query":{"v":"2"},"state":{"layer":"roads"}}`, rec.Body.String())
}

func TestUserPermalinkAnonymous(t *testing.T) {
	h := testRouter(testDeps(t, newFakeStore(), nil))

	rec := doRequest(t, h, http.MethodGet, "/userpermalink", "", "")
	assert.JSONEq(t, `{}`, rec.Body.String())

	rec = doRequest(t, h, http.MethodPost, "/userpermalink?url=http://x/", `{}`, "")
	assert.JSONEq(t, `{"success":false}`, rec.Body.String())
}

func TestUserPermalinkUnset(t *testing.T) {
	h := testRouter(testDeps(t, newFakeStore(), nil))

	rec := doRequest(t, h, http.MethodGet, "/userpermalink", "", "alice")
	assert.JSONEq(t, `{}`, rec.Body.String())
}

func TestBookmarkLifecycle(t *testing.T) {
	store := newFakeStore()
	h := testRouter(testDeps(t, store, nil))

	rec := doRequest(t, h, http.MethodPost, "/bookmarks/?url=http://x/?a=1&description=home", `{"n":1}`, "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	var created struct {
		Success bool   `json:"success"`
		Key     string `json:"key"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.True(t, created.Success)
	require.NotEmpty(t, created.Key)

	rec = doRequest(t, h, http.MethodGet, "/bookmarks/"+created.Key, "", "alice")
	assert.JSONEq(t, `{"query":{"a":"1"},"state":{"n":1}}`, rec.Body.String())

	var listed []domain.RecordSummary
	rec = doRequest(t, h, http.MethodGet, "/bookmarks/", "", "alice")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, created.Key, listed[0].Key)
	assert.Equal(t, "home", listed[0].Description)

	rec = doRequest(t, h, http.MethodPut, "/bookmarks/"+created.Key+"?url=http://x/?a=2", `{}`, "alice")
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	rec = doRequest(t, h, http.MethodGet, "/bookmarks/"+created.Key, "", "alice")
	assert.JSONEq(t, `{"query":{"a":"2"},"state":{}}`, rec.Body.String())

	rec = doRequest(t, h, http.MethodDelete, "/bookmarks/"+created.Key, "", "alice")
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	rec = doRequest(t, h, http.MethodGet, "/bookmarks/"+created.Key, "", "alice")
	assert.JSONEq(t, `{}`, rec.Body.String())
}

func TestBookmarksIsolatedPerUser(t *testing.T) {
	store := newFakeStore()
	h := testRouter(testDeps(t, store, nil))

	rec := doRequest(t, h, http.MethodPost, "/bookmarks/?url=http://x/", `{}`, "alice")
	var created struct {
		Key string `json:"key"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doRequest(t, h, http.MethodGet, "/bookmarks/"+created.Key, "", "bob")
	assert.JSONEq(t, `{}`, rec.Body.String())

	rec = doRequest(t, h, http.MethodGet, "/bookmarks/", "", "bob")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestBookmarksAnonymous(t *testing.T) {
	h := testRouter(testDeps(t, newFakeStore(), nil))

	rec := doRequest(t, h, http.MethodGet, "/bookmarks/", "", "")
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = doRequest(t, h, http.MethodPost, "/bookmarks/?url=http://x/", `{}`, "")
	assert.JSONEq(t, `{"success":false}`, rec.Body.String())

	rec = doRequest(t, h, http.MethodDelete, "/bookmarks/abc", "", "")
	assert.JSONEq(t, `{"success":false}`, rec.Body.String())
}

func TestBookmarksPublicFallback(t *testing.T) {
	store := newFakeStore()
	d := testDeps(t, store, nil)
	d.AllowPublicBookmarks = true
	h := testRouter(d)

	rec := doRequest(t, h, http.MethodPost, "/bookmarks/?url=http://x/", `{}`, "")
	var created struct {
		Success bool   `json:"success"`
		Key     string `json:"key"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.True(t, created.Success)

	// Anonymous callers share the public partition.
	rec = doRequest(t, h, http.MethodGet, "/bookmarks/"+created.Key, "", "")
	assert.JSONEq(t, `{"query":{},"state":{}}`, rec.Body.String())

	// A signed-in user does not see the public records.
	rec = doRequest(t, h, http.MethodGet, "/bookmarks/"+created.Key, "", "alice")
	assert.JSONEq(t, `{}`, rec.Body.String())
}

func TestBookmarksBarePathServesList(t *testing.T) {
	store := newFakeStore()
	h := testRouter(testDeps(t, store, nil))

	rec := doRequest(t, h, http.MethodPost, "/bookmarks/?url=http://x/", `{}`, "alice")
	require.Equal(t, http.StatusOK, rec.Code)

	// The mount point answers without a trailing slash too.
	rec = doRequest(t, h, http.MethodGet, "/bookmarks", "", "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []domain.RecordSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)
}

func TestDeleteRecordIdempotent(t *testing.T) {
	h := testRouter(testDeps(t, newFakeStore(), nil))

	rec := doRequest(t, h, http.MethodDelete, "/bookmarks/unknown99", "", "alice")
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
}

func TestReplaceAbsentRecordFails(t *testing.T) {
	h := testRouter(testDeps(t, newFakeStore(), nil))

	rec := doRequest(t, h, http.MethodPut, "/bookmarks/unknown99?url=http://x/", `{}`, "alice")
	assert.JSONEq(t, `{"success":false}`, rec.Body.String())
}

func TestVisibilityPresetsStoreVerbatim(t *testing.T) {
	store := newFakeStore()
	h := testRouter(testDeps(t, store, nil))

	body := `{"layers":{"roads":true,"parcels":false}}`
	rec := doRequest(t, h, http.MethodPost, "/visibility_presets/", body, "alice")
	var created struct {
		Success bool   `json:"success"`
		Key     string `json:"key"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.True(t, created.Success)

	// No URL normalization happens for presets.
	rec = doRequest(t, h, http.MethodGet, "/visibility_presets/"+created.Key, "", "alice")
	assert.JSONEq(t, body, rec.Body.String())
}

func TestVisibilityPresetsRejectInvalidJSON(t *testing.T) {
	h := testRouter(testDeps(t, newFakeStore(), nil))

	rec := doRequest(t, h, http.MethodPost, "/visibility_presets/", `not json`, "alice")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordKindsDoNotOverlap(t *testing.T) {
	store := newFakeStore()
	h := testRouter(testDeps(t, store, nil))

	rec := doRequest(t, h, http.MethodPost, "/bookmarks/?url=http://x/", `{}`, "alice")
	var created struct {
		Key string `json:"key"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doRequest(t, h, http.MethodGet, "/visibility_presets/"+created.Key, "", "alice")
	assert.JSONEq(t, `{}`, rec.Body.String())
}

func TestUnknownTenantRejected(t *testing.T) {
	h := testRouter(testDeps(t, newFakeStore(), nil))

	req := httptest.NewRequest(http.MethodGet, "/userpermalink", nil)
	req.Header.Set("X-Tenant", "nosuch")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReady(t *testing.T) {
	d := testDeps(t, newFakeStore(), nil)
	d.Version = "1.2.3"
	h := testRouter(d)

	rec := doRequest(t, h, http.MethodGet, "/ready", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp readyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "OK", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestHealthz(t *testing.T) {
	store := newFakeStore()
	h := testRouter(testDeps(t, store, nil))

	rec := doRequest(t, h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	store.pingErr = fmt.Errorf("connection refused")
	rec = doRequest(t, h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp healthzResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "FAIL", resp.Status)
	assert.Contains(t, resp.Cause, "connection refused")
}
