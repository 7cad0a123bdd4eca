package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/invoiceadmin/internal/cache"
	"github.com/hitoshi/invoiceadmin/internal/middleware"
	"github.com/hitoshi/invoiceadmin/internal/model"
	"github.com/hitoshi/invoiceadmin/internal/role"
	"github.com/hitoshi/invoiceadmin/internal/upstream"
)

// --- モック定義 ---

type mockUserGateway struct {
	listFn       func(ctx context.Context, sess *model.Session, q model.UserQuery) (*model.UserList, error)
	deleteFn     func(ctx context.Context, sess *model.Session, userID string) (string, error)
	createFn     func(ctx context.Context, sess *model.Session, input model.CreateUserInput) (string, error)
	updateRoleFn func(ctx context.Context, sess *model.Session, userID string, newRole role.Role) (string, error)

	listCalls int
}

func (m *mockUserGateway) ListUsers(ctx context.Context, sess *model.Session, q model.UserQuery) (*model.UserList, error) {
	m.listCalls++
	if m.listFn != nil {
		return m.listFn(ctx, sess, q)
	}
	return &model.UserList{}, nil
}

func (m *mockUserGateway) DeleteUser(ctx context.Context, sess *model.Session, userID string) (string, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, sess, userID)
	}
	return "deleted", nil
}

func (m *mockUserGateway) CreateSubordinate(ctx context.Context, sess *model.Session, input model.CreateUserInput) (string, error) {
	if m.createFn != nil {
		return m.createFn(ctx, sess, input)
	}
	return "created", nil
}

func (m *mockUserGateway) UpdateUserRole(ctx context.Context, sess *model.Session, userID string, newRole role.Role) (string, error) {
	if m.updateRoleFn != nil {
		return m.updateRoleFn(ctx, sess, userID, newRole)
	}
	return "updated", nil
}

type cacheEntry struct {
	body []byte
}

type mockCollectionCache struct {
	entries     map[string]cacheEntry
	invalidated []string
}

func newMockCollectionCache() *mockCollectionCache {
	return &mockCollectionCache{entries: make(map[string]cacheEntry)}
}

func (m *mockCollectionCache) key(sessionID, tag, query string) string {
	return sessionID + "|" + tag + "|" + query
}

func (m *mockCollectionCache) Get(sessionID, tag, query string) ([]byte, bool) {
	e, ok := m.entries[m.key(sessionID, tag, query)]
	return e.body, ok
}

func (m *mockCollectionCache) Put(sessionID, tag, query string, body []byte) {
	m.entries[m.key(sessionID, tag, query)] = cacheEntry{body: body}
}

func (m *mockCollectionCache) InvalidateTag(sessionID, tag string) {
	m.invalidated = append(m.invalidated, sessionID+"|"+tag)
	prefix := sessionID + "|" + tag + "|"
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
}

type mockCacheMetrics struct {
	hits   int
	misses int
}

func (m *mockCacheMetrics) RecordCacheHit()  { m.hits++ }
func (m *mockCacheMetrics) RecordCacheMiss() { m.misses++ }

func authedRequest(method, target string, body string, sess *model.Session) *http.Request {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	return r.WithContext(middleware.ContextWithSession(r.Context(), sess))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// --- テスト ---

func TestUserHandler_List_SecondRequestServedFromCache(t *testing.T) {
	gateway := &mockUserGateway{
		listFn: func(ctx context.Context, sess *model.Session, q model.UserQuery) (*model.UserList, error) {
			return &model.UserList{
				Data:  []model.User{{ID: "u-1", Name: "Taro"}},
				Total: 1,
			}, nil
		},
	}
	cacheStore := newMockCollectionCache()
	metrics := &mockCacheMetrics{}
	h := NewUserHandler(gateway, cacheStore, metrics, newTestResponder(nil))

	sess := sessionFor(role.Admin)

	rec := httptest.NewRecorder()
	h.List(rec, authedRequest(http.MethodGet, "/api/users?page=1&limit=10", "", sess))
	if rec.Code != http.StatusOK {
		t.Fatalf("1回目: status = %d: %s", rec.Code, rec.Body.String())
	}
	firstBody := rec.Body.String()

	// 同一クエリの2回目はキャッシュから配信され、バックエンドは呼ばれない
	rec = httptest.NewRecorder()
	h.List(rec, authedRequest(http.MethodGet, "/api/users?page=1&limit=10", "", sess))
	if rec.Code != http.StatusOK {
		t.Fatalf("2回目: status = %d", rec.Code)
	}

	if gateway.listCalls != 1 {
		t.Errorf("listCalls = %d, want 1", gateway.listCalls)
	}
	if rec.Body.String() != firstBody {
		t.Error("キャッシュのボディが1回目と一致しない")
	}
	if metrics.hits != 1 || metrics.misses != 1 {
		t.Errorf("hits = %d, misses = %d, want 1/1", metrics.hits, metrics.misses)
	}
}

func TestUserHandler_List_QueryOrderDoesNotFragmentCache(t *testing.T) {
	gateway := &mockUserGateway{}
	cacheStore := newMockCollectionCache()
	h := NewUserHandler(gateway, cacheStore, nil, newTestResponder(nil))

	sess := sessionFor(role.Admin)

	rec := httptest.NewRecorder()
	h.List(rec, authedRequest(http.MethodGet, "/api/users?page=1&limit=10", "", sess))

	// キーの順序が違っても正規化により同一キャッシュキーになる
	rec = httptest.NewRecorder()
	h.List(rec, authedRequest(http.MethodGet, "/api/users?limit=10&page=1", "", sess))

	if gateway.listCalls != 1 {
		t.Errorf("listCalls = %d, want 1", gateway.listCalls)
	}
}

func TestUserHandler_List_InvalidQuery_Returns400(t *testing.T) {
	cases := []string{
		"/api/users?page=0",
		"/api/users?page=abc",
		"/api/users?limit=-1",
		"/api/users?role=MYSTERY",
		"/api/users?sortOrder=upward",
	}

	h := NewUserHandler(&mockUserGateway{}, newMockCollectionCache(), nil, newTestResponder(nil))
	sess := sessionFor(role.Admin)

	for _, target := range cases {
		rec := httptest.NewRecorder()
		h.List(rec, authedRequest(http.MethodGet, target, "", sess))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", target, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestUserHandler_Create_InvalidatesUserCache(t *testing.T) {
	gateway := &mockUserGateway{
		createFn: func(ctx context.Context, sess *model.Session, input model.CreateUserInput) (string, error) {
			if input.Name != "Hanako" || input.Group != "tokyo" {
				t.Errorf("input = %+v", input)
			}
			return "User created", nil
		},
	}
	cacheStore := newMockCollectionCache()
	h := NewUserHandler(gateway, cacheStore, nil, newTestResponder(nil))

	sess := sessionFor(role.Admin)
	cacheStore.Put(sess.ID, cache.TagUsers, "page=1", []byte(`{"stale":true}`))

	rec := httptest.NewRecorder()
	h.Create(rec, authedRequest(http.MethodPost, "/api/users",
		`{"name":"Hanako","email":"hanako@example.com","password":"secret","group":"tokyo"}`, sess))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	if _, ok := cacheStore.Get(sess.ID, cache.TagUsers, "page=1"); ok {
		t.Error("作成後にユーザーキャッシュが無効化されていない")
	}

	var body mutationResult
	json.NewDecoder(rec.Body).Decode(&body)
	if !body.Success || body.Message != "User created" {
		t.Errorf("body = %+v", body)
	}
}

func TestUserHandler_Create_MissingFields_Returns400(t *testing.T) {
	gateway := &mockUserGateway{
		createFn: func(ctx context.Context, sess *model.Session, input model.CreateUserInput) (string, error) {
			t.Error("バリデーション失敗でバックエンドが呼ばれた")
			return "", nil
		},
	}
	h := NewUserHandler(gateway, newMockCollectionCache(), nil, newTestResponder(nil))

	rec := httptest.NewRecorder()
	h.Create(rec, authedRequest(http.MethodPost, "/api/users",
		`{"name":"  ","email":"a@b.c","password":""}`, sessionFor(role.Admin)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestUserHandler_Create_ValidationError_Returns422WithFields(t *testing.T) {
	gateway := &mockUserGateway{
		createFn: func(ctx context.Context, sess *model.Session, input model.CreateUserInput) (string, error) {
			return "", &upstream.ValidationError{
				Fields: []upstream.FieldError{{Path: "email", Message: "already taken"}},
			}
		},
	}
	h := NewUserHandler(gateway, newMockCollectionCache(), nil, newTestResponder(nil))

	rec := httptest.NewRecorder()
	h.Create(rec, authedRequest(http.MethodPost, "/api/users",
		`{"name":"x","email":"a@b.c","password":"p"}`, sessionFor(role.Admin)))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}

	var body middleware.ErrorResponseBody
	json.NewDecoder(rec.Body).Decode(&body)
	if len(body.Errors) != 1 || body.Errors[0].Path != "email" {
		t.Errorf("Errors = %+v", body.Errors)
	}
}

func TestUserHandler_List_AccountSuspended_ForcesLogout(t *testing.T) {
	gateway := &mockUserGateway{
		listFn: func(ctx context.Context, sess *model.Session, q model.UserQuery) (*model.UserList, error) {
			return nil, &upstream.APIError{Status: 401, Code: upstream.CodeAccountSuspended, Message: "suspended"}
		},
	}
	clearer := &mockSessionClearer{}
	h := NewUserHandler(gateway, newMockCollectionCache(), nil, newTestResponder(clearer))

	sess := sessionFor(role.Admin)
	rec := httptest.NewRecorder()
	h.List(rec, authedRequest(http.MethodGet, "/api/users", "", sess))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	// ローカルセッションが破棄され、Cookieがクリアされる
	if len(clearer.forcedIDs) != 1 || clearer.forcedIDs[0] != sess.ID {
		t.Errorf("forcedIDs = %v, want [%s]", clearer.forcedIDs, sess.ID)
	}
	cookie := sessionCookieFrom(t, rec)
	if cookie == nil || cookie.MaxAge != -1 {
		t.Error("セッションCookieがクリアされていない")
	}

	var body middleware.ErrorResponseBody
	json.NewDecoder(rec.Body).Decode(&body)
	if body.Code != model.ErrCodeAccountSuspended {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeAccountSuspended)
	}
}

func TestUserHandler_Delete_UsesURLParamAndInvalidates(t *testing.T) {
	var gotID string
	gateway := &mockUserGateway{
		deleteFn: func(ctx context.Context, sess *model.Session, userID string) (string, error) {
			gotID = userID
			return "User deleted", nil
		},
	}
	cacheStore := newMockCollectionCache()
	h := NewUserHandler(gateway, cacheStore, nil, newTestResponder(nil))

	sess := sessionFor(role.SuperAdmin)
	cacheStore.Put(sess.ID, cache.TagUsers, "", []byte(`{}`))

	req := withURLParam(authedRequest(http.MethodDelete, "/api/users/u-9", "", sess), "id", "u-9")
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if gotID != "u-9" {
		t.Errorf("userID = %q, want u-9", gotID)
	}
	if _, ok := cacheStore.Get(sess.ID, cache.TagUsers, ""); ok {
		t.Error("削除後にユーザーキャッシュが無効化されていない")
	}
}

func TestUserHandler_UpdateRole_ValidatesRole(t *testing.T) {
	gateway := &mockUserGateway{
		updateRoleFn: func(ctx context.Context, sess *model.Session, userID string, newRole role.Role) (string, error) {
			t.Error("不正なロールでバックエンドが呼ばれた")
			return "", nil
		},
	}
	h := NewUserHandler(gateway, newMockCollectionCache(), nil, newTestResponder(nil))

	req := withURLParam(authedRequest(http.MethodPost, "/api/users/u-1/role",
		`{"role":"GODMODE"}`, sessionFor(role.SuperAdmin)), "id", "u-1")
	rec := httptest.NewRecorder()
	h.UpdateRole(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestUserHandler_UpdateRole_Success(t *testing.T) {
	var gotID string
	var gotRole role.Role
	gateway := &mockUserGateway{
		updateRoleFn: func(ctx context.Context, sess *model.Session, userID string, newRole role.Role) (string, error) {
			gotID = userID
			gotRole = newRole
			return "Role updated", nil
		},
	}
	cacheStore := newMockCollectionCache()
	h := NewUserHandler(gateway, cacheStore, nil, newTestResponder(nil))

	sess := sessionFor(role.SuperAdmin)
	cacheStore.Put(sess.ID, cache.TagUsers, "", []byte(`{}`))

	req := withURLParam(authedRequest(http.MethodPost, "/api/users/u-3/role",
		`{"role":"UNIT_MANAGER"}`, sess), "id", "u-3")
	rec := httptest.NewRecorder()
	h.UpdateRole(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if gotID != "u-3" || gotRole != role.UnitManager {
		t.Errorf("got = %q / %q", gotID, gotRole)
	}
	if _, ok := cacheStore.Get(sess.ID, cache.TagUsers, ""); ok {
		t.Error("ロール変更後にユーザーキャッシュが無効化されていない")
	}
}
