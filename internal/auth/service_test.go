package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hitoshi/invoiceadmin/internal/model"
	"github.com/hitoshi/invoiceadmin/internal/role"
	"github.com/hitoshi/invoiceadmin/internal/upstream"
)

// --- モック定義 ---

type mockUpstreamAuth struct {
	loginFn  func(ctx context.Context, email, password string) (*upstream.LoginResult, error)
	logoutFn func(ctx context.Context, sess *model.Session) error
}

func (m *mockUpstreamAuth) Login(ctx context.Context, email, password string) (*upstream.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockUpstreamAuth) Logout(ctx context.Context, sess *model.Session) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sess)
	}
	return nil
}

type mockSessionRepo struct {
	createFn      func(ctx context.Context, sess *model.Session) error
	findByIDFn    func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn  func(ctx context.Context, id string) error
	updateTokenFn func(ctx context.Context, sessionID, accessToken string) error

	created   *model.Session
	deletedID string
}

func (m *mockSessionRepo) Create(ctx context.Context, sess *model.Session) error {
	m.created = sess
	if m.createFn != nil {
		return m.createFn(ctx, sess)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	m.deletedID = id
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) UpdateAccessToken(ctx context.Context, sessionID, accessToken string) error {
	if m.updateTokenFn != nil {
		return m.updateTokenFn(ctx, sessionID, accessToken)
	}
	return nil
}

type mockCacheInvalidator struct {
	invalidated []string
}

func (m *mockCacheInvalidator) InvalidateSession(sessionID string) {
	m.invalidated = append(m.invalidated, sessionID)
}

func loginResult(roleStr string) *upstream.LoginResult {
	return &upstream.LoginResult{
		User: upstream.LoginUser{
			ID:          "user-1",
			Name:        "Taro",
			Email:       "taro@example.com",
			Role:        roleStr,
			AvatarURL:   "https://example.com/a.png",
			AccessToken: "at-1",
		},
		Message:       "Login successful",
		RefreshCookie: "refreshToken=rt-1",
	}
}

// --- テスト ---

func TestService_Login_CreatesSessionWithIdentityAndTokens(t *testing.T) {
	up := &mockUpstreamAuth{
		loginFn: func(ctx context.Context, email, password string) (*upstream.LoginResult, error) {
			if email != "taro@example.com" || password != "secret" {
				t.Errorf("資格情報がそのまま渡されていない: %s / %s", email, password)
			}
			return loginResult("ADMIN"), nil
		},
	}
	repo := &mockSessionRepo{}
	cache := &mockCacheInvalidator{}

	svc := NewService(up, repo, cache, ServiceConfig{SessionMaxAge: 3600})

	session, message, err := svc.Login(context.Background(), "taro@example.com", "secret")
	if err != nil {
		t.Fatalf("Login() がエラーを返した: %v", err)
	}

	if message != "Login successful" {
		t.Errorf("message = %q", message)
	}
	if session.ID == "" {
		t.Error("セッションIDが生成されていない")
	}
	if session.UserID != "user-1" || session.Role != role.Admin {
		t.Errorf("session = %+v", session)
	}
	if session.AccessToken != "at-1" || session.RefreshCookie != "refreshToken=rt-1" {
		t.Errorf("トークンが保持されていない: %+v", session)
	}

	// セッション行が保存される
	if repo.created == nil || repo.created.ID != session.ID {
		t.Error("セッションがリポジトリに保存されていない")
	}

	// 有効期限はSessionMaxAge後
	wantExpiry := time.Now().Add(3600 * time.Second)
	if session.ExpiresAt.Before(wantExpiry.Add(-time.Minute)) || session.ExpiresAt.After(wantExpiry.Add(time.Minute)) {
		t.Errorf("ExpiresAt = %v, want ~%v", session.ExpiresAt, wantExpiry)
	}
}

func TestService_Login_UnknownRole_FallsBackToUser(t *testing.T) {
	up := &mockUpstreamAuth{
		loginFn: func(ctx context.Context, email, password string) (*upstream.LoginResult, error) {
			return loginResult("MYSTERY_ROLE"), nil
		},
	}
	svc := NewService(up, &mockSessionRepo{}, &mockCacheInvalidator{}, ServiceConfig{SessionMaxAge: 60})

	session, _, err := svc.Login(context.Background(), "a@b.c", "p")
	if err != nil {
		t.Fatalf("Login() がエラーを返した: %v", err)
	}

	// 未知のロールは最小権限で保持する
	if session.Role != role.User {
		t.Errorf("Role = %q, want USER", session.Role)
	}
}

func TestService_Login_UpstreamError_Propagates(t *testing.T) {
	wantErr := &upstream.APIError{Status: 401, Message: "Invalid credentials"}
	up := &mockUpstreamAuth{
		loginFn: func(ctx context.Context, email, password string) (*upstream.LoginResult, error) {
			return nil, wantErr
		},
	}
	repo := &mockSessionRepo{}
	svc := NewService(up, repo, &mockCacheInvalidator{}, ServiceConfig{SessionMaxAge: 60})

	_, _, err := svc.Login(context.Background(), "a@b.c", "wrong")
	if err == nil {
		t.Fatal("認証失敗時に Login() はエラーを返すべき")
	}
	if repo.created != nil {
		t.Error("認証失敗時にセッションが保存された")
	}
}

func TestService_Login_GeneratedSessionIDsAreUnique(t *testing.T) {
	up := &mockUpstreamAuth{
		loginFn: func(ctx context.Context, email, password string) (*upstream.LoginResult, error) {
			return loginResult("USER"), nil
		},
	}
	svc := NewService(up, &mockSessionRepo{}, &mockCacheInvalidator{}, ServiceConfig{SessionMaxAge: 60})

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		session, _, err := svc.Login(context.Background(), "a@b.c", "p")
		if err != nil {
			t.Fatalf("Login() がエラーを返した: %v", err)
		}
		if seen[session.ID] {
			t.Fatalf("セッションIDが重複した: %s", session.ID)
		}
		seen[session.ID] = true
	}
}

func TestService_Logout_DeletesSessionAndCache(t *testing.T) {
	logoutCalled := false
	up := &mockUpstreamAuth{
		logoutFn: func(ctx context.Context, sess *model.Session) error {
			logoutCalled = true
			return nil
		},
	}
	repo := &mockSessionRepo{}
	cache := &mockCacheInvalidator{}
	svc := NewService(up, repo, cache, ServiceConfig{SessionMaxAge: 60})

	sess := &model.Session{ID: "sess-1", AccessToken: "at"}
	if err := svc.Logout(context.Background(), sess); err != nil {
		t.Fatalf("Logout() がエラーを返した: %v", err)
	}

	if !logoutCalled {
		t.Error("バックエンドのログアウトが呼ばれていない")
	}
	if repo.deletedID != "sess-1" {
		t.Errorf("deletedID = %q, want sess-1", repo.deletedID)
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != "sess-1" {
		t.Errorf("キャッシュ無効化 = %v, want [sess-1]", cache.invalidated)
	}
}

func TestService_Logout_UpstreamFailure_StillClearsLocal(t *testing.T) {
	up := &mockUpstreamAuth{
		logoutFn: func(ctx context.Context, sess *model.Session) error {
			return fmt.Errorf("backend down")
		},
	}
	repo := &mockSessionRepo{}
	cache := &mockCacheInvalidator{}
	svc := NewService(up, repo, cache, ServiceConfig{SessionMaxAge: 60})

	sess := &model.Session{ID: "sess-1", AccessToken: "at"}
	if err := svc.Logout(context.Background(), sess); err != nil {
		t.Fatalf("バックエンド失敗でも Logout() は成功すべき: %v", err)
	}

	// ローカルのセッション行とキャッシュは必ず破棄される
	if repo.deletedID != "sess-1" {
		t.Errorf("deletedID = %q, want sess-1", repo.deletedID)
	}
	if len(cache.invalidated) != 1 {
		t.Errorf("キャッシュ無効化 = %v", cache.invalidated)
	}
}

func TestService_Logout_NilSession_ReturnsError(t *testing.T) {
	svc := NewService(&mockUpstreamAuth{}, &mockSessionRepo{}, &mockCacheInvalidator{}, ServiceConfig{})

	if err := svc.Logout(context.Background(), nil); err == nil {
		t.Error("nilセッションで Logout() はエラーを返すべき")
	}
}

func TestService_ForceLogout_SkipsUpstream(t *testing.T) {
	up := &mockUpstreamAuth{
		logoutFn: func(ctx context.Context, sess *model.Session) error {
			t.Error("強制ログアウトでバックエンドが呼ばれた")
			return nil
		},
	}
	repo := &mockSessionRepo{}
	cache := &mockCacheInvalidator{}
	svc := NewService(up, repo, cache, ServiceConfig{SessionMaxAge: 60})

	if err := svc.ForceLogout(context.Background(), "sess-9"); err != nil {
		t.Fatalf("ForceLogout() がエラーを返した: %v", err)
	}

	if repo.deletedID != "sess-9" {
		t.Errorf("deletedID = %q, want sess-9", repo.deletedID)
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != "sess-9" {
		t.Errorf("キャッシュ無効化 = %v, want [sess-9]", cache.invalidated)
	}
}

func TestService_ForceLogout_EmptyID_ReturnsError(t *testing.T) {
	svc := NewService(&mockUpstreamAuth{}, &mockSessionRepo{}, &mockCacheInvalidator{}, ServiceConfig{})

	if err := svc.ForceLogout(context.Background(), ""); err == nil {
		t.Error("空のセッションIDで ForceLogout() はエラーを返すべき")
	}
}

func TestService_CurrentSession(t *testing.T) {
	want := &model.Session{ID: "sess-1", AccessToken: "at"}
	repo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "sess-1" {
				return want, nil
			}
			return nil, nil
		},
	}
	svc := NewService(&mockUpstreamAuth{}, repo, &mockCacheInvalidator{}, ServiceConfig{})

	got, err := svc.CurrentSession(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("CurrentSession() がエラーを返した: %v", err)
	}
	if got != want {
		t.Errorf("got = %+v", got)
	}

	// 空のIDはセッションなしとして扱う
	got, err = svc.CurrentSession(context.Background(), "")
	if err != nil || got != nil {
		t.Errorf("空IDで (nil, nil) が返るべき: (%v, %v)", got, err)
	}
}
