package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/invoiceadmin/internal/role"
)

func TestClient_Login_Success(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)

		http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: "rt-42", HttpOnly: true})
		fmt.Fprint(w, `{"success":true,"message":"Login successful","response":{"_id":"u-1","name":"Taro","email":"taro@example.com","role":"ADMIN","accessToken":"at-1"}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), &mockTokenSaver{}, nil, nil)

	result, err := client.Login(context.Background(), "taro@example.com", "secret")
	if err != nil {
		t.Fatalf("Login() がエラーを返した: %v", err)
	}

	// ログインはプレフィックスなし・認証ヘッダーなし
	if gotPath != "/login" {
		t.Errorf("path = %q, want /login", gotPath)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty", gotAuth)
	}
	if gotBody["email"] != "taro@example.com" || gotBody["password"] != "secret" {
		t.Errorf("body = %v", gotBody)
	}

	if result.User.ID != "u-1" || result.User.Role != "ADMIN" || result.User.AccessToken != "at-1" {
		t.Errorf("User = %+v", result.User)
	}
	if result.Message != "Login successful" {
		t.Errorf("Message = %q, want %q", result.Message, "Login successful")
	}

	// Set-CookieはCookieヘッダー形式で保持される
	if result.RefreshCookie != "refreshToken=rt-42" {
		t.Errorf("RefreshCookie = %q, want %q", result.RefreshCookie, "refreshToken=rt-42")
	}
}

func TestClient_Login_MultipleCookies_Joined(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: "rt-1"})
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "s-1"})
		fmt.Fprint(w, `{"success":true,"message":"ok","response":{"_id":"u-1","role":"USER","accessToken":"at"}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), &mockTokenSaver{}, nil, nil)

	result, err := client.Login(context.Background(), "a@b.c", "p")
	if err != nil {
		t.Fatalf("Login() がエラーを返した: %v", err)
	}

	if result.RefreshCookie != "refreshToken=rt-1; sid=s-1" {
		t.Errorf("RefreshCookie = %q", result.RefreshCookie)
	}
}

func TestClient_Login_InvalidCredentials_ReturnsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"Invalid credentials"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), &mockTokenSaver{}, nil, nil)

	_, err := client.Login(context.Background(), "a@b.c", "wrong")
	if err == nil {
		t.Fatal("認証失敗時に Login() はエラーを返すべき")
	}
	if !IsUnauthorized(err) {
		t.Errorf("IsUnauthorized(err) = false, want true: %v", err)
	}
}

func TestClient_Login_MissingAccessToken_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"message":"ok","response":{"_id":"u-1","role":"USER"}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), &mockTokenSaver{}, nil, nil)

	_, err := client.Login(context.Background(), "a@b.c", "p")
	if err == nil {
		t.Fatal("アクセストークンなしのレスポンスで Login() はエラーを返すべき")
	}
}

func TestClient_Logout_SendsUnprefixedGet(t *testing.T) {
	var gotPath, gotMethod, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"success":true}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), &mockTokenSaver{}, nil, nil)

	err := client.Logout(context.Background(), testSession(role.Admin))
	if err != nil {
		t.Fatalf("Logout() がエラーを返した: %v", err)
	}

	if gotPath != "/logout" {
		t.Errorf("path = %q, want /logout", gotPath)
	}
	if gotMethod != http.MethodGet {
		t.Errorf("method = %q, want GET", gotMethod)
	}
	if gotAuth != "Bearer old-token" {
		t.Errorf("Authorization = %q, want Bearer old-token", gotAuth)
	}
}
