package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avolkov/mailhub/internal/repository/memory"
	"github.com/avolkov/mailhub/internal/service/auth"
	"github.com/avolkov/mailhub/internal/service/mailbox"
	"github.com/avolkov/mailhub/internal/service/order"
	"github.com/avolkov/mailhub/pkg/config"
)

func TestSignupLoginFolderFlow(t *testing.T) {
	router := newTestRouter(t, nil)

	signup := doJSON(t, router, http.MethodPost, "/auth/signup", "", map[string]string{
		"username":   "alice",
		"password":   "Testing123!",
		"first_name": "Alice",
		"last_name":  "Smith",
		"email":      "alice@example.com",
	})
	if signup.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d: %s", signup.Code, signup.Body)
	}
	var created struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	decodeBody(t, signup, &created)
	if created.ID == "" || created.Username != "alice" {
		t.Fatalf("unexpected signup response: %s", signup.Body)
	}
	if strings.Contains(strings.ToLower(signup.Body.String()), "password") {
		t.Fatalf("signup response leaks password material: %s", signup.Body)
	}

	token := loginAs(t, router, "alice", "Testing123!")

	list := doJSON(t, router, http.MethodGet, "/folders", token, nil)
	if list.Code != http.StatusOK {
		t.Fatalf("folders: expected 200, got %d: %s", list.Code, list.Body)
	}
	if body := strings.TrimSpace(list.Body.String()); body != "[]" {
		t.Fatalf("expected empty folder list, got %s", body)
	}

	createFolder := doJSON(t, router, http.MethodPost, "/folders", token, map[string]string{"name": "inbox"})
	if createFolder.Code != http.StatusCreated {
		t.Fatalf("create folder: expected 201, got %d: %s", createFolder.Code, createFolder.Body)
	}
	var folder struct {
		ID     string `json:"id"`
		UserID string `json:"user_id"`
		Name   string `json:"name"`
	}
	decodeBody(t, createFolder, &folder)
	if folder.UserID != created.ID {
		t.Fatalf("folder not owned by caller: %+v", folder)
	}

	createMsg := doJSON(t, router, http.MethodPost, "/folders/"+folder.ID+"/messages", token, map[string]string{
		"subject": "hello",
		"content": "first message",
	})
	if createMsg.Code != http.StatusCreated {
		t.Fatalf("create message: expected 201, got %d: %s", createMsg.Code, createMsg.Body)
	}
	var message struct {
		ID       string `json:"id"`
		FolderID string `json:"folder_id"`
	}
	decodeBody(t, createMsg, &message)
	if message.FolderID != folder.ID {
		t.Fatalf("message landed in wrong folder: %+v", message)
	}

	getMsg := doJSON(t, router, http.MethodGet, "/messages/"+message.ID, token, nil)
	if getMsg.Code != http.StatusOK {
		t.Fatalf("get message: expected 200, got %d: %s", getMsg.Code, getMsg.Body)
	}
}

func TestSignupDuplicateUsername(t *testing.T) {
	router := newTestRouter(t, nil)
	payload := map[string]string{"username": "alice", "password": "Testing123!"}

	if res := doJSON(t, router, http.MethodPost, "/auth/signup", "", payload); res.Code != http.StatusCreated {
		t.Fatalf("first signup: expected 201, got %d", res.Code)
	}
	dup := doJSON(t, router, http.MethodPost, "/auth/signup", "", payload)
	if dup.Code != http.StatusConflict {
		t.Fatalf("duplicate signup: expected 409, got %d: %s", dup.Code, dup.Body)
	}
}

func TestAuthGateRejectsBadTokens(t *testing.T) {
	router := newTestRouter(t, nil)
	registerUser(t, router, "alice")

	for name, header := range map[string]string{
		"no header":      "",
		"wrong scheme":   "Basic abc123",
		"garbage token":  "Bearer not.a.token",
		"missing token":  "Bearer",
		"invalid base64": "Bearer a.b.c",
	} {
		req := httptest.NewRequest(http.MethodGet, "/folders", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		res := httptest.NewRecorder()
		router.ServeHTTP(res, req)
		if res.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d: %s", name, res.Code, res.Body)
		}
		var payload struct {
			Error string `json:"error"`
		}
		decodeBody(t, res, &payload)
		if payload.Error != "authentication failed" {
			t.Fatalf("%s: unexpected error message: %q", name, payload.Error)
		}
	}
}

func TestOwnershipBoundaryBetweenUsers(t *testing.T) {
	router := newTestRouter(t, nil)
	registerUser(t, router, "alice")
	registerUser(t, router, "bob")
	aliceToken := loginAs(t, router, "alice", "Testing123!")
	bobToken := loginAs(t, router, "bob", "Testing123!")

	createFolder := doJSON(t, router, http.MethodPost, "/folders", aliceToken, map[string]string{"name": "inbox"})
	if createFolder.Code != http.StatusCreated {
		t.Fatalf("create folder: expected 201, got %d", createFolder.Code)
	}
	var folder struct {
		ID string `json:"id"`
	}
	decodeBody(t, createFolder, &folder)

	createMsg := doJSON(t, router, http.MethodPost, "/folders/"+folder.ID+"/messages", aliceToken, map[string]string{"subject": "hello"})
	if createMsg.Code != http.StatusCreated {
		t.Fatalf("create message: expected 201, got %d", createMsg.Code)
	}
	var message struct {
		ID string `json:"id"`
	}
	decodeBody(t, createMsg, &message)

	// bob sees alice's resources as not found, never as forbidden
	if res := doJSON(t, router, http.MethodGet, "/folders/"+folder.ID, bobToken, nil); res.Code != http.StatusNotFound {
		t.Fatalf("foreign folder: expected 404, got %d: %s", res.Code, res.Body)
	}
	if res := doJSON(t, router, http.MethodGet, "/folders/"+folder.ID+"/messages", bobToken, nil); res.Code != http.StatusNotFound {
		t.Fatalf("foreign listing: expected 404, got %d: %s", res.Code, res.Body)
	}
	if res := doJSON(t, router, http.MethodGet, "/messages/"+message.ID, bobToken, nil); res.Code != http.StatusNotFound {
		t.Fatalf("foreign message: expected 404, got %d: %s", res.Code, res.Body)
	}

	// posting into a foreign folder is an invalid reference, not a create
	foreignPost := doJSON(t, router, http.MethodPost, "/folders/"+folder.ID+"/messages", bobToken, map[string]string{"subject": "intrusion"})
	if foreignPost.Code != http.StatusBadRequest {
		t.Fatalf("foreign post: expected 400, got %d: %s", foreignPost.Code, foreignPost.Body)
	}

	listing := doJSON(t, router, http.MethodGet, "/folders/"+folder.ID+"/messages", aliceToken, nil)
	if listing.Code != http.StatusOK {
		t.Fatalf("owner listing: expected 200, got %d", listing.Code)
	}
	var messages []json.RawMessage
	decodeBody(t, listing, &messages)
	if len(messages) != 1 {
		t.Fatalf("expected exactly alice's message, got %d entries", len(messages))
	}
}

func TestLoginReturnsBearerToken(t *testing.T) {
	router := newTestRouter(t, nil)
	registerUser(t, router, "alice")

	res := doJSON(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice",
		"password": "Testing123!",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", res.Code, res.Body)
	}
	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	decodeBody(t, res, &payload)
	if payload.AccessToken == "" || payload.TokenType != "Bearer" || payload.ExpiresIn <= 0 {
		t.Fatalf("unexpected login payload: %s", res.Body)
	}

	bad := doJSON(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice",
		"password": "wrong",
	})
	if bad.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d: %s", bad.Code, bad.Body)
	}
}

func TestUserDirectory(t *testing.T) {
	router := newTestRouter(t, nil)
	registerUser(t, router, "alice")
	token := loginAs(t, router, "alice", "Testing123!")

	byName := doJSON(t, router, http.MethodGet, "/users/alice", token, nil)
	if byName.Code != http.StatusOK {
		t.Fatalf("user lookup: expected 200, got %d: %s", byName.Code, byName.Body)
	}
	if res := doJSON(t, router, http.MethodGet, "/users/nobody", token, nil); res.Code != http.StatusNotFound {
		t.Fatalf("unknown user: expected 404, got %d", res.Code)
	}

	search := doJSON(t, router, http.MethodGet, "/users?first_name=ali&last_name=", token, nil)
	if search.Code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d: %s", search.Code, search.Body)
	}
	var users []struct {
		Username string `json:"username"`
	}
	decodeBody(t, search, &users)
	if len(users) != 1 || users[0].Username != "alice" {
		t.Fatalf("unexpected search result: %s", search.Body)
	}

	// the directory sits behind the auth gate
	if res := doJSON(t, router, http.MethodGet, "/users/alice", "", nil); res.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated lookup: expected 401, got %d", res.Code)
	}
}

func TestOrderEndpoints(t *testing.T) {
	router := newTestRouter(t, nil)
	registerUser(t, router, "alice")
	token := loginAs(t, router, "alice", "Testing123!")

	payload := map[string]any{"order_number": 1001, "description": "keyboard", "amount": 59.90}
	if res := doJSON(t, router, http.MethodPost, "/orders", token, payload); res.Code != http.StatusCreated {
		t.Fatalf("create order: expected 201, got %d: %s", res.Code, res.Body)
	}
	if res := doJSON(t, router, http.MethodPost, "/orders", token, payload); res.Code != http.StatusConflict {
		t.Fatalf("duplicate order: expected 409, got %d: %s", res.Code, res.Body)
	}

	found := doJSON(t, router, http.MethodGet, "/orders/1001", token, nil)
	if found.Code != http.StatusOK {
		t.Fatalf("get order: expected 200, got %d: %s", found.Code, found.Body)
	}
	if res := doJSON(t, router, http.MethodGet, "/orders/9999", token, nil); res.Code != http.StatusNotFound {
		t.Fatalf("unknown order: expected 404, got %d", res.Code)
	}
	if res := doJSON(t, router, http.MethodGet, "/orders/not-a-number", token, nil); res.Code != http.StatusBadRequest {
		t.Fatalf("bad order number: expected 400, got %d", res.Code)
	}
}

func TestHealthz(t *testing.T) {
	healthy := newTestRouter(t, func(context.Context) error { return nil })
	res := doJSON(t, healthy, http.MethodGet, "/healthz", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("healthy: expected 200, got %d: %s", res.Code, res.Body)
	}

	degraded := newTestRouter(t, func(context.Context) error { return errors.New("connection refused") })
	res = doJSON(t, degraded, http.MethodGet, "/healthz", "", nil)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded: expected 503, got %d: %s", res.Code, res.Body)
	}
}

func newTestRouter(t *testing.T, dbHealth func(context.Context) error) *Router {
	t.Helper()
	store := memory.NewStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.APIConfig{JWTSecret: "test-secret", AccessTokenTTL: time.Minute}

	router := NewRouter(
		log,
		auth.New(store, log, cfg),
		mailbox.New(store, store, log),
		order.New(store, log),
		nil,
		dbHealth,
	)
	t.Cleanup(router.Close)
	return router
}

func registerUser(t *testing.T, router *Router, username string) {
	t.Helper()
	res := doJSON(t, router, http.MethodPost, "/auth/signup", "", map[string]string{
		"username": username,
		"password": "Testing123!",
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("signup %s: expected 201, got %d: %s", username, res.Code, res.Body)
	}
}

func loginAs(t *testing.T, router *Router, username, password string) string {
	t.Helper()
	res := doJSON(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	if res.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", username, res.Code, res.Body)
	}
	var payload struct {
		AccessToken string `json:"access_token"`
	}
	decodeBody(t, res, &payload)
	if payload.AccessToken == "" {
		t.Fatalf("login %s: empty access token", username)
	}
	return payload.AccessToken
}

func doJSON(t *testing.T, router *Router, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(res.Body.Bytes(), target); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}
