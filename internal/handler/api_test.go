package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"credit_ledger/internal/middleware"
	"credit_ledger/internal/model"
	"credit_ledger/internal/oauth"
	"credit_ledger/internal/repository"
	"credit_ledger/internal/service"
	"credit_ledger/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memUserRepo struct {
	mu     sync.Mutex
	users  []*model.User
	nextID int
}

func newMemUserRepo() *memUserRepo { return &memUserRepo{nextID: 1} }

func (r *memUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return repository.ErrDuplicateUsername
		}
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	user.ID = r.nextID
	r.nextID++
	cp := *user
	r.users = append(r.users, &cp)
	return nil
}

func (r *memUserRepo) FindByIdentifier(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == id || u.Email == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) FindByID(ctx context.Context, id int) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	u, err := r.FindByIdentifier(ctx, username)
	return u != nil, err
}

func (r *memUserRepo) ListOthers(ctx context.Context, excludeID int) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.User
	for _, u := range r.users {
		if u.ID != excludeID {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *memUserRepo) UpdateLastLogin(ctx context.Context, id int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			u.LastLoginAt = &at
		}
	}
	return nil
}

type memTransferRepo struct {
	mu        sync.Mutex
	transfers []model.Transfer
}

func (r *memTransferRepo) Create(ctx context.Context, t *model.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now()
	r.transfers = append([]model.Transfer{*t}, r.transfers...)
	return nil
}

func (r *memTransferRepo) FindByUser(ctx context.Context, userID, limit int) ([]model.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Transfer
	for _, t := range r.transfers {
		if t.SenderID == userID || t.RecipientID == userID {
			out = append(out, t)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// toggleHealth lets a test flip the store between reachable and down.
type toggleHealth struct {
	mu sync.Mutex
	ok bool
}

func (h *toggleHealth) Healthy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ok
}

func (h *toggleHealth) set(ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ok = ok
}

type testAPI struct {
	router   *gin.Engine
	users    *memUserRepo
	health   *toggleHealth
	sessions *session.MemoryRegistry
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	users := newMemUserRepo()
	transfers := &memTransferRepo{}
	health := &toggleHealth{ok: true}
	sessions := session.NewMemoryRegistry(time.Hour)

	authService := service.NewAuthService(users, sessions, health, "admin", "admin123")
	transferService := service.NewTransferService(transfers, users, health)
	provider := oauth.NewProvider(oauth.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://localhost:8080/auth/google/callback",
	}, users, sessions, health)

	router := gin.New()
	authMW := middleware.SessionAuth(sessions)
	storeMW := middleware.RequireStore(health)

	NewAuthHandler(authService).RegisterAuthRoutes(router, authMW, storeMW)
	NewTransferHandler(transferService).RegisterTransferRoutes(router, authMW, storeMW)
	NewOAuthHandler(provider).RegisterOAuthRoutes(router)
	NewAdminHandler(sessions, health).RegisterAdminRoutes(router, authMW)

	return &testAPI{router: router, users: users, health: health, sessions: sessions}
}

func (api *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (api *testAPI) register(t *testing.T, username, email, password string) {
	t.Helper()
	rec := api.do(t, http.MethodPost, "/api/register", "", gin.H{
		"username":        username,
		"email":           email,
		"password":        password,
		"confirmPassword": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (api *testAPI) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := api.do(t, http.MethodPost, "/api/login", "", gin.H{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeBody(t, rec)["data"].(map[string]any)
	token := data["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestAPI_RegisterLoginAndSessionCheck(t *testing.T) {
	api := newTestAPI(t)

	api.register(t, "alice", "alice@example.com", "Sup3rStr0ng!1")
	token := api.login(t, "alice", "Sup3rStr0ng!1")

	rec := api.do(t, http.MethodGet, "/api/user", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	user := decodeBody(t, rec)["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, "user", user["role"])
	assert.Equal(t, "local", user["provider"])
}

func TestAPI_RegisterValidation(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/register", "", gin.H{
		"username":        "bob",
		"email":           "bob@example.com",
		"password":        "12345",
		"confirmPassword": "12345",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["success"])
}

func TestAPI_RegisterDuplicate(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "alice", "alice@example.com", "Sup3rStr0ng!1")

	rec := api.do(t, http.MethodPost, "/api/register", "", gin.H{
		"username":        "alice",
		"email":           "other@example.com",
		"password":        "Sup3rStr0ng!1",
		"confirmPassword": "Sup3rStr0ng!1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_LoginWrongPassword(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "alice", "alice@example.com", "Sup3rStr0ng!1")

	rec := api.do(t, http.MethodPost, "/api/login", "", gin.H{
		"username": "alice",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_SeedAdminLoginWithStoreDown(t *testing.T) {
	api := newTestAPI(t)
	api.health.set(false)

	token := api.login(t, "admin", "admin123")

	rec := api.do(t, http.MethodGet, "/api/user", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	user := decodeBody(t, rec)["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "admin", user["role"])
}

func TestAPI_UnauthorizedVariantsAreUniform(t *testing.T) {
	api := newTestAPI(t)

	missing := api.do(t, http.MethodGet, "/api/user", "", nil)
	garbage := api.do(t, http.MethodGet, "/api/user", "not-a-real-token", nil)

	assert.Equal(t, http.StatusUnauthorized, missing.Code)
	assert.Equal(t, http.StatusUnauthorized, garbage.Code)
	assert.Equal(t, missing.Body.String(), garbage.Body.String())
}

func TestAPI_LogoutRevokesToken(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "alice", "alice@example.com", "Sup3rStr0ng!1")
	token := api.login(t, "alice", "Sup3rStr0ng!1")

	rec := api.do(t, http.MethodPost, "/api/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/user", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_TransferAndHistory(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "alice", "alice@example.com", "Sup3rStr0ng!1")
	api.register(t, "bob", "bob@example.com", "Sup3rStr0ng!2")
	aliceToken := api.login(t, "alice", "Sup3rStr0ng!1")
	bobToken := api.login(t, "bob", "Sup3rStr0ng!2")

	rec := api.do(t, http.MethodPost, "/api/transactions/transfer", aliceToken, gin.H{
		"to":     "bob",
		"amount": 500,
		"note":   "lunch",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tx := decodeBody(t, rec)["data"].(map[string]any)["transaction"].(map[string]any)
	assert.Equal(t, "alice", tx["sender"])
	assert.Equal(t, "bob", tx["recipient"])
	assert.Equal(t, float64(500), tx["amount"])
	assert.Equal(t, "lunch", tx["note"])

	// Both parties see the record in their history.
	for _, token := range []string{aliceToken, bobToken} {
		rec := api.do(t, http.MethodGet, "/api/transactions", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		txs := decodeBody(t, rec)["data"].(map[string]any)["transactions"].([]any)
		require.Len(t, txs, 1)
		assert.Equal(t, float64(500), txs[0].(map[string]any)["amount"])
	}
}

func TestAPI_TransferRecipientNotFound(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "alice", "alice@example.com", "Sup3rStr0ng!1")
	token := api.login(t, "alice", "Sup3rStr0ng!1")

	rec := api.do(t, http.MethodPost, "/api/transactions/transfer", token, gin.H{
		"to":     "nosuchuser",
		"amount": 100,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "recipient not found")
}

func TestAPI_TransferToSelf(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "alice", "alice@example.com", "Sup3rStr0ng!1")
	token := api.login(t, "alice", "Sup3rStr0ng!1")

	rec := api.do(t, http.MethodPost, "/api/transactions/transfer", token, gin.H{
		"to":     "alice",
		"amount": 100,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_TransferBadAmount(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "alice", "alice@example.com", "Sup3rStr0ng!1")
	api.register(t, "bob", "bob@example.com", "Sup3rStr0ng!2")
	token := api.login(t, "alice", "Sup3rStr0ng!1")

	rec := api.do(t, http.MethodPost, "/api/transactions/transfer", token, gin.H{
		"to":     "bob",
		"amount": -50,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_HistoryInvalidLimit(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "alice", "alice@example.com", "Sup3rStr0ng!1")
	token := api.login(t, "alice", "Sup3rStr0ng!1")

	rec := api.do(t, http.MethodGet, "/api/transactions?limit=abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_HistoryEmptyIsArray(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "alice", "alice@example.com", "Sup3rStr0ng!1")
	token := api.login(t, "alice", "Sup3rStr0ng!1")

	rec := api.do(t, http.MethodGet, "/api/transactions", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	txs := decodeBody(t, rec)["data"].(map[string]any)["transactions"]
	assert.Equal(t, []any{}, txs)
}

func TestAPI_ListUsersExcludesCaller(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "alice", "alice@example.com", "Sup3rStr0ng!1")
	api.register(t, "bob", "bob@example.com", "Sup3rStr0ng!2")
	token := api.login(t, "alice", "Sup3rStr0ng!1")

	rec := api.do(t, http.MethodGet, "/api/users", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decodeBody(t, rec)["data"].(map[string]any)["users"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].(map[string]any)["username"])
}

func TestAPI_StoreDownAnswers503(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "alice", "alice@example.com", "Sup3rStr0ng!1")
	token := api.login(t, "alice", "Sup3rStr0ng!1")

	api.health.set(false)

	paths := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPost, "/api/register", gin.H{"username": "carol", "email": "carol@example.com", "password": "Sup3rStr0ng!3", "confirmPassword": "Sup3rStr0ng!3"}},
		{http.MethodGet, "/api/users", nil},
		{http.MethodPost, "/api/transactions/transfer", gin.H{"to": "bob", "amount": 10}},
		{http.MethodGet, "/api/transactions", nil},
	}
	for _, p := range paths {
		rec := api.do(t, p.method, p.path, token, p.body)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, fmt.Sprintf("%s %s", p.method, p.path))
	}

	// Session check stays up: it only touches the registry.
	rec := api.do(t, http.MethodGet, "/api/user", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_AdminStatsRequiresAdminRole(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "alice", "alice@example.com", "Sup3rStr0ng!1")
	userToken := api.login(t, "alice", "Sup3rStr0ng!1")
	adminToken := api.login(t, "admin", "admin123")

	rec := api.do(t, http.MethodGet, "/api/admin/stats", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/admin/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(2), stats["active_sessions"])
	assert.Equal(t, true, stats["store_healthy"])
}

func TestAPI_GoogleURL(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/auth/google/url", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	u := decodeBody(t, rec)["data"].(map[string]any)["url"].(string)
	assert.Contains(t, u, "client_id=client-id")
	assert.Contains(t, u, "state=")
}

func TestAPI_GoogleCallbackBadStateRedirects(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/auth/google/callback?code=x&state=bogus", "", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "error=oauth")
}
