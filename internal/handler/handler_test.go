package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"support-chat/config"
	"support-chat/internal/domain/user"
	"support-chat/internal/handler"
	"support-chat/internal/repository"
	"support-chat/internal/server"
	"support-chat/internal/services"
	"support-chat/internal/testutil"
	"support-chat/internal/transport/httpdto"
	"support-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type apiEnv struct {
	db     *gorm.DB
	engine *gin.Engine
	auth   *services.AuthService
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	cfg := &config.Config{
		AppMode:       server.TestMode,
		AppPort:       "0",
		JWTSecret:     "handler-secret",
		JWTExpiryMin:  15,
		RefreshExpiry: 7,
		CORSOrigins:   []string{"*"},
	}
	db := testutil.OpenDB(t)
	users := repository.NewUserRepository(db)
	convs := repository.NewConversationRepository(db)
	msgs := repository.NewMessageRepository(db)

	nop := logger.NewNop()
	pub := services.NewEventPublisher(nil, nil, nop)
	auth := services.NewAuthService(users, convs, cfg)

	srv := server.New(cfg, nop)
	srv.SetupRoutes(&server.Handlers{
		Auth:          handler.NewAuthHandler(auth, handler.CookieConfig{MaxAge: 3600}),
		Messages:      handler.NewMessageHandler(services.NewMessageService(db, users, convs, msgs, pub, nop)),
		Conversations: handler.NewConversationHandler(services.NewConversationService(db, users, convs)),
		Presence:      handler.NewPresenceHandler(services.NewPresenceService(services.NewMemoryPresence(), users, pub, nop)),
	}, auth, nil, func() error { return nil })

	return &apiEnv{db: db, engine: srv.Engine(), auth: auth}
}

func (e *apiEnv) token(t *testing.T, u user.User) string {
	t.Helper()
	res, err := e.auth.Login(context.Background(), services.LoginInput{Email: u.Email, Password: testutil.Password})
	if err != nil {
		t.Fatalf("login %s: %v", u.Name, err)
	}
	return res.AccessToken
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) httpdto.Response[T] {
	t.Helper()
	var resp httpdto.Response[T]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return resp
}

func refreshCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == handler.RefreshCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie in %v", handler.RefreshCookie, w.Header())
	return nil
}

func TestPingAndHealth(t *testing.T) {
	env := newAPIEnv(t)
	if w := env.do(t, http.MethodGet, "/ping", "", nil); w.Code != http.StatusOK {
		t.Fatalf("ping = %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Fatalf("health = %d", w.Code)
	}
}

func TestRegisterLoginRefreshLogout(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"name": "Dana", "email": "dana@example.com", "password": "Str0ng!pass",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register = %d %s", w.Code, w.Body.String())
	}
	registered := decode[services.UserInfo](t, w)
	if registered.Data.Name != "dana" || registered.Data.DisplayName != "Dana" {
		t.Fatalf("unexpected user %+v", registered.Data)
	}

	w = env.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"name": "dana", "email": "other@example.com", "password": "Str0ng!pass",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate register = %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "dana@example.com", "password": "Str0ng!pass",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d %s", w.Code, w.Body.String())
	}
	login := decode[httpdto.TokenResponse](t, w)
	cookie := refreshCookie(t, w)
	if login.Data.AccessToken == "" || !cookie.HttpOnly || cookie.SameSite != http.SameSiteNoneMode {
		t.Fatalf("bad login response %+v cookie %+v", login.Data, cookie)
	}
	if strings.Contains(w.Body.String(), cookie.Value) {
		t.Fatalf("refresh token leaked into body")
	}

	if w := env.do(t, http.MethodGet, "/v1/auth/me", login.Data.AccessToken, nil); w.Code != http.StatusOK {
		t.Fatalf("me = %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/v1/auth/refresh", "", nil, cookie)
	if w.Code != http.StatusCreated {
		t.Fatalf("refresh = %d %s", w.Code, w.Body.String())
	}
	rotated := refreshCookie(t, w)
	if rotated.Value == cookie.Value {
		t.Fatalf("refresh cookie not rotated")
	}

	w = env.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": rotated.Value})
	if w.Code != http.StatusCreated {
		t.Fatalf("body refresh = %d %s", w.Code, w.Body.String())
	}
	latest := refreshCookie(t, w)

	w = env.do(t, http.MethodPost, "/v1/auth/logout", "", nil, latest)
	if w.Code != http.StatusOK || refreshCookie(t, w).MaxAge >= 0 {
		t.Fatalf("logout = %d, cookie not cleared", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/v1/auth/refresh", "", nil, latest); w.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout = %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/v1/auth/logout", "", nil); w.Code != http.StatusOK {
		t.Fatalf("logout without cookie = %d", w.Code)
	}
}

func TestRegisterValidationDetails(t *testing.T) {
	env := newAPIEnv(t)
	w := env.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{"name": "ab", "email": "nope"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode[any](t, w)
	if resp.Code != httpdto.CodeInvalidRequest {
		t.Fatalf("code = %q", resp.Code)
	}
	for _, field := range []string{"name", "email", "password"} {
		if _, ok := resp.Details[field]; !ok {
			t.Fatalf("missing detail for %s: %v", field, resp.Details)
		}
	}
}

func TestAdminLoginReturnsLastConversation(t *testing.T) {
	env := newAPIEnv(t)
	admin := testutil.CreateUser(t, env.db, "agent", user.RoleUser, user.RoleAdmin)
	customer := testutil.CreateUser(t, env.db, "customer", user.RoleUser)

	w := env.do(t, http.MethodPost, "/v1/messages", env.token(t, customer), map[string]string{
		"receiver_id": admin.ID.String(), "text": "hello",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("send = %d %s", w.Code, w.Body.String())
	}
	sent := decode[httpdto.SendMessageResponse](t, w)

	w = env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": admin.Email, "password": testutil.Password,
	})
	login := decode[httpdto.TokenResponse](t, w)
	if login.Data.LastConversationID != sent.Data.ConversationID || login.Data.UserID != admin.ID.String() {
		t.Fatalf("admin login = %+v", login.Data)
	}
}

func TestMessagesFlow(t *testing.T) {
	env := newAPIEnv(t)
	admin := testutil.CreateUser(t, env.db, "agent", user.RoleUser, user.RoleAdmin)
	customer := testutil.CreateUser(t, env.db, "customer", user.RoleUser)
	stranger := testutil.CreateUser(t, env.db, "stranger", user.RoleUser)
	customerToken := env.token(t, customer)
	adminToken := env.token(t, admin)

	w := env.do(t, http.MethodPost, "/v1/messages", customerToken, map[string]string{
		"receiver_id": admin.ID.String(), "text": "first",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("first send = %d %s", w.Code, w.Body.String())
	}
	first := decode[httpdto.SendMessageResponse](t, w)
	if !first.Data.ConversationCreated || first.Data.ConversationID == "" {
		t.Fatalf("first send = %+v", first.Data)
	}

	w = env.do(t, http.MethodPost, "/v1/messages", adminToken, map[string]string{
		"receiver_id": customer.ID.String(), "conversation_id": first.Data.ConversationID, "text": "reply",
	})
	reply := decode[httpdto.SendMessageResponse](t, w)
	if w.Code != http.StatusCreated || reply.Data.ConversationCreated || reply.Data.ConversationID != first.Data.ConversationID {
		t.Fatalf("reply = %d %+v", w.Code, reply.Data)
	}

	w = env.do(t, http.MethodGet, "/v1/messages/"+first.Data.ConversationID+"?page=1&limit=10", customerToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("page = %d %s", w.Code, w.Body.String())
	}
	page := decode[services.MessagePage](t, w)
	if len(page.Data.Messages) != 2 || page.Data.Messages[0].Text != "first" || page.Data.Pagination.TotalCount != 2 {
		t.Fatalf("page = %+v", page.Data)
	}

	if w := env.do(t, http.MethodGet, "/v1/messages/"+first.Data.ConversationID, env.token(t, stranger), nil); w.Code != http.StatusForbidden {
		t.Fatalf("stranger page = %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/v1/messages/"+first.Data.ConversationID, "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous page = %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/v1/messages/"+first.Data.ConversationID+"?page=abc", customerToken, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad page param = %d", w.Code)
	}
}

func TestSendValidation(t *testing.T) {
	env := newAPIEnv(t)
	admin := testutil.CreateUser(t, env.db, "agent", user.RoleUser, user.RoleAdmin)
	other := testutil.CreateUser(t, env.db, "other", user.RoleUser)
	customer := testutil.CreateUser(t, env.db, "customer", user.RoleUser)
	token := env.token(t, customer)

	cases := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{"missing receiver", map[string]string{"text": "hi"}, http.StatusBadRequest},
		{"bad receiver", map[string]string{"receiver_id": "nope", "text": "hi"}, http.StatusBadRequest},
		{"empty text", map[string]string{"receiver_id": admin.ID.String(), "text": ""}, http.StatusBadRequest},
		{"blank text", map[string]string{"receiver_id": admin.ID.String(), "text": "   "}, http.StatusBadRequest},
		{"self", map[string]string{"receiver_id": customer.ID.String(), "text": "hi"}, http.StatusBadRequest},
		{"no admin side", map[string]string{"receiver_id": other.ID.String(), "text": "hi"}, http.StatusBadRequest},
		{"too long", map[string]string{"receiver_id": admin.ID.String(), "text": strings.Repeat("x", services.MaxMessageRunes+1)}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/v1/messages", token, tc.body)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tc.status, w.Body.String())
			}
			if resp := decode[any](t, w); resp.Success || resp.Code != httpdto.CodeInvalidRequest {
				t.Fatalf("unexpected envelope %+v", resp)
			}
		})
	}
}

func TestConversationsEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	admin := testutil.CreateUser(t, env.db, "agent", user.RoleUser, user.RoleAdmin)
	customer := testutil.CreateUser(t, env.db, "customer", user.RoleUser)
	customerToken := env.token(t, customer)
	adminToken := env.token(t, admin)

	w := env.do(t, http.MethodPost, "/v1/conversations/support", customerToken, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("support = %d %s", w.Code, w.Body.String())
	}
	support := decode[services.ConversationView](t, w)
	if support.Data.AdminID != admin.ID.String() || support.Data.Counterpart == nil {
		t.Fatalf("support = %+v", support.Data)
	}

	if w := env.do(t, http.MethodPost, "/v1/conversations/support", customerToken, map[string]string{}); w.Code != http.StatusOK {
		t.Fatalf("second support = %d", w.Code)
	}

	if w := env.do(t, http.MethodGet, "/v1/conversations/admin", customerToken, nil); w.Code != http.StatusForbidden {
		t.Fatalf("user on admin list = %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/v1/conversations/admin", adminToken, nil)
	list := decode[services.ConversationList](t, w)
	if w.Code != http.StatusOK || len(list.Data.Conversations) != 1 {
		t.Fatalf("admin list = %d %+v", w.Code, list.Data)
	}
	if cp := list.Data.Conversations[0].Counterpart; cp == nil || cp.ID != customer.ID.String() {
		t.Fatalf("admin list counterpart = %+v", cp)
	}

	w = env.do(t, http.MethodGet, "/v1/conversations/user", customerToken, nil)
	if list := decode[services.ConversationList](t, w); w.Code != http.StatusOK || len(list.Data.Conversations) != 1 {
		t.Fatalf("user list = %d %+v", w.Code, list.Data)
	}

	path := "/v1/conversations/" + support.Data.ID
	if w := env.do(t, http.MethodGet, path, adminToken, nil); w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, path+"/read", adminToken, nil); w.Code != http.StatusOK {
		t.Fatalf("read = %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/v1/conversations/not-an-id", adminToken, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id = %d", w.Code)
	}
}

func TestPresenceOnlineEmpty(t *testing.T) {
	env := newAPIEnv(t)
	customer := testutil.CreateUser(t, env.db, "customer", user.RoleUser)

	w := env.do(t, http.MethodGet, "/v1/presence/online", env.token(t, customer), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("online = %d", w.Code)
	}
	resp := decode[httpdto.OnlineUsersResponse](t, w)
	if resp.Data.UserIDs == nil || len(resp.Data.UserIDs) != 0 {
		t.Fatalf("online = %+v", resp.Data)
	}
}
