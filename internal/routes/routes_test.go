package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/akaumigame6/web-token-sec/internal/config"
	"github.com/akaumigame6/web-token-sec/internal/handlers"
	"github.com/akaumigame6/web-token-sec/internal/metrics"
	"github.com/akaumigame6/web-token-sec/internal/models"
	"github.com/akaumigame6/web-token-sec/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

// =============================================================================
// In-Memory Repositories
// =============================================================================

type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]*models.User)}
}

func (r *memoryUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, fmt.Errorf("find user by id: %w", gorm.ErrRecordNotFound)
}

func (r *memoryUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("find user by email: %w", gorm.ErrRecordNotFound)
}

func (r *memoryUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return fmt.Errorf("create user: %w", gorm.ErrDuplicatedKey)
		}
	}
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *memoryUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return fmt.Errorf("update password: %w", gorm.ErrRecordNotFound)
	}
	user.Password = passwordHash
	return nil
}

func (r *memoryUserRepo) UpdateSecretQuestion(ctx context.Context, id string, questionID int64, answerHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return fmt.Errorf("update secret question: %w", gorm.ErrRecordNotFound)
	}
	user.SecretQuestionID = questionID
	user.SecretAnswer = answerHash
	return nil
}

func (r *memoryUserRepo) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = make(map[string]*models.User)
	return nil
}

type memoryQuestionRepo struct {
	questions []models.SecretQuestion
}

func (r *memoryQuestionRepo) List(ctx context.Context) ([]models.SecretQuestion, error) {
	return r.questions, nil
}

func (r *memoryQuestionRepo) FindByID(ctx context.Context, id int64) (*models.SecretQuestion, error) {
	for _, q := range r.questions {
		if q.ID == id {
			return &q, nil
		}
	}
	return nil, fmt.Errorf("find secret question: %w", gorm.ErrRecordNotFound)
}

func (r *memoryQuestionRepo) ReplaceAll(ctx context.Context, questions []models.SecretQuestion) error {
	r.questions = questions
	return nil
}

// =============================================================================
// Test Stack
// =============================================================================

type testStack struct {
	router *gin.Engine
	auth   service.AuthService
	tokens service.TokenService
}

func setupStack(t *testing.T, csrfEnforce bool) *testStack {
	t.Helper()

	secLog := service.NewSecurityLog(slog.New(slog.NewTextHandler(io.Discard, nil)))
	tokens, err := service.NewTokenService("this-is-a-test-secret-with-32-bytes!", 3*time.Hour)
	if err != nil {
		t.Fatalf("Failed to create token service: %v", err)
	}
	guard := service.NewCSRFGuard("csrf-test-secret")
	limiter := service.NewMemoryRateLimiter(time.Hour)
	t.Cleanup(limiter.Stop)

	users := newMemoryUserRepo()
	questions := &memoryQuestionRepo{questions: []models.SecretQuestion{
		{ID: 1, Question: "What was the name of your first pet?"},
		{ID: 2, Question: "What was the name of your elementary school?"},
	}}

	auth := service.NewAuthService(users, questions, tokens, limiter, secLog, service.AuthConfig{
		SignupDelay:         0,
		BcryptCost:          bcrypt.MinCost,
		ResetTokenExpiry:    15 * time.Minute,
		RecoveryTokenExpiry: 10 * time.Minute,
	})

	m := metrics.NewWith(prometheus.NewRegistry())
	router := gin.New()
	Setup(
		router,
		handlers.NewAuthHandler(auth, tokens, secLog, m),
		handlers.NewCSRFHandler(guard, false),
		handlers.NewHealthHandler(),
		tokens,
		guard,
		secLog,
		&config.Config{CSRFEnforce: csrfEnforce, Environment: "development"},
	)

	return &testStack{router: router, auth: auth, tokens: tokens}
}

func (s *testStack) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testStack) signup(t *testing.T, email, password, answer string) {
	t.Helper()
	_, err := s.auth.Signup(context.Background(), service.SignupRequest{
		Name:             "Flow User",
		Email:            email,
		Password:         password,
		ConfirmPassword:  password,
		SecretQuestionID: 1,
		SecretAnswer:     answer,
	}, service.ClientInfo{IPAddress: "flow-test"})
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
}

func payloadOf(t *testing.T, w *httptest.ResponseRecorder) any {
	t.Helper()
	var resp handlers.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response body %q: %v", w.Body.String(), err)
	}
	return resp.Payload
}

// =============================================================================
// End-to-End Flow Tests
// =============================================================================

func TestLoginLockoutFlow(t *testing.T) {
	stack := setupStack(t, false)
	stack.signup(t, "flow@example.com", "Password1!", "Rex")

	// A correct login succeeds and returns a usable session token.
	w := stack.do(http.MethodPost, "/api/login", `{"email":"flow@example.com","password":"Password1!"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200; body = %s", w.Code, w.Body.String())
	}
	token, _ := payloadOf(t, w).(string)
	if _, err := stack.tokens.Verify(token, service.PurposeSession); err != nil {
		t.Fatalf("login returned an unverifiable token: %v", err)
	}

	// Four wrong attempts exhaust the window (the success above counted too).
	for i := 0; i < 4; i++ {
		w = stack.do(http.MethodPost, "/api/login", `{"email":"flow@example.com","password":"wrong"}`, nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("wrong login #%d status = %d, want 401", i+1, w.Code)
		}
	}

	// The 6th attempt in the window is rejected even with correct credentials.
	w = stack.do(http.MethodPost, "/api/login", `{"email":"flow@example.com","password":"Password1!"}`, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("over-limit login status = %d, want 429; body = %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After")
	}
}

func TestPasswordRecoveryFlow(t *testing.T) {
	stack := setupStack(t, false)
	stack.signup(t, "forgot@example.com", "OldPassword1!", "Rex")

	// Look up the account's secret question by email.
	w := stack.do(http.MethodGet, "/api/user-secret-question-by-email?email=forgot@example.com", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("question lookup status = %d, want 200; body = %s", w.Code, w.Body.String())
	}
	question, _ := payloadOf(t, w).(map[string]any)
	if question["question"] != "What was the name of your first pet?" {
		t.Fatalf("question payload = %v", question)
	}

	// Exchange the secret answer for a reset token.
	w = stack.do(http.MethodPost, "/api/verify-secret-answer-by-email",
		`{"email":"forgot@example.com","secretAnswer":"Rex"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("verify answer status = %d, want 200; body = %s", w.Code, w.Body.String())
	}
	payload, _ := payloadOf(t, w).(map[string]any)
	resetToken, _ := payload["resetToken"].(string)
	if resetToken == "" {
		t.Fatal("verify answer returned no reset token")
	}

	// The reset token authorizes the password update.
	w = stack.do(http.MethodPost, "/api/update-password", `{"newPassword":"NewPassword2!"}`,
		map[string]string{"X-Reset-Token": resetToken})
	if w.Code != http.StatusOK {
		t.Fatalf("update password status = %d, want 200; body = %s", w.Code, w.Body.String())
	}

	// Old password is dead, the new one works.
	w = stack.do(http.MethodPost, "/api/login", `{"email":"forgot@example.com","password":"OldPassword1!"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("old password login status = %d, want 401", w.Code)
	}
	w = stack.do(http.MethodPost, "/api/login", `{"email":"forgot@example.com","password":"NewPassword2!"}`, nil)
	if w.Code != http.StatusOK {
		t.Errorf("new password login status = %d, want 200; body = %s", w.Code, w.Body.String())
	}
}

func TestSessionProtectedFlow(t *testing.T) {
	stack := setupStack(t, false)
	stack.signup(t, "member@example.com", "Password1!", "Rex")

	// Protected routes reject anonymous callers.
	w := stack.do(http.MethodGet, "/api/user-secret-question", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", w.Code)
	}

	w = stack.do(http.MethodPost, "/api/login", `{"email":"member@example.com","password":"Password1!"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200", w.Code)
	}
	token, _ := payloadOf(t, w).(string)
	authz := map[string]string{"Authorization": "Bearer " + token}

	// With a session: read the question, prove the answer, rotate the question.
	w = stack.do(http.MethodGet, "/api/user-secret-question", "", authz)
	if w.Code != http.StatusOK {
		t.Fatalf("question status = %d, want 200; body = %s", w.Code, w.Body.String())
	}

	w = stack.do(http.MethodPost, "/api/verify-secret-answer", `{"answer":"Rex"}`, authz)
	if w.Code != http.StatusOK {
		t.Fatalf("verify answer status = %d, want 200; body = %s", w.Code, w.Body.String())
	}

	w = stack.do(http.MethodPut, "/api/update-secret-question",
		`{"secretQuestionId":2,"secretAnswer":"Northside","currentPassword":"Password1!"}`, authz)
	if w.Code != http.StatusOK {
		t.Fatalf("update question status = %d, want 200; body = %s", w.Code, w.Body.String())
	}

	// The rotated question is now served.
	w = stack.do(http.MethodGet, "/api/user-secret-question", "", authz)
	question, _ := payloadOf(t, w).(map[string]any)
	if question["question"] != "What was the name of your elementary school?" {
		t.Errorf("question after rotation = %v", question)
	}

	// And the wrong current password blocks rotation.
	w = stack.do(http.MethodPut, "/api/update-secret-question",
		`{"secretQuestionId":1,"secretAnswer":"Rex","currentPassword":"wrong"}`, authz)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("rotation with wrong password status = %d, want 401", w.Code)
	}
}

func TestCSRFEnforcedFlow(t *testing.T) {
	stack := setupStack(t, true)
	stack.signup(t, "csrf@example.com", "Password1!", "Rex")

	// State-changing request without the CSRF pair is rejected.
	w := stack.do(http.MethodPost, "/api/login", `{"email":"csrf@example.com","password":"Password1!"}`, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("login without CSRF status = %d, want 403", w.Code)
	}

	// GET is exempt, so the token endpoint is reachable.
	w = stack.do(http.MethodGet, "/api/csrf-token", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("csrf-token status = %d, want 200", w.Code)
	}
	payload, _ := payloadOf(t, w).(map[string]any)
	token, _ := payload["csrfToken"].(string)
	if token == "" {
		t.Fatal("no csrf token issued")
	}

	// Replaying the token as cookie and header unlocks the POST.
	w = stack.do(http.MethodPost, "/api/login", `{"email":"csrf@example.com","password":"Password1!"}`,
		map[string]string{
			"Cookie":       "csrfToken=" + token,
			"X-CSRF-Token": token,
		})
	if w.Code != http.StatusOK {
		t.Fatalf("login with CSRF pair status = %d, want 200; body = %s", w.Code, w.Body.String())
	}
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	stack := setupStack(t, false)

	if w := stack.do(http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", w.Code)
	}
	if w := stack.do(http.MethodGet, "/metrics", "", nil); w.Code != http.StatusOK {
		t.Errorf("metrics status = %d, want 200", w.Code)
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	stack := setupStack(t, false)

	w := stack.do(http.MethodGet, "/health", "", nil)
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}
