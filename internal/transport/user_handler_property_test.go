package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"giftlist/internal/domain"
	"giftlist/internal/middleware"
	"giftlist/internal/repository"
	"giftlist/internal/service"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

// Mock repositories for testing
type mockUserRepository struct {
	users  map[string]*domain.User
	nextID int64
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	for _, existing := range m.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repository.ErrUserAlreadyExists
		}
	}
	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = time.Now()
	m.users[user.Username] = user
	return nil
}

func (m *mockUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, exists := m.users[username]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type mockRefreshTokenRepository struct {
	tokens map[string]*domain.RefreshToken
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{
		tokens: make(map[string]*domain.RefreshToken),
	}
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.tokens[token.Token] = token
	return nil
}

func (m *mockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if refreshToken.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return refreshToken, nil
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return repository.ErrRefreshTokenNotFound
	}
	refreshToken.Revoked = true
	return nil
}

func (m *mockRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	for _, token := range m.tokens {
		if token.UserID == userID && !token.Revoked {
			token.Revoked = true
			n++
		}
	}
	return n, nil
}

func newTestUserHandler() (*UserHandler, service.UserService) {
	userService := service.NewUserService(
		newMockUserRepository(),
		newMockRefreshTokenRepository(),
		service.TokenSettings{Secret: "test-secret"},
	)
	return NewUserHandler(userService, zap.NewNop()), userService
}

func postJSON(path string, body interface{}) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// Feature: gift-list, Property 50: Invalid registration data is rejected
func TestProperty_InvalidRegistrationDataIsRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("registration with invalid data returns validation errors", prop.ForAll(
		func(invalidCase int) bool {
			handler, _ := newTestUserHandler()

			var reqBody RegisterRequest

			switch invalidCase % 4 {
			case 0:
				// Empty username
				reqBody = RegisterRequest{Username: "", Email: "bob@example.com", Password: "ValidPass123"}
			case 1:
				// Invalid email format
				reqBody = RegisterRequest{Username: "bob", Email: "not-an-email", Password: "ValidPass123"}
			case 2:
				// Short password (less than 8 characters)
				reqBody = RegisterRequest{Username: "bob", Email: "bob@example.com", Password: "short"}
			case 3:
				// Username below minimum length
				reqBody = RegisterRequest{Username: "bo", Email: "bob@example.com", Password: "ValidPass123"}
			}

			w := httptest.NewRecorder()
			handler.Register(w, postJSON("/api/v1/auth/register", reqBody))

			if w.Code != http.StatusBadRequest {
				t.Logf("FAIL: Expected 400 status code, got %d", w.Code)
				return false
			}

			var response map[string]interface{}
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Logf("FAIL: Could not decode error response: %v", err)
				return false
			}

			if response["status"] != "error" || response["code"] != float64(http.StatusBadRequest) {
				t.Logf("FAIL: Unexpected envelope %v", response)
				return false
			}

			return true
		},
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: gift-list, Property 53: Successful registration returns profile data
func TestProperty_SuccessfulRegistrationReturnsProfileData(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("successful registration returns user profile with all fields", prop.ForAll(
		func(username string, email string, password string) bool {
			handler, _ := newTestUserHandler()

			w := httptest.NewRecorder()
			handler.Register(w, postJSON("/api/v1/auth/register", RegisterRequest{
				Username: username,
				Email:    email,
				Password: password,
			}))

			if w.Code != http.StatusCreated {
				t.Logf("FAIL: Expected 201 status code, got %d", w.Code)
				return false
			}

			var profile UserProfile
			if err := json.NewDecoder(w.Body).Decode(&profile); err != nil {
				t.Logf("FAIL: Could not decode response: %v", err)
				return false
			}

			if profile.ID < 1 {
				t.Logf("FAIL: Profile missing ID")
				return false
			}
			if profile.Username != username || profile.Email != email {
				t.Logf("FAIL: Profile mismatch: %+v", profile)
				return false
			}
			if profile.Role != domain.RoleUser.String() {
				t.Logf("FAIL: Unexpected role %q", profile.Role)
				return false
			}

			return true
		},
		gen.RegexMatch(`[a-z]{3,12}`),
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: gift-list, Property 52: Valid login returns both tokens
func TestProperty_ValidLoginReturnsBothTokens(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("valid login returns access token and refresh token", prop.ForAll(
		func(username string, email string, password string) bool {
			handler, userService := newTestUserHandler()

			if _, err := userService.Register(context.Background(), username, email, password); err != nil {
				t.Logf("FAIL: Registration failed: %v", err)
				return false
			}

			w := httptest.NewRecorder()
			handler.Login(w, postJSON("/api/v1/auth/login", LoginRequest{Username: username, Password: password}))

			if w.Code != http.StatusOK {
				t.Logf("FAIL: Expected 200 status code, got %d", w.Code)
				return false
			}

			var loginResp LoginResponse
			if err := json.NewDecoder(w.Body).Decode(&loginResp); err != nil {
				t.Logf("FAIL: Could not decode login response: %v", err)
				return false
			}

			if loginResp.AccessToken == "" || loginResp.RefreshToken == "" {
				t.Logf("FAIL: Missing token in %+v", loginResp)
				return false
			}
			if loginResp.User.Username != username {
				t.Logf("FAIL: User username mismatch")
				return false
			}

			claims, err := userService.ValidateToken(loginResp.AccessToken)
			if err != nil {
				t.Logf("FAIL: Access token validation failed: %v", err)
				return false
			}
			if claims.UserID != loginResp.User.ID {
				t.Logf("FAIL: Token user ID doesn't match profile ID")
				return false
			}

			newAccessToken, err := userService.RefreshToken(context.Background(), loginResp.RefreshToken)
			if err != nil || newAccessToken == "" {
				t.Logf("FAIL: Refresh token is not valid: %v", err)
				return false
			}

			return true
		},
		gen.RegexMatch(`[a-z]{3,12}`),
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestDuplicateRegistrationConflicts(t *testing.T) {
	handler, _ := newTestUserHandler()
	body := RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "correct-horse"}

	first := httptest.NewRecorder()
	handler.Register(first, postJSON("/api/v1/auth/register", body))
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.Code)
	}

	body.Email = "other@example.com"
	second := httptest.NewRecorder()
	handler.Register(second, postJSON("/api/v1/auth/register", body))
	if second.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate username, got %d", second.Code)
	}
}

func TestLoginWithWrongPasswordIsUnauthorized(t *testing.T) {
	handler, userService := newTestUserHandler()
	if _, err := userService.Register(context.Background(), "alice", "alice@example.com", "correct-horse"); err != nil {
		t.Fatalf("register: %v", err)
	}

	w := httptest.NewRecorder()
	handler.Login(w, postJSON("/api/v1/auth/login", LoginRequest{Username: "alice", Password: "battery-staple"}))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	handler, userService := newTestUserHandler()
	ctx := context.Background()
	if _, err := userService.Register(ctx, "alice", "alice@example.com", "correct-horse"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, refresh, _, err := userService.Login(ctx, "alice", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	w := httptest.NewRecorder()
	handler.Logout(w, postJSON("/api/v1/auth/logout", RefreshRequest{RefreshToken: refresh}))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.RefreshToken(w, postJSON("/api/v1/auth/refresh", RefreshRequest{RefreshToken: refresh}))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for revoked token, got %d", w.Code)
	}
}

func TestProfileAndLogoutAllUseCaller(t *testing.T) {
	handler, userService := newTestUserHandler()
	ctx := context.Background()
	user, err := userService.Register(ctx, "alice", "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, _, _, err := userService.Login(ctx, "alice", "correct-horse"); err != nil {
			t.Fatalf("login: %v", err)
		}
	}
	authed := middleware.WithUser(ctx, user.ID, user.Username, user.Role.String())

	w := httptest.NewRecorder()
	handler.GetProfile(w, httptest.NewRequest(http.MethodGet, "/api/v1/auth/profile", nil).WithContext(authed))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var profile UserProfile
	if err := json.NewDecoder(w.Body).Decode(&profile); err != nil || profile.Username != "alice" {
		t.Fatalf("unexpected profile %+v (%v)", profile, err)
	}

	w = httptest.NewRecorder()
	handler.LogoutAll(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout-all", nil).WithContext(authed))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var revoked map[string]int64
	if err := json.NewDecoder(w.Body).Decode(&revoked); err != nil || revoked["revoked"] != 2 {
		t.Fatalf("expected 2 revoked tokens, got %v (%v)", revoked, err)
	}

	w = httptest.NewRecorder()
	handler.GetProfile(w, httptest.NewRequest(http.MethodGet, "/api/v1/auth/profile", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without caller, got %d", w.Code)
	}
}
