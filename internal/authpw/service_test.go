package authpw

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"snipshelf/internal/store"
)

// mockUserStore is a mock implementation of UserStore for testing
type mockUserStore struct {
	users      map[string]store.User
	emailIndex map[string]string // email -> userID
	lookupErr  error
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:      make(map[string]store.User),
		emailIndex: make(map[string]string),
	}
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if m.lookupErr != nil {
		return store.User{}, m.lookupErr
	}
	if userID, ok := m.emailIndex[strings.ToLower(strings.TrimSpace(email))]; ok {
		return m.users[userID], nil
	}
	return store.User{}, sql.ErrNoRows
}

func (m *mockUserStore) CreateUser(ctx context.Context, user store.User) error {
	m.users[user.ID] = user
	m.emailIndex[user.Email] = user.ID
	return nil
}

func newTestService(users UserStore) *Service {
	svc := NewService(users)
	svc.cost = bcrypt.MinCost
	return svc
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockUserStore()
	svc := newTestService(mockStore)

	t.Run("successful sign up", func(t *testing.T) {
		user, err := svc.SignUp(ctx, SignUpRequest{
			Email:       " Test@Example.com ",
			Password:    "password123",
			DisplayName: "Test User",
		})
		if err != nil {
			t.Fatalf("SignUp failed: %v", err)
		}
		if !strings.HasPrefix(user.ID, "usr_") {
			t.Errorf("expected usr_ prefix, got %s", user.ID)
		}
		if user.PasswordHash != "" {
			t.Error("password hash must not be returned")
		}
		stored := mockStore.users[user.ID]
		if stored.Email != "test@example.com" {
			t.Errorf("expected normalized email, got %q", stored.Email)
		}
		if bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("password123")) != nil {
			t.Error("stored hash does not match password")
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.SignUp(ctx, SignUpRequest{Email: "test@example.com", Password: "password456", DisplayName: "Again"})
		if !errors.Is(err, ErrEmailTaken) {
			t.Fatalf("expected ErrEmailTaken, got %v", err)
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		cases := []SignUpRequest{
			{Email: "", Password: "password123", DisplayName: "A"},
			{Email: "new@example.com", Password: "short", DisplayName: "A"},
			{Email: "not-an-email", Password: "password123", DisplayName: "A"},
			{Email: "new@example.com", Password: "password123", DisplayName: "  "},
		}
		for _, req := range cases {
			if _, err := svc.SignUp(ctx, req); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("SignUp(%+v) = %v, want ErrInvalidInput", req, err)
			}
		}
	})

	t.Run("store failure is not reported as taken", func(t *testing.T) {
		failing := newMockUserStore()
		failing.lookupErr = errors.New("db down")
		_, err := newTestService(failing).SignUp(ctx, SignUpRequest{Email: "x@example.com", Password: "password123", DisplayName: "X"})
		if err == nil || errors.Is(err, ErrEmailTaken) {
			t.Fatalf("expected wrapped store error, got %v", err)
		}
	})
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockUserStore()
	svc := newTestService(mockStore)

	created, err := svc.SignUp(ctx, SignUpRequest{Email: "test@example.com", Password: "password123", DisplayName: "Test User"})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	t.Run("valid credentials", func(t *testing.T) {
		user, err := svc.SignIn(ctx, SignInRequest{Email: "TEST@example.com", Password: "password123"})
		if err != nil {
			t.Fatalf("SignIn failed: %v", err)
		}
		if user.ID != created.ID {
			t.Errorf("expected %s, got %s", created.ID, user.ID)
		}
		if user.PasswordHash != "" {
			t.Error("password hash must not be returned")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.SignIn(ctx, SignInRequest{Email: "test@example.com", Password: "wrongpassword"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.SignIn(ctx, SignInRequest{Email: "nobody@example.com", Password: "password123"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.SignIn(ctx, SignInRequest{})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}
