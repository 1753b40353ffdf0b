package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"collab-editor/internal/models"
	"collab-editor/internal/repository"

	"github.com/golang-jwt/jwt/v5"
)

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*models.User)}
}

func (f *fakeUserStore) Create(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == user.Username || u.Email == user.Email {
			return fmt.Errorf("user %s: %w", user.Username, repository.ErrDuplicate)
		}
	}
	user.ID = fmt.Sprintf("user-%d", len(f.users)+1)
	f.users[user.Username] = user
	return nil
}

func (f *fakeUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", username, repository.ErrNotFound)
	}
	return u, nil
}

func TestSignUpLoginAuthenticate(t *testing.T) {
	svc := NewService(newFakeUserStore(), "secret", time.Hour)
	ctx := context.Background()

	token, err := svc.SignUp(ctx, "alice", "alice@example.com", "hunter22")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if identity, err := svc.Authenticate(ctx, token); err != nil || identity != "alice" {
		t.Fatalf("Authenticate() = %q, %v; want alice", identity, err)
	}

	token, err = svc.Login(ctx, "alice", "hunter22")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Subject != "user-1" || claims.ID == "" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestSignUpErrors(t *testing.T) {
	svc := NewService(newFakeUserStore(), "secret", time.Hour)
	ctx := context.Background()
	if _, err := svc.SignUp(ctx, "alice", "alice@example.com", "hunter22"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	tests := []struct {
		name     string
		username string
		email    string
		password string
		wantErr  error
	}{
		{name: "missing email", username: "bob", password: "hunter22", wantErr: ErrInvalidInput},
		{name: "short password", username: "bob", email: "bob@example.com", password: "abc", wantErr: ErrInvalidInput},
		{name: "taken username", username: "alice", email: "other@example.com", password: "hunter22", wantErr: ErrUserExists},
		{name: "taken email", username: "bob", email: "alice@example.com", password: "hunter22", wantErr: ErrUserExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.SignUp(ctx, tt.username, tt.email, tt.password); !errors.Is(err, tt.wantErr) {
				t.Fatalf("SignUp() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := NewService(newFakeUserStore(), "secret", time.Hour)
	ctx := context.Background()
	svc.SignUp(ctx, "alice", "alice@example.com", "hunter22")

	if _, err := svc.Login(ctx, "alice", "wrong-password"); !errors.Is(err, ErrAuthFailure) {
		t.Fatalf("Login(wrong password) error = %v, want ErrAuthFailure", err)
	}
	if _, err := svc.Login(ctx, "nobody", "hunter22"); !errors.Is(err, ErrAuthFailure) {
		t.Fatalf("Login(unknown user) error = %v, want ErrAuthFailure", err)
	}
	if _, err := svc.Login(ctx, "", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Login(empty) error = %v, want ErrInvalidInput", err)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	store := newFakeUserStore()
	svc := NewService(store, "secret", time.Hour)
	ctx := context.Background()
	token, _ := svc.SignUp(ctx, "alice", "alice@example.com", "hunter22")

	other := NewService(store, "another-secret", time.Hour)
	if _, err := other.Verify(token); !errors.Is(err, ErrAuthFailure) {
		t.Fatalf("Verify(wrong secret) error = %v, want ErrAuthFailure", err)
	}

	expired := NewService(store, "secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := expired.Verify(token); !errors.Is(err, ErrAuthFailure) {
		t.Fatalf("Verify(expired) error = %v, want ErrAuthFailure", err)
	}

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Username: "alice"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := svc.Verify(none); !errors.Is(err, ErrAuthFailure) {
		t.Fatalf("Verify(alg none) error = %v, want ErrAuthFailure", err)
	}

	if _, err := svc.Authenticate(ctx, "garbage"); !errors.Is(err, ErrAuthFailure) {
		t.Fatalf("Authenticate(garbage) error = %v, want ErrAuthFailure", err)
	}
}
