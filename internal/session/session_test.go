package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestGateRequiresIdentity(t *testing.T) {
	gate := NewGate(NewTokenProvider("secret"))
	if !gate.Loading() {
		t.Fatal("gate should be loading before Initialize")
	}
	if err := gate.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if gate.Loading() {
		t.Fatal("loading flag not cleared")
	}
	if _, err := gate.UserID(); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestGateFollowsProvider(t *testing.T) {
	ctx := context.Background()
	provider := NewTokenProvider("secret")
	gate := NewGate(provider)
	if err := gate.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	defer gate.Close()

	var mu sync.Mutex
	var seen []string
	gate.OnChange(func(s *Session) {
		mu.Lock()
		defer mu.Unlock()
		if s == nil {
			seen = append(seen, "")
			return
		}
		seen = append(seen, s.Identity.UserID)
	})

	token, err := provider.Issue(Identity{UserID: "u1", Email: "a@example.com"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := provider.SignIn(ctx, token); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	id, err := gate.Identity()
	if err != nil || id.UserID != "u1" || id.Email != "a@example.com" {
		t.Fatalf("identity = %+v, %v", id, err)
	}

	// same identity again is not a change
	if _, err := provider.SignIn(ctx, token); err != nil {
		t.Fatalf("sign in again: %v", err)
	}

	if err := gate.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if _, err := gate.UserID(); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated after sign out, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != "u1" || seen[1] != "" {
		t.Fatalf("change notifications = %q", seen)
	}
}

type failingProvider struct{ *StaticProvider }

func (p *failingProvider) SignOut(context.Context) error { return errors.New("network down") }

func TestGateSignOutClearsOnProviderError(t *testing.T) {
	provider := &failingProvider{StaticProvider: NewStaticProvider(Identity{UserID: "u1"})}
	gate := NewGate(provider)
	if err := gate.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := gate.SignOut(context.Background()); err == nil {
		t.Fatal("expected provider error")
	}
	if gate.Session() != nil {
		t.Fatal("session should be cleared")
	}
}

func TestTokenVerify(t *testing.T) {
	provider := NewTokenProvider("secret")
	token, err := provider.Issue(Identity{UserID: "u1", Name: "Ann"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tests := []struct {
		name    string
		secret  string
		token   string
		wantErr bool
	}{
		{name: "valid", secret: "secret", token: token},
		{name: "wrong secret", secret: "other", token: token, wantErr: true},
		{name: "garbage", secret: "secret", token: "not-a-token", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewTokenProvider(tt.secret).Verify(tt.token)
			if tt.wantErr {
				if !errors.Is(err, ErrUnauthenticated) {
					t.Fatalf("expected ErrUnauthenticated, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if s.Identity.UserID != "u1" || s.Identity.Name != "Ann" {
				t.Fatalf("identity = %+v", s.Identity)
			}
		})
	}
}

func TestTokenExpired(t *testing.T) {
	provider := NewTokenProvider("secret")
	token, err := provider.Issue(Identity{UserID: "u1"}, -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := provider.SignIn(context.Background(), token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}
