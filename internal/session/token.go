package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "taskhive"

// ServiceUserID is the identity of tokens issued to TaskHive's own jobs, such
// as the cron call that triggers the reminder sweep.
const ServiceUserID = "taskhive-service"

// AccessClaims are the claims carried by a TaskHive access token.
type AccessClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenProvider is a Provider backed by HMAC-signed access tokens.
type TokenProvider struct {
	secret []byte

	mu        sync.Mutex
	current   *Session
	listeners map[int]func(*Session)
	nextID    int
}

func NewTokenProvider(secret string) *TokenProvider {
	return &TokenProvider{
		secret:    []byte(secret),
		listeners: make(map[int]func(*Session)),
	}
}

// Issue signs an access token for id valid for ttl.
func (p *TokenProvider) Issue(id Identity, ttl time.Duration) (string, error) {
	if len(p.secret) == 0 {
		return "", errors.New("token secret is not configured")
	}
	if id.UserID == "" {
		return "", errors.New("user id is required")
	}
	now := time.Now()
	claims := &AccessClaims{
		UserID: id.UserID,
		Email:  id.Email,
		Name:   id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

// Verify parses and validates an access token.
func (p *TokenProvider) Verify(tokenString string) (*Session, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("%w: invalid token claims", ErrUnauthenticated)
	}
	var expires time.Time
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	return &Session{
		AccessToken: tokenString,
		Identity:    Identity{UserID: claims.UserID, Email: claims.Email, Name: claims.Name},
		ExpiresAt:   expires,
	}, nil
}

// SignIn verifies the token and makes it the current session.
func (p *TokenProvider) SignIn(_ context.Context, tokenString string) (*Session, error) {
	s, err := p.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	p.setCurrent(s)
	return s, nil
}

// CurrentSession returns the signed-in session, or nil once it has expired.
func (p *TokenProvider) CurrentSession(context.Context) (*Session, error) {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()
	if current == nil {
		return nil, nil
	}
	if !current.ExpiresAt.IsZero() && time.Now().After(current.ExpiresAt) {
		p.setCurrent(nil)
		return nil, nil
	}
	return current, nil
}

func (p *TokenProvider) OnSessionChange(fn func(*Session)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *TokenProvider) SignOut(context.Context) error {
	p.setCurrent(nil)
	return nil
}

func (p *TokenProvider) setCurrent(s *Session) {
	p.mu.Lock()
	p.current = s
	listeners := make([]func(*Session), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
}

// StaticProvider serves one fixed session until signed out. Server-side
// front-ends (the Telegram bot) use it for identities they resolved
// themselves.
type StaticProvider struct {
	mu      sync.Mutex
	session *Session
}

func NewStaticProvider(id Identity) *StaticProvider {
	return &StaticProvider{session: &Session{Identity: id}}
}

func (p *StaticProvider) CurrentSession(context.Context) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session, nil
}

func (p *StaticProvider) OnSessionChange(func(*Session)) func() { return func() {} }

func (p *StaticProvider) SignOut(context.Context) error {
	p.mu.Lock()
	p.session = nil
	p.mu.Unlock()
	return nil
}
