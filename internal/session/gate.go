// Package session holds the current authenticated identity. Stores read it
// through Gate.Identity at the moment of every remote call.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

var ErrUnauthenticated = errors.New("not authenticated")

// Identity is the authenticated user.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// Session is an authenticated session.
type Session struct {
	AccessToken string
	Identity    Identity
	ExpiresAt   time.Time
}

// Provider is the auth collaborator.
type Provider interface {
	CurrentSession(ctx context.Context) (*Session, error)
	OnSessionChange(fn func(*Session)) (unsubscribe func())
	SignOut(ctx context.Context) error
}

// Gate tracks the session reported by a Provider.
type Gate struct {
	provider Provider

	mu          sync.RWMutex
	session     *Session
	loading     bool
	unsubscribe func()
	listeners   map[int]func(*Session)
	nextID      int
}

func NewGate(provider Provider) *Gate {
	return &Gate{
		provider:  provider,
		loading:   true,
		listeners: make(map[int]func(*Session)),
	}
}

// Initialize attaches the session-change listener and loads the current
// session once.
func (g *Gate) Initialize(ctx context.Context) error {
	g.mu.Lock()
	g.loading = true
	attached := g.unsubscribe != nil
	g.mu.Unlock()

	if !attached {
		unsubscribe := g.provider.OnSessionChange(g.set)
		g.mu.Lock()
		g.unsubscribe = unsubscribe
		g.mu.Unlock()
	}

	current, err := g.provider.CurrentSession(ctx)
	if err != nil {
		g.set(nil)
		return fmt.Errorf("load session: %w", err)
	}
	g.set(current)
	return nil
}

// Identity returns the current identity or ErrUnauthenticated.
func (g *Gate) Identity() (Identity, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.session == nil || g.session.Identity.UserID == "" {
		return Identity{}, ErrUnauthenticated
	}
	return g.session.Identity, nil
}

// UserID is Identity without the extra fields.
func (g *Gate) UserID() (string, error) {
	id, err := g.Identity()
	return id.UserID, err
}

func (g *Gate) Session() *Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.session
}

func (g *Gate) Loading() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.loading
}

// OnChange registers fn for every session change, including sign-out (nil).
func (g *Gate) OnChange(fn func(*Session)) (unsubscribe func()) {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = fn
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		delete(g.listeners, id)
		g.mu.Unlock()
	}
}

// SignOut ends the session with the provider and clears local state even if
// the provider call fails.
func (g *Gate) SignOut(ctx context.Context) error {
	err := g.provider.SignOut(ctx)
	g.set(nil)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// Close detaches from the provider.
func (g *Gate) Close() {
	g.mu.Lock()
	unsubscribe := g.unsubscribe
	g.unsubscribe = nil
	g.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (g *Gate) set(s *Session) {
	g.mu.Lock()
	prev := g.session
	g.session = s
	g.loading = false
	listeners := make([]func(*Session), 0, len(g.listeners))
	for _, fn := range g.listeners {
		listeners = append(listeners, fn)
	}
	g.mu.Unlock()

	if sameIdentity(prev, s) {
		return
	}
	if s != nil {
		log.Printf("[info] session: signed in user=%s", s.Identity.UserID)
	} else if prev != nil {
		log.Printf("[info] session: signed out user=%s", prev.Identity.UserID)
	}
	for _, fn := range listeners {
		fn(s)
	}
}

func sameIdentity(a, b *Session) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	default:
		return a.Identity.UserID == b.Identity.UserID
	}
}
