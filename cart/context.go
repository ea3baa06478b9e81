package cart

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrNoProvider     = errors.New("cart: store must be used within a provider")
	ErrNotInitialized = errors.New("cart: store is not initialized")
)

type contextKey struct{}

// NewContext returns a copy of ctx that carries svc. Everything downstream of the
// returned context can reach the cart with FromContext.
func NewContext(ctx context.Context, svc Service) context.Context {
	return context.WithValue(ctx, contextKey{}, svc)
}

// FromContext returns the cart carried by ctx, or ErrNoProvider.
func FromContext(ctx context.Context) (Service, error) {
	svc, ok := ctx.Value(contextKey{}).(Service)
	if !ok || svc == nil {
		return nil, ErrNoProvider
	}
	return svc, nil
}

// MustFromContext is FromContext for call sites where a missing provider is a programming error.
func MustFromContext(ctx context.Context) Service {
	svc, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return svc
}

// Provider hands out the cart built once at startup.
type Provider struct {
	mu  sync.RWMutex
	svc Service
}

func (p *Provider) Set(svc Service) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.svc = svc
}

func (p *Provider) Store() (Service, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.svc == nil {
		return nil, ErrNotInitialized
	}
	return p.svc, nil
}

// Wrap opens a provider scope on ctx.
func (p *Provider) Wrap(ctx context.Context) (context.Context, error) {
	svc, err := p.Store()
	if err != nil {
		return nil, err
	}
	return NewContext(ctx, svc), nil
}
