package cart

import (
	"context"
	"errors"
	"sync"
)

// Persister runs storage writes on behalf of the Store. Tasks submitted for the same key
// must run in submission order.
type Persister interface {
	Submit(ctx context.Context, key string, task func(ctx context.Context) error)
	// Flush waits for every submitted task and returns the errors collected since the last Flush.
	Flush(ctx context.Context) error
}

var _ Persister = (*InlinePersister)(nil)

// InlinePersister runs each task before Submit returns.
type InlinePersister struct {
	mu   sync.Mutex
	errs []error
}

func NewInlinePersister() *InlinePersister {
	return new(InlinePersister)
}

func (p *InlinePersister) Submit(ctx context.Context, _ string, task func(ctx context.Context) error) {
	if err := task(context.WithoutCancel(ctx)); err != nil {
		p.mu.Lock()
		p.errs = append(p.errs, err)
		p.mu.Unlock()
	}
}

func (p *InlinePersister) Flush(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := errors.Join(p.errs...)
	p.errs = nil
	return err
}
