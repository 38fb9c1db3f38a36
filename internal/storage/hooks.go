package storage

import (
	"context"
	"sync"
)

type hooksKey struct{}

// TxHooks collects callbacks registered during one transaction attempt.
// Backends create it with WithTxHooks and fire Commit or Rollback once the
// outcome of the attempt is known.
type TxHooks struct {
	mu       sync.Mutex
	commit   []func(ctx context.Context)
	rollback []func()
}

// WithTxHooks returns ctx carrying a fresh TxHooks.
func WithTxHooks(ctx context.Context) (context.Context, *TxHooks) {
	h := &TxHooks{}
	return context.WithValue(ctx, hooksKey{}, h), h
}

// InTransaction reports whether ctx is bound to a transaction.
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(hooksKey{}).(*TxHooks)
	return ok
}

// AfterCommit runs fn once the transaction bound to ctx commits. Outside a
// transaction fn runs immediately.
func AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	h, ok := ctx.Value(hooksKey{}).(*TxHooks)
	if !ok {
		fn(ctx)
		return
	}

	h.mu.Lock()
	h.commit = append(h.commit, fn)
	h.mu.Unlock()
}

// OnRollback runs fn if the transaction bound to ctx is rolled back. Outside
// a transaction fn is never called.
func OnRollback(ctx context.Context, fn func()) {
	h, ok := ctx.Value(hooksKey{}).(*TxHooks)
	if !ok {
		return
	}

	h.mu.Lock()
	h.rollback = append(h.rollback, fn)
	h.mu.Unlock()
}

// Commit runs the commit callbacks in registration order with ctx, which
// must no longer be bound to the transaction.
func (h *TxHooks) Commit(ctx context.Context) {
	h.mu.Lock()
	fns := h.commit
	h.commit, h.rollback = nil, nil
	h.mu.Unlock()

	for _, fn := range fns {
		fn(ctx)
	}
}

// Rollback runs the rollback callbacks in reverse registration order.
func (h *TxHooks) Rollback() {
	h.mu.Lock()
	fns := h.rollback
	h.commit, h.rollback = nil, nil
	h.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
