package dbadapter

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// connPool bounds concurrent statement execution against the underlying
// *sql.DB with a weighted semaphore: every acquire pairs with a release
// on all exit paths, including cancellation.
type connPool struct {
	sem *semaphore.Weighted
}

func newConnPool(size int) *connPool {
	if size <= 0 {
		size = 8
	}
	return &connPool{sem: semaphore.NewWeighted(int64(size))}
}

// acquire blocks until a slot is free or ctx is cancelled, returning a
// release func that must be called exactly once.
func (p *connPool) acquire(ctx context.Context) (func(), error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, newQueryError(ErrConnection, "acquiring connection slot: "+err.Error())
	}
	return func() { p.sem.Release(1) }, nil
}
