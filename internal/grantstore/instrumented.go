package grantstore

import (
	"context"
	"errors"
	"time"

	"github.com/go-authgate/sallyport/internal/core"
)

var _ core.GrantStore = (*Instrumented)(nil)

// Instrumented records the latency and outcome of every store operation.
// A miss is a normal outcome and is not counted as an error.
type Instrumented struct {
	core.GrantStore
	metrics core.Recorder
}

func NewInstrumented(store core.GrantStore, m core.Recorder) *Instrumented {
	return &Instrumented{GrantStore: store, metrics: m}
}

func (i *Instrumented) observe(op string, start time.Time, err error) {
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	i.metrics.RecordGrantStoreOperation(op, time.Since(start), err)
}

func (i *Instrumented) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := i.GrantStore.Put(ctx, key, value, ttl)
	i.observe("put", start, err)
	return err
}

func (i *Instrumented) PutIfAbsent(
	ctx context.Context,
	key string,
	value []byte,
	ttl time.Duration,
) (bool, error) {
	start := time.Now()
	ok, err := i.GrantStore.PutIfAbsent(ctx, key, value, ttl)
	i.observe("put_if_absent", start, err)
	return ok, err
}

func (i *Instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	b, err := i.GrantStore.Get(ctx, key)
	i.observe("get", start, err)
	return b, err
}

func (i *Instrumented) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := i.GrantStore.Delete(ctx, key)
	i.observe("delete", start, err)
	return err
}

func (i *Instrumented) Take(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	b, err := i.GrantStore.Take(ctx, key)
	i.observe("take", start, err)
	return b, err
}
