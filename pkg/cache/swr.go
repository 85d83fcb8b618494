package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	applogger "MacroPull/pkg/logger"
)

// Status tells how a Revalidator answered.
type Status string

const (
	StatusHit   Status = "HIT"
	StatusStale Status = "STALE"
	StatusMiss  Status = "MISS"
)

// LoadFunc produces a fresh body for a key.
type LoadFunc func(ctx context.Context) ([]byte, error)

type envelope struct {
	StoredAt time.Time       `json:"stored_at"`
	Body     json.RawMessage `json:"body"`
}

// Revalidator serves cached bodies while fresh, serves and refreshes them in
// the background while stale, and loads synchronously otherwise. Only
// successful loads are cached.
type Revalidator struct {
	store   Service
	fresh   time.Duration
	stale   time.Duration
	timeout time.Duration
	log     *applogger.Logger
	now     func() time.Time
	wg      sync.WaitGroup
}

type RevalidatorOption func(*Revalidator)

func WithRefreshTimeout(d time.Duration) RevalidatorOption {
	return func(r *Revalidator) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithRevalidatorLogger(l *applogger.Logger) RevalidatorOption {
	return func(r *Revalidator) {
		if l != nil {
			r.log = l
		}
	}
}

func NewRevalidator(store Service, fresh, stale time.Duration, opts ...RevalidatorOption) *Revalidator {
	r := &Revalidator{
		store:   store,
		fresh:   fresh,
		stale:   stale,
		timeout: 30 * time.Second,
		log:     applogger.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get answers key from cache when possible. The body must be valid JSON.
func (r *Revalidator) Get(ctx context.Context, key string, load LoadFunc) ([]byte, Status, error) {
	if env, ok := r.lookup(ctx, key); ok {
		age := r.now().Sub(env.StoredAt)
		switch {
		case age < r.fresh:
			return env.Body, StatusHit, nil
		case age < r.fresh+r.stale:
			r.refresh(ctx, key, load)
			return env.Body, StatusStale, nil
		}
	}

	body, err := load(ctx)
	if err != nil {
		return nil, StatusMiss, err
	}
	r.save(ctx, key, body)
	return body, StatusMiss, nil
}

func (r *Revalidator) lookup(ctx context.Context, key string) (*envelope, bool) {
	raw, err := r.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			r.log.Warn("cache read failed", applogger.String("key", key), applogger.Error(err))
		}
		return nil, false
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || len(env.Body) == 0 {
		return nil, false
	}
	return &env, true
}

func (r *Revalidator) save(ctx context.Context, key string, body []byte) {
	raw, err := json.Marshal(envelope{StoredAt: r.now().UTC(), Body: body})
	if err != nil {
		r.log.Warn("cache encode failed", applogger.String("key", key), applogger.Error(err))
		return
	}
	if err := r.store.Set(ctx, key, raw, r.fresh+r.stale); err != nil {
		r.log.Warn("cache write failed", applogger.String("key", key), applogger.Error(err))
	}
}

// refresh reloads key in the background unless another refresh holds the lock.
func (r *Revalidator) refresh(ctx context.Context, key string, load LoadFunc) {
	bg := context.WithoutCancel(ctx)
	ok, err := r.store.TryLock(bg, key, r.timeout)
	if err != nil || !ok {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() { _ = r.store.Unlock(bg, key) }()

		lctx, cancel := context.WithTimeout(bg, r.timeout)
		defer cancel()
		body, err := load(lctx)
		if err != nil {
			r.log.Warn("background refresh failed", applogger.String("key", key), applogger.Error(err))
			return
		}
		r.save(lctx, key, body)
	}()
}

// Wait blocks until in-flight background refreshes finish.
func (r *Revalidator) Wait() {
	r.wg.Wait()
}
