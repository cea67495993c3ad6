package database

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"sqlchat/internal/config"
	"sqlchat/internal/metrics"
)

// DefaultTTL is how long a handle is reused before it is rebuilt.
const DefaultTTL = 2 * time.Hour

type cacheEntry struct {
	handle  *Handle
	created time.Time
}

// Provider caches one handle per connection descriptor.
//
// Concurrent Get calls for the same descriptor share a single construction. Once a
// handle is older than the TTL the next Get (or Sweep) retires it: the handle leaves
// the cache and is closed as soon as no Acquire caller still holds it.
type Provider struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	group   singleflight.Group

	ttl            time.Duration
	connectTimeout time.Duration
	open           Opener
	now            func() time.Time
	logger         *slog.Logger
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

func WithTTL(ttl time.Duration) ProviderOption {
	return func(p *Provider) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

// WithConnectTimeout bounds a shared construction independently of the caller that
// started it.
func WithConnectTimeout(d time.Duration) ProviderOption {
	return func(p *Provider) {
		if d > 0 {
			p.connectTimeout = d
		}
	}
}

func WithOpener(open Opener) ProviderOption {
	return func(p *Provider) {
		if open != nil {
			p.open = open
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) ProviderOption {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewProvider(opts ...ProviderOption) *Provider {
	p := &Provider{
		entries: make(map[string]*cacheEntry),
		ttl:            DefaultTTL,
		connectTimeout: DefaultConnectTimeout,
		open:           Open,
		now:            time.Now,
		logger:         slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Get returns the cached handle for d, opening a new one when none is live. The
// handle is not pinned: use Acquire for work that may outlive a rebuild.
func (p *Provider) Get(ctx context.Context, d config.ConnectionDescriptor) (*Handle, error) {
	h, _, err := p.get(ctx, d, false)
	return h, err
}

// Acquire is Get plus a reference that keeps the handle open until release is
// called, even if the handle expires and is replaced meanwhile.
func (p *Provider) Acquire(ctx context.Context, d config.ConnectionDescriptor) (*Handle, func(), error) {
	h, release, err := p.get(ctx, d, true)
	if err != nil {
		return nil, nil, err
	}
	return h, release, nil
}

func (p *Provider) get(ctx context.Context, d config.ConnectionDescriptor, pin bool) (*Handle, func(), error) {
	key := d.Key()
	if h := p.lookup(key, pin); h != nil {
		metrics.IncrementHandleCacheHit()
		return h, p.releaser(h, d, pin), nil
	}

	for {
		v, err, _ := p.group.Do(key, func() (any, error) {
			if h := p.lookup(key, false); h != nil {
				return h, nil
			}
			return p.build(ctx, key, d)
		})
		if err != nil {
			return nil, nil, err
		}
		h := v.(*Handle)
		if p.claim(key, h, pin) {
			return h, p.releaser(h, d, pin), nil
		}
		// Swept or replaced between construction and claim; go again.
	}
}

// build opens a handle, installs it under key and retires the entry it replaces.
// The open is detached from ctx's cancellation since other callers share it.
func (p *Provider) build(ctx context.Context, key string, d config.ConnectionDescriptor) (*Handle, error) {
	openCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.connectTimeout)
	defer cancel()

	start := time.Now()
	h, err := p.open(openCtx, d)
	if err != nil {
		p.logger.Error("Failed to open database handle", "target", d.Redacted(), "error", config.Mask(err.Error()))
		return nil, err
	}

	p.mu.Lock()
	old := p.entries[key]
	p.entries[key] = &cacheEntry{handle: h, created: p.now()}
	p.mu.Unlock()

	if old != nil {
		p.retire(old.handle, d.Redacted())
	}

	metrics.IncrementHandleConstruction(string(d.Mode))
	p.logger.Info("Opened database handle",
		"target", d.Redacted(),
		"dialect", string(h.Dialect()),
		"read_only", h.ReadOnly(),
		"duration", time.Since(start).String(),
	)
	return h, nil
}

func (p *Provider) lookup(key string, pin bool) *Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[key]
	if !ok {
		return nil
	}
	if p.now().Sub(e.created) >= p.ttl {
		return nil
	}
	if pin {
		e.handle.pin()
	}
	return e.handle
}

// claim pins h if it is still the cached handle for key.
func (p *Provider) claim(key string, h *Handle, pin bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[key]
	if !ok || e.handle != h {
		return false
	}
	if pin {
		h.pin()
	}
	return true
}

func (p *Provider) releaser(h *Handle, d config.ConnectionDescriptor, pin bool) func() {
	if !pin {
		return func() {}
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			if h.unpin() {
				p.closeRetired(h, d.Redacted())
			}
		})
	}
}

func (p *Provider) retire(h *Handle, target string) {
	if h.retire() {
		p.closeRetired(h, target)
	}
}

func (p *Provider) closeRetired(h *Handle, target string) {
	if err := h.Close(); err != nil {
		p.logger.Warn("Failed to close expired handle", "target", target, "error", err)
		return
	}
	p.logger.Info("Closed expired database handle", "target", target)
}

// Sweep evicts every expired handle and returns how many were evicted. Evicted
// handles still held through Acquire close when their last holder releases them.
func (p *Provider) Sweep() int {
	p.mu.Lock()
	now := p.now()
	var expired []*Handle
	for key, e := range p.entries {
		if now.Sub(e.created) >= p.ttl {
			expired = append(expired, e.handle)
			delete(p.entries, key)
		}
	}
	p.mu.Unlock()

	for _, h := range expired {
		p.retire(h, string(h.Dialect()))
	}
	return len(expired)
}

// Len returns the number of cached handles, expired or not.
func (p *Provider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Close closes every cached handle.
func (p *Provider) Close() error {
	p.mu.Lock()
	entries := p.entries
	p.entries = make(map[string]*cacheEntry)
	p.mu.Unlock()

	var firstErr error
	for _, e := range entries {
		if err := e.handle.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
