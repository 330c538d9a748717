package form

import (
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Registry keeps one engine per session and form kind. Engines idle for
// longer than the TTL are evicted and closed.
type Registry struct {
	mu    sync.Mutex
	store *cache.Cache
	ttl   time.Duration
}

// NewRegistry creates a Registry with a sliding TTL.
func NewRegistry(ttl time.Duration) *Registry {
	store := cache.New(ttl, ttl/2)
	store.OnEvicted(func(_ string, v interface{}) {
		if e, ok := v.(*Engine); ok {
			e.Close()
		}
	})
	return &Registry{store: store, ttl: ttl}
}

func registryKey(sid string, kind Kind) string {
	return sid + ":" + string(kind)
}

// Get returns the engine for sid and kind, refreshing its TTL.
func (r *Registry) Get(sid string, kind Kind) (*Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(registryKey(sid, kind))
}

func (r *Registry) getLocked(key string) (*Engine, bool) {
	v, ok := r.store.Get(key)
	if !ok {
		return nil, false
	}
	e := v.(*Engine)
	r.store.Set(key, e, r.ttl)
	return e, true
}

// GetOrCreate returns the existing engine or stores the one built by create.
// The boolean reports whether create ran.
func (r *Registry) GetOrCreate(sid string, kind Kind, create func() *Engine) (*Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := registryKey(sid, kind)
	if e, ok := r.getLocked(key); ok {
		return e, false
	}
	e := create()
	r.store.Set(key, e, r.ttl)
	return e, true
}

// Drop closes and forgets every engine of a session.
func (r *Registry) Drop(sid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := sid + ":"
	for key := range r.store.Items() {
		if strings.HasPrefix(key, prefix) {
			r.store.Delete(key)
		}
	}
}

// Len reports the number of live engines.
func (r *Registry) Len() int {
	return r.store.ItemCount()
}

// Close closes every live engine.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.store.Items() {
		r.store.Delete(key)
	}
}
