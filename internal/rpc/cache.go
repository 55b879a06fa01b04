package rpc

import (
	"sync"
	"time"

	"github.com/Klingon-tech/defiledger/pkg/types"
	cache "github.com/patrickmn/go-cache"
)

// cacheable lists the methods whose results depend only on the chain tip
// and the set of held keys.
var cacheable = map[string]bool{
	"listcustomtxtypes":   true,
	"listburnhistory":     true,
	"accounthistorycount": true,
}

// cacheState is what a cached result was computed against.
type cacheState struct {
	tip  types.Hash
	keys uint64 // keystore generation
}

// resultCache holds RPC results until the tip or the key set changes.
type resultCache struct {
	mu    sync.Mutex
	state cacheState
	items *cache.Cache
}

func newResultCache() *resultCache {
	return &resultCache{items: cache.New(10*time.Minute, 20*time.Minute)}
}

// sync drops every entry when state differs from the cached one.
func (c *resultCache) sync(state cacheState) {
	if c.state != state {
		c.items.Flush()
		c.state = state
	}
}

func (c *resultCache) get(state cacheState, key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sync(state)
	return c.items.Get(key)
}

func (c *resultCache) put(state cacheState, key string, v interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sync(state)
	c.items.Set(key, v, cache.DefaultExpiration)
}

// count returns the number of live entries.
func (c *resultCache) count() int {
	return c.items.ItemCount()
}

func (s *Server) cacheState() cacheState {
	return cacheState{tip: s.chain.TipHash(), keys: s.keys.Generation()}
}
