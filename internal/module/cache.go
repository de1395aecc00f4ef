package module

import (
	"hash/fnv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// moduleCache memoizes Load results by content hash, so concurrent callers
// loading the same bytecode blob share one decode instead of racing through
// the loader redundantly.
type moduleCache struct {
	group singleflight.Group
	mu    sync.RWMutex
	byKey map[uint64]*Module
}

var defaultCache = &moduleCache{byKey: make(map[uint64]*Module)}

func contentHash(data []byte) uint64 {
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64()
}

// LoadCached decodes data into a Module exactly like Load, except that a
// concurrent or prior call with byte-identical content returns the same
// *Module instance instead of decoding again. Options are part of the
// cache key's correctness contract: callers that vary opts across calls
// with the same bytes should use Load directly instead, since this cache
// keys purely on content.
func LoadCached(data []byte, opts *LoadOptions) (*Module, error) {
	key := contentHash(data)

	defaultCache.mu.RLock()
	if m, ok := defaultCache.byKey[key]; ok {
		defaultCache.mu.RUnlock()
		return m, nil
	}
	defaultCache.mu.RUnlock()

	v, err, _ := defaultCache.group.Do(fmtKey(key), func() (interface{}, error) {
		m, err := Load(data, opts)
		if err != nil {
			return nil, err
		}
		defaultCache.mu.Lock()
		defaultCache.byKey[key] = m
		defaultCache.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Module), nil
}

func fmtKey(key uint64) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hexDigits[key&0xF]
		key >>= 4
	}
	return string(buf)
}
