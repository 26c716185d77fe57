package app

import (
	"crypto/sha256"
	"os"

	"svorder/internal/engine/symbols"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheKey [sha256.Size]byte

// parseCache maps (path, content) hashes to extracted symbols. Entries only
// cover the file's own bytes, so any change to a header purges it.
type parseCache struct {
	entries *lru.Cache[cacheKey, symbols.Symbols]
}

func newParseCache(size int) (*parseCache, error) {
	if size <= 0 {
		size = 4096
	}
	c, err := lru.New[cacheKey, symbols.Symbols](size)
	if err != nil {
		return nil, err
	}
	return &parseCache{entries: c}, nil
}

// key hashes path and content. A file that cannot be read gets no key and is
// parsed normally so the frontend reports the error.
func (c *parseCache) key(path string) (cacheKey, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		return cacheKey{}, false
	}
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(content)
	var k cacheKey
	copy(k[:], h.Sum(nil))
	return k, true
}

func (c *parseCache) get(k cacheKey) (symbols.Symbols, bool) {
	return c.entries.Get(k)
}

func (c *parseCache) add(k cacheKey, s symbols.Symbols) {
	c.entries.Add(k, s)
}

func (c *parseCache) purge() {
	c.entries.Purge()
}

func (c *parseCache) len() int {
	return c.entries.Len()
}
