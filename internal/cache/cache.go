// Package cache holds translated subtitle lines in a bounded LRU keyed by
// normalized text and language pair.
package cache

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/lingua-lens/lens/pkg/protocol"
)

// DefaultSize is the entry bound used when none is configured.
const DefaultSize = 4096

// Key builds the cache key for a lookup. Text is trimmed and lowercased so
// that " Hello " and "hello" share an entry; the language pair is kept
// verbatim.
func Key(text, sourceLang, targetLang string) string {
	// cases.Caser is stateful and not safe for concurrent use.
	lower := cases.Lower(language.Und)
	return lower.String(strings.TrimSpace(text)) + "|" + sourceLang + "|" + targetLang
}

// Cache is safe for concurrent use.
type Cache struct {
	entries *lru.Cache[string, protocol.TranslationResult]
}

// New creates a cache bounded to size entries (DefaultSize if size <= 0).
func New(size int) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[string, protocol.TranslationResult](size)
	if err != nil {
		// Only reachable with a non-positive size.
		panic(err)
	}
	return &Cache{entries: entries}
}

// Get returns the cached result for key.
func (c *Cache) Get(key string) (protocol.TranslationResult, bool) {
	return c.entries.Get(key)
}

// Set stores a result, evicting the least recently used entry when full.
func (c *Cache) Set(key string, result protocol.TranslationResult) {
	c.entries.Add(key, result)
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.entries.Purge()
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}
