package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lingua-lens/lens/pkg/protocol"
)

func TestKeyNormalizesText(t *testing.T) {
	assert.Equal(t, Key("hello", "auto", "English"), Key(" Hello ", "auto", "English"))
	assert.Equal(t, "straße|German|English", Key("  STRAßE\n", "German", "English"))
	assert.NotEqual(t, Key("hello", "auto", "English"), Key("hello", "auto", "english"))
	assert.NotEqual(t, Key("hello", "auto", "English"), Key("hello", "Spanish", "English"))
}

func TestSetGet(t *testing.T) {
	c := New(0)
	k := Key("Hola", "Spanish", "English")

	_, ok := c.Get(k)
	assert.False(t, ok)

	c.Set(k, protocol.TranslationResult{Translation: "Hello"})
	got, ok := c.Get(k)
	assert.True(t, ok)
	assert.Equal(t, "Hello", got.Translation)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2)
	c.Set("a", protocol.TranslationResult{Translation: "A"})
	c.Set("b", protocol.TranslationResult{Translation: "B"})
	_, _ = c.Get("a")
	c.Set("c", protocol.TranslationResult{Translation: "C"})

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestConcurrentAccess(t *testing.T) {
	c := New(64)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				k := Key(fmt.Sprintf("line %d", j), "auto", "English")
				c.Set(k, protocol.TranslationResult{Translation: fmt.Sprint(i)})
				_, _ = c.Get(k)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 64)
}
