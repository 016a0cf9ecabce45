package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"

	"github.com/alanbriolat/video-acquirer"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time {
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func artifact(id string) video_acquirer.Artifact {
	return video_acquirer.Artifact{SourceID: id, Filename: id + ".mp4", Size: 100}
}

func TestResultCache_RepeatableRead(t *testing.T) {
	assert := assert_.New(t)

	c := New(DefaultConfig)
	assert.True(c.TakeIfReady("abc123").IsNone())
	c.Put("abc123", artifact("abc123"))
	first := c.TakeIfReady("abc123")
	second := c.TakeIfReady("abc123")
	assert.True(first.IsSome())
	assert.True(second.IsSome())
	assert.Equal(first.Unwrap(), second.Unwrap())
	assert.Equal("abc123.mp4", first.Unwrap().Filename)
}

func TestResultCache_Overwrite(t *testing.T) {
	assert := assert_.New(t)

	c := New(DefaultConfig)
	c.Put("abc123", artifact("abc123"))
	replacement := artifact("abc123")
	replacement.Size = 200
	c.Put("abc123", replacement)
	assert.Equal(int64(200), c.TakeIfReady("abc123").Unwrap().Size)
	assert.Equal(1, c.Len())
}

func TestResultCache_TTL(t *testing.T) {
	assert := assert_.New(t)

	clk := &clock{now: time.Unix(1000, 0)}
	c := New(Config{TTL: time.Minute, Capacity: 10}).WithClock(clk.Now)
	c.Put("abc123", artifact("abc123"))
	clk.Advance(59 * time.Second)
	assert.True(c.TakeIfReady("abc123").IsSome())
	clk.Advance(time.Second)
	assert.True(c.TakeIfReady("abc123").IsNone())
	assert.Equal(0, c.Len())
}

func TestResultCache_Capacity(t *testing.T) {
	assert := assert_.New(t)

	clk := &clock{now: time.Unix(1000, 0)}
	c := New(Config{TTL: time.Hour, Capacity: 3}).WithClock(clk.Now)
	for _, id := range []string{"a", "b", "c"} {
		c.Put(id, artifact(id))
		clk.Advance(time.Second)
	}
	// Refreshing an existing id never evicts
	c.Put("a", artifact("a"))
	clk.Advance(time.Second)
	assert.Equal(3, c.Len())
	// "b" is now the oldest
	c.Put("d", artifact("d"))
	assert.Equal(3, c.Len())
	assert.True(c.TakeIfReady("b").IsNone())
	assert.True(c.TakeIfReady("a").IsSome())
	assert.True(c.TakeIfReady("c").IsSome())
	assert.True(c.TakeIfReady("d").IsSome())

	c.Remove("d")
	assert.True(c.TakeIfReady("d").IsNone())
}

func TestResultCache_Concurrent(t *testing.T) {
	assert := assert_.New(t)

	c := New(Config{TTL: time.Hour, Capacity: 8})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("id%d", i%4)
			c.Put(id, artifact(id))
			c.TakeIfReady(id)
		}(i)
	}
	wg.Wait()
	assert.Equal(4, c.Len())
}
