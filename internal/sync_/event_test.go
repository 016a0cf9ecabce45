package sync_

import (
	"sync"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
)

func TestEvent_ZeroValue(t *testing.T) {
	assert := assert_.New(t)

	var e Event
	assert.False(e.IsSet())
	select {
	case <-e.Wait():
		assert.Fail("unset event should block")
	default:
	}
	assert.True(e.Set())
	assert.False(e.Set(), "second Set should report no change")
	assert.True(e.IsSet())
	select {
	case <-e.Wait():
	default:
		assert.Fail("set event should not block")
	}
}

func TestEvent_ReleasesWaiters(t *testing.T) {
	assert := assert_.New(t)

	e := NewEvent()
	var released sync.WaitGroup
	for i := 0; i < 20; i++ {
		released.Add(1)
		go func() {
			defer released.Done()
			<-e.Wait()
		}()
	}
	allReleased := make(chan struct{})
	go func() {
		released.Wait()
		close(allReleased)
	}()

	select {
	case <-allReleased:
		assert.Fail("waiters returned before Set")
	case <-time.After(100 * time.Millisecond):
	}
	e.Set()
	select {
	case <-allReleased:
	case <-time.After(5 * time.Second):
		assert.Fail("waiters not released by Set")
	}
}
