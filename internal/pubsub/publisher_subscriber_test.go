package pubsub

import (
	"sync"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

var _ Publisher[string] = &publisher[string]{}

func assertWaiting[T any](assert *assert_.Assertions, r Receiver[T]) {
	select {
	case v := <-r.Receive():
		assert.Failf("subscriber should be waiting", "received %v", v)
	default:
	}
}

func TestPublisher_NoSubscribers(t *testing.T) {
	assert := assert_.New(t)

	pub := NewPublisher[string]().(*publisher[string])
	defer pub.Close()
	assert.True(pub.Send("added"))
	assert.True(pub.TrySend("started"))
	pub.pending.Wait()
}

func TestPublisher_Fanout(t *testing.T) {
	assert := assert_.New(t)

	pub := NewPublisher[string]().(*publisher[string])
	defer pub.Close()
	s1, err := pub.Subscribe()
	assert.NoError(err)
	s2, err := pub.Subscribe()
	assert.NoError(err)
	assertWaiting[string](assert, s1)
	assertWaiting[string](assert, s2)

	var got1, got2 string
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { got1 = <-s1.Receive(); wg.Done() }()
	go func() { got2 = <-s2.Receive(); wg.Done() }()
	assert.True(pub.Send("updated"))
	wg.Wait()
	assert.Equal("updated", got1)
	assert.Equal("updated", got2)
	pub.pending.Wait()

	// A closed subscriber is dropped, the rest still receive
	s1.Close()
	assert.True(pub.Send("finished"))
	_, ok := <-s1.Receive()
	assert.False(ok, "expected closed subscriber to return closed channel")
	assert.Equal("finished", <-s2.Receive())
	s1.Close()
}

func TestPublisher_Close(t *testing.T) {
	assert := assert_.New(t)

	pub := NewPublisher[string]()
	s, err := pub.Subscribe()
	assert.NoError(err)
	pub.Close()

	_, err = pub.Subscribe()
	assert.Equal(ErrPublisherClosed, err)
	assert.False(pub.Send("late"))
	assert.False(pub.TrySend("late"))
	_, ok := <-s.Receive()
	assert.False(ok, "expected subscriber to be closed by publisher")
	select {
	case <-pub.Closed():
	default:
		assert.Fail("expected Closed() to be closed")
	}
	pub.Close()
}

func TestPublisher_AddSubscriber_Close(t *testing.T) {
	assert := assert_.New(t)

	pub := NewPublisher[string]()
	owned := NewChannel[string](1)
	borrowed := NewChannel[string](1)
	assert.NoError(pub.AddSubscriber(owned, true))
	assert.NoError(pub.AddSubscriber(borrowed, false))
	pub.Close()
	assert.False(owned.Send("x"), "expected close=true subscriber to be closed")
	assert.True(borrowed.Send("x"), "expected close=false subscriber to not be closed")
	assert.Equal(ErrPublisherClosed, pub.AddSubscriber(NewChannel[string](1), false))
}
