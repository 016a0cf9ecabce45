package pubsub

import (
	"sync"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func evens(v int) (int, bool) {
	return v, v%2 == 0
}

func TestMappedSender_Send(t *testing.T) {
	assert := assert_.New(t)

	ch := NewChannel[int](10)
	mapped := NewMappedSender[int](ch, evens)

	// Every message is accepted, no indication of filtering
	assert.True(mapped.Send(0))
	assert.True(mapped.Send(1))
	assert.True(mapped.Send(2))
	assert.True(mapped.Send(3))
	assert.True(mapped.Send(4))
	// However, only the even messages are received
	assert.Equal(0, <-ch.Receive())
	assert.Equal(2, <-ch.Receive())
	assert.Equal(4, <-ch.Receive())
}

func TestMappedSender_Close(t *testing.T) {
	assert := assert_.New(t)

	ch := NewChannel[int](10)
	mapped := NewMappedSender[int](ch, evens)

	// Closing the mapped sender should close the underlying sender
	mapped.Close()
	<-ch.Closed()
	// And sends should now fail
	assert.False(mapped.Send(0))
}

func TestMappedSender_Close_Inner(t *testing.T) {
	assert := assert_.New(t)

	ch := NewChannel[int](10)
	mapped := NewMappedSender[int](ch, evens)

	// Closing the underlying sender should close the mapped sender
	ch.Close()
	<-mapped.Closed()
	// And sends should now fail
	assert.False(mapped.Send(0))
}

func TestMappedSender_Publisher_AddSubscriber(t *testing.T) {
	assert := assert_.New(t)

	pub := NewPublisher[int]()
	ch := NewChannel[int](1)
	mapped := NewMappedSender[int](ch, evens)
	assert.Nil(pub.AddSubscriber(mapped, true))
	senderDone := make(chan struct{})
	var running sync.WaitGroup
	running.Add(2)
	go func() {
		defer close(senderDone)
		for i := 0; i < 10; i++ {
			pub.Send(i)
		}
	}()
	expected := []int{0, 2, 4, 6, 8}
	var received []int
	receiverDone := make(chan struct{})
	go func() {
		defer close(receiverDone)
		for v := range ch.Receive() {
			received = append(received, v)
		}
	}()
	<-senderDone
	pub.Close()
	<-receiverDone
	assert.Equal(expected, received)
}

func TestMappedSender_TrySend(t *testing.T) {
	assert := assert_.New(t)

	ch := NewChannel[int](2)
	// Only forward values that increase, replacing each with its square
	last := -1
	squares := NewMappedSender[int](ch, func(v int) (int, bool) {
		if v <= last {
			return 0, false
		}
		last = v
		return v * v, true
	}).(TrySender[int])

	assert.True(squares.TrySend(2))
	// Dropped by the mapper, but still "accepted"
	assert.True(squares.TrySend(1))
	assert.True(squares.TrySend(3))
	// Buffer is now full
	assert.False(squares.TrySend(4))
	assert.Equal(4, <-ch.Receive())
	assert.Equal(9, <-ch.Receive())
}
