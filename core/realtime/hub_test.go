package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHubDelivery(t *testing.T) {
	hub := NewHub()

	ch, unsub := hub.Subscribe()
	defer unsub()

	hub.Publish(Event{Path: "users/123", Op: "update"})
	hub.Publish(Event{Path: "quizSubmissions/456", Op: "create"})

	evt := <-ch
	assert.Equal(t, "users/123", evt.Path)
	assert.Equal(t, "update", evt.Op)
	assert.False(t, evt.At.IsZero())

	evt = <-ch
	assert.Equal(t, "quizSubmissions/456", evt.Path)
}

func TestHubUnsubscribeIdempotent(t *testing.T) {
	hub := NewHub()

	_, unsub := hub.Subscribe()
	unsub()
	unsub() // must not panic

	// publishing after unsubscribe must not block or panic
	hub.Publish(Event{Path: "users/123", Op: "get"})
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()

	_, unsub := hub.Subscribe() // never drained
	defer unsub()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			hub.Publish(Event{Path: "lectures/1", Op: "list"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}
