package database

import (
	"io/ioutil"
	"log"
	"sync"
	"testing"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/farsihub/backend/core"
)

func newBareWatcher() *Watcher {
	return &Watcher{
		logger: core.NewStdLogger(log.New(ioutil.Discard, "", 0)),
		subs:   make(map[string]map[int]watchSub),
		done:   make(chan struct{}),
	}
}

func TestWatcherDispatchesPerTable(t *testing.T) {
	w := newBareWatcher()

	var mu sync.Mutex
	var lectureRows, threadRows []string
	unsubLecture := w.Subscribe("lecture", func(rowID string) {
		mu.Lock()
		defer mu.Unlock()
		lectureRows = append(lectureRows, rowID)
	}, nil)
	defer unsubLecture()
	unsubThread := w.Subscribe("thread", func(rowID string) {
		mu.Lock()
		defer mu.Unlock()
		threadRows = append(threadRows, rowID)
	}, nil)

	w.dispatch("lecture:l1")
	w.dispatch("thread:t1")
	w.dispatch("lecture:l2")
	w.dispatch("garbage") // malformed payloads are dropped

	mu.Lock()
	assert.Equal(t, []string{"l1", "l2"}, lectureRows)
	assert.Equal(t, []string{"t1"}, threadRows)
	mu.Unlock()

	// unsubscribe is idempotent and stops delivery
	unsubThread()
	unsubThread()
	w.dispatch("thread:t2")
	mu.Lock()
	assert.Equal(t, []string{"t1"}, threadRows)
	mu.Unlock()
}

func TestNilWatcherSubscribeIsNoop(t *testing.T) {
	var w *Watcher
	unsub := w.Subscribe("profile", func(string) { t.Error("unexpected event") }, nil)
	assert.NotNil(t, unsub)
	unsub()
	unsub()
}

func TestWatcherForwardsListenerErrors(t *testing.T) {
	w := newBareWatcher()

	var mu sync.Mutex
	var lectureErrs, threadErrs []error
	unsubLecture := w.Subscribe("lecture", func(string) {}, func(err error) {
		mu.Lock()
		defer mu.Unlock()
		lectureErrs = append(lectureErrs, err)
	})
	defer unsubLecture()
	unsubThread := w.Subscribe("thread", func(string) {}, func(err error) {
		mu.Lock()
		defer mu.Unlock()
		threadErrs = append(threadErrs, err)
	})
	defer unsubThread()
	unsubNoErr := w.Subscribe("subject", func(string) {}, nil)
	defer unsubNoErr()

	// a healthy event carries no error and stays quiet
	w.onListenerEvent(pq.ListenerEventConnected, nil)
	mu.Lock()
	assert.Empty(t, lectureErrs)
	assert.Empty(t, threadErrs)
	mu.Unlock()

	// a connection failure reaches every subscriber across tables
	connErr := errors.New("connection refused")
	w.onListenerEvent(pq.ListenerEventConnectionAttemptFailed, connErr)
	mu.Lock()
	assert.Equal(t, []error{connErr}, lectureErrs)
	assert.Equal(t, []error{connErr}, threadErrs)
	mu.Unlock()
}
