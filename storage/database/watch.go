package database

import (
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/farsihub/backend/core"
)

// notifyChannel is raised by the notify_change() trigger with a
// "<table>:<row id>" payload.
const notifyChannel = "farsihub_changes"

const (
	listenMinReconnect = 10 * time.Second
	listenMaxReconnect = time.Minute
)

type watchSub struct {
	onEvent func(rowID string)
	onError func(error)
}

// Watcher turns Postgres NOTIFY payloads into per-table callbacks. Repos
// subscribe for the tables they serve and re-query on every event, so
// subscribers always observe fresh ordered snapshots. Callbacks run on a
// single goroutine, preserving emission order.
type Watcher struct {
	logger   core.Logger
	listener *pq.Listener

	mu      sync.Mutex
	subs    map[string]map[int]watchSub // keyed by table name
	nextSub int
	done    chan struct{}
}

func NewWatcher(conf *core.Config, logger core.Logger) (*Watcher, error) {
	w := &Watcher{
		logger: logger,
		subs:   make(map[string]map[int]watchSub),
		done:   make(chan struct{}),
	}
	w.listener = pq.NewListener(ConnString(conf), listenMinReconnect, listenMaxReconnect, w.onListenerEvent)
	if err := w.listener.Listen(notifyChannel); err != nil {
		_ = w.listener.Close()
		return nil, err
	}
	go w.run()
	return w, nil
}

func (w *Watcher) onListenerEvent(ev pq.ListenerEventType, err error) {
	if err == nil {
		return
	}
	w.logger.Error("database listener", err)

	// connection-level failures reach every subscriber, not just the log;
	// pq keeps reconnecting on its own
	w.mu.Lock()
	subs := make([]watchSub, 0)
	for _, table := range w.subs {
		for _, sub := range table {
			subs = append(subs, sub)
		}
	}
	w.mu.Unlock()

	for _, sub := range subs {
		if sub.onError != nil {
			sub.onError(err)
		}
	}
}

func (w *Watcher) run() {
	for {
		select {
		case n, ok := <-w.listener.Notify:
			if !ok {
				return
			}
			if n == nil { // reconnect marker
				continue
			}
			w.dispatch(n.Extra)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) dispatch(payload string) {
	parts := strings.SplitN(payload, ":", 2)
	if len(parts) != 2 {
		w.logger.Warn("unexpected notify payload", "payload", payload)
		return
	}
	table, rowID := parts[0], parts[1]

	w.mu.Lock()
	subs := make([]watchSub, 0, len(w.subs[table]))
	for _, sub := range w.subs[table] {
		subs = append(subs, sub)
	}
	w.mu.Unlock()

	for _, sub := range subs {
		sub.onEvent(rowID)
	}
}

// Subscribe registers callbacks for one table. The returned unsubscribe func
// is safe to call multiple times. A nil Watcher accepts subscriptions and
// never fires, so repos wired without one (the admin CLI) stay safe.
func (w *Watcher) Subscribe(table string, onEvent func(rowID string), onError func(error)) (unsubscribe func()) {
	if w == nil {
		return func() {}
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.subs[table] == nil {
		w.subs[table] = make(map[int]watchSub)
	}
	id := w.nextSub
	w.nextSub++
	w.subs[table][id] = watchSub{onEvent: onEvent, onError: onError}

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			delete(w.subs[table], id)
		})
	}
}

func (w *Watcher) Close() error {
	close(w.done)
	return w.listener.Close()
}
