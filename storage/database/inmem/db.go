// Package inmemdb is a mutex-guarded, map-backed implementation of every
// repository, with the same watch semantics as the Postgres store. It backs
// tests and local development.
package inmemdb

import (
	"sort"
	"sync"
)

type DB struct {
	identity *identityTable
	user     *userTable
	catalog  *catalogTable
	quiz     *quizTable
	qna      *qnaTable
}

func NewDB() *DB {
	return &DB{
		identity: newIdentityTable(),
		user:     newUserTable(),
		catalog:  newCatalogTable(),
		quiz:     newQuizTable(),
		qna:      newQnaTable(),
	}
}

// watchRegistry fans mutation callbacks out to subscribers. Callbacks run
// synchronously on the mutating goroutine, in registration order, after the
// table lock is released.
type watchRegistry struct {
	mu      sync.Mutex
	subs    map[int]func()
	nextSub int
}

func newWatchRegistry() *watchRegistry {
	return &watchRegistry{subs: make(map[int]func())}
}

func (r *watchRegistry) subscribe(notify func()) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextSub
	r.nextSub++
	r.subs[id] = notify

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.subs, id)
		})
	}
}

func (r *watchRegistry) notify() {
	r.mu.Lock()
	ids := make([]int, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, r.subs[id])
	}
	r.mu.Unlock()

	for _, notify := range subs {
		notify()
	}
}
