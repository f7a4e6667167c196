package qna

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeRepo struct {
	mu      sync.Mutex
	threads map[string]Thread
}

func newFakeRepo() *fakeRepo { return &fakeRepo{threads: make(map[string]Thread)} }

func (r *fakeRepo) CreateThread(ctx context.Context, th Thread) (Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threads[th.ID] = th
	return th, nil
}

func (r *fakeRepo) GetThreadByID(ctx context.Context, id string) (Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	th, ok := r.threads[id]
	if !ok {
		return Thread{}, ErrNotFound
	}
	return th, nil
}

func (r *fakeRepo) FilterThreads(ctx context.Context, filter QueryFilter) ([]Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []Thread
	for _, th := range r.threads {
		if filter.SubjectID != "" && th.SubjectID != filter.SubjectID {
			continue
		}
		if filter.LectureID != "" && th.LectureID.String != filter.LectureID {
			continue
		}
		if filter.UserID != "" && th.UserID != filter.UserID {
			continue
		}
		if filter.Unanswered && th.IsAnswered() {
			continue
		}
		res = append(res, th)
	}
	return res, nil
}

func (r *fakeRepo) UpdateThread(ctx context.Context, th Thread) (Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.threads[th.ID]; !ok {
		return Thread{}, ErrNotFound
	}
	r.threads[th.ID] = th
	return th, nil
}

func (r *fakeRepo) DeleteThreadByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.threads, id)
	return nil
}

func (r *fakeRepo) WatchThreads(filter QueryFilter, onSnapshot func([]Thread), onError func(error)) func() {
	return func() {}
}

func TestAskAndAnswer(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeRepo())

	th, err := svc.Ask(ctx, "u1", "Sara", NewThread{SubjectID: "sub1", Text: "What is a synapse?"})
	assert.NoError(t, err)
	assert.False(t, th.IsAnswered())
	assert.False(t, th.LectureID.Valid)

	th, err = svc.Answer(ctx, th.ID, "A junction between neurons.")
	assert.NoError(t, err)
	assert.True(t, th.IsAnswered())
	assert.True(t, th.AnsweredAt.Valid)

	_, err = svc.Answer(ctx, th.ID, "Again?")
	assert.Equal(t, ErrAlreadyAnswered, err)

	_, err = svc.Answer(ctx, "missing", "Hello")
	assert.Equal(t, ErrNotFound, err)
}

func TestFilterUnanswered(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeRepo())

	th1, _ := svc.Ask(ctx, "u1", "Sara", NewThread{SubjectID: "sub1", Text: "Q1", LectureID: "lec1"})
	_, _ = svc.Ask(ctx, "u2", "Omid", NewThread{SubjectID: "sub1", Text: "Q2"})
	_, _ = svc.Answer(ctx, th1.ID, "A1")

	got, err := svc.Filter(ctx, QueryFilter{SubjectID: "sub1", Unanswered: true})
	assert.NoError(t, err)
	if assert.Len(t, got, 1) {
		assert.Equal(t, "Q2", got[0].Text)
	}

	got, err = svc.Filter(ctx, QueryFilter{LectureID: "lec1"})
	assert.NoError(t, err)
	assert.Len(t, got, 1)
}
