package inmemdb

import (
	"context"
	"sort"
	"sync"

	"github.com/farsihub/backend/core/qna"
)

type qnaTable struct {
	mutex    sync.RWMutex
	table    map[string]*qna.Thread
	watchers *watchRegistry
}

func newQnaTable() *qnaTable {
	return &qnaTable{table: make(map[string]*qna.Thread), watchers: newWatchRegistry()}
}

type qnaRepository struct {
	db *qnaTable
}

var _ qna.Repository = (*qnaRepository)(nil) // interface compliance check

func NewQnaRepository(db *DB) *qnaRepository {
	return &qnaRepository{db: db.qna}
}

func (repo *qnaRepository) CreateThread(ctx context.Context, th qna.Thread) (qna.Thread, error) {
	repo.db.mutex.Lock()
	repo.db.table[th.ID] = &th
	repo.db.mutex.Unlock()

	repo.db.watchers.notify()
	return th, nil
}

func (repo *qnaRepository) GetThreadByID(ctx context.Context, id string) (qna.Thread, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if th, ok := repo.db.table[id]; ok {
		return *th, nil
	}
	return qna.Thread{}, qna.ErrNotFound
}

func (repo *qnaRepository) FilterThreads(ctx context.Context, filter qna.QueryFilter) ([]qna.Thread, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.filterThreads(filter), nil
}

func (repo *qnaRepository) filterThreads(filter qna.QueryFilter) []qna.Thread {
	var res []qna.Thread
	for _, th := range repo.db.table {
		if filter.SubjectID != "" && th.SubjectID != filter.SubjectID {
			continue
		}
		if filter.LectureID != "" && th.LectureID.String != filter.LectureID {
			continue
		}
		if filter.UserID != "" && th.UserID != filter.UserID {
			continue
		}
		if filter.Unanswered && th.Answer.Valid {
			continue
		}
		res = append(res, *th)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res
}

func (repo *qnaRepository) UpdateThread(ctx context.Context, th qna.Thread) (qna.Thread, error) {
	repo.db.mutex.Lock()
	if _, ok := repo.db.table[th.ID]; !ok {
		repo.db.mutex.Unlock()
		return qna.Thread{}, qna.ErrNotFound
	}
	repo.db.table[th.ID] = &th
	repo.db.mutex.Unlock()

	repo.db.watchers.notify()
	return th, nil
}

func (repo *qnaRepository) DeleteThreadByID(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	delete(repo.db.table, id)
	repo.db.mutex.Unlock()

	repo.db.watchers.notify()
	return nil
}

func (repo *qnaRepository) WatchThreads(filter qna.QueryFilter, onSnapshot func([]qna.Thread), onError func(error)) (unsubscribe func()) {
	return repo.db.watchers.subscribe(func() {
		repo.db.mutex.RLock()
		threads := repo.filterThreads(filter)
		repo.db.mutex.RUnlock()
		onSnapshot(threads)
	})
}
