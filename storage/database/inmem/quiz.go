package inmemdb

import (
	"context"
	"sort"
	"sync"

	"github.com/farsihub/backend/core/quiz"
)

type quizTable struct {
	mutex sync.RWMutex
	table map[string]*quiz.Submission
}

func newQuizTable() *quizTable {
	return &quizTable{table: make(map[string]*quiz.Submission)}
}

type quizRepository struct {
	db *quizTable
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(db *DB) *quizRepository {
	return &quizRepository{db: db.quiz}
}

func (repo *quizRepository) CreateSubmission(ctx context.Context, s quiz.Submission) (quiz.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.table[s.ID] = &s
	return s, nil
}

func (repo *quizRepository) GetSubmissionByID(ctx context.Context, id string) (quiz.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.table[id]; ok {
		return *s, nil
	}
	return quiz.Submission{}, quiz.ErrNotFound
}

func (repo *quizRepository) FilterSubmissions(ctx context.Context, filter quiz.QueryFilter) ([]quiz.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var res []quiz.Submission
	for _, s := range repo.db.table {
		if filter.UserID != "" && s.UserID != filter.UserID {
			continue
		}
		if filter.SubjectID != "" && s.SubjectID != filter.SubjectID {
			continue
		}
		if filter.LectureID != "" && s.LectureID != filter.LectureID {
			continue
		}
		res = append(res, *s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}
