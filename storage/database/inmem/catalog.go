package inmemdb

import (
	"context"
	"sort"
	"sync"

	"github.com/farsihub/backend/core/catalog"
	"github.com/farsihub/backend/core/quiz"
)

type catalogTable struct {
	mutex    sync.RWMutex
	subjects map[string]*catalog.Subject
	lectures map[string]*catalog.Lecture
	watchers *watchRegistry
}

func newCatalogTable() *catalogTable {
	return &catalogTable{
		subjects: make(map[string]*catalog.Subject),
		lectures: make(map[string]*catalog.Lecture),
		watchers: newWatchRegistry(),
	}
}

type catalogRepository struct {
	db *catalogTable
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *DB) *catalogRepository {
	return &catalogRepository{db: db.catalog}
}

func (repo *catalogRepository) CreateSubject(ctx context.Context, s catalog.Subject) (catalog.Subject, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.subjects[s.ID] = &s
	return s, nil
}

func (repo *catalogRepository) GetSubjectByID(ctx context.Context, id string) (catalog.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.subjects[id]; ok {
		return *s, nil
	}
	return catalog.Subject{}, catalog.ErrSubjectNotFound
}

func (repo *catalogRepository) FilterSubjects(ctx context.Context, filter catalog.QueryFilter) ([]catalog.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var res []catalog.Subject
	for _, s := range repo.db.subjects {
		if filter.Year != "" && s.Year != filter.Year {
			continue
		}
		if filter.Semester != "" && s.Semester != filter.Semester {
			continue
		}
		res = append(res, *s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

func (repo *catalogRepository) DeleteSubjectByID(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	delete(repo.db.subjects, id)
	// cascade, as the SQL schema does
	for lid, l := range repo.db.lectures {
		if l.SubjectID == id {
			delete(repo.db.lectures, lid)
		}
	}
	repo.db.mutex.Unlock()

	repo.db.watchers.notify()
	return nil
}

func (repo *catalogRepository) CreateLecture(ctx context.Context, l catalog.Lecture) (catalog.Lecture, error) {
	repo.db.mutex.Lock()
	repo.db.lectures[l.ID] = &l
	repo.db.mutex.Unlock()

	repo.db.watchers.notify()
	return l, nil
}

func (repo *catalogRepository) GetLectureByID(ctx context.Context, id string) (catalog.Lecture, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if l, ok := repo.db.lectures[id]; ok {
		return *l, nil
	}
	return catalog.Lecture{}, catalog.ErrLectureNotFound
}

func (repo *catalogRepository) FilterLectures(ctx context.Context, filter catalog.QueryFilter) ([]catalog.Lecture, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.filterLectures(filter), nil
}

func (repo *catalogRepository) filterLectures(filter catalog.QueryFilter) []catalog.Lecture {
	var res []catalog.Lecture
	for _, l := range repo.db.lectures {
		if filter.SubjectID != "" && l.SubjectID != filter.SubjectID {
			continue
		}
		if filter.Year != "" && l.Year != filter.Year {
			continue
		}
		if filter.Semester != "" && l.Semester != filter.Semester {
			continue
		}
		res = append(res, *l)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res
}

func (repo *catalogRepository) UpdateLecture(ctx context.Context, l catalog.Lecture) (catalog.Lecture, error) {
	repo.db.mutex.Lock()
	cur, ok := repo.db.lectures[l.ID]
	if !ok {
		repo.db.mutex.Unlock()
		return catalog.Lecture{}, catalog.ErrLectureNotFound
	}
	l.Quiz = cur.Quiz // quiz only changes through SetLectureQuiz
	repo.db.lectures[l.ID] = &l
	repo.db.mutex.Unlock()

	repo.db.watchers.notify()
	return l, nil
}

func (repo *catalogRepository) SetLectureQuiz(ctx context.Context, id string, q *quiz.Quiz) (catalog.Lecture, error) {
	repo.db.mutex.Lock()
	l, ok := repo.db.lectures[id]
	if !ok {
		repo.db.mutex.Unlock()
		return catalog.Lecture{}, catalog.ErrLectureNotFound
	}
	updated := *l
	updated.Quiz = q
	repo.db.lectures[id] = &updated
	repo.db.mutex.Unlock()

	repo.db.watchers.notify()
	return updated, nil
}

func (repo *catalogRepository) DeleteLectureByID(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	delete(repo.db.lectures, id)
	repo.db.mutex.Unlock()

	repo.db.watchers.notify()
	return nil
}

func (repo *catalogRepository) WatchLectures(filter catalog.QueryFilter, onSnapshot func([]catalog.Lecture), onError func(error)) (unsubscribe func()) {
	return repo.db.watchers.subscribe(func() {
		repo.db.mutex.RLock()
		lectures := repo.filterLectures(filter)
		repo.db.mutex.RUnlock()
		onSnapshot(lectures)
	})
}
