package catalog

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/farsihub/backend/core"
	"github.com/farsihub/backend/core/quiz"
	"github.com/farsihub/backend/core/user"
)

type fakeRepo struct {
	mu       sync.Mutex
	subjects map[string]Subject
	lectures map[string]Lecture
	watchers []func([]Lecture)
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		subjects: make(map[string]Subject),
		lectures: make(map[string]Lecture),
	}
}

func (r *fakeRepo) CreateSubject(ctx context.Context, s Subject) (Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects[s.ID] = s
	return s, nil
}

func (r *fakeRepo) GetSubjectByID(ctx context.Context, id string) (Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subjects[id]
	if !ok {
		return Subject{}, ErrSubjectNotFound
	}
	return s, nil
}

func (r *fakeRepo) FilterSubjects(ctx context.Context, filter QueryFilter) ([]Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []Subject
	for _, s := range r.subjects {
		if filter.Year != "" && s.Year != filter.Year {
			continue
		}
		if filter.Semester != "" && s.Semester != filter.Semester {
			continue
		}
		res = append(res, s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

func (r *fakeRepo) DeleteSubjectByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subjects, id)
	return nil
}

func (r *fakeRepo) CreateLecture(ctx context.Context, l Lecture) (Lecture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lectures[l.ID] = l
	r.notifyLocked()
	return l, nil
}

func (r *fakeRepo) GetLectureByID(ctx context.Context, id string) (Lecture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lectures[id]
	if !ok {
		return Lecture{}, ErrLectureNotFound
	}
	return l, nil
}

func (r *fakeRepo) FilterLectures(ctx context.Context, filter QueryFilter) ([]Lecture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filterLocked(filter), nil
}

func (r *fakeRepo) filterLocked(filter QueryFilter) []Lecture {
	var res []Lecture
	for _, l := range r.lectures {
		if filter.SubjectID != "" && l.SubjectID != filter.SubjectID {
			continue
		}
		if filter.Year != "" && l.Year != filter.Year {
			continue
		}
		if filter.Semester != "" && l.Semester != filter.Semester {
			continue
		}
		res = append(res, l)
	}
	return res
}

func (r *fakeRepo) UpdateLecture(ctx context.Context, l Lecture) (Lecture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lectures[l.ID] = l
	r.notifyLocked()
	return l, nil
}

func (r *fakeRepo) SetLectureQuiz(ctx context.Context, id string, q *quiz.Quiz) (Lecture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lectures[id]
	if !ok {
		return Lecture{}, ErrLectureNotFound
	}
	l.Quiz = q
	r.lectures[id] = l
	r.notifyLocked()
	return l, nil
}

func (r *fakeRepo) DeleteLectureByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lectures, id)
	r.notifyLocked()
	return nil
}

func (r *fakeRepo) WatchLectures(filter QueryFilter, onSnapshot func([]Lecture), onError func(error)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers = append(r.watchers, func(all []Lecture) {
		onSnapshot(all)
	})
	return func() {}
}

func (r *fakeRepo) notifyLocked() {
	for _, w := range r.watchers {
		w(r.filterLocked(QueryFilter{}))
	}
}

func setup(t *testing.T) (*Service, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	return NewService(repo), repo
}

func TestCreateLectureInheritsSubjectSlot(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	s, err := svc.CreateSubject(ctx, NewSubject{Name: "Anatomy", Year: user.YearFirst, Semester: SemesterSecond})
	assert.NoError(t, err)

	l, err := svc.CreateLecture(ctx, NewLecture{SubjectID: s.ID, Title: "Skeleton"})
	assert.NoError(t, err)
	assert.Equal(t, user.YearFirst, l.Year)
	assert.Equal(t, SemesterSecond, l.Semester)

	_, err = svc.CreateLecture(ctx, NewLecture{SubjectID: "nope", Title: "Orphan"})
	assert.Equal(t, ErrSubjectNotFound, err)
}

func TestFilterLectures(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	s1, _ := svc.CreateSubject(ctx, NewSubject{Name: "Anatomy", Year: user.YearFirst, Semester: SemesterFirst})
	s2, _ := svc.CreateSubject(ctx, NewSubject{Name: "Histology", Year: user.YearSecond, Semester: SemesterFirst})
	_, _ = svc.CreateLecture(ctx, NewLecture{SubjectID: s1.ID, Title: "Skeleton"})
	_, _ = svc.CreateLecture(ctx, NewLecture{SubjectID: s2.ID, Title: "Tissue"})

	got, err := svc.FilterLectures(ctx, QueryFilter{Year: user.YearSecond})
	assert.NoError(t, err)
	if assert.Len(t, got, 1) {
		assert.Equal(t, "Tissue", got[0].Title)
	}

	got, err = svc.FilterLectures(ctx, QueryFilter{SubjectID: s1.ID})
	assert.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestAttachAndRemoveQuiz(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)

	s, _ := svc.CreateSubject(ctx, NewSubject{Name: "Anatomy", Year: user.YearFirst, Semester: SemesterFirst})
	l, _ := svc.CreateLecture(ctx, NewLecture{SubjectID: s.ID, Title: "Skeleton"})

	q := quiz.Quiz{Title: "Bones", Questions: []quiz.Question{
		{Text: "Femur location?", Options: []string{"Arm", "Leg"}, CorrectAnswer: "Leg"},
	}}
	got, err := svc.AttachQuiz(ctx, l.ID, q)
	assert.NoError(t, err)
	if assert.NotNil(t, got.Quiz) {
		assert.Equal(t, "Bones", got.Quiz.Title)
	}

	got, err = svc.RemoveQuiz(ctx, l.ID)
	assert.NoError(t, err)
	assert.Nil(t, got.Quiz)

	stored, _ := repo.GetLectureByID(ctx, l.ID)
	assert.Nil(t, stored.Quiz)
}

func TestWatchLecturesDeliversOnMutation(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	s, _ := svc.CreateSubject(ctx, NewSubject{Name: "Anatomy", Year: user.YearFirst, Semester: SemesterFirst})

	var snaps [][]Lecture
	unsub := svc.WatchLectures(QueryFilter{}, func(ls []Lecture) {
		snaps = append(snaps, ls)
	}, func(err error) { t.Errorf("unexpected watch error: %v", err) })
	defer unsub()

	_, err := svc.CreateLecture(ctx, NewLecture{SubjectID: s.ID, Title: "Skeleton"})
	assert.NoError(t, err)
	if assert.Len(t, snaps, 1) {
		assert.Len(t, snaps[0], 1)
	}
}

func TestNewSubjectValidate(t *testing.T) {
	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)
	RegisterValidators(validate, translator)

	tests := []struct {
		name    string
		subject NewSubject
		wantErr bool
	}{
		{"valid", NewSubject{Name: "Anatomy", Year: user.YearFirst, Semester: SemesterFirst}, false},
		{"case folded", NewSubject{Name: "Anatomy", Year: "First", Semester: "SECOND"}, false},
		{"bad year", NewSubject{Name: "Anatomy", Year: "fifth", Semester: SemesterFirst}, true},
		{"bad semester", NewSubject{Name: "Anatomy", Year: user.YearFirst, Semester: "third"}, true},
		{"missing name", NewSubject{Year: user.YearFirst, Semester: SemesterFirst}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.subject.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
