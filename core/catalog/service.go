package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/farsihub/backend/core/quiz"
)

var (
	// errors
	ErrSubjectNotFound = errors.New("subject not found")
	ErrLectureNotFound = errors.New("lecture not found")
)

type (
	Repository interface {
		CreateSubject(ctx context.Context, s Subject) (Subject, error)
		GetSubjectByID(ctx context.Context, id string) (Subject, error)
		// FilterSubjects applies AND on available QueryFilter fields and
		// orders by Name ascending.
		FilterSubjects(ctx context.Context, filter QueryFilter) ([]Subject, error)
		DeleteSubjectByID(ctx context.Context, id string) error

		CreateLecture(ctx context.Context, l Lecture) (Lecture, error)
		GetLectureByID(ctx context.Context, id string) (Lecture, error)
		// FilterLectures orders by CreatedAt descending.
		FilterLectures(ctx context.Context, filter QueryFilter) ([]Lecture, error)
		UpdateLecture(ctx context.Context, l Lecture) (Lecture, error)
		// SetLectureQuiz replaces the embedded quiz; a nil quiz deletes the
		// field outright rather than writing a null payload.
		SetLectureQuiz(ctx context.Context, id string, q *quiz.Quiz) (Lecture, error)
		DeleteLectureByID(ctx context.Context, id string) error

		// WatchLectures streams the full filtered list on every change to
		// any matching lecture, in emission order. The unsubscribe func is
		// safe to call multiple times.
		WatchLectures(filter QueryFilter, onSnapshot func([]Lecture), onError func(error)) (unsubscribe func())
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) CreateSubject(ctx context.Context, ns NewSubject) (Subject, error) {
	s := Subject{
		ID:        uuid.New().String(),
		Name:      ns.Name,
		Year:      ns.Year,
		Semester:  ns.Semester,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateSubject(ctx, s)
}

func (svc *Service) GetSubject(ctx context.Context, id string) (Subject, error) {
	return svc.repo.GetSubjectByID(ctx, id)
}

func (svc *Service) FilterSubjects(ctx context.Context, filter QueryFilter) ([]Subject, error) {
	filter.Clean()
	return svc.repo.FilterSubjects(ctx, filter)
}

func (svc *Service) DeleteSubject(ctx context.Context, id string) error {
	return svc.repo.DeleteSubjectByID(ctx, id)
}

// CreateLecture copies year and semester from the owning subject so lecture
// queries never need a join.
func (svc *Service) CreateLecture(ctx context.Context, nl NewLecture) (Lecture, error) {
	s, err := svc.repo.GetSubjectByID(ctx, nl.SubjectID)
	if err != nil {
		return Lecture{}, err
	}
	l := Lecture{
		ID:          uuid.New().String(),
		SubjectID:   s.ID,
		Title:       nl.Title,
		Description: nl.Description,
		PDFURL:      nl.PDFURL,
		Year:        s.Year,
		Semester:    s.Semester,
		CreatedAt:   time.Now().UTC(),
	}
	return svc.repo.CreateLecture(ctx, l)
}

func (svc *Service) GetLecture(ctx context.Context, id string) (Lecture, error) {
	return svc.repo.GetLectureByID(ctx, id)
}

func (svc *Service) FilterLectures(ctx context.Context, filter QueryFilter) ([]Lecture, error) {
	filter.Clean()
	return svc.repo.FilterLectures(ctx, filter)
}

func (svc *Service) UpdateLecture(ctx context.Context, id string, ul UpdateLecture) (Lecture, error) {
	l, err := svc.repo.GetLectureByID(ctx, id)
	if err != nil {
		return Lecture{}, err
	}
	l.Title = ul.Title
	l.Description = ul.Description
	l.PDFURL = ul.PDFURL
	return svc.repo.UpdateLecture(ctx, l)
}

func (svc *Service) AttachQuiz(ctx context.Context, id string, q quiz.Quiz) (Lecture, error) {
	return svc.repo.SetLectureQuiz(ctx, id, &q)
}

// RemoveQuiz deletes the lecture's quiz field.
func (svc *Service) RemoveQuiz(ctx context.Context, id string) (Lecture, error) {
	return svc.repo.SetLectureQuiz(ctx, id, nil)
}

func (svc *Service) DeleteLecture(ctx context.Context, id string) error {
	return svc.repo.DeleteLectureByID(ctx, id)
}

func (svc *Service) WatchLectures(filter QueryFilter, onSnapshot func([]Lecture), onError func(error)) (unsubscribe func()) {
	filter.Clean()
	return svc.repo.WatchLectures(filter, onSnapshot, onError)
}
