// Package qna holds the question-and-answer threads students open on
// subjects and lectures. A thread is a single question with at most one
// admin answer.
package qna

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/farsihub/backend/core"
)

var (
	// errors
	ErrNotFound        = errors.New("thread not found")
	ErrAlreadyAnswered = errors.New("thread is already answered")
)

type (
	Thread struct {
		ID         string      `json:"id"`
		SubjectID  string      `json:"subject_id"`
		LectureID  null.String `json:"lecture_id,omitempty"`
		UserID     string      `json:"user_id"`
		UserName   string      `json:"user_name"`
		Text       string      `json:"text"`
		CreatedAt  time.Time   `json:"created_at"`
		Answer     null.String `json:"answer,omitempty"`
		AnsweredAt null.Time   `json:"answered_at,omitempty"`
	}

	NewThread struct {
		SubjectID string `json:"subject_id" validate:"required"`
		LectureID string `json:"lecture_id"`
		Text      string `json:"text" validate:"required"`
	}

	QueryFilter struct {
		SubjectID  string `query:"subject_id"`
		LectureID  string `query:"lecture_id"`
		UserID     string `query:"user_id"`
		Unanswered bool   `query:"unanswered"`
	}

	Repository interface {
		CreateThread(ctx context.Context, th Thread) (Thread, error)
		GetThreadByID(ctx context.Context, id string) (Thread, error)
		// FilterThreads applies AND on available QueryFilter fields and
		// orders by CreatedAt descending.
		FilterThreads(ctx context.Context, filter QueryFilter) ([]Thread, error)
		UpdateThread(ctx context.Context, th Thread) (Thread, error)
		DeleteThreadByID(ctx context.Context, id string) error

		// WatchThreads streams the full filtered list on every change to a
		// matching thread, in emission order. The unsubscribe func is safe
		// to call multiple times.
		WatchThreads(filter QueryFilter, onSnapshot func([]Thread), onError func(error)) (unsubscribe func())
	}

	Service struct {
		repo Repository
	}
)

func (nt *NewThread) Validate(validate *validator.Validate) error {
	nt.Text = core.CleanString(nt.Text)
	return validate.Struct(nt)
}

func (th *Thread) IsAnswered() bool { return th.Answer.Valid }

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Ask opens a thread in the asker's name.
func (svc *Service) Ask(ctx context.Context, userID, userName string, nt NewThread) (Thread, error) {
	th := Thread{
		ID:        uuid.New().String(),
		SubjectID: nt.SubjectID,
		UserID:    userID,
		UserName:  userName,
		Text:      nt.Text,
		CreatedAt: time.Now().UTC(),
	}
	if nt.LectureID != "" {
		th.LectureID = null.StringFrom(nt.LectureID)
	}
	return svc.repo.CreateThread(ctx, th)
}

// Answer records the single admin answer on a thread.
func (svc *Service) Answer(ctx context.Context, id, text string) (Thread, error) {
	th, err := svc.repo.GetThreadByID(ctx, id)
	if err != nil {
		return Thread{}, err
	}
	if th.IsAnswered() {
		return Thread{}, ErrAlreadyAnswered
	}
	th.Answer = null.StringFrom(text)
	th.AnsweredAt = null.TimeFrom(time.Now().UTC())
	return svc.repo.UpdateThread(ctx, th)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Thread, error) {
	return svc.repo.GetThreadByID(ctx, id)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Thread, error) {
	return svc.repo.FilterThreads(ctx, filter)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteThreadByID(ctx, id)
}

func (svc *Service) Watch(filter QueryFilter, onSnapshot func([]Thread), onError func(error)) (unsubscribe func()) {
	return svc.repo.WatchThreads(filter, onSnapshot, onError)
}
