package quiz

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/farsihub/backend/core"
	"github.com/farsihub/backend/core/realtime"
)

var sampleQuiz = Quiz{
	Title: "Anatomy basics",
	Questions: []Question{
		{Text: "Largest organ?", Options: []string{"Liver", "Skin", "Heart"}, CorrectAnswer: "Skin"},
		{Text: "Chambers of the heart?", Options: []string{"2", "3", "4"}, CorrectAnswer: "4"},
		{Text: "Bones in the adult body?", Options: []string{"206", "300"}, CorrectAnswer: "206"},
	},
}

func TestGrade(t *testing.T) {
	tests := []struct {
		name    string
		answers []string
		score   int
	}{
		{"all correct", []string{"Skin", "4", "206"}, 3},
		{"some correct", []string{"Skin", "3", "206"}, 2},
		{"none correct", []string{"Liver", "2", "300"}, 0},
		{"missing answers", []string{"Skin"}, 1},
		{"no answers", nil, 0},
		{"extra answers ignored", []string{"Skin", "4", "206", "?"}, 3},
		{"position matters", []string{"4", "Skin", "206"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, total := Grade(sampleQuiz, tt.answers)
			assert.Equal(t, tt.score, score)
			assert.Equal(t, 3, total)
		})
	}
}

func TestQuizValidate(t *testing.T) {
	validate, _ := core.NewValidator()

	q := Quiz{
		Title: "Broken",
		Questions: []Question{
			{Text: "Q1", Options: []string{"A", "B"}, CorrectAnswer: "C"},
		},
	}
	err := q.Validate(validate)
	if assert.Error(t, err) {
		verr, ok := err.(*core.ValidationError)
		if assert.True(t, ok) {
			assert.Equal(t, "questions[0].correct_answer", verr.Fields[0].Field)
		}
	}

	q.Questions[0].CorrectAnswer = "B"
	assert.NoError(t, q.Validate(validate))
}

type fakeRepo struct {
	mu   sync.Mutex
	subs map[string]Submission
}

func newFakeRepo() *fakeRepo { return &fakeRepo{subs: make(map[string]Submission)} }

func (r *fakeRepo) CreateSubmission(ctx context.Context, s Submission) (Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[s.ID] = s
	return s, nil
}

func (r *fakeRepo) GetSubmissionByID(ctx context.Context, id string) (Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return Submission{}, ErrNotFound
	}
	return s, nil
}

func (r *fakeRepo) FilterSubmissions(ctx context.Context, filter QueryFilter) ([]Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []Submission
	for _, s := range r.subs {
		if filter.UserID != "" && s.UserID != filter.UserID {
			continue
		}
		if filter.SubjectID != "" && s.SubjectID != filter.SubjectID {
			continue
		}
		if filter.LectureID != "" && s.LectureID != filter.LectureID {
			continue
		}
		res = append(res, s)
	}
	return res, nil
}

func TestSubmitGradesAndPersists(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := NewService(repo, realtime.NewHub())

	actor := Actor{ID: "u1", Approved: true}
	ns := NewSubmission{SubjectID: "sub1", LectureID: "lec1", Answers: []string{"Skin", "3", "206"}}

	s, err := svc.Submit(ctx, actor, sampleQuiz, ns)
	assert.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 2, s.Score)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, "Anatomy basics", s.QuizTitle)

	got, err := svc.ByUser(ctx, "u1")
	assert.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = svc.ByLecture(ctx, "lec1")
	assert.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSubmitRejectsUnapprovedStudent(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	hub := realtime.NewHub()
	svc := NewService(repo, hub)

	events, unsub := hub.Subscribe()
	defer unsub()

	_, err := svc.Submit(ctx, Actor{ID: "u1"}, sampleQuiz, NewSubmission{LectureID: "lec1"})
	assert.True(t, core.IsPermissionDenied(err))
	assert.Empty(t, repo.subs)

	select {
	case evt := <-events:
		assert.Equal(t, "quizSubmissions", evt.Path)
		assert.Equal(t, "create", evt.Op)
	case <-time.After(time.Second):
		t.Fatal("expected a permission event on the hub")
	}
}

func TestSubmitAllowsAdmin(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeRepo(), realtime.NewHub())

	_, err := svc.Submit(ctx, Actor{ID: "a1", Admin: true}, sampleQuiz, NewSubmission{LectureID: "lec1"})
	assert.NoError(t, err)
}
