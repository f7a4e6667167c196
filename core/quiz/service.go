package quiz

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/farsihub/backend/core"
	"github.com/farsihub/backend/core/realtime"
)

var ErrNotFound = errors.New("submission not found")

const submissionsPath = "quizSubmissions"

type (
	Repository interface {
		CreateSubmission(ctx context.Context, s Submission) (Submission, error)
		GetSubmissionByID(ctx context.Context, id string) (Submission, error)
		// FilterSubmissions applies AND on available QueryFilter fields and
		// orders by CreatedAt descending.
		FilterSubmissions(ctx context.Context, filter QueryFilter) ([]Submission, error)
	}

	// Actor is the caller's access view, built by the transport layer from
	// the resolved session.
	Actor struct {
		ID       string
		Admin    bool
		Approved bool
	}

	Service struct {
		repo Repository
		hub  *realtime.Hub
	}
)

func NewService(repo Repository, hub *realtime.Hub) *Service {
	return &Service{repo: repo, hub: hub}
}

// Submit grades the answers against the lecture's quiz and persists the
// result. Unapproved students can read content freely but their writes are
// rejected; the denial is returned to the caller and also published on the
// hub.
func (svc *Service) Submit(ctx context.Context, actor Actor, q Quiz, ns NewSubmission) (Submission, error) {
	if !actor.Admin && !actor.Approved {
		svc.hub.Publish(realtime.Event{
			Path:    submissionsPath,
			Op:      "create",
			Payload: map[string]string{"user_id": actor.ID, "lecture_id": ns.LectureID},
		})
		return Submission{}, core.NewPermissionError(submissionsPath, "create")
	}

	score, total := Grade(q, ns.Answers)
	s := Submission{
		ID:        uuid.New().String(),
		UserID:    actor.ID,
		SubjectID: ns.SubjectID,
		LectureID: ns.LectureID,
		QuizTitle: q.Title,
		Answers:   ns.Answers,
		Score:     score,
		Total:     total,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateSubmission(ctx, s)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Submission, error) {
	return svc.repo.GetSubmissionByID(ctx, id)
}

// ByUser lists a user's attempts, most recent first.
func (svc *Service) ByUser(ctx context.Context, userID string) ([]Submission, error) {
	return svc.repo.FilterSubmissions(ctx, QueryFilter{UserID: userID})
}

// ByLecture lists all attempts on a lecture, most recent first.
func (svc *Service) ByLecture(ctx context.Context, lectureID string) ([]Submission, error) {
	return svc.repo.FilterSubmissions(ctx, QueryFilter{LectureID: lectureID})
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Submission, error) {
	return svc.repo.FilterSubmissions(ctx, filter)
}
