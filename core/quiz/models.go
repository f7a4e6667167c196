package quiz

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/farsihub/backend/core"
)

type (
	// Question is a single multiple-choice item. CorrectAnswer holds the
	// full text of the winning option, not an index.
	Question struct {
		Text          string   `json:"text" validate:"required"`
		Options       []string `json:"options" validate:"min=2,dive,required"`
		CorrectAnswer string   `json:"correct_answer" validate:"required"`
	}

	// Quiz is embedded in its lecture document rather than stored on its own.
	Quiz struct {
		Title     string     `json:"title" validate:"required"`
		Questions []Question `json:"questions" validate:"min=1"`
	}

	// Submission records one graded attempt. Answers are option texts,
	// positionally matched against the quiz questions.
	Submission struct {
		ID        string    `json:"id"`
		UserID    string    `json:"user_id"`
		SubjectID string    `json:"subject_id"`
		LectureID string    `json:"lecture_id"`
		QuizTitle string    `json:"quiz_title"`
		Answers   []string  `json:"answers"`
		Score     int       `json:"score"`
		Total     int       `json:"total"`
		CreatedAt time.Time `json:"created_at"`
	}

	NewSubmission struct {
		SubjectID string   `json:"subject_id" validate:"required"`
		LectureID string   `json:"lecture_id" validate:"required"`
		Answers   []string `json:"answers"`
	}

	QueryFilter struct {
		UserID    string `query:"user_id"`
		SubjectID string `query:"subject_id"`
		LectureID string `query:"lecture_id"`
	}
)

func (q *Quiz) Validate(validate *validator.Validate) error {
	q.Title = core.CleanString(q.Title)
	if err := validate.Struct(q); err != nil {
		return err
	}
	var flds []core.FieldError
	for i, qn := range q.Questions {
		if !contains(qn.Options, qn.CorrectAnswer) {
			flds = append(flds, core.FieldError{
				Field: questionField(i),
				Error: "correct answer must be one of the options",
			})
		}
	}
	if len(flds) > 0 {
		return core.NewValidationError(errors.New("invalid quiz"), flds...)
	}
	return nil
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	return validate.Struct(ns)
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.UserID == "" && qf.SubjectID == "" && qf.LectureID == ""
}

// Grade scores answers against the quiz. An answer counts when it matches
// the question's correct option at the same position; missing or extra
// answers score nothing.
func Grade(q Quiz, answers []string) (score, total int) {
	total = len(q.Questions)
	for i, qn := range q.Questions {
		if i < len(answers) && answers[i] == qn.CorrectAnswer {
			score++
		}
	}
	return score, total
}

func contains(opts []string, s string) bool {
	for _, opt := range opts {
		if opt == s {
			return true
		}
	}
	return false
}

func questionField(i int) string {
	return "questions[" + strconv.Itoa(i) + "].correct_answer"
}
