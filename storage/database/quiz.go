package database

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/farsihub/backend/core/quiz"
)

type submissionRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	SubjectID string    `db:"subject_id"`
	LectureID string    `db:"lecture_id"`
	QuizTitle string    `db:"quiz_title"`
	Answers   []byte    `db:"answers"` // JSONB array of option texts
	Score     int       `db:"score"`
	Total     int       `db:"total"`
	CreatedAt time.Time `db:"created_at"`
}

func (r submissionRow) model() (quiz.Submission, error) {
	s := quiz.Submission{
		ID:        r.ID,
		UserID:    r.UserID,
		SubjectID: r.SubjectID,
		LectureID: r.LectureID,
		QuizTitle: r.QuizTitle,
		Score:     r.Score,
		Total:     r.Total,
		CreatedAt: r.CreatedAt,
	}
	if len(r.Answers) > 0 {
		if err := json.Unmarshal(r.Answers, &s.Answers); err != nil {
			return quiz.Submission{}, errors.Wrap(err, "decoding submission answers")
		}
	}
	return s, nil
}

type quizRepository struct {
	db *sqlx.DB
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(db *sqlx.DB) *quizRepository {
	return &quizRepository{db: db}
}

func (repo quizRepository) CreateSubmission(ctx context.Context, s quiz.Submission) (quiz.Submission, error) {
	answers, err := json.Marshal(s.Answers)
	if err != nil {
		return quiz.Submission{}, errors.Wrap(err, "encoding submission answers")
	}
	_, err = repo.db.ExecContext(ctx, `
		INSERT INTO quiz_submission (id, user_id, subject_id, lecture_id, quiz_title, answers, score, total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.UserID, s.SubjectID, s.LectureID, s.QuizTitle, answers, s.Score, s.Total, s.CreatedAt.UTC())
	if err != nil {
		return quiz.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return s, nil
}

func (repo quizRepository) GetSubmissionByID(ctx context.Context, id string) (quiz.Submission, error) {
	var row submissionRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM quiz_submission WHERE id = $1`, id); err != nil {
		return quiz.Submission{}, trapNoRowsErr(err, quiz.ErrNotFound, "getting submission")
	}
	return row.model()
}

func (repo quizRepository) FilterSubmissions(ctx context.Context, filter quiz.QueryFilter) ([]quiz.Submission, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.UserID != "" {
		conds = append(conds, "user_id = "+arg(filter.UserID))
	}
	if filter.SubjectID != "" {
		conds = append(conds, "subject_id = "+arg(filter.SubjectID))
	}
	if filter.LectureID != "" {
		conds = append(conds, "lecture_id = "+arg(filter.LectureID))
	}

	q := `SELECT * FROM quiz_submission`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC"

	var rows []submissionRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering submissions")
	}
	subs := make([]quiz.Submission, 0, len(rows))
	for _, row := range rows {
		s, err := row.model()
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, nil
}
