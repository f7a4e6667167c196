package database

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/farsihub/backend/core/qna"
)

type threadRow struct {
	ID         string      `db:"id"`
	SubjectID  string      `db:"subject_id"`
	LectureID  null.String `db:"lecture_id"`
	UserID     string      `db:"user_id"`
	UserName   string      `db:"user_name"`
	Text       string      `db:"text"`
	Answer     null.String `db:"answer"`
	AnsweredAt null.Time   `db:"answered_at"`
	CreatedAt  time.Time   `db:"created_at"`
}

func (r threadRow) model() qna.Thread {
	return qna.Thread{
		ID:         r.ID,
		SubjectID:  r.SubjectID,
		LectureID:  r.LectureID,
		UserID:     r.UserID,
		UserName:   r.UserName,
		Text:       r.Text,
		Answer:     r.Answer,
		AnsweredAt: r.AnsweredAt,
		CreatedAt:  r.CreatedAt,
	}
}

func newThreadRow(th qna.Thread) threadRow {
	return threadRow{
		ID:         th.ID,
		SubjectID:  th.SubjectID,
		LectureID:  th.LectureID,
		UserID:     th.UserID,
		UserName:   th.UserName,
		Text:       th.Text,
		Answer:     th.Answer,
		AnsweredAt: th.AnsweredAt,
		CreatedAt:  th.CreatedAt.UTC(),
	}
}

type qnaRepository struct {
	db      *sqlx.DB
	watcher *Watcher
}

var _ qna.Repository = (*qnaRepository)(nil) // interface compliance check

func NewQnaRepository(db *sqlx.DB, watcher *Watcher) *qnaRepository {
	return &qnaRepository{db: db, watcher: watcher}
}

func (repo qnaRepository) CreateThread(ctx context.Context, th qna.Thread) (qna.Thread, error) {
	row := newThreadRow(th)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO qna_thread (id, subject_id, lecture_id, user_id, user_name, text, answer, answered_at, created_at)
		VALUES (:id, :subject_id, :lecture_id, :user_id, :user_name, :text, :answer, :answered_at, :created_at)`, row)
	if err != nil {
		return qna.Thread{}, errors.Wrap(err, "inserting thread")
	}
	return row.model(), nil
}

func (repo qnaRepository) GetThreadByID(ctx context.Context, id string) (qna.Thread, error) {
	var row threadRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM qna_thread WHERE id = $1`, id); err != nil {
		return qna.Thread{}, trapNoRowsErr(err, qna.ErrNotFound, "getting thread")
	}
	return row.model(), nil
}

func (repo qnaRepository) FilterThreads(ctx context.Context, filter qna.QueryFilter) ([]qna.Thread, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.SubjectID != "" {
		conds = append(conds, "subject_id = "+arg(filter.SubjectID))
	}
	if filter.LectureID != "" {
		conds = append(conds, "lecture_id = "+arg(filter.LectureID))
	}
	if filter.UserID != "" {
		conds = append(conds, "user_id = "+arg(filter.UserID))
	}
	if filter.Unanswered {
		conds = append(conds, "answer IS NULL")
	}

	q := `SELECT * FROM qna_thread`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC"

	var rows []threadRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering threads")
	}
	threads := make([]qna.Thread, 0, len(rows))
	for _, row := range rows {
		threads = append(threads, row.model())
	}
	return threads, nil
}

func (repo qnaRepository) UpdateThread(ctx context.Context, th qna.Thread) (qna.Thread, error) {
	row := newThreadRow(th)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE qna_thread
		SET text = :text, answer = :answer, answered_at = :answered_at
		WHERE id = :id`, row)
	if err != nil {
		return qna.Thread{}, errors.Wrap(err, "updating thread")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return qna.Thread{}, qna.ErrNotFound
	}
	return row.model(), nil
}

func (repo qnaRepository) DeleteThreadByID(ctx context.Context, id string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM qna_thread WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting thread")
	}
	return nil
}

func (repo qnaRepository) WatchThreads(filter qna.QueryFilter, onSnapshot func([]qna.Thread), onError func(error)) (unsubscribe func()) {
	return repo.watcher.Subscribe(tableQnaThread, func(string) {
		ctx, cancel := context.WithTimeout(context.Background(), watchFetchTimeout)
		defer cancel()

		threads, err := repo.FilterThreads(ctx, filter)
		if err != nil {
			onError(err)
			return
		}
		onSnapshot(threads)
	}, onError)
}
