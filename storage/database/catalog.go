package database

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/farsihub/backend/core/catalog"
	"github.com/farsihub/backend/core/quiz"
)

type subjectRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Year      string    `db:"year"`
	Semester  string    `db:"semester"`
	CreatedAt time.Time `db:"created_at"`
}

func (r subjectRow) model() catalog.Subject {
	return catalog.Subject{ID: r.ID, Name: r.Name, Year: r.Year, Semester: r.Semester, CreatedAt: r.CreatedAt}
}

type lectureRow struct {
	ID          string    `db:"id"`
	SubjectID   string    `db:"subject_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	PDFURL      string    `db:"pdf_url"`
	Year        string    `db:"year"`
	Semester    string    `db:"semester"`
	Quiz        []byte    `db:"quiz"` // JSONB, NULL when no quiz is attached
	CreatedAt   time.Time `db:"created_at"`
}

func (r lectureRow) model() (catalog.Lecture, error) {
	l := catalog.Lecture{
		ID:          r.ID,
		SubjectID:   r.SubjectID,
		Title:       r.Title,
		Description: r.Description,
		PDFURL:      r.PDFURL,
		Year:        r.Year,
		Semester:    r.Semester,
		CreatedAt:   r.CreatedAt,
	}
	if len(r.Quiz) > 0 {
		var q quiz.Quiz
		if err := json.Unmarshal(r.Quiz, &q); err != nil {
			return catalog.Lecture{}, errors.Wrap(err, "decoding lecture quiz")
		}
		l.Quiz = &q
	}
	return l, nil
}

func newLectureRow(l catalog.Lecture) (lectureRow, error) {
	row := lectureRow{
		ID:          l.ID,
		SubjectID:   l.SubjectID,
		Title:       l.Title,
		Description: l.Description,
		PDFURL:      l.PDFURL,
		Year:        l.Year,
		Semester:    l.Semester,
		CreatedAt:   l.CreatedAt.UTC(),
	}
	if l.Quiz != nil {
		payload, err := json.Marshal(l.Quiz)
		if err != nil {
			return lectureRow{}, errors.Wrap(err, "encoding lecture quiz")
		}
		row.Quiz = payload
	}
	return row, nil
}

type catalogRepository struct {
	db      *sqlx.DB
	watcher *Watcher
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *sqlx.DB, watcher *Watcher) *catalogRepository {
	return &catalogRepository{db: db, watcher: watcher}
}

func (repo catalogRepository) CreateSubject(ctx context.Context, s catalog.Subject) (catalog.Subject, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO subject (id, name, year, semester, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.Name, s.Year, s.Semester, s.CreatedAt.UTC())
	if err != nil {
		return catalog.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return s, nil
}

func (repo catalogRepository) GetSubjectByID(ctx context.Context, id string) (catalog.Subject, error) {
	var row subjectRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM subject WHERE id = $1`, id); err != nil {
		return catalog.Subject{}, trapNoRowsErr(err, catalog.ErrSubjectNotFound, "getting subject")
	}
	return row.model(), nil
}

func (repo catalogRepository) FilterSubjects(ctx context.Context, filter catalog.QueryFilter) ([]catalog.Subject, error) {
	q, args := buildCatalogQuery(`SELECT * FROM subject`, filter, false)
	q += " ORDER BY name"

	var rows []subjectRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering subjects")
	}
	subjects := make([]catalog.Subject, 0, len(rows))
	for _, row := range rows {
		subjects = append(subjects, row.model())
	}
	return subjects, nil
}

func (repo catalogRepository) DeleteSubjectByID(ctx context.Context, id string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM subject WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return nil
}

func (repo catalogRepository) CreateLecture(ctx context.Context, l catalog.Lecture) (catalog.Lecture, error) {
	row, err := newLectureRow(l)
	if err != nil {
		return catalog.Lecture{}, err
	}
	_, err = repo.db.NamedExecContext(ctx, `
		INSERT INTO lecture (id, subject_id, title, description, pdf_url, year, semester, quiz, created_at)
		VALUES (:id, :subject_id, :title, :description, :pdf_url, :year, :semester, :quiz, :created_at)`, row)
	if err != nil {
		return catalog.Lecture{}, errors.Wrap(err, "inserting lecture")
	}
	return l, nil
}

func (repo catalogRepository) GetLectureByID(ctx context.Context, id string) (catalog.Lecture, error) {
	var row lectureRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM lecture WHERE id = $1`, id); err != nil {
		return catalog.Lecture{}, trapNoRowsErr(err, catalog.ErrLectureNotFound, "getting lecture")
	}
	return row.model()
}

func (repo catalogRepository) FilterLectures(ctx context.Context, filter catalog.QueryFilter) ([]catalog.Lecture, error) {
	q, args := buildCatalogQuery(`SELECT * FROM lecture`, filter, true)
	q += " ORDER BY created_at DESC"

	var rows []lectureRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering lectures")
	}
	lectures := make([]catalog.Lecture, 0, len(rows))
	for _, row := range rows {
		l, err := row.model()
		if err != nil {
			return nil, err
		}
		lectures = append(lectures, l)
	}
	return lectures, nil
}

func (repo catalogRepository) UpdateLecture(ctx context.Context, l catalog.Lecture) (catalog.Lecture, error) {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE lecture
		SET title = $2, description = $3, pdf_url = $4
		WHERE id = $1`,
		l.ID, l.Title, l.Description, l.PDFURL)
	if err != nil {
		return catalog.Lecture{}, errors.Wrap(err, "updating lecture")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.Lecture{}, catalog.ErrLectureNotFound
	}
	return repo.GetLectureByID(ctx, l.ID)
}

func (repo catalogRepository) SetLectureQuiz(ctx context.Context, id string, q *quiz.Quiz) (catalog.Lecture, error) {
	var payload []byte
	if q != nil {
		var err error
		if payload, err = json.Marshal(q); err != nil {
			return catalog.Lecture{}, errors.Wrap(err, "encoding lecture quiz")
		}
	}
	// a nil payload writes SQL NULL, removing the field outright
	res, err := repo.db.ExecContext(ctx, `UPDATE lecture SET quiz = $2 WHERE id = $1`, id, payload)
	if err != nil {
		return catalog.Lecture{}, errors.Wrap(err, "setting lecture quiz")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.Lecture{}, catalog.ErrLectureNotFound
	}
	return repo.GetLectureByID(ctx, id)
}

func (repo catalogRepository) DeleteLectureByID(ctx context.Context, id string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM lecture WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting lecture")
	}
	return nil
}

func (repo catalogRepository) WatchLectures(filter catalog.QueryFilter, onSnapshot func([]catalog.Lecture), onError func(error)) (unsubscribe func()) {
	return repo.watcher.Subscribe(tableLecture, func(string) {
		ctx, cancel := context.WithTimeout(context.Background(), watchFetchTimeout)
		defer cancel()

		lectures, err := repo.FilterLectures(ctx, filter)
		if err != nil {
			onError(err)
			return
		}
		onSnapshot(lectures)
	}, onError)
}

func buildCatalogQuery(base string, filter catalog.QueryFilter, withSubject bool) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if withSubject && filter.SubjectID != "" {
		conds = append(conds, "subject_id = "+arg(filter.SubjectID))
	}
	if filter.Year != "" {
		conds = append(conds, "year = "+arg(filter.Year))
	}
	if filter.Semester != "" {
		conds = append(conds, "semester = "+arg(filter.Semester))
	}
	if len(conds) > 0 {
		base += " WHERE " + strings.Join(conds, " AND ")
	}
	return base, args
}
