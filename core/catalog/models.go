package catalog

import (
	"time"

	"github.com/go-playground/validator/v10"
	ut "github.com/go-playground/universal-translator"

	"github.com/farsihub/backend/core"
	"github.com/farsihub/backend/core/quiz"
)

const (
	SemesterFirst  = "first"
	SemesterSecond = "second"
)

var AllSemesters = []string{SemesterFirst, SemesterSecond}

type (
	// Subject groups lectures for one year/semester slot.
	Subject struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Year      string    `json:"year"`
		Semester  string    `json:"semester"`
		CreatedAt time.Time `json:"created_at"`
	}

	// Lecture carries the study material and, optionally, an embedded quiz.
	Lecture struct {
		ID          string     `json:"id"`
		SubjectID   string     `json:"subject_id"`
		Title       string     `json:"title"`
		Description string     `json:"description,omitempty"`
		PDFURL      string     `json:"pdf_url,omitempty"`
		Year        string     `json:"year"`
		Semester    string     `json:"semester"`
		CreatedAt   time.Time  `json:"created_at"`
		Quiz        *quiz.Quiz `json:"quiz,omitempty"`
	}

	NewSubject struct {
		Name     string `json:"name" validate:"required"`
		Year     string `json:"year" validate:"required,year"`
		Semester string `json:"semester" validate:"required,semester"`
	}

	NewLecture struct {
		SubjectID   string `json:"subject_id" validate:"required"`
		Title       string `json:"title" validate:"required"`
		Description string `json:"description"`
		PDFURL      string `json:"pdf_url" validate:"omitempty,url"`
	}

	UpdateLecture struct {
		Title       string `json:"title" validate:"required"`
		Description string `json:"description"`
		PDFURL      string `json:"pdf_url" validate:"omitempty,url"`
	}

	QueryFilter struct {
		SubjectID string `query:"subject_id"`
		Year      string `query:"year"`
		Semester  string `query:"semester"`
	}
)

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Year = core.CleanString(ns.Year, true /* lower */)
	ns.Semester = core.CleanString(ns.Semester, true /* lower */)
	return validate.Struct(ns)
}

func (nl *NewLecture) Validate(validate *validator.Validate) error {
	nl.Title = core.CleanString(nl.Title)
	nl.Description = core.CleanString(nl.Description)
	return validate.Struct(nl)
}

func (ul *UpdateLecture) Validate(validate *validator.Validate) error {
	ul.Title = core.CleanString(ul.Title)
	ul.Description = core.CleanString(ul.Description)
	return validate.Struct(ul)
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.SubjectID == "" && qf.Year == "" && qf.Semester == ""
}

func (qf *QueryFilter) Clean() {
	qf.Year = core.CleanString(qf.Year, true /* lower */)
	qf.Semester = core.CleanString(qf.Semester, true /* lower */)
}

var (
	semesterTag  = "semester"
	semesterText = "invalid semester"
)

// RegisterValidators registers the semester tag. The year tag is shared with
// the user package and registered there.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(semesterTag, func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		for _, s := range AllSemesters {
			if v == s {
				return true
			}
		}
		return false
	})
	core.RegisterCustomTranslation(validate, translator, semesterTag, semesterText)
}
