package user

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/farsihub/backend/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// Academic years
const (
	YearFirst  = "first"
	YearSecond = "second"
	YearThird  = "third"
	YearFourth = "fourth"
)

var (
	AllRoles = []string{RoleStudent, RoleAdmin}
	AllYears = []string{YearFirst, YearSecond, YearThird, YearFourth}
)

// Profile is the application-owned document describing a user, keyed by
// identity id under the "users" namespace. Role and Approved are mutated by
// admins only; Year and PhotoURL by the owning user.
type Profile struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"` // denormalized from the identity
	Role      string      `json:"role"`
	Approved  bool        `json:"approved"`
	Year      null.String `json:"year,omitempty"`
	PhotoURL  null.String `json:"photo_url,omitempty"`
	CreatedAt time.Time   `json:"created_at"` // UTC
}

func (p *Profile) IsAdmin() bool   { return p.Role == RoleAdmin }
func (p *Profile) IsStudent() bool { return p.Role == RoleStudent }

// HasYear reports whether onboarding has completed for a student.
func (p *Profile) HasYear() bool { return p.Year.Valid && p.Year.String != "" }

// NewProfile contains information needed to create a new Profile at sign-up.
type NewProfile struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"omitempty,role"`
}

func (np *NewProfile) Validate(validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	np.Email = core.CleanString(np.Email, true /* lower */)
	return validate.Struct(np)
}

// Onboarding defines the one-time flow data collected before a student can
// reach content routes. Year and PhotoURL land in a single document write.
type Onboarding struct {
	Year     string `json:"year" validate:"required,year"`
	PhotoURL string `json:"photo_url" validate:"omitempty,url"`
}

func (ob *Onboarding) Validate(validate *validator.Validate) error {
	ob.Year = core.CleanString(ob.Year, true /* lower */)
	return validate.Struct(ob)
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Role        string    `query:"role"`
	Approved    *bool     `query:"approved"`
	Year        string    `query:"year"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Role == "" && qf.Approved == nil && qf.Year == "" &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
	qf.Year = core.CleanString(qf.Year, true /* lower */)
}

var (
	roleTag  = "role"
	roleText = "invalid role"

	yearTag  = "year"
	yearText = "invalid academic year"
)

// RegisterValidators registers profile validation tags on the app validator.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleTag, oneOfValidation(AllRoles))
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)

	_ = validate.RegisterValidation(yearTag, oneOfValidation(AllYears))
	core.RegisterCustomTranslation(validate, translator, yearTag, yearText)
}

func oneOfValidation(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		val := fl.Field().String()
		for _, a := range allowed {
			if val == a {
				return true
			}
		}
		return false
	}
}
