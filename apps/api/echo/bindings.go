package echoapi

import (
	"github.com/go-playground/validator/v10"

	"github.com/farsihub/backend/core"
	"github.com/farsihub/backend/core/access"
	"github.com/farsihub/backend/core/session"
)

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string           `json:"token"`
		User  *session.AppUser `json:"user,omitempty"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	ApprovalRequest struct {
		Approved *bool `json:"approved"`
	}

	AvatarRequest struct {
		PhotoURL string `json:"photo_url" validate:"required,url"`
	}

	AnswerRequest struct {
		Text string `json:"text" validate:"required"`
	}

	SessionResponse struct {
		Phase session.Phase    `json:"phase"`
		User  *session.AppUser `json:"user,omitempty"`
	}

	DecisionResponse struct {
		Allowed  bool   `json:"allowed"`
		Loading  bool   `json:"loading"`
		Redirect string `json:"redirect,omitempty"`
	}
)

func newSessionResponse(snap session.Snapshot) SessionResponse {
	return SessionResponse{Phase: snap.Phase, User: snap.User}
}

func newDecisionResponse(d access.Decision) DecisionResponse {
	return DecisionResponse{
		Allowed:  d.Kind == access.Allow,
		Loading:  d.Kind == access.Loading,
		Redirect: d.Target,
	}
}

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

func (ar *AvatarRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(ar)
}

func (ar *AnswerRequest) Validate(validate *validator.Validate) error {
	ar.Text = core.CleanString(ar.Text)
	return validate.Struct(ar)
}
