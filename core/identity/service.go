package identity

import (
	"context"
	"errors"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/farsihub/backend/core"
)

var (
	// errors
	ErrNotFound           = errors.New("identity not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("an account with this email already exists")
	ErrUnknownAccount     = errors.New("no account matches this email")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string) error
		CreateIdentity(ctx context.Context, idn Identity) (Identity, error)
		GetIdentityByID(ctx context.Context, id string) (Identity, error)
		GetIdentityByEmail(ctx context.Context, email string) (Identity, error)
		UpdateIdentity(ctx context.Context, idn Identity) (Identity, error)
		DeleteIdentityByID(ctx context.Context, id string) error
	}

	// Service is the sole gateway to identity state. All sign-in/sign-out/
	// mutation paths go through it so that session controllers can observe
	// every change via OnChange.
	Service struct {
		conf    *core.Config
		repo    Repository
		mailSvc core.EmailService

		mu      sync.Mutex
		subs    map[int]func(Event)
		nextSub int
	}
)

func NewService(conf *core.Config, repo Repository, mailSvc core.EmailService) *Service {
	secretKey = conf.SecretKey
	passwordResetTimeoutDelta = conf.PasswordResetTimeoutDelta
	return &Service{
		conf:    conf,
		repo:    repo,
		mailSvc: mailSvc,
		subs:    make(map[int]func(Event)),
	}
}

// OnChange registers a callback invoked on every identity-change event.
// Events are delivered in emission order; callbacks must not block.
// The returned unsubscribe func is safe to call multiple times.
func (svc *Service) OnChange(fn func(Event)) (unsubscribe func()) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	id := svc.nextSub
	svc.nextSub++
	svc.subs[id] = fn

	return func() {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		delete(svc.subs, id)
	}
}

func (svc *Service) emit(evt Event) {
	svc.mu.Lock()
	fns := make([]func(Event), 0, len(svc.subs))
	for _, fn := range svc.subs {
		fns = append(fns, fn)
	}
	svc.mu.Unlock()

	for _, fn := range fns {
		fn(evt)
	}
}

// Authenticate verifies an email/secret pair. "Not found", "wrong secret" and
// "malformed credential" all collapse into ErrInvalidCredentials.
func (svc *Service) Authenticate(ctx context.Context, email, secret string) (Identity, error) {
	email = core.CleanString(email, true /* lower */)
	if _, err := mail.ParseAddress(email); err != nil || secret == "" {
		return Identity{}, ErrInvalidCredentials
	}

	idn, err := svc.repo.GetIdentityByEmail(ctx, email)
	if err != nil {
		if pkgerrors.Cause(err) == ErrNotFound {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, pkgerrors.Wrap(err, "finding identity by email")
	}
	if err = idn.CheckSecret(secret); err != nil {
		return Identity{}, ErrInvalidCredentials
	}

	idn.LastLogin = time.Now().UTC()
	if idn, err = svc.repo.UpdateIdentity(ctx, idn); err != nil {
		return Identity{}, pkgerrors.Wrap(err, "setting lastLogin")
	}

	svc.emit(Event{Kind: EventSignedIn, ID: idn.ID, Identity: idn})
	return idn, nil
}

// Register creates a new identity. No sign-in event is emitted: callers
// create the profile document first, then authenticate, so that session
// resolution never observes a half-registered account.
func (svc *Service) Register(ctx context.Context, email, secret string) (Identity, error) {
	email = core.CleanString(email, true /* lower */)

	if err := svc.repo.CheckEmailUniqueness(ctx, email); err != nil {
		if pkgerrors.Cause(err) == ErrEmailExists {
			return Identity{}, ErrEmailExists
		}
		return Identity{}, pkgerrors.Wrap(err, "checking email uniqueness")
	}

	now := time.Now().UTC()
	idn := Identity{
		ID:        uuid.New().String(),
		Email:     email,
		CreatedAt: now,
		LastLogin: now,
	}
	if err := idn.SetSecret(secret); err != nil {
		return Identity{}, err
	}

	idn, err := svc.repo.CreateIdentity(ctx, idn)
	if err != nil {
		return Identity{}, pkgerrors.Wrap(err, "creating identity")
	}
	return idn, nil
}

// RequestPasswordReset emails a reset link. ErrUnknownAccount is returned only
// when the account is explicitly absent; the API layer masks it so account
// existence cannot be probed.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = core.CleanString(email, true /* lower */)

	idn, err := svc.repo.GetIdentityByEmail(ctx, email)
	if err != nil {
		if pkgerrors.Cause(err) == ErrNotFound {
			return ErrUnknownAccount
		}
		return pkgerrors.Wrap(err, "finding identity by email")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: idn.Email}},
		Subject:      "Password Reset",
		TemplateName: "password-reset",
		TemplateData: struct{ UID, Token string }{
			UID:   EncodeUID(idn),
			Token: makeToken(idn),
		},
	})
	return nil
}

// ConfirmPasswordReset sets a new secret after verifying the emailed token.
func (svc *Service) ConfirmPasswordReset(ctx context.Context, uid, token, secret string) error {
	id, err := decodeUID(uid)
	if err != nil {
		return errInvalidToken
	}
	idn, err := svc.repo.GetIdentityByID(ctx, id)
	if err != nil {
		if pkgerrors.Cause(err) == ErrNotFound {
			return errInvalidToken
		}
		return pkgerrors.Wrap(err, "finding identity by ID")
	}
	if err = verifyToken(idn, token); err != nil {
		return err
	}
	if err = idn.SetSecret(secret); err != nil {
		return err
	}
	if idn, err = svc.repo.UpdateIdentity(ctx, idn); err != nil {
		return pkgerrors.Wrap(err, "updating identity")
	}

	svc.emit(Event{Kind: EventUpdated, ID: idn.ID, Identity: idn})
	return nil
}

// SignOut is idempotent: signing out an unknown or already signed-out
// identity is a no-op.
func (svc *Service) SignOut(ctx context.Context, id string) error {
	if _, err := svc.repo.GetIdentityByID(ctx, id); err != nil {
		if pkgerrors.Cause(err) == ErrNotFound {
			return nil
		}
		return pkgerrors.Wrap(err, "finding identity by ID")
	}
	svc.emit(Event{Kind: EventSignedOut, ID: id})
	return nil
}

// UpdatePhotoURL mutates provider-side display metadata and notifies
// subscribers so sessions refresh.
func (svc *Service) UpdatePhotoURL(ctx context.Context, id, url string) error {
	idn, err := svc.repo.GetIdentityByID(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(err, "finding identity by ID")
	}
	idn.PhotoURL.SetValid(url)
	if idn, err = svc.repo.UpdateIdentity(ctx, idn); err != nil {
		return pkgerrors.Wrap(err, "updating identity")
	}

	svc.emit(Event{Kind: EventUpdated, ID: idn.ID, Identity: idn})
	return nil
}

// Delete removes the identity record. Irreversible. Callers owning a profile
// document must delete it first; identity deletion is the second step of the
// non-atomic two-store removal.
func (svc *Service) Delete(ctx context.Context, id string) error {
	if err := svc.repo.DeleteIdentityByID(ctx, id); err != nil {
		return pkgerrors.Wrap(err, "deleting identity")
	}
	svc.emit(Event{Kind: EventDeleted, ID: id})
	return nil
}

// Get returns the identity record by id.
func (svc *Service) Get(ctx context.Context, id string) (Identity, error) {
	return svc.repo.GetIdentityByID(ctx, id)
}
