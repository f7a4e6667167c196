package user

import (
	"context"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"
)

var (
	// errors
	ErrNotFound = errors.New("profile not found")
	ErrExists   = errors.New("a profile already exists for this identity")
)

type (
	Repository interface {
		CreateProfile(ctx context.Context, p Profile) (Profile, error)
		GetProfileByID(ctx context.Context, id string) (Profile, error)
		// FilterProfiles applies AND on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Name or Email.
		FilterProfiles(ctx context.Context, filter QueryFilter) ([]Profile, error)
		UpdateProfile(ctx context.Context, p Profile) (Profile, error)
		DeleteProfileByID(ctx context.Context, id string) error
		// WatchProfile subscribes to changes of a single profile document.
		// onSnapshot receives the full document on every change; exists is
		// false when the document is absent or has been deleted. Snapshots
		// arrive in emission order. The returned unsubscribe func is safe to
		// call multiple times and must be called on teardown.
		WatchProfile(id string, onSnapshot func(p Profile, exists bool), onError func(error)) (unsubscribe func())
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create stores the profile document for a fresh identity. Role defaults to
// student and approval to false.
func (svc *Service) Create(ctx context.Context, np NewProfile) (Profile, error) {
	role := np.Role
	if role == "" {
		role = RoleStudent
	}
	p := Profile{
		ID:        np.ID,
		Name:      np.Name,
		Email:     np.Email,
		Role:      role,
		Approved:  false,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateProfile(ctx, p)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Profile, error) {
	return svc.repo.GetProfileByID(ctx, id)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Profile, error) {
	filter.Clean()
	return svc.repo.FilterProfiles(ctx, filter)
}

// CompleteOnboarding sets the academic year (and avatar, when given) in a
// single document write.
func (svc *Service) CompleteOnboarding(ctx context.Context, id string, ob Onboarding) (Profile, error) {
	p, err := svc.repo.GetProfileByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	p.Year = null.StringFrom(ob.Year)
	if ob.PhotoURL != "" {
		p.PhotoURL = null.StringFrom(ob.PhotoURL)
	}
	return svc.repo.UpdateProfile(ctx, p)
}

func (svc *Service) SetPhotoURL(ctx context.Context, id, url string) (Profile, error) {
	p, err := svc.repo.GetProfileByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	p.PhotoURL = null.StringFrom(url)
	return svc.repo.UpdateProfile(ctx, p)
}

// SetApproved flips the admin-controlled approval gate.
func (svc *Service) SetApproved(ctx context.Context, id string, approved bool) (Profile, error) {
	p, err := svc.repo.GetProfileByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	p.Approved = approved
	return svc.repo.UpdateProfile(ctx, p)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteProfileByID(ctx, id)
}

func (svc *Service) Watch(id string, onSnapshot func(p Profile, exists bool), onError func(error)) (unsubscribe func()) {
	return svc.repo.WatchProfile(id, onSnapshot, onError)
}
