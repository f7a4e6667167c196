package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/farsihub/backend/core"
	"github.com/farsihub/backend/core/identity"
	"github.com/farsihub/backend/core/realtime"
	"github.com/farsihub/backend/core/user"
)

// Manager owns all live sessions, keyed by identity id. It is the only
// consumer of identity-change events and the only producer of session state
// transitions besides explicit user actions.
type Manager struct {
	idnSvc         *identity.Service
	usrSvc         *user.Service
	hub            *realtime.Hub
	logger         core.Logger
	resolveTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*Session

	unsubscribe func()
}

func NewManager(conf *core.Config, idnSvc *identity.Service, usrSvc *user.Service, hub *realtime.Hub, logger core.Logger) *Manager {
	mgr := &Manager{
		idnSvc:         idnSvc,
		usrSvc:         usrSvc,
		hub:            hub,
		logger:         logger,
		resolveTimeout: conf.Server.SessionResolveTimeout,
		sessions:       make(map[string]*Session),
	}
	mgr.unsubscribe = idnSvc.OnChange(mgr.onIdentityEvent)
	return mgr
}

// Close detaches the manager from the identity event stream.
func (mgr *Manager) Close() {
	if mgr.unsubscribe != nil {
		mgr.unsubscribe()
	}
}

func (mgr *Manager) session(id string) *Session {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	s, ok := mgr.sessions[id]
	if !ok {
		s = newSession(id, mgr)
		mgr.sessions[id] = s
	}
	return s
}

func (mgr *Manager) onIdentityEvent(evt identity.Event) {
	switch evt.Kind {
	case identity.EventSignedIn, identity.EventUpdated:
		mgr.session(evt.ID).beginResolve(evt.Identity)
	case identity.EventSignedOut, identity.EventDeleted:
		mgr.session(evt.ID).setUnauthenticated()
	}
}

// Snapshot returns the current state without blocking. A session that has
// never seen an identity event reports PhaseUnresolved.
func (mgr *Manager) Snapshot(id string) Snapshot {
	return mgr.session(id).Snapshot()
}

// Resolve returns a settled snapshot for the identity, kicking off resolution
// when the session is still Unresolved (eg. a token presented after a
// restart) and waiting out any in-flight profile fetch.
func (mgr *Manager) Resolve(ctx context.Context, id string) (Snapshot, error) {
	s := mgr.session(id)

	s.mu.Lock()
	unresolved := s.phase == PhaseUnresolved
	s.mu.Unlock()

	if unresolved {
		idn, err := mgr.idnSvc.Get(ctx, id)
		if err != nil {
			if errors.Cause(err) == identity.ErrNotFound {
				s.setUnauthenticated()
				return s.Snapshot(), nil
			}
			return s.Snapshot(), errors.Wrap(err, "resolving identity")
		}
		s.beginResolve(idn)
	}
	return s.Wait(ctx)
}

// Session exposes the session object for subscription by observers.
func (mgr *Manager) Session(id string) *Session {
	return mgr.session(id)
}

// Refresh re-reads identity and profile; the session passes through
// Resolving and settles again.
func (mgr *Manager) Refresh(ctx context.Context, id string) (Snapshot, error) {
	s := mgr.session(id)

	idn, err := mgr.idnSvc.Get(ctx, id)
	if err != nil {
		if errors.Cause(err) == identity.ErrNotFound {
			s.setUnauthenticated()
			return s.Snapshot(), nil
		}
		return s.Snapshot(), errors.Wrap(err, "refreshing identity")
	}
	s.beginResolve(idn)
	return s.Wait(ctx)
}

// SignOut signs the identity out; the resulting event settles the session.
func (mgr *Manager) SignOut(ctx context.Context, id string) error {
	return mgr.idnSvc.SignOut(ctx, id)
}

// DeleteAccount removes the profile document first, then the identity.
// The two stores are not transactional; when identity deletion fails after
// the profile is gone, the next resolution forces a sign-out. The order is
// never reversed.
func (mgr *Manager) DeleteAccount(ctx context.Context, id string) error {
	if err := mgr.usrSvc.Delete(ctx, id); err != nil && errors.Cause(err) != user.ErrNotFound {
		return errors.Wrap(err, "deleting profile document")
	}
	if err := mgr.idnSvc.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "deleting identity")
	}
	return nil
}

// UpdateProfilePicture mutates provider display metadata and the profile
// document; the identity Updated event then refreshes the session.
func (mgr *Manager) UpdateProfilePicture(ctx context.Context, id, url string) error {
	if _, err := mgr.usrSvc.SetPhotoURL(ctx, id, url); err != nil {
		return errors.Wrap(err, "updating profile document")
	}
	if err := mgr.idnSvc.UpdatePhotoURL(ctx, id, url); err != nil {
		return errors.Wrap(err, "updating identity photo")
	}
	return nil
}

// forceSignOut resolves the authenticated-identity-without-profile
// inconsistency. Sign-out is idempotent; failures are logged, not propagated.
func (mgr *Manager) forceSignOut(id string) {
	if err := mgr.idnSvc.SignOut(context.Background(), id); err != nil {
		mgr.logger.Error("session: forced sign-out failed", err)
	}
}

// reportWatchError surfaces subscription failures: permission rejections go
// to the hub for diagnostics AND to the logger; anything else just logs.
func (mgr *Manager) reportWatchError(path string, err error) {
	if core.IsPermissionDenied(err) {
		mgr.hub.Publish(realtime.Event{Path: path, Op: "watch"})
	}
	mgr.logger.Error("session: profile watch error", err)
}
