// Package session owns the in-memory merge of an authenticated identity and
// its profile document, and the state machine that keeps the two in sync.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/farsihub/backend/core/identity"
	"github.com/farsihub/backend/core/user"
)

// Phase is the resolution state of a session.
//
//	Unresolved --identity(none)--> Unauthenticated
//	Unresolved --identity(some)--> Resolving
//	Resolving  --profile-found--> Authenticated
//	Resolving  --profile-missing--> Unauthenticated (forced sign-out)
//	Resolving  --profile-fetch-error--> Unauthenticated
type Phase string

const (
	PhaseUnresolved      Phase = "unresolved"
	PhaseResolving       Phase = "resolving"
	PhaseAuthenticated   Phase = "authenticated"
	PhaseUnauthenticated Phase = "unauthenticated"
)

// AppUser merges an Identity with its Profile document. It is owned
// exclusively by the session and replaced wholesale on every update; holders
// must treat it as read-only.
type AppUser struct {
	identity.Identity
	Name             string      `json:"name"`
	Role             string      `json:"role"`
	Approved         bool        `json:"approved"`
	Year             null.String `json:"year,omitempty"`
	ProfileCreatedAt time.Time   `json:"profile_created_at"`
}

func (u *AppUser) IsAdmin() bool   { return u.Role == user.RoleAdmin }
func (u *AppUser) IsStudent() bool { return u.Role == user.RoleStudent }
func (u *AppUser) HasYear() bool   { return u.Year.Valid && u.Year.String != "" }

func mergeAppUser(idn identity.Identity, p user.Profile) *AppUser {
	au := &AppUser{
		Identity:         idn,
		Name:             p.Name,
		Role:             p.Role,
		Approved:         p.Approved,
		Year:             p.Year,
		ProfileCreatedAt: p.CreatedAt,
	}
	// the profile document's avatar wins over provider display metadata
	if p.PhotoURL.Valid {
		au.PhotoURL = p.PhotoURL
	}
	return au
}

// Snapshot is an immutable view of a session at one instant. User is non-nil
// if and only if Phase is PhaseAuthenticated. Consumers must never branch on
// User before Loading() is false.
type Snapshot struct {
	Phase Phase
	User  *AppUser
}

func (s Snapshot) Loading() bool {
	return s.Phase == PhaseUnresolved || s.Phase == PhaseResolving
}

func (s Snapshot) Authenticated() bool { return s.Phase == PhaseAuthenticated }

// Session tracks one identity's resolution state. All transitions are
// produced by identity-change events and explicit user actions only; a
// monotonic generation counter guards against a stale profile fetch
// overwriting a newer transition.
type Session struct {
	id  string
	mgr *Manager

	mu       sync.Mutex
	phase    Phase
	user     *AppUser
	identity identity.Identity
	gen      uint64
	resolved chan struct{} // closed when leaving a loading phase; replaced on re-entry
	unwatch  func()
	subs     map[int]func(Snapshot)
	nextSub  int
}

func newSession(id string, mgr *Manager) *Session {
	return &Session{
		id:       id,
		mgr:      mgr,
		phase:    PhaseUnresolved,
		resolved: make(chan struct{}),
		subs:     make(map[int]func(Snapshot)),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Phase: s.phase, User: s.user}
}

// Wait blocks until the session leaves its loading phases, then returns the
// settled snapshot. It is the suspension point HTTP middleware parks on.
func (s *Session) Wait(ctx context.Context) (Snapshot, error) {
	for {
		s.mu.Lock()
		snap := Snapshot{Phase: s.phase, User: s.user}
		ch := s.resolved
		s.mu.Unlock()

		if !snap.Loading() {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-ch:
		}
	}
}

// Subscribe registers an observer called on every settled state change.
// The returned unsubscribe func is safe to call multiple times.
func (s *Session) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// setPhaseLocked transitions the machine; s.mu must be held.
func (s *Session) setPhaseLocked(phase Phase, au *AppUser) {
	wasLoading := s.phase == PhaseUnresolved || s.phase == PhaseResolving
	s.phase = phase
	s.user = au

	nowLoading := phase == PhaseUnresolved || phase == PhaseResolving
	if wasLoading && !nowLoading {
		close(s.resolved)
	} else if !wasLoading && nowLoading {
		s.resolved = make(chan struct{})
	}

	snap := Snapshot{Phase: phase, User: au}
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	go func() {
		for _, fn := range fns {
			fn(snap)
		}
	}()
}

// beginResolve starts a profile fetch for the given identity. Any in-flight
// fetch is superseded by bumping the generation.
func (s *Session) beginResolve(idn identity.Identity) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.identity = idn
	s.setPhaseLocked(PhaseResolving, nil)
	s.mu.Unlock()

	go s.resolve(gen, idn)
}

// isProfileMissing tells an absent profile document apart from a fetch
// failure; only the former forces a sign-out.
func isProfileMissing(err error) bool {
	return errors.Cause(err) == user.ErrNotFound
}

func (s *Session) resolve(gen uint64, idn identity.Identity) {
	ctx, cancel := context.WithTimeout(context.Background(), s.mgr.resolveTimeout)
	defer cancel()

	p, err := s.mgr.usrSvc.GetByID(ctx, idn.ID)

	s.mu.Lock()
	if gen != s.gen {
		// a newer transition superseded this fetch; discard the result
		s.mu.Unlock()
		return
	}

	switch {
	case err == nil:
		s.setPhaseLocked(PhaseAuthenticated, mergeAppUser(idn, p))
		s.ensureWatchLocked()
		s.mu.Unlock()
	case isProfileMissing(err):
		// authenticated identity without a profile document: inconsistent;
		// resolve by signing the identity out (forces re-registration)
		s.stopWatchLocked()
		s.setPhaseLocked(PhaseUnauthenticated, nil)
		s.mu.Unlock()
		s.mgr.forceSignOut(idn.ID)
	default:
		s.stopWatchLocked()
		s.setPhaseLocked(PhaseUnauthenticated, nil)
		s.mu.Unlock()
		s.mgr.logger.Error("session: profile fetch failed", err)
	}
}

// setUnauthenticated applies a sign-out/delete event; last event wins.
func (s *Session) setUnauthenticated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.stopWatchLocked()
	s.setPhaseLocked(PhaseUnauthenticated, nil)
}

// ensureWatchLocked keeps a live subscription on the profile document so
// admin approval or onboarding writes propagate into the session without an
// explicit refresh. s.mu must be held.
func (s *Session) ensureWatchLocked() {
	if s.unwatch != nil {
		return
	}
	s.unwatch = s.mgr.usrSvc.Watch(s.id, s.onProfileSnapshot, s.onProfileWatchError)
}

func (s *Session) stopWatchLocked() {
	if s.unwatch != nil {
		s.unwatch()
		s.unwatch = nil
	}
}

func (s *Session) onProfileSnapshot(p user.Profile, exists bool) {
	s.mu.Lock()
	if s.phase != PhaseAuthenticated {
		s.mu.Unlock()
		return
	}
	if !exists {
		s.gen++
		s.stopWatchLocked()
		s.setPhaseLocked(PhaseUnauthenticated, nil)
		s.mu.Unlock()
		s.mgr.forceSignOut(s.id)
		return
	}
	// replace the AppUser wholesale; no partial mutation
	s.setPhaseLocked(PhaseAuthenticated, mergeAppUser(s.identity, p))
	s.mu.Unlock()
}

func (s *Session) onProfileWatchError(err error) {
	s.mgr.reportWatchError("users/"+s.id, err)
}
