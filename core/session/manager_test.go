package session

import (
	"context"
	"io/ioutil"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	"github.com/farsihub/backend/core"
	"github.com/farsihub/backend/core/identity"
	"github.com/farsihub/backend/core/realtime"
	"github.com/farsihub/backend/core/user"
)

// --- fakes ---

type nopMailer struct{}

func (nopMailer) SendMessages(...*core.EmailMessage) {}

type fakeIdentityRepo struct {
	mu         sync.Mutex
	identities map[string]identity.Identity
	ops        *opLog
}

func newFakeIdentityRepo(ops *opLog) *fakeIdentityRepo {
	return &fakeIdentityRepo{identities: make(map[string]identity.Identity), ops: ops}
}

func (r *fakeIdentityRepo) CheckEmailUniqueness(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, idn := range r.identities {
		if idn.Email == email {
			return identity.ErrEmailExists
		}
	}
	return nil
}

func (r *fakeIdentityRepo) CreateIdentity(_ context.Context, idn identity.Identity) (identity.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities[idn.ID] = idn
	return idn, nil
}

func (r *fakeIdentityRepo) GetIdentityByID(_ context.Context, id string) (identity.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idn, ok := r.identities[id]; ok {
		return idn, nil
	}
	return identity.Identity{}, identity.ErrNotFound
}

func (r *fakeIdentityRepo) GetIdentityByEmail(_ context.Context, email string) (identity.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, idn := range r.identities {
		if idn.Email == email {
			return idn, nil
		}
	}
	return identity.Identity{}, identity.ErrNotFound
}

func (r *fakeIdentityRepo) UpdateIdentity(_ context.Context, idn identity.Identity) (identity.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities[idn.ID] = idn
	return idn, nil
}

func (r *fakeIdentityRepo) DeleteIdentityByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.identities[id]; !ok {
		return identity.ErrNotFound
	}
	delete(r.identities, id)
	r.ops.add("identity-delete")
	return nil
}

type profileWatcher struct {
	onSnapshot func(user.Profile, bool)
	onError    func(error)
}

type fakeUserRepo struct {
	mu       sync.Mutex
	profiles map[string]user.Profile
	watchers map[string]map[int]*profileWatcher
	nextID   int
	getHook  func() // blocks GetProfileByID when set
	getErr   error  // fails GetProfileByID when set
	ops      *opLog
}

func newFakeUserRepo(ops *opLog) *fakeUserRepo {
	return &fakeUserRepo{
		profiles: make(map[string]user.Profile),
		watchers: make(map[string]map[int]*profileWatcher),
		ops:      ops,
	}
}

func (r *fakeUserRepo) setGetHook(hook func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getHook = hook
}

func (r *fakeUserRepo) setGetErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getErr = err
}

func (r *fakeUserRepo) CreateProfile(_ context.Context, p user.Profile) (user.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.ID] = p
	return p, nil
}

func (r *fakeUserRepo) GetProfileByID(_ context.Context, id string) (user.Profile, error) {
	r.mu.Lock()
	hook := r.getHook
	r.mu.Unlock()
	if hook != nil {
		hook()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return user.Profile{}, r.getErr
	}
	if p, ok := r.profiles[id]; ok {
		return p, nil
	}
	return user.Profile{}, user.ErrNotFound
}

func (r *fakeUserRepo) FilterProfiles(_ context.Context, _ user.QueryFilter) ([]user.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]user.Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		res = append(res, p)
	}
	return res, nil
}

func (r *fakeUserRepo) UpdateProfile(_ context.Context, p user.Profile) (user.Profile, error) {
	r.mu.Lock()
	r.profiles[p.ID] = p
	ws := r.snapshotWatchersLocked(p.ID)
	r.mu.Unlock()

	for _, w := range ws {
		w.onSnapshot(p, true)
	}
	return p, nil
}

func (r *fakeUserRepo) DeleteProfileByID(_ context.Context, id string) error {
	r.mu.Lock()
	if _, ok := r.profiles[id]; !ok {
		r.mu.Unlock()
		return user.ErrNotFound
	}
	delete(r.profiles, id)
	r.ops.add("profile-delete")
	ws := r.snapshotWatchersLocked(id)
	r.mu.Unlock()

	for _, w := range ws {
		w.onSnapshot(user.Profile{}, false)
	}
	return nil
}

func (r *fakeUserRepo) WatchProfile(id string, onSnapshot func(user.Profile, bool), onError func(error)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watchers[id] == nil {
		r.watchers[id] = make(map[int]*profileWatcher)
	}
	wid := r.nextID
	r.nextID++
	r.watchers[id][wid] = &profileWatcher{onSnapshot: onSnapshot, onError: onError}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.watchers[id], wid)
	}
}

func (r *fakeUserRepo) snapshotWatchersLocked(id string) []*profileWatcher {
	ws := make([]*profileWatcher, 0, len(r.watchers[id]))
	for _, w := range r.watchers[id] {
		ws = append(ws, w)
	}
	return ws
}

type opLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *opLog) add(op string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, op)
}

func (l *opLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ops...)
}

type env struct {
	idnRepo *fakeIdentityRepo
	usrRepo *fakeUserRepo
	idnSvc  *identity.Service
	usrSvc  *user.Service
	mgr     *Manager
	hub     *realtime.Hub
	ops     *opLog
}

func setup() *env {
	conf := &core.Config{
		SecretKey:                 []byte("secret"),
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server:                    core.ServerConfig{SessionResolveTimeout: 2 * time.Second},
	}
	ops := &opLog{}
	idnRepo := newFakeIdentityRepo(ops)
	usrRepo := newFakeUserRepo(ops)
	idnSvc := identity.NewService(conf, idnRepo, nopMailer{})
	usrSvc := user.NewService(usrRepo)
	hub := realtime.NewHub()
	logger := core.NewStdLogger(log.New(ioutil.Discard, "", 0))
	return &env{
		idnRepo: idnRepo,
		usrRepo: usrRepo,
		idnSvc:  idnSvc,
		usrSvc:  usrSvc,
		mgr:     NewManager(conf, idnSvc, usrSvc, hub, logger),
		hub:     hub,
		ops:     ops,
	}
}

func (e *env) register(t *testing.T, email, name string) identity.Identity {
	t.Helper()
	ctx := context.Background()
	idn, err := e.idnSvc.Register(ctx, email, "s3cr3t-Pwd!")
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if _, err = e.usrSvc.Create(ctx, user.NewProfile{ID: idn.ID, Name: name, Email: idn.Email}); err != nil {
		t.Fatalf("Create profile failed: %v", err)
	}
	return idn
}

// --- tests ---

func TestResolveMergesIdentityAndProfile(t *testing.T) {
	e := setup()
	ctx := context.Background()

	idn := e.register(t, "sara@test.ir", "Sara")

	snap, err := e.mgr.Resolve(ctx, idn.ID)
	assert.NoError(t, err)
	assert.Equal(t, PhaseAuthenticated, snap.Phase)
	assert.False(t, snap.Loading())
	assert.NotNil(t, snap.User)
	assert.Equal(t, "Sara", snap.User.Name)
	assert.Equal(t, user.RoleStudent, snap.User.Role)
	assert.False(t, snap.User.Approved)
	assert.False(t, snap.User.HasYear())
	assert.Equal(t, idn.Email, snap.User.Email)
}

func TestUnknownIdentityResolvesUnauthenticated(t *testing.T) {
	e := setup()

	snap, err := e.mgr.Resolve(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Equal(t, PhaseUnauthenticated, snap.Phase)
	assert.Nil(t, snap.User)
}

func TestLoadingTrueOnlyDuringResolution(t *testing.T) {
	e := setup()
	ctx := context.Background()

	// fresh sessions have seen no identity event yet
	snap := e.mgr.Snapshot("someone")
	assert.Equal(t, PhaseUnresolved, snap.Phase)
	assert.True(t, snap.Loading())

	idn := e.register(t, "omid@test.ir", "Omid")

	release := make(chan struct{})
	e.usrRepo.setGetHook(func() { <-release })

	_, err := e.idnSvc.Authenticate(ctx, "omid@test.ir", "s3cr3t-Pwd!")
	assert.NoError(t, err)

	// the sign-in event moved the session into Resolving; the profile fetch
	// is parked on the hook
	assert.Eventually(t, func() bool {
		return e.mgr.Snapshot(idn.ID).Phase == PhaseResolving
	}, time.Second, 5*time.Millisecond)
	assert.True(t, e.mgr.Snapshot(idn.ID).Loading())

	close(release)
	e.usrRepo.setGetHook(nil)

	snap, err = e.mgr.Resolve(ctx, idn.ID)
	assert.NoError(t, err)
	assert.False(t, snap.Loading())
	assert.Equal(t, PhaseAuthenticated, snap.Phase)
}

func TestMissingProfileForcesSignOut(t *testing.T) {
	e := setup()
	ctx := context.Background()

	// identity without a profile document
	idn, err := e.idnSvc.Register(ctx, "ghost@test.ir", "s3cr3t-Pwd!")
	assert.NoError(t, err)

	var events []identity.EventKind
	var mu sync.Mutex
	unsub := e.idnSvc.OnChange(func(evt identity.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, evt.Kind)
	})
	defer unsub()

	snap, err := e.mgr.Resolve(ctx, idn.ID)
	assert.NoError(t, err)
	assert.Equal(t, PhaseUnauthenticated, snap.Phase)
	assert.Nil(t, snap.User)

	// the identity was signed out
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, k := range events {
			if k == identity.EventSignedOut {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	// repeating the resolution does not error (idempotent)
	snap, err = e.mgr.Resolve(ctx, idn.ID)
	assert.NoError(t, err)
	assert.Equal(t, PhaseUnauthenticated, snap.Phase)
}

func TestProfileFetchErrorDoesNotSignOut(t *testing.T) {
	e := setup()
	ctx := context.Background()
	idn := e.register(t, "omid@test.ir", "Omid")

	var signedOut bool
	var mu sync.Mutex
	unsub := e.idnSvc.OnChange(func(evt identity.Event) {
		mu.Lock()
		defer mu.Unlock()
		if evt.Kind == identity.EventSignedOut {
			signedOut = true
		}
	})
	defer unsub()

	// a fetch failure is not a missing document, even when wrapped
	e.usrRepo.setGetErr(errors.Wrap(errors.New("connection reset"), "getting profile"))
	snap, err := e.mgr.Resolve(ctx, idn.ID)
	assert.NoError(t, err)
	assert.Equal(t, PhaseUnauthenticated, snap.Phase)

	mu.Lock()
	assert.False(t, signedOut)
	mu.Unlock()

	// once the store recovers a refresh authenticates again
	e.usrRepo.setGetErr(nil)
	snap, err = e.mgr.Refresh(ctx, idn.ID)
	assert.NoError(t, err)
	assert.Equal(t, PhaseAuthenticated, snap.Phase)

	// a wrapped not-found still reads as a missing document
	assert.True(t, isProfileMissing(errors.Wrap(user.ErrNotFound, "getting profile")))
}

func TestStaleRefreshDoesNotOverwriteSignOut(t *testing.T) {
	e := setup()
	ctx := context.Background()

	idn := e.register(t, "nima@test.ir", "Nima")
	snap, err := e.mgr.Resolve(ctx, idn.ID)
	assert.NoError(t, err)
	assert.Equal(t, PhaseAuthenticated, snap.Phase)

	// park the refresh's profile fetch
	release := make(chan struct{})
	e.usrRepo.setGetHook(func() { <-release })

	refreshed := make(chan Snapshot, 1)
	go func() {
		s, _ := e.mgr.Refresh(ctx, idn.ID)
		refreshed <- s
	}()

	assert.Eventually(t, func() bool {
		return e.mgr.Snapshot(idn.ID).Phase == PhaseResolving
	}, time.Second, 5*time.Millisecond)

	// sign out while the refresh fetch is still in flight
	e.usrRepo.setGetHook(nil)
	assert.NoError(t, e.mgr.SignOut(ctx, idn.ID))
	assert.Equal(t, PhaseUnauthenticated, e.mgr.Snapshot(idn.ID).Phase)

	// let the stale fetch complete; it must be discarded
	close(release)
	s := <-refreshed
	assert.Equal(t, PhaseUnauthenticated, s.Phase)
	assert.Equal(t, PhaseUnauthenticated, e.mgr.Snapshot(idn.ID).Phase)
}

func TestProfileWatchPropagatesApproval(t *testing.T) {
	e := setup()
	ctx := context.Background()

	idn := e.register(t, "lily@test.ir", "Lily")
	snap, err := e.mgr.Resolve(ctx, idn.ID)
	assert.NoError(t, err)
	assert.False(t, snap.User.Approved)

	_, err = e.usrSvc.SetApproved(ctx, idn.ID, true)
	assert.NoError(t, err)

	assert.Eventually(t, func() bool {
		s := e.mgr.Snapshot(idn.ID)
		return s.Phase == PhaseAuthenticated && s.User.Approved
	}, time.Second, 5*time.Millisecond)
}

func TestProfileWatchDeletionSignsOut(t *testing.T) {
	e := setup()
	ctx := context.Background()

	idn := e.register(t, "del@test.ir", "Del")
	_, err := e.mgr.Resolve(ctx, idn.ID)
	assert.NoError(t, err)

	assert.NoError(t, e.usrSvc.Delete(ctx, idn.ID))

	assert.Eventually(t, func() bool {
		return e.mgr.Snapshot(idn.ID).Phase == PhaseUnauthenticated
	}, time.Second, 5*time.Millisecond)
}

func TestDeleteAccountOrderProfileThenIdentity(t *testing.T) {
	e := setup()
	ctx := context.Background()

	idn := e.register(t, "bye@test.ir", "Bye")
	_, err := e.mgr.Resolve(ctx, idn.ID)
	assert.NoError(t, err)

	assert.NoError(t, e.mgr.DeleteAccount(ctx, idn.ID))

	ops := e.ops.all()
	assert.Equal(t, []string{"profile-delete", "identity-delete"}, ops)

	assert.Eventually(t, func() bool {
		return e.mgr.Snapshot(idn.ID).Phase == PhaseUnauthenticated
	}, time.Second, 5*time.Millisecond)
}

func TestOnboardingCompletionVisibleAfterRefresh(t *testing.T) {
	e := setup()
	ctx := context.Background()

	idn := e.register(t, "year@test.ir", "Yara")
	snap, err := e.mgr.Resolve(ctx, idn.ID)
	assert.NoError(t, err)
	assert.False(t, snap.User.HasYear())

	_, err = e.usrSvc.CompleteOnboarding(ctx, idn.ID, user.Onboarding{Year: user.YearSecond})
	assert.NoError(t, err)

	snap, err = e.mgr.Refresh(ctx, idn.ID)
	assert.NoError(t, err)
	assert.Equal(t, PhaseAuthenticated, snap.Phase)
	assert.Equal(t, null.StringFrom(user.YearSecond), snap.User.Year)
}
