package access

import (
	"testing"

	"github.com/volatiletech/null/v8"

	"github.com/farsihub/backend/core/session"
	"github.com/farsihub/backend/core/user"
)

func student(year string, approved bool) session.Snapshot {
	au := &session.AppUser{Role: user.RoleStudent, Approved: approved}
	if year != "" {
		au.Year = null.StringFrom(year)
	}
	return session.Snapshot{Phase: session.PhaseAuthenticated, User: au}
}

func admin() session.Snapshot {
	return session.Snapshot{Phase: session.PhaseAuthenticated, User: &session.AppUser{Role: user.RoleAdmin}}
}

func anonymous() session.Snapshot {
	return session.Snapshot{Phase: session.PhaseUnauthenticated}
}

func TestDecide(t *testing.T) {
	loading := session.Snapshot{Phase: session.PhaseResolving}

	tests := []struct {
		name       string
		snap       session.Snapshot
		path       string
		wantKind   Kind
		wantTarget string
	}{
		// loading: suspension point, not a transition
		{name: "loading protected", snap: loading, path: "/dashboard", wantKind: Loading},
		{name: "loading auth page", snap: loading, path: "/login", wantKind: Loading},

		// unauthenticated
		{name: "anon public", snap: anonymous(), path: "/", wantKind: Allow},
		{name: "anon login", snap: anonymous(), path: "/login", wantKind: Allow},
		{name: "anon dashboard", snap: anonymous(), path: "/dashboard", wantKind: RedirectLogin, wantTarget: RouteLogin},
		{name: "anon lectures", snap: anonymous(), path: "/lectures/abc", wantKind: RedirectLogin, wantTarget: RouteLogin},
		{name: "anon quizzes", snap: anonymous(), path: "/quizzes/abc", wantKind: RedirectLogin, wantTarget: RouteLogin},
		{name: "anon admin", snap: anonymous(), path: "/admin/subjects", wantKind: RedirectLogin, wantTarget: RouteLogin},

		// authenticated on auth pages
		{name: "admin on login", snap: admin(), path: "/login", wantKind: RedirectHome, wantTarget: "/admin/profile"},
		{name: "student on signup", snap: student(user.YearFirst, true), path: "/signup", wantKind: RedirectHome, wantTarget: "/student/profile"},
		{name: "fresh student on login", snap: student("", false), path: "/login", wantKind: RedirectHome, wantTarget: RouteOnboarding},

		// role mismatch fails closed
		{name: "student visits admin", snap: student(user.YearFirst, true), path: "/admin/subjects", wantKind: RedirectLogin, wantTarget: RouteLogin},
		{name: "admin visits student", snap: admin(), path: "/student/profile", wantKind: RedirectLogin, wantTarget: RouteLogin},

		// onboarding gate: year unset blocks content regardless of approval
		{name: "no year lectures", snap: student("", false), path: "/lectures", wantKind: RedirectOnboarding, wantTarget: RouteOnboarding},
		{name: "no year approved lectures", snap: student("", true), path: "/lectures", wantKind: RedirectOnboarding, wantTarget: RouteOnboarding},
		{name: "no year dashboard", snap: student("", false), path: "/dashboard", wantKind: RedirectOnboarding, wantTarget: RouteOnboarding},
		{name: "no year onboarding allowed", snap: student("", false), path: RouteOnboarding, wantKind: Allow},

		// onboarded students reach content; approval is not the router's job
		{name: "year set lectures", snap: student(user.YearThird, false), path: "/lectures", wantKind: Allow},
		{name: "year set dashboard", snap: student(user.YearThird, true), path: "/dashboard", wantKind: Allow},
		{name: "student home", snap: student(user.YearThird, true), path: "/student/profile", wantKind: Allow},

		// admins skip onboarding entirely
		{name: "admin dashboard", snap: admin(), path: "/dashboard", wantKind: Allow},
		{name: "admin subjects", snap: admin(), path: "/admin/subjects", wantKind: Allow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.snap, tt.path)
			if got.Kind != tt.wantKind {
				t.Errorf("Decide() kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if got.Target != tt.wantTarget {
				t.Errorf("Decide() target = %q, want %q", got.Target, tt.wantTarget)
			}
		})
	}
}

func TestDecideIdempotent(t *testing.T) {
	snap := student("", false)
	first := Decide(snap, "/lectures")
	for i := 0; i < 5; i++ {
		if got := Decide(snap, "/lectures"); got != first {
			t.Fatalf("Decide() not idempotent: %v != %v", got, first)
		}
	}
}
