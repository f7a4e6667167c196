// Package access decides, for a session snapshot and navigation target,
// whether to allow the request or where to redirect it. Decisions are pure:
// re-deciding the same inputs yields the same outcome, so callers may safely
// re-invoke on every request or render.
package access

import (
	"strings"

	"github.com/farsihub/backend/core/session"
	"github.com/farsihub/backend/core/user"
)

type Kind int

const (
	// Allow lets the navigation through.
	Allow Kind = iota
	// Loading means the session is still resolving; no navigation decision
	// can be made yet.
	Loading
	// RedirectLogin sends the visitor to the login page (fail closed).
	RedirectLogin
	// RedirectOnboarding sends a student without an academic year to the
	// one-time onboarding flow.
	RedirectOnboarding
	// RedirectHome sends an authenticated visitor off an auth-only page to
	// their role's home.
	RedirectHome
)

// Decision is the outcome of a routing check. Target is set for redirects.
type Decision struct {
	Kind   Kind
	Target string
}

// Routes
const (
	RouteLogin      = "/login"
	RouteSignup     = "/signup"
	RouteOnboarding = "/student/onboarding"

	adminHome   = "/admin/profile"
	studentHome = "/student/profile"
)

var protectedPrefixes = []string{
	"/dashboard", "/admin", "/student", "/lectures", "/assignments", "/quizzes",
}

func isAuthPage(path string) bool {
	return strings.HasPrefix(path, RouteLogin) || strings.HasPrefix(path, RouteSignup)
}

func isProtected(path string) bool {
	for _, p := range protectedPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func isOnboarding(path string) bool {
	return strings.HasPrefix(path, RouteOnboarding)
}

// roleHome is where an authenticated visitor lands when leaving auth pages.
// A student who has not completed onboarding lands on the onboarding flow.
func roleHome(u *session.AppUser) string {
	if u.IsAdmin() {
		return adminHome
	}
	if !u.HasYear() {
		return RouteOnboarding
	}
	return studentHome
}

// roleAllowed checks the role-segment of the path against the session role.
// Unknown roles get nothing; approval is NOT checked here (unapproved
// students may reach content routes, reads are restricted server-side).
func roleAllowed(u *session.AppUser, path string) bool {
	if strings.HasPrefix(path, "/admin") {
		return u.IsAdmin()
	}
	if strings.HasPrefix(path, "/student") {
		return u.IsStudent()
	}
	// shared content routes
	return u.IsAdmin() || u.IsStudent()
}

// Decide maps (session snapshot, target path) to a navigation decision.
func Decide(snap session.Snapshot, path string) Decision {
	if snap.Loading() {
		return Decision{Kind: Loading}
	}

	if !snap.Authenticated() {
		if isProtected(path) {
			return Decision{Kind: RedirectLogin, Target: RouteLogin}
		}
		return Decision{Kind: Allow}
	}

	u := snap.User

	if isAuthPage(path) {
		return Decision{Kind: RedirectHome, Target: roleHome(u)}
	}

	if !isProtected(path) {
		return Decision{Kind: Allow}
	}

	if !roleAllowed(u, path) {
		// wrong role: fail closed, no "forbidden" page
		return Decision{Kind: RedirectLogin, Target: RouteLogin}
	}

	// a student session without a year must onboard before any content route
	if u.Role == user.RoleStudent && !u.HasYear() && !isOnboarding(path) {
		return Decision{Kind: RedirectOnboarding, Target: RouteOnboarding}
	}

	return Decision{Kind: Allow}
}
