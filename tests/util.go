package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/farsihub/backend/core/identity"
	"github.com/farsihub/backend/core/user"
)

// CreateAccount seeds an identity and its profile document, the way the
// signup flow does.
func CreateAccount(
	t *testing.T,
	idnRepo identity.Repository,
	usrRepo user.Repository,
	id, name, email, pwd, role string,
	approved bool,
	year ...string,
) (identity.Identity, user.Profile) {
	t.Helper()
	ctx := context.Background()
	tstamp := time.Now().UTC()

	idn := identity.Identity{
		ID:        id,
		Email:     email,
		CreatedAt: tstamp,
		LastLogin: tstamp,
	}
	if pwd != "" {
		if err := idn.SetSecret(pwd); err != nil {
			t.Fatalf("CreateAccount() failed: %v", err)
		}
	}
	idn, err := idnRepo.CreateIdentity(ctx, idn)
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}

	p := user.Profile{
		ID:        id,
		Name:      name,
		Email:     email,
		Role:      role,
		Approved:  approved,
		CreatedAt: tstamp,
	}
	if len(year) > 0 {
		p.Year = null.StringFrom(year[0])
	}
	p, err = usrRepo.CreateProfile(ctx, p)
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}
	return idn, p
}
