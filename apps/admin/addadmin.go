package main

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/farsihub/backend/core"
	"github.com/farsihub/backend/core/identity"
	"github.com/farsihub/backend/core/user"
)

// addAdmin creates an admin account, or promotes an existing one. The
// profile document is written alongside the identity so session resolution
// finds both.
func (cli *commandLine) addAdmin(email, name, pwd string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)

	idn, err := cli.idnRepo.GetIdentityByEmail(ctx, email)
	if err != nil {
		if err != identity.ErrNotFound {
			return err
		}
		idn = identity.Identity{
			ID:        uuid.New().String(),
			Email:     email,
			CreatedAt: time.Now().UTC(),
		}
		if err = idn.SetSecret(pwd); err != nil {
			return err
		}
		if idn, err = cli.idnRepo.CreateIdentity(ctx, idn); err != nil {
			return err
		}
	} else {
		if err = idn.SetSecret(pwd); err != nil {
			return err
		}
		if idn, err = cli.idnRepo.UpdateIdentity(ctx, idn); err != nil {
			return err
		}
	}

	p, err := cli.usrRepo.GetProfileByID(ctx, idn.ID)
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		_, err = cli.usrRepo.CreateProfile(ctx, user.Profile{
			ID:        idn.ID,
			Name:      name,
			Email:     idn.Email,
			Role:      user.RoleAdmin,
			Approved:  true,
			CreatedAt: time.Now().UTC(),
		})
		return err
	}

	p.Name = name
	p.Role = user.RoleAdmin
	p.Approved = true
	_, err = cli.usrRepo.UpdateProfile(ctx, p)
	return err
}
