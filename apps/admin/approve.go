package main

import (
	"context"

	"github.com/farsihub/backend/core"
)

func (cli *commandLine) approve(email string, approved bool) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)

	idn, err := cli.idnRepo.GetIdentityByEmail(ctx, email)
	if err != nil {
		return err
	}
	p, err := cli.usrRepo.GetProfileByID(ctx, idn.ID)
	if err != nil {
		return err
	}
	p.Approved = approved
	_, err = cli.usrRepo.UpdateProfile(ctx, p)
	return err
}
