package main

import (
	"context"

	"github.com/farsihub/backend/core"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()

	idn, err := cli.idnRepo.GetIdentityByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	if err := idn.SetSecret(pwd); err != nil {
		return err
	}
	_, err = cli.idnRepo.UpdateIdentity(ctx, idn)
	return err
}
