package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/user"
)

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	nu := user.NewUser{Username: uname, Email: email, Password: pwd, IsAdmin: isAdmin}

	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if !core.IsKind(err, core.ErrNotFound) {
			return err
		}
		if err = nu.Validate(cli.validate); err != nil {
			return err
		}
		_, err = cli.usrSvc.Create(ctx, nu)
		return errors.Wrap(err, "creating user")
	}

	usr.IsActive = true
	usr.IsAdmin = isAdmin
	_, err = cli.usrSvc.SetPassword(ctx, usr, pwd)
	return errors.Wrap(err, "updating user")
}
