package main

import (
	"context"
	"fmt"

	"github.com/neuromagic/academy/core/access"
)

func (cli *commandLine) grant(uname, slug string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	enr, created, err := cli.access.Grant(ctx, access.Grant{UserID: usr.ID, CourseSlug: slug, Method: access.MethodAdmin})
	if err != nil {
		return err
	}
	if !created {
		fmt.Printf("%s already has access to %s (%s)\n", usr.Username, enr.CourseSlug, enr.Status)
	}
	return nil
}

func (cli *commandLine) revoke(uname, slug string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	return cli.access.Revoke(ctx, usr.ID, slug)
}
