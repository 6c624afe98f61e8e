package main

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"time"

	"github.com/pkg/errors"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/access"
	"github.com/neuromagic/academy/core/learning"
	"github.com/neuromagic/academy/core/user"
	appfs "github.com/neuromagic/academy/fs"
)

const (
	contentDir = "content"

	demoUsername = "alivederchi"
	demoEmail    = "alivederchi@neuro-magic.ru"
	demoPassword = "password123"
)

var contentFS fs.FS = appfs.FS // mockable

func (cli *commandLine) seed(content, demoUser bool) error {
	ctx := context.Background()
	if content {
		if err := cli.seedContent(ctx); err != nil {
			return err
		}
	}
	if demoUser {
		return cli.seedDemoUser(ctx)
	}
	return nil
}

// seedContent imports every course program found under contentDir.
func (cli *commandLine) seedContent(ctx context.Context) error {
	fps, err := fs.Glob(contentFS, path.Join(contentDir, "*.yaml"))
	if err != nil {
		return errors.Wrap(err, "listing course programs")
	}
	for _, fp := range fps {
		data, err := fs.ReadFile(contentFS, fp)
		if err != nil {
			return errors.Wrapf(err, "reading %s", fp)
		}
		cc, err := learning.ParseCourseContent(data)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", fp)
		}
		if err = cc.Validate(cli.validate); err != nil {
			return errors.Wrapf(err, "validating %s", fp)
		}
		mods, err := cli.learning.ImportCourse(ctx, cc)
		if err != nil {
			return errors.Wrapf(err, "importing %s", fp)
		}
		var lessons int
		for _, mod := range mods {
			lessons += len(mod.Lessons)
		}
		fmt.Printf("%s: %d modules, %d lessons\n", cc.CourseSlug, len(mods), lessons)
	}
	return nil
}

// seedDemoUser creates the demo user, bypassing the password policy, and opens every course to it.
func (cli *commandLine) seedDemoUser(ctx context.Context) error {
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, demoUsername)
	if err != nil {
		if !core.IsKind(err, core.ErrNotFound) {
			return err
		}
		t := time.Now().UTC()
		usr = user.User{
			Username:  demoUsername,
			Email:     demoEmail,
			AvatarURL: user.DefaultAvatar(demoUsername),
			IsActive:  true,
			CreatedAt: t,
			UpdatedAt: t,
		}
		if err = usr.SetPassword(demoPassword); err != nil {
			return errors.Wrap(err, "hashing password")
		}
		if usr, err = cli.usrRepo.CreateUser(ctx, usr); err != nil {
			return errors.Wrap(err, "creating demo user")
		}
	}

	for _, course := range cli.catalog.All() {
		if _, _, err = cli.access.Grant(ctx, access.Grant{UserID: usr.ID, CourseSlug: course.Slug, Method: access.MethodTest}); err != nil {
			return errors.Wrapf(err, "granting %s", course.Slug)
		}
		if err = cli.access.MarkActive(ctx, usr.ID, course.Slug); err != nil {
			return errors.Wrapf(err, "activating %s", course.Slug)
		}
	}
	fmt.Printf("demo user %q: %d courses\n", demoUsername, len(cli.catalog.All()))
	return nil
}
