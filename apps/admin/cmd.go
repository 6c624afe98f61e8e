package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/neuromagic/academy/core/access"
	"github.com/neuromagic/academy/core/catalog"
	"github.com/neuromagic/academy/core/learning"
	"github.com/neuromagic/academy/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sqlx.DB // nil with the memory engine
	usrRepo  user.Repository
	usrSvc   user.Service
	access   access.Service
	learning learning.Service
	catalog  *catalog.Catalog
	validate *validator.Validate
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Println("  adduser -username USERNAME -email EMAIL [-admin] - create or update a user")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Println("  seed [-content] [-user] - import the bundled course programs and/or create the demo user (both by default)")
	fmt.Println("  grant -username USERNAME|EMAIL -course SLUG - give a user access to a course")
	fmt.Println("  revoke -username USERNAME|EMAIL -course SLUG - remove a user's access to a course")
}

// promptPassword reads a password from the terminal, without echoing it.
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant access to the admin API.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	seedCmd := flag.NewFlagSet("seed", flag.ExitOnError)
	seedContent := seedCmd.Bool("content", false, "Import the bundled course programs.")
	seedUser := seedCmd.Bool("user", false, "Create the demo user with every course granted.")

	grantCmd := flag.NewFlagSet("grant", flag.ExitOnError)
	grantUname := grantCmd.String("username", "", "The user's username or email.")
	grantCourse := grantCmd.String("course", "", "The course slug.")

	revokeCmd := flag.NewFlagSet("revoke", flag.ExitOnError)
	revokeUname := revokeCmd.String("username", "", "The user's username or email.")
	revokeCourse := revokeCmd.String("course", "", "The course slug.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserUname, *addUserEmail, pwd, *addUserAdmin)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "seed":
		if err := seedCmd.Parse(args[2:]); err != nil {
			return err
		}
		if !*seedContent && !*seedUser {
			*seedContent, *seedUser = true, true
		}
		return cli.seed(*seedContent, *seedUser)

	case "grant":
		if err := grantCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *grantUname == "" || *grantCourse == "" {
			grantCmd.Usage()
			return errHelp
		}
		return cli.grant(*grantUname, *grantCourse)

	case "revoke":
		if err := revokeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *revokeUname == "" || *revokeCourse == "" {
			revokeCmd.Usage()
			return errHelp
		}
		return cli.revoke(*revokeUname, *revokeCourse)

	default:
		cli.printUsage()
		return errHelp
	}
}
