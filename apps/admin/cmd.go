package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/mindzed/attendance/core/school"
	"github.com/mindzed/attendance/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	out       io.Writer
	db        *sql.DB
	usrSvc    *user.Service
	schoolSvc *school.Service
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  createadmin -name NAME -email EMAIL - create the first administrator (system bootstrap)")
	fmt.Fprintln(cli.out, "  adduser -name NAME -email EMAIL -role ADMIN|TEACHER|STUDENT [options] - create a user and their profile")
	fmt.Fprintln(cli.out, "  addclass -name NAME -batch BATCH [-coordinator EMAIL] - create a class")
	fmt.Fprintln(cli.out, "  addsession -class ID -subject SUBJECT [-date RFC3339] - schedule a class session")
	fmt.Fprintln(cli.out, "  resetpassword -email EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run database migrations (goose commands)")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

// readPassword prompts for a password. An empty answer is an error unless allowEmpty.
func (cli *commandLine) readPassword(fs *flag.FlagSet, allowEmpty bool) (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 && !allowEmpty {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "createadmin":
		cmd := cli.newFlagSet("createadmin")
		name := cmd.String("name", "", "The administrator's full name.")
		email := cmd.String("email", "", "The administrator's email. The password will be prompted next.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *name == "" || *email == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword(cmd, false)
		if err != nil {
			return err
		}
		return cli.createAdmin(*name, *email, pwd)

	case "adduser":
		cmd := cli.newFlagSet("adduser")
		var opts addUserOptions
		cmd.StringVar(&opts.name, "name", "", "The user's full name.")
		cmd.StringVar(&opts.email, "email", "", "The user's email. The password will be prompted next (empty: not yet activated).")
		cmd.StringVar(&opts.role, "role", "", "ADMIN, TEACHER or STUDENT.")
		cmd.BoolVar(&opts.isHod, "hod", false, "TEACHER: head of department.")
		cmd.StringVar(&opts.designation, "designation", "", "TEACHER: designation, eg. Lecturer.")
		cmd.StringVar(&opts.classID, "class", "", "STUDENT: ID of the class to enroll in.")
		cmd.StringVar(&opts.roll, "roll", "", "STUDENT: roll number.")
		cmd.IntVar(&opts.semester, "semester", 1, "STUDENT: current semester.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if opts.name == "" || opts.email == "" || opts.role == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword(cmd, true)
		if err != nil {
			return err
		}
		opts.password = pwd
		return cli.addUser(opts)

	case "addclass":
		cmd := cli.newFlagSet("addclass")
		name := cmd.String("name", "", "The class name, eg. CSE A.")
		batch := cmd.String("batch", "", "The batch, eg. 2022.")
		coordinator := cmd.String("coordinator", "", "Email of the coordinating teacher (CR).")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *name == "" || *batch == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.addClass(school.NewClass{Name: *name, Batch: *batch, CoordinatorEmail: *coordinator})

	case "addsession":
		cmd := cli.newFlagSet("addsession")
		classID := cmd.String("class", "", "The class ID.")
		subject := cmd.String("subject", "", "The subject taught.")
		date := cmd.String("date", "", "The session date (RFC3339). Defaults to now.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *classID == "" || *subject == "" {
			cmd.Usage()
			return errHelp
		}
		when := time.Now()
		if *date != "" {
			var err error
			if when, err = time.Parse(time.RFC3339, *date); err != nil {
				return err
			}
		}
		return cli.addSession(school.NewSession{ClassID: *classID, Subject: *subject, Date: when})

	case "resetpassword":
		cmd := cli.newFlagSet("resetpassword")
		email := cmd.String("email", "", "The user's email. The password will be prompted next.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *email == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword(cmd, false)
		if err != nil {
			return err
		}
		return cli.resetPassword(*email, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	default:
		cli.printUsage()
		return errHelp
	}
}
