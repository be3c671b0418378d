package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/mindzed/attendance/core/school"
	"github.com/mindzed/attendance/core/user"
)

type addUserOptions struct {
	name, email, role, password string

	// TEACHER
	isHod       bool
	designation string

	// STUDENT
	classID  string
	roll     string
	semester int
}

// createAdmin runs the first-run bootstrap.
func (cli *commandLine) createAdmin(name, email, pwd string) error {
	usr, err := cli.usrSvc.RegisterFirstAdmin(context.Background(), user.NewAdmin{Name: name, Email: email, Password: pwd})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "admin %s created\n", usr.Email)
	return nil
}

// addUser creates a user.User along with the profile matching their role.
func (cli *commandLine) addUser(opts addUserOptions) error {
	ctx := context.Background()

	role, err := user.ParseRole(opts.role)
	if err != nil {
		return errors.Wrapf(err, "%q", opts.role)
	}

	usr, err := cli.usrSvc.Create(ctx, user.NewUser{
		Name:     opts.name,
		Email:    opts.email,
		Role:     role,
		Password: opts.password,
	})
	if err != nil {
		return err
	}

	switch role {
	case user.RoleTeacher:
		_, err = cli.schoolSvc.AddTeacherProfile(ctx, usr, school.NewTeacherProfile{
			IsHod:       opts.isHod,
			Designation: opts.designation,
		})
	case user.RoleStudent:
		_, err = cli.schoolSvc.AddStudentProfile(ctx, usr, school.NewStudentProfile{
			ClassID:         opts.classID,
			RollNumber:      opts.roll,
			CurrentSemester: opts.semester,
		})
	}
	if err != nil {
		return errors.Wrap(err, "creating profile")
	}

	fmt.Fprintf(cli.out, "%s %s created (id: %s)\n", role, usr.Email, usr.ID)
	return nil
}
