package main

import (
	"context"
	"fmt"

	"github.com/mindzed/attendance/core/school"
)

func (cli *commandLine) addClass(nc school.NewClass) error {
	class, err := cli.schoolSvc.CreateClass(context.Background(), nc)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "class %s (%s) created (id: %s)\n", class.Name, class.Batch, class.ID)
	return nil
}

func (cli *commandLine) addSession(ns school.NewSession) error {
	sess, err := cli.schoolSvc.ScheduleSession(context.Background(), ns)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "session %s scheduled on %s (id: %s)\n", sess.Subject, sess.Date.Format("2006-01-02 15:04"), sess.ID)
	return nil
}
