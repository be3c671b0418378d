package main

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/mindzed/attendance/core"
	"github.com/mindzed/attendance/core/school"
	"github.com/mindzed/attendance/core/user"
	emailsvc "github.com/mindzed/attendance/services/email"
	logsvc "github.com/mindzed/attendance/services/logger"
	"github.com/mindzed/attendance/storage/database"
	sqlxrepos "github.com/mindzed/attendance/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger(conf), conf).WithComponent("ADMIN")

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// set up services
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), emailsvc.NewService(conf, logger), validate, logger, conf)
	schoolSvc := school.NewService(sqlxrepos.NewSchoolRepository(db), usrSvc, validate, logger)

	// start CLI
	cli := commandLine{
		out:       os.Stdout,
		db:        db.DB,
		usrSvc:    usrSvc,
		schoolSvc: schoolSvc,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
