package main

import (
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/enrollment"
	"github.com/trezcool/educa/core/user"
	"github.com/trezcool/educa/services/cache"
	"github.com/trezcool/educa/services/email"
	"github.com/trezcool/educa/services/logger"
	"github.com/trezcool/educa/storage/database"
	"github.com/trezcool/educa/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
	defer db.Close()

	// set up services
	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	core.ParseEmailTemplates(logger)

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db))
	crsSvc := course.NewService(conf, sqlxrepos.NewCourseRepository(db), sqlxrepos.NewOwnershipChecker(db), cachesvc.New(conf), nil, logger)
	mailSvc := emailsvc.NewService(conf, logger)
	enrollSvc := enrollment.NewService(sqlxrepos.NewEnrollmentRepository(db), crsSvc, mailSvc, logger)

	// start CLI
	cli := commandLine{
		conf:      conf,
		db:        db.DB,
		validate:  validate,
		usrSvc:    usrSvc,
		enrollSvc: enrollSvc,
	}
	err = cli.run(os.Args)
	if w, ok := mailSvc.(interface{ Wait() }); ok {
		w.Wait()
	}
	if err != nil {
		if err != errHelp {
			logger.Error("\nerror: "+err.Error(), err)
		}
		logger.Close()
		os.Exit(1)
	}
}
