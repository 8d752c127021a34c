package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/educa/apps/api/echo"
	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/chat"
	"github.com/trezcool/educa/core/content"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/enrollment"
	"github.com/trezcool/educa/core/ordering"
	"github.com/trezcool/educa/core/ownership"
	"github.com/trezcool/educa/core/user"
	blobsvc "github.com/trezcool/educa/services/blob"
	cachesvc "github.com/trezcool/educa/services/cache"
	emailsvc "github.com/trezcool/educa/services/email"
	logsvc "github.com/trezcool/educa/services/logger"
	metricsvc "github.com/trezcool/educa/services/metrics"
	schedsvc "github.com/trezcool/educa/services/scheduler"
	"github.com/trezcool/educa/storage/database"
	inmemdb "github.com/trezcool/educa/storage/database/inmem"
	sqlxrepos "github.com/trezcool/educa/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Stores are the repositories of the configured database engine.
// DB is nil when the in-memory engine is used.
type Stores struct {
	dig.Out

	DB          *sqlx.DB
	Tx          core.Transactor
	Owners      ownership.Checker
	Users       user.Repository
	Courses     course.Repository
	Contents    content.Repository
	Items       content.Registry
	Enrollments enrollment.Repository
	Chat        chat.Repository
}

type serverParams struct {
	dig.In

	Conf          *core.Config
	Logger        core.Logger
	Validate      *validator.Validate
	Translator    ut.Translator
	UserSvc       *user.Service
	CourseSvc     *course.Service
	ContentSvc    *content.Service
	EnrollmentSvc *enrollment.Service
	ChatSvc       *chat.Service
	Blobs         core.BlobStore
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func newStores(conf *core.Config, loggerParam DBLoggerParam) Stores {
	if conf.Database.Engine == "memory" {
		loggerParam.Logger.Warn("using the in-memory database: data will not survive a restart")
		db := inmemdb.Open()
		return Stores{
			Tx:          db,
			Owners:      inmemdb.NewOwnershipChecker(db),
			Users:       inmemdb.NewUserRepository(db),
			Courses:     inmemdb.NewCourseRepository(db),
			Contents:    inmemdb.NewContentRepository(db),
			Items:       inmemdb.NewItemRegistry(db),
			Enrollments: inmemdb.NewEnrollmentRepository(db),
			Chat:        inmemdb.NewChatRepository(db),
		}
	}

	db, err := newDB(conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return Stores{
		DB:          db,
		Tx:          database.NewTransactor(db),
		Owners:      sqlxrepos.NewOwnershipChecker(db),
		Users:       sqlxrepos.NewUserRepository(db),
		Courses:     sqlxrepos.NewCourseRepository(db),
		Contents:    sqlxrepos.NewContentRepository(db),
		Items:       sqlxrepos.NewItemRegistry(db),
		Enrollments: sqlxrepos.NewEnrollmentRepository(db),
		Chat:        sqlxrepos.NewChatRepository(db),
	}
}

func newBlobStore(conf *core.Config) (core.BlobStore, error) {
	return blobsvc.New(context.Background(), conf)
}

func newRecorder(metrics *metricsvc.Metrics) ordering.Recorder {
	return metrics
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(&echoapi.Deps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Validate:      p.Validate,
		Translator:    p.Translator,
		UserSvc:       p.UserSvc,
		CourseSvc:     p.CourseSvc,
		ContentSvc:    p.ContentSvc,
		EnrollmentSvc: p.EnrollmentSvc,
		ChatSvc:       p.ChatSvc,
		Blobs:         p.Blobs,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStores))
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(cachesvc.New))
	must(c.Provide(newBlobStore))
	must(c.Provide(metricsvc.New))
	must(c.Provide(newRecorder))
	must(c.Provide(schedsvc.New))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(user.NewService))
	must(c.Provide(course.NewService))
	must(c.Provide(content.NewService))
	must(c.Provide(enrollment.NewService))
	must(c.Provide(chat.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
