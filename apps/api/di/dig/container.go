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

	echoapi "github.com/MarMar-mg/school-managment-system-sub000/apps/api/echo"
	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/access"
	"github.com/MarMar-mg/school-managment-system-sub000/core/assessment"
	"github.com/MarMar-mg/school-managment-system-sub000/core/grading"
	"github.com/MarMar-mg/school-managment-system-sub000/core/notification"
	"github.com/MarMar-mg/school-managment-system-sub000/core/roster"
	"github.com/MarMar-mg/school-managment-system-sub000/core/school"
	"github.com/MarMar-mg/school-managment-system-sub000/core/score"
	"github.com/MarMar-mg/school-managment-system-sub000/core/stats"
	"github.com/MarMar-mg/school-managment-system-sub000/core/user"
	emailsvc "github.com/MarMar-mg/school-managment-system-sub000/services/email"
	"github.com/MarMar-mg/school-managment-system-sub000/services/filestore"
	logsvc "github.com/MarMar-mg/school-managment-system-sub000/services/logger"
	metricsvc "github.com/MarMar-mg/school-managment-system-sub000/services/metrics"
	"github.com/MarMar-mg/school-managment-system-sub000/services/ratelimit"
	"github.com/MarMar-mg/school-managment-system-sub000/services/scheduler"
	"github.com/MarMar-mg/school-managment-system-sub000/storage/database"
	sqlxrepos "github.com/MarMar-mg/school-managment-system-sub000/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewService(conf, logger)
}

func newFileStore(conf *core.Config, logger core.Logger) core.FileStore {
	store, err := filestore.NewStore(context.Background(), conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up file store: %v", err), err)
	}
	return store
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

type Repositories struct {
	dig.Out
	Users         user.Repository
	Classes       school.ClassRepository
	Courses       school.CourseRepository
	Students      school.StudentRepository
	Teachers      school.TeacherRepository
	Scores        score.Repository
	Assignments   assessment.Repository
	Notifications notification.Repository
}

func newRepositories(db *sqlx.DB) Repositories {
	return Repositories{
		Users:         sqlxrepos.NewUserRepository(db),
		Classes:       sqlxrepos.NewClassRepository(db),
		Courses:       sqlxrepos.NewCourseRepository(db),
		Students:      sqlxrepos.NewStudentRepository(db),
		Teachers:      sqlxrepos.NewTeacherRepository(db),
		Scores:        sqlxrepos.NewScoreRepository(db),
		Assignments:   sqlxrepos.NewAssessmentRepository(db),
		Notifications: sqlxrepos.NewNotificationRepository(db),
	}
}

type ServiceParams struct {
	dig.In
	Conf          *core.Config
	Logger        core.Logger
	Validate      *validator.Validate
	Tx            core.Transactor
	Mail          core.EmailService
	Files         core.FileStore
	Metrics       *metricsvc.Prometheus
	Users         user.Repository
	Classes       school.ClassRepository
	Courses       school.CourseRepository
	Students      school.StudentRepository
	Teachers      school.TeacherRepository
	Scores        score.Repository
	Assignments   assessment.Repository
	Notifications notification.Repository
}

type Services struct {
	dig.Out
	Users         user.Service
	Resolver      access.Resolver
	School        school.Service
	Roster        roster.Service
	Assessments   assessment.Service
	Grading       grading.Service
	Scores        score.Service
	Stats         stats.Service
	Notifications notification.Service
}

func newServices(p ServiceParams) Services {
	dispatcher := notification.NewDispatcher(p.Conf, p.Notifications, p.Users, p.Mail, p.Logger, p.Metrics)
	return Services{
		Users:    user.NewService(p.Conf, p.Users, p.Mail),
		Resolver: access.NewResolver(p.Students, p.Teachers),
		School: school.NewService(p.Tx, school.Repositories{
			Classes:  p.Classes,
			Courses:  p.Courses,
			Students: p.Students,
			Teachers: p.Teachers,
			Users:    p.Users,
		}, p.Validate),
		Roster: roster.NewService(roster.Deps{
			Tx:         p.Tx,
			Courses:    p.Courses,
			Teachers:   p.Teachers,
			Students:   p.Students,
			Dispatcher: dispatcher,
		}),
		Assessments: assessment.NewService(assessment.Deps{
			Tx:         p.Tx,
			Repo:       p.Assignments,
			Courses:    p.Courses,
			Students:   p.Students,
			Dispatcher: dispatcher,
			Files:      p.Files,
			Logger:     p.Logger,
		}),
		Grading: grading.NewService(grading.Deps{
			Tx:          p.Tx,
			Assignments: p.Assignments,
			Courses:     p.Courses,
			Students:    p.Students,
			Dispatcher:  dispatcher,
			Metrics:     p.Metrics,
		}),
		Scores: score.NewService(score.Deps{
			Tx:       p.Tx,
			Repo:     p.Scores,
			Courses:  p.Courses,
			Students: p.Students,
			Metrics:  p.Metrics,
		}),
		Stats: stats.NewService(stats.Deps{
			Conf:     p.Conf,
			Scores:   p.Scores,
			Classes:  p.Classes,
			Courses:  p.Courses,
			Students: p.Students,
			Teachers: p.Teachers,
		}),
		Notifications: notification.NewService(p.Conf, p.Notifications),
	}
}

type ServerParams struct {
	dig.In
	Conf          *core.Config
	Logger        core.Logger
	Validate      *validator.Validate
	Translator    ut.Translator
	Limiter       ratelimit.Limiter
	Metrics       *metricsvc.Prometheus
	Users         user.Service
	Resolver      access.Resolver
	School        school.Service
	Roster        roster.Service
	Assessments   assessment.Service
	Grading       grading.Service
	Scores        score.Service
	Stats         stats.Service
	Notifications notification.Service
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(&echoapi.Deps{
		Conf:            p.Conf,
		Logger:          p.Logger,
		Validate:        p.Validate,
		Translator:      p.Translator,
		Limiter:         p.Limiter,
		Metrics:         p.Metrics,
		UserSvc:         p.Users,
		Resolver:        p.Resolver,
		SchoolSvc:       p.School,
		RosterSvc:       p.Roster,
		AssessmentSvc:   p.Assessments,
		GradingSvc:      p.Grading,
		ScoreSvc:        p.Scores,
		StatsSvc:        p.Stats,
		NotificationSvc: p.Notifications,
	})
}

func newScheduler(conf *core.Config, notes notification.Service, logger core.Logger) (*scheduler.Scheduler, error) {
	return scheduler.New(conf, notes, logger)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(database.NewTransactor))
	must(c.Provide(newRepositories))
	must(c.Provide(newEmailService))
	must(c.Provide(newFileStore))
	must(c.Provide(metricsvc.NewPrometheus))
	must(c.Provide(ratelimit.NewLimiter))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(newServices))
	must(c.Provide(newServer))
	must(c.Provide(newScheduler))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
