package dig_container

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/trezcool/sistira/apps/api/echo"
	"github.com/trezcool/sistira/core"
	"github.com/trezcool/sistira/core/auth"
	"github.com/trezcool/sistira/core/bank"
	"github.com/trezcool/sistira/core/discipline"
	"github.com/trezcool/sistira/core/exam"
	"github.com/trezcool/sistira/core/question"
	"github.com/trezcool/sistira/core/room"
	"github.com/trezcool/sistira/core/stats"
	"github.com/trezcool/sistira/core/user"
	emailsvc "github.com/trezcool/sistira/services/email"
	logsvc "github.com/trezcool/sistira/services/logger"
	"github.com/trezcool/sistira/storage/database"
	inmemdb "github.com/trezcool/sistira/storage/database/inmem"
	sqlxrepos "github.com/trezcool/sistira/storage/database/sqlx"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// DBCloser releases the storage backend.
	DBCloser func() error

	Repositories struct {
		dig.Out
		Close       DBCloser
		Users       user.Repository
		Tokens      auth.Repository
		Disciplines discipline.Repository
		Questions   question.Repository
		Banks       bank.Repository
		Exams       exam.Repository
		Rooms       room.Repository
	}

	ServerParams struct {
		dig.In
		Conf          *core.Config
		Logger        core.Logger
		Validate      *validator.Validate
		Translator    ut.Translator
		UserSvc       *user.Service
		AuthSvc       *auth.Service
		DisciplineSvc *discipline.Service
		QuestionSvc   *question.Service
		BankSvc       *bank.Service
		ExamSvc       *exam.Service
		RoomSvc       *room.Service
		StatsSvc      *stats.Service
	}
)

func newLogger(conf *core.Config, zl *zap.Logger) core.Logger {
	logger := logsvc.NewRollbarLogger(zl.Named("api"), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config, zl *zap.Logger) core.Logger {
	logger := logsvc.NewRollbarLogger(zl.Named("db"), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) Repositories {
	if conf.IsMemoryStorage() {
		loggerParam.Logger.Warn("using in-memory storage: data will not survive restarts")
		db := inmemdb.Open()
		return Repositories{
			Close:       func() error { return nil },
			Users:       inmemdb.NewUserRepository(db),
			Tokens:      inmemdb.NewTokenRepository(db),
			Disciplines: inmemdb.NewDisciplineRepository(db),
			Questions:   inmemdb.NewQuestionRepository(db),
			Banks:       inmemdb.NewBankRepository(db),
			Exams:       inmemdb.NewExamRepository(db),
			Rooms:       inmemdb.NewRoomRepository(db),
		}
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		loggerParam.Logger.Fatal("setting up database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		loggerParam.Logger.Fatal("opening database", err)
	}
	if err = database.Migrate(db); err != nil {
		loggerParam.Logger.Fatal("migrating database", err)
	}
	return Repositories{
		Close:       db.Close,
		Users:       sqlxrepos.NewUserRepository(db),
		Tokens:      sqlxrepos.NewTokenRepository(db),
		Disciplines: sqlxrepos.NewDisciplineRepository(db),
		Questions:   sqlxrepos.NewQuestionRepository(db),
		Banks:       sqlxrepos.NewBankRepository(db),
		Exams:       sqlxrepos.NewExamRepository(db),
		Rooms:       sqlxrepos.NewRoomRepository(db),
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	question.InitValidators(validate, translator)
	return validate
}

func newAuthService(conf *core.Config, repo auth.Repository, userSvc *user.Service) *auth.Service {
	return auth.NewService(
		auth.Config{SecretKey: []byte(conf.SecretKey), Issuer: conf.AppName, Expiration: conf.Auth.TokenExpiration},
		repo,
		userSvc,
	)
}

func newServer(p ServerParams) *echoapi.Server {
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	return echoapi.NewServer(p.Conf.Server.Addr, shutdown, &echoapi.Deps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Validate:      p.Validate,
		Translator:    p.Translator,
		UserSvc:       p.UserSvc,
		AuthSvc:       p.AuthSvc,
		DisciplineSvc: p.DisciplineSvc,
		QuestionSvc:   p.QuestionSvc,
		BankSvc:       p.BankSvc,
		ExamSvc:       p.ExamSvc,
		RoomSvc:       p.RoomSvc,
		StatsSvc:      p.StatsSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(logsvc.NewZapLogger))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(user.NewService))
	must(c.Provide(newAuthService))
	must(c.Provide(discipline.NewService))
	must(c.Provide(question.NewService))
	must(c.Provide(bank.NewService))
	must(c.Provide(exam.NewService))
	must(c.Provide(room.NewService))
	must(c.Provide(stats.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
