package main

import (
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/klabu/core"
	"github.com/trezcool/klabu/core/member"
	emailsvc "github.com/trezcool/klabu/services/email"
	logsvc "github.com/trezcool/klabu/services/logger"
	"github.com/trezcool/klabu/storage/database"
	sqlxrepos "github.com/trezcool/klabu/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	appLogger := logsvc.NewRollbarLogger(logger, conf)
	appLogger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())
	sqlxDB := sqlx.NewDb(db, conf.Database.Engine)

	// set up validation & templates
	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	member.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, appLogger)

	// set up services
	mailSvc := emailsvc.NewGateway(newTransport(conf), conf, appLogger)
	repo := sqlxrepos.NewMemberRepository(sqlxDB)
	deptRepo := sqlxrepos.NewDepartmentRepository(sqlxDB)
	svc := member.NewService(repo, deptRepo, mailSvc, appLogger, conf, validate)

	// start CLI
	cli := commandLine{
		db:      db,
		conf:    conf,
		repo:    repo,
		svc:     svc,
		mailSvc: mailSvc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func newTransport(conf *core.Config) emailsvc.Transport {
	switch conf.Mail.Backend {
	case "smtp":
		return emailsvc.NewSMTPTransport(conf)
	case "sendgrid":
		return emailsvc.NewSendgridTransport(conf)
	default:
		return emailsvc.NewConsoleTransport(conf)
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
