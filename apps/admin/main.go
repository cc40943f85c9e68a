package main

import (
	"log"
	"os"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/fees"
	emailsvc "github.com/trezcool/campus/services/email"
	logsvc "github.com/trezcool/campus/services/logger"
	"github.com/trezcool/campus/storage/database"
	sqlxrepos "github.com/trezcool/campus/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	// set up services
	appLogger := logsvc.NewRollbarLogger(logger, conf)
	appLogger.Enable(!conf.Debug)

	feeSvc := fees.NewService(sqlxrepos.NewFeesRepository(db), conf)
	agent := fees.NewAgent(feeSvc, emailsvc.NewConsoleService(conf), appLogger, conf)

	// start CLI
	cli := commandLine{
		db:     db,
		feeSvc: feeSvc,
		agent:  agent,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
