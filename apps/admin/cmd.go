package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/trezcool/campus/core/fees"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db     *sql.DB
	feeSvc *fees.Service
	agent  *fees.Agent
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run database migrations (up, down, status, ...)")
	fmt.Println("  recalc                 - reconcile all student fee accounts now")
	fmt.Println("  runagent               - run a full reconciliation pass with audit entries")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "recalc":
		return cli.recalc()
	case "runagent":
		return cli.runAgent()
	default:
		cli.printUsage()
		return errHelp
	}
}
