package main

import (
	"log"
	"os"

	"github.com/farsihub/backend/core"
	"github.com/farsihub/backend/storage/database"
)

// build is the git version of this program, set at build time via -ldflags.
var build = "develop"

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig(build)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()

	// start CLI
	cli := commandLine{
		db:      db.DB,
		idnRepo: database.NewIdentityRepository(db),
		usrRepo: database.NewUserRepository(db, nil /* no watches in the CLI */),
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
