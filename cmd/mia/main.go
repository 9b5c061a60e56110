package main

import (
	stdlog "log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "mia",
		Usage:   "mission interface adapter between the simulator wire gateway and the ground peers",
		Version: Version,
		Commands: []*cli.Command{
			upCommand,
			ctlCommand,
			logsCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		stdlog.Fatal(err)
	}
}
