package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"mia-go/pkg/log"
	"mia-go/pkg/mia"
)

var (
	upCommand = &cli.Command{
		Name:        "up",
		Usage:       "starts the adapter",
		UsageText:   "up [command options]",
		Description: `starts the adapter with its five UDP endpoints, the management socket and the HTTP API`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Configuration file `PATH` (yaml)",
			},
		},
		Action: upCmd,
	}
)

func upCmd(c *cli.Context) error {
	log.MustInit(mia.AppName)
	defer log.Close()
	log.SetStd()
	log.Printf("starting mia %s (built %s)...", Version, BuildTime)

	cfg, err := mia.LoadConfig(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to load configuration: %v", err), 1)
	}
	log.Printf("using config file %s", cfg.ConfigFile)

	svc, err := mia.NewService(cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to assemble adapter: %v", err), 1)
	}

	code := svc.Run()
	log.Printf("adapter has been shut down.")
	log.Close()
	os.Exit(code)
	return nil
}
