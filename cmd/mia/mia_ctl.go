package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"mia-go/pkg/management"
	"mia-go/pkg/mia"
	"mia-go/pkg/stats"
)

var (
	ctlCommand = &cli.Command{
		Name:        "ctl",
		Usage:       "controls a running adapter via its management socket",
		UsageText:   "ctl [command options] <command> [args...]",
		Description: `sends a command to the management socket and prints the response. Try "ctl help".`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"P"},
				Usage:   "Management socket `PASSWORD` (if the adapter was started with one)",
			},
			&cli.BoolFlag{
				Name:    "table",
				Aliases: []string{"t"},
				Usage:   "Render stats responses as a table instead of raw JSON",
			},
		},
		Action: ctlCmd,
	}
)

func ctlCmd(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("Error: ctl needs a command to send. Try \"ctl help\".", 1)
	}
	command := strings.Join(c.Args().Slice(), " ")

	mgmt := management.NewClient(mia.AppName, c.String("password"))
	res, err := mgmt.SendCommand(command)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	if c.Bool("table") && c.Args().First() == "stats" {
		if err := renderStatsTable(res); err == nil {
			return nil
		}
		// Fall through to raw output if the response was not a snapshot.
	}
	fmt.Println(res)
	return nil
}

// renderStatsTable turns a stats snapshot response into a two-column
// pterm table.
func renderStatsTable(res string) error {
	var snap stats.Snapshot
	if err := json.Unmarshal([]byte(res), &snap); err != nil {
		return err
	}
	data := pterm.TableData{
		{"Counter", "Value"},
		{"mpls packets converted", fmt.Sprint(snap.TotalMplsPacketsConverted)},
		{"invalid mpls packets discarded", fmt.Sprint(snap.TotalInvalidMplsPacketsDiscarded)},
		{"sokf frames missed", fmt.Sprint(snap.TotalSokfMissed)},
		{"downlink batches received", fmt.Sprint(snap.DownlinkBatchesReceived)},
		{"downlink passthroughs", fmt.Sprint(snap.DownlinkPassthroughs)},
		{"uplink batches sent", fmt.Sprint(snap.UplinkBatchesSent)},
		{"uplink passthroughs", fmt.Sprint(snap.UplinkPassthroughs)},
		{"packets to tpn", fmt.Sprint(snap.PacketsToTPN)},
		{"packets to md", fmt.Sprint(snap.PacketsToMD)},
		{"dropped by policy", fmt.Sprint(snap.DroppedByPolicy)},
		{"dropped malformed", fmt.Sprint(snap.DroppedMalformed)},
		{"dropped no destination", fmt.Sprint(snap.DroppedNoDestination)},
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
