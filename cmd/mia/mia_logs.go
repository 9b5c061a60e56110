package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"mia-go/pkg/log"
	"mia-go/pkg/mia"
)

// --- Time Parsing Helper ---

// timeFormats includes common layouts to try when parsing absolute time strings.
// Order matters; more specific formats should generally come earlier.
var timeFormats = []string{
	time.RFC3339Nano,      // "2006-01-02T15:04:05.999999999Z07:00"
	time.RFC3339,          // "2006-01-02T15:04:05Z07:00"
	"2006-01-02T15:04:05", // ISO 8601 without timezone
	"2006-01-02 15:04:05", // Common space-separated format
	"2006-01-02",          // Date only
}

// parseTimeSpec attempts to parse a string as either a relative duration
// from now (e.g., "1h", "30m") or an absolute timestamp using various layouts.
func parseTimeSpec(spec string) (time.Time, error) {
	duration, err := time.ParseDuration(spec)
	if err == nil {
		return time.Now().Add(-duration), nil
	}

	for _, layout := range timeFormats {
		ts, err := time.Parse(layout, spec)
		if err == nil {
			return ts, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid time specification: '%s'. Use relative duration (e.g., '1h', '30m') or absolute format (e.g., '2023-10-27T15:04:05Z')", spec)
}

// --- Custom Help Template ---

const logsCommandHelpTemplate = `NAME:
   {{.HelpName}} - {{.Usage}}

USAGE:
   {{.HelpName}} {{if .UsageText}}{{.UsageText}}{{else}}[command options] argument...{{end}}
{{if .Description}}
DESCRIPTION:
   {{.Description | Indent 4}}
{{end}}
MODES (choose one; defaults to --last if no mode specified):
     --last                 Retrieve the most recent N log entries.
                            (This is the default mode if no other mode flag is provided).
     --since                Retrieve logs since a specific start time up to now.
     --between              Retrieve logs between a specific start and end time.

OPTIONS:
{{range .VisibleFlags}}   {{.}}
{{end}}
TIME SPECIFICATION (<time_spec>):
     You can specify time in two ways:
     1. Relative Duration: A duration string relative to the current time.
        Examples: "5m" (5 minutes ago), "1h30m" (1 hour 30 minutes ago).
        Units: s (seconds), m (minutes), h (hours).
     2. Absolute Timestamp: An RFC3339 or similar ISO 8601 format timestamp.
        Examples: "2023-10-27T15:04:05Z", "2023-10-27 10:00:00", "2023-10-27".

EXAMPLES:
     # Get the last 50 log entries (defaulting to --last mode)
     mia logs -n 50

     # Get logs since 1 hour ago, max 500 entries, in pretty format
     mia logs --since -s 1h -l 500 --pretty

     # Get logs between 2h ago and 1h ago
     mia logs --between -s 2h -e 1h

     # Export the last 1000 entries as a zstd-compressed JSON-lines file
     mia logs -n 1000 --export mia-logs.jsonl.zst

`

// --- CLI Definition ---

var (
	logsCommand = &cli.Command{
		Name:               "logs",
		Usage:              "Retrieve JSON log entries from the adapter's log database",
		UsageText:          "mia logs [command options] [--last|--since|--between] [mode options]",
		Description:        `Retrieves logs stored in the adapter's SQLite database under the application directory.`,
		CustomHelpTemplate: logsCommandHelpTemplate,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dbfile",
				Aliases: []string{"f"},
				Usage:   "Name of the SQLite log database `FILE` under the app directory",
				Value:   mia.AppName + ".db",
			},
			&cli.BoolFlag{
				Name:    "pretty",
				Aliases: []string{"p"},
				Usage:   "Output logs in a human-readable, pretty-printed format instead of raw JSON",
			},
			&cli.StringFlag{
				Name:    "export",
				Aliases: []string{"x"},
				Usage:   "Write matching entries as zstd-compressed JSON lines to `PATH` instead of stdout",
			},

			// --- Mode Flags ---
			&cli.BoolFlag{
				Name:  "last",
				Usage: "Mode: Retrieve the most recent N log entries (default)",
			},
			&cli.BoolFlag{
				Name:  "since",
				Usage: "Mode: Retrieve logs since a specific start time",
			},
			&cli.BoolFlag{
				Name:  "between",
				Usage: "Mode: Retrieve logs between a specific start and end time",
			},

			// --- Options for --last ---
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Number of entries for --last mode `NUMBER`",
				Value:   100,
			},

			// --- Options for --since / --between ---
			&cli.StringFlag{
				Name:    "start",
				Aliases: []string{"s"},
				Usage:   "Start time for --since/--between `TIME_SPEC` (e.g., '1h', '2023-10-27T10:00:00Z')",
			},
			&cli.StringFlag{
				Name:    "end",
				Aliases: []string{"e"},
				Usage:   "End time for --between `TIME_SPEC` (e.g., '30m', '2023-10-27T11:00:00')",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Max entries for --since/--between `NUMBER`",
				Value:   1000,
			},
		},
		Action: logsCmd,
	}
)

func logsCmd(c *cli.Context) error {
	dbFile := c.String("dbfile")
	isPretty := c.Bool("pretty")

	isLast := c.Bool("last")
	isSince := c.Bool("since")
	isBetween := c.Bool("between")

	modeCount := 0
	if isLast {
		modeCount++
	}
	if isSince {
		modeCount++
	}
	if isBetween {
		modeCount++
	}

	if modeCount == 0 {
		isLast = true
	} else if modeCount > 1 {
		return cli.Exit("Error: Only one mode flag (--last, --since, --between) can be specified at a time.", 1)
	}

	err := log.Init(dbFile)
	if err != nil {
		if os.IsNotExist(err) {
			return cli.Exit(fmt.Sprintf("Error: Database file not found at '%s'", dbFile), 1)
		}
		return cli.Exit(fmt.Sprintf("Error initializing logger (required for DB access): %v", err), 1)
	}
	defer log.Close()

	var results []log.LogEntry
	var retrievalErr error

	if isLast {
		if c.IsSet("start") || c.IsSet("end") {
			fmt.Fprintln(os.Stderr, "Warning: --start (-s) and --end (-e) flags are ignored in --last mode.")
		}
		count := c.Int("count")
		if count <= 0 {
			return cli.Exit("Error: --count (-n) must be a positive number.", 1)
		}
		results, retrievalErr = log.GetLastNLogs(count)

	} else if isSince {
		if !c.IsSet("start") {
			return cli.Exit("Error: --start (-s) flag is required for --since mode.", 1)
		}
		if c.IsSet("end") {
			fmt.Fprintln(os.Stderr, "Warning: --end (-e) flag is ignored in --since mode.")
		}
		startTime, err := parseTimeSpec(c.String("start"))
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error parsing start time: %v", err), 1)
		}
		results, retrievalErr = log.GetLogsSince(startTime, c.Int("limit"))

	} else if isBetween {
		if !c.IsSet("start") {
			return cli.Exit("Error: --start (-s) flag is required for --between mode.", 1)
		}
		if !c.IsSet("end") {
			return cli.Exit("Error: --end (-e) flag is required for --between mode.", 1)
		}
		startTime, err := parseTimeSpec(c.String("start"))
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error parsing start time: %v", err), 1)
		}
		endTime, err := parseTimeSpec(c.String("end"))
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error parsing end time: %v", err), 1)
		}
		if startTime.After(endTime) {
			fmt.Fprintf(os.Stderr, "Warning: Start time (%s) is after end time (%s).\n", startTime.Format(time.RFC3339), endTime.Format(time.RFC3339))
		}
		results, retrievalErr = log.GetLogsBetween(startTime, endTime, c.Int("limit"))
	}

	if retrievalErr != nil {
		if errors.Is(retrievalErr, log.ErrNotInitialized) {
			return cli.Exit("Internal Error: Logger DB handle became unavailable.", 2)
		}
		return cli.Exit(fmt.Sprintf("Error retrieving logs: %v", retrievalErr), 1)
	}

	if len(results) == 0 {
		fmt.Fprintln(os.Stderr, "No log entries found matching the criteria.")
		return nil
	}

	if exportPath := c.String("export"); exportPath != "" {
		if err := exportLogs(exportPath, results); err != nil {
			return cli.Exit(fmt.Sprintf("Error exporting logs: %v", err), 1)
		}
		fmt.Fprintf(os.Stderr, "Exported %d entries to %s\n", len(results), exportPath)
		return nil
	}

	if isPretty {
		pretty := zerolog.NewConsoleWriter()
		pretty.TimeFormat = time.RFC3339
		for _, entry := range results {
			if _, err := pretty.Write([]byte(entry.LogData + "\n")); err != nil {
				fmt.Println(entry.LogData)
			}
		}
	} else {
		for _, entry := range results {
			fmt.Println(entry.LogData)
		}
	}

	return nil
}

// exportLogs writes the entries as zstd-compressed JSON lines.
func exportLogs(path string, entries []log.LogEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("zstd: failed to initialize encoder: %w", err)
	}
	for _, entry := range entries {
		if _, err := enc.Write([]byte(entry.LogData + "\n")); err != nil {
			enc.Close()
			return err
		}
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}
