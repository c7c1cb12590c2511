package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"ThreadBot/core"
	"ThreadBot/core/database"
	"ThreadBot/core/dispatch"

	"github.com/urfave/cli/v2"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp() *cli.App {
	app := &cli.App{
		Name:  "threadbot",
		Usage: "Chat bot command dispatcher",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "config-dev.json", Usage: "Configuration path"},
		},
		Action: func(c *cli.Context) error {
			return runBot(c.String("config"))
		},
		Commands: []*cli.Command{
			runCmd(),
			commandsCmd(),
			migrateCmd(),
			historyCmd(),
		},
	}
	return app
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Connect to the chat service and dispatch commands (default)",
		Action: func(c *cli.Context) error {
			return runBot(c.String("config"))
		},
	}
}

// commandsCmd prints the registered commands with their effective cooldowns.
func commandsCmd() *cli.Command {
	return &cli.Command{
		Name:  "commands",
		Usage: "List registered commands",
		Action: func(c *cli.Context) error {
			if err := core.Settings.Load(c.String("config")); err != nil {
				return err
			}
			config := dispatch.ConfigFromSettings(&core.Settings)
			d := dispatch.New(config, dispatch.Commands, dispatch.State{})
			return printCommands(os.Stdout, d)
		},
	}
}

func printCommands(out io.Writer, d *dispatch.Dispatcher) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tALIASES\tCATEGORY\tPERMISSION\tCOOLDOWN")
	for _, cmd := range d.Registry().List() {
		fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\t%s\n",
			d.PrefixFor(context.Background(), ""), cmd.Name, strings.Join(cmd.Aliases, ","), cmd.Category, cmd.Permission, d.Cooldowns().Duration(cmd))
	}
	return w.Flush()
}

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create or update the database schema and exit",
		Action: func(c *cli.Context) error {
			if err := core.Settings.Load(c.String("config")); err != nil {
				return err
			}
			if err := database.InitializeDatabase(core.Settings.Database()); err != nil {
				return err
			}
			database.Close()
			core.LogInfoF("Database %s is up to date", core.Settings.Database())
			return nil
		},
	}
}

func historyCmd() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent dispatches from the database",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "thread", Aliases: []string{"t"}, Usage: "Only show this thread"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Number of records"},
		},
		Action: func(c *cli.Context) error {
			if err := core.Settings.Load(c.String("config")); err != nil {
				return err
			}
			if err := database.InitializeDatabase(core.Settings.Database()); err != nil {
				return err
			}
			defer database.Close()
			return printHistory(os.Stdout, database.FetchRecentDispatches(c.String("thread"), c.Int("limit")))
		},
	}
}

func printHistory(out io.Writer, records []database.DispatchRecord) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tCOMMAND\tUSER\tTHREAD\tOUTCOME\tDURATION\tERROR")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%dms\t%s\n",
			time.Unix(rec.CreatedAt, 0).Format(time.RFC3339), rec.Invoked, rec.UserId, rec.ThreadId,
			rec.Outcome, rec.DurationMs, core.Truncate(rec.Error.String, 60))
	}
	return w.Flush()
}
