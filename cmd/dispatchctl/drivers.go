package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/m3rciful/dispatchbot/bot/dispatch"
)

// DriversCmd manages the roster.
type DriversCmd struct {
	List   DriversListCmd   `cmd:"list" help:"List drivers" default:"1"`
	Add    DriversAddCmd    `cmd:"add" help:"Add or update a driver"`
	Remove DriversRemoveCmd `cmd:"remove" help:"Remove a driver"`
}

// DriversListCmd lists registered drivers.
type DriversListCmd struct{}

// Run executes the list command.
func (d *DriversListCmd) Run(cli *CLI) error {
	db, err := cli.open()
	if err != nil {
		return err
	}
	drivers, err := dispatch.NewSQLRoster(db).List(context.Background())
	if err != nil {
		return err
	}
	if len(drivers) == 0 {
		fmt.Println("no drivers registered")
		return nil
	}
	return writeDrivers(os.Stdout, drivers)
}

func writeDrivers(out io.Writer, drivers []dispatch.Driver) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPHONE")
	for _, d := range drivers {
		fmt.Fprintf(w, "%d\t%s\t%s\n", d.ID, d.Name, d.Phone)
	}
	return w.Flush()
}

// DriversAddCmd upserts a driver.
type DriversAddCmd struct {
	ID    int64    `arg:"" help:"Telegram user id"`
	Phone string   `arg:"" help:"Phone number shown to customers"`
	Name  []string `arg:"" help:"Display name"`
}

// Validate rejects a zero id.
func (d *DriversAddCmd) Validate() error {
	if d.ID == 0 {
		return fmt.Errorf("driver id must be non-zero")
	}
	return nil
}

// Run executes the add command.
func (d *DriversAddCmd) Run(cli *CLI) error {
	db, err := cli.open()
	if err != nil {
		return err
	}
	driver := dispatch.Driver{ID: d.ID, Phone: strings.TrimSpace(d.Phone), Name: strings.Join(d.Name, " ")}
	if err := dispatch.NewSQLRoster(db).Upsert(context.Background(), driver); err != nil {
		return err
	}
	fmt.Printf("driver %s (%d) saved\n", driver.Name, driver.ID)
	return nil
}

// DriversRemoveCmd deletes a driver.
type DriversRemoveCmd struct {
	ID int64 `arg:"" help:"Telegram user id"`
}

// Run executes the remove command.
func (d *DriversRemoveCmd) Run(cli *CLI) error {
	db, err := cli.open()
	if err != nil {
		return err
	}
	removed, err := dispatch.NewSQLRoster(db).Remove(context.Background(), d.ID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("no driver with id %d", d.ID)
	}
	fmt.Printf("driver %d removed\n", d.ID)
	return nil
}
