// Command dispatchctl is the operator CLI for the dispatch bot database:
// order exports, driver roster maintenance, milestone history and migrations.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/m3rciful/dispatchbot/core/buildinfo"
)

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("dispatchctl"),
		kong.Description("Operate the dispatch bot database."),
		kong.UsageOnError(),
		kong.Vars{"version": buildinfo.String()},
	)
	err := ctx.Run()
	if cerr := cli.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
