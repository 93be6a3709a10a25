package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/m3rciful/dispatchbot/bot/milestone"
)

// HistoryCmd prints the milestone log of one order.
type HistoryCmd struct {
	Ref string `arg:"" help:"Order reference"`
}

// Run executes the history command.
func (h *HistoryCmd) Run(cli *CLI) error {
	db, err := cli.open()
	if err != nil {
		return err
	}
	events, err := milestone.NewStore(db).List(context.Background(), h.Ref)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Printf("no history for %s\n", h.Ref)
		return nil
	}
	return writeHistory(os.Stdout, events)
}

func writeHistory(out io.Writer, events []milestone.Event) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AT\tFROM\tTO\tACTOR\tNOTE")
	for _, e := range events {
		from := e.From
		if from == "" {
			from = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", e.At.UTC().Format(time.DateTime), from, e.To, e.ActorID, e.Note)
	}
	return w.Flush()
}
