package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/m3rciful/dispatchbot/bot/record"
)

// ExportCmd writes orders as CSV to a file or stdout.
type ExportCmd struct {
	Window
	Out string `help:"Output file; stdout when empty" short:"o" type:"path"`
}

// Run executes the export command.
func (e *ExportCmd) Run(cli *CLI) error {
	since, until, err := e.parse()
	if err != nil {
		return err
	}
	db, err := cli.open()
	if err != nil {
		return err
	}
	recs, err := record.NewStore(db, nil).All(context.Background(), record.Filter{Since: since, Until: until})
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if e.Out != "" {
		f, err := os.Create(e.Out)
		if err != nil {
			return fmt.Errorf("create %s: %w", e.Out, err)
		}
		defer f.Close()
		w = f
	}
	if err := record.WriteCSV(w, recs); err != nil {
		return err
	}
	if e.Out != "" {
		fmt.Fprintf(os.Stderr, "exported %d orders to %s\n", len(recs), e.Out)
	}
	return nil
}

// ExportClearCmd archives every order to a file and deletes the rows once the
// file is written.
type ExportClearCmd struct {
	Out   string `help:"Archive file" short:"o" type:"path" required:""`
	Force bool   `help:"Skip confirmation prompt" short:"f"`
}

// Run executes the export-clear command.
func (e *ExportClearCmd) Run(cli *CLI) error {
	if !e.Force && !confirm(os.Stdin, os.Stdout, "Delete all orders after archiving them?") {
		fmt.Println("Cancelled")
		return nil
	}
	db, err := cli.open()
	if err != nil {
		return err
	}
	n, err := record.NewStore(db, nil).ArchiveAndClear(context.Background(), func(csv []byte) error {
		return writeFileSync(e.Out, csv)
	})
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Println("no orders to archive")
		return nil
	}
	fmt.Printf("archived and cleared %d orders to %s\n", n, e.Out)
	return nil
}

// writeFileSync writes data and fsyncs before the caller deletes the source rows.
func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	return f.Close()
}

func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s (y/N): ", question)
	var response string
	_, _ = fmt.Fscanln(in, &response)
	return response == "y" || response == "Y"
}
