package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xtxerr/archivist/internal/archive"
	"github.com/xtxerr/archivist/internal/events"
)

func newCatCommand(opts *options) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "cat <archive>",
		Short: "Print archived events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := opts.loadEntries(args[0])
			if err != nil {
				return err
			}
			return printEntries(cmd.OutOrStdout(), entries, raw)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print archive lines instead of key=value pairs")
	return cmd
}

func printEntries(w io.Writer, entries []archive.Entry, raw bool) error {
	for _, e := range entries {
		if raw {
			line, err := archive.FormatLine(e.Time, e.Event)
			if err != nil {
				return err
			}
			if _, err := w.Write(line); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(w, "%s  %s\n", archive.FormatTimestamp(e.Time), events.Body(e.Event))
	}
	return nil
}
