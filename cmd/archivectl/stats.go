package main

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xtxerr/archivist/internal/archive"
	"github.com/xtxerr/archivist/internal/events"
)

func newStatsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <archive>",
		Short: "Summarize an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := opts.loadEntries(args[0])
			if err != nil {
				return err
			}
			return summarize(entries).print(cmd.OutOrStdout())
		},
	}
}

// summary describes the contents of an archive.
type summary struct {
	Records int
	First   time.Time
	Last    time.Time

	// Keys counts the records carrying each key.
	Keys map[string]int

	// IPs is the number of distinct addresses in values that parse as one.
	IPs int
}

func summarize(entries []archive.Entry) summary {
	s := summary{Keys: make(map[string]int)}
	ips := make(map[string]struct{})
	for _, e := range entries {
		s.Records++
		if s.First.IsZero() || e.Time.Before(s.First) {
			s.First = e.Time
		}
		if e.Time.After(s.Last) {
			s.Last = e.Time
		}
		for _, k := range e.Event.Keys() {
			s.Keys[k]++
		}
		for _, ip := range events.Parse(e.Event, events.ParseIP).Values() {
			ips[ip.String()] = struct{}{}
		}
	}
	s.IPs = len(ips)
	return s
}

func (s summary) print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "records\t%d\n", s.Records)
	if s.Records > 0 {
		fmt.Fprintf(tw, "first\t%s\n", archive.FormatTimestamp(s.First))
		fmt.Fprintf(tw, "last\t%s\n", archive.FormatTimestamp(s.Last))
	}
	fmt.Fprintf(tw, "addresses\t%d\n", s.IPs)

	keys := make([]string, 0, len(s.Keys))
	for k := range s.Keys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(tw, "key %s\t%d\n", k, s.Keys[k])
	}
	return tw.Flush()
}
