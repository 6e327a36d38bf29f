// archivectl inspects, exports and replays channel archives offline.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xtxerr/archivist/internal/archive"
	pebblestore "github.com/xtxerr/archivist/internal/storage/pebble"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// options are the flags shared by every command.
type options struct {
	pebbleDir string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "archivectl",
		Short:         "Channel archive tool",
		Long:          "archivectl reads the archives written by archivistd: print, summarize, export to Parquet and replay them onto a bus.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&opts.pebbleDir, "pebble", os.Getenv("ARCHIVIST_PEBBLE_DIR"),
		"read archive paths from this Pebble store instead of files")

	rootCmd.AddCommand(
		newCatCommand(opts),
		newStatsCommand(opts),
		newExportCommand(opts),
		newReplayCommand(opts),
		newShellCommand(),
	)
	return rootCmd
}

// loadEntries reads every entry of an archive file, or of an archive path in
// the Pebble store when one is configured.
func (o *options) loadEntries(source string) ([]archive.Entry, error) {
	if o.pebbleDir == "" {
		return archive.ReadFile(source)
	}
	store, err := pebblestore.Open(pebblestore.Options{DataDir: o.pebbleDir})
	if err != nil {
		return nil, fmt.Errorf("open pebble store: %w", err)
	}
	defer store.Close()
	return store.Entries(source)
}
