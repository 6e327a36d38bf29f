package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xtxerr/archivist/internal/archive"
	"github.com/xtxerr/archivist/internal/storage/parquet"
)

func newExportCommand(opts *options) *cobra.Command {
	var (
		out         string
		compression string
	)
	cmd := &cobra.Command{
		Use:   "export <archive>",
		Short: "Export an archive to Parquet",
		Long:  "Export writes one row per key/value pair. Rows of the same event share its record index and timestamp.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := parquet.ParseCompressionType(compression)
			if err != nil {
				return err
			}
			entries, err := opts.loadEntries(args[0])
			if err != nil {
				return err
			}
			if out == "" {
				out = defaultExportPath(args[0])
			}
			rows, err := exportEntries(out, args[0], entries, ct)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records (%d rows) to %s\n", len(entries), rows, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default <archive>.parquet)")
	cmd.Flags().StringVar(&compression, "compression", "zstd", "compression: snappy|zstd|lz4|gzip|none")
	return cmd
}

func defaultExportPath(source string) string {
	name := strings.ReplaceAll(filepath.ToSlash(source), "/", "_")
	return strings.TrimLeft(name, "._") + ".parquet"
}

func exportEntries(path, source string, entries []archive.Entry, ct parquet.CompressionType) (int64, error) {
	w, err := parquet.NewEventWriter(path, parquet.Options{Compression: ct, Source: source})
	if err != nil {
		return 0, err
	}
	if err := w.Write(entries); err != nil {
		w.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return w.RowCount(), nil
}
