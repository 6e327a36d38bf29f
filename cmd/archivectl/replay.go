package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xtxerr/archivist/config"
	"github.com/xtxerr/archivist/internal/archive"
	"github.com/xtxerr/archivist/internal/bus"
	"github.com/xtxerr/archivist/internal/bus/natsbus"
	"github.com/xtxerr/archivist/internal/events"
)

func newReplayCommand(opts *options) *cobra.Command {
	var (
		channel string
		natsURL string
		prefix  string
		batch   int
		body    bool
	)
	cmd := &cobra.Command{
		Use:   "replay <archive>",
		Short: "Publish archived events to a channel",
		Long: "Replay reads the archive in batches and publishes every event as a message stanza. " +
			"Without --nats the stanzas are printed instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bus.ValidateChannel(channel); err != nil {
				return err
			}
			if opts.pebbleDir != "" {
				return fmt.Errorf("replay reads archive files only")
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			publish := printer(cmd.OutOrStdout(), body)
			if natsURL != "" {
				b, err := natsbus.New(natsbus.Config{
					Connect:       natsbus.ConnectURL(natsURL),
					SubjectPrefix: prefix,
				})
				if err != nil {
					return err
				}
				defer b.Close()
				publish = sender(ctx, b, channel, body)
				defer b.Flush(context.WithoutCancel(ctx))
			}

			n, err := replay(ctx, f, batch, publish)
			fmt.Fprintf(cmd.ErrOrStderr(), "replayed %d events\n", n)
			return err
		},
	}
	cmd.Flags().StringVarP(&channel, "channel", "c", "", "destination channel")
	cmd.Flags().StringVar(&natsURL, "nats", "", "NATS server URL")
	cmd.Flags().StringVar(&prefix, "subject-prefix", config.DefaultSubjectPrefix, "NATS subject prefix")
	cmd.Flags().IntVar(&batch, "batch", config.DefaultReplayBatchSize, "events per batch")
	cmd.Flags().BoolVar(&body, "body", false, "include a human-readable body in each stanza")
	cmd.MarkFlagRequired("channel")
	return cmd
}

// publishFunc delivers one replayed event.
type publishFunc func(e *events.Event) error

func printer(w io.Writer, body bool) publishFunc {
	return func(e *events.Event) error {
		msg, err := events.EncodeMessage(e, body)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", msg)
		return err
	}
}

func sender(ctx context.Context, b bus.Bus, channel string, body bool) publishFunc {
	return func(e *events.Event) error {
		msg, err := events.EncodeMessage(e, body)
		if err != nil {
			return err
		}
		return b.Send(ctx, channel, msg)
	}
}

// replay reads archive lines from r, collecting up to batch events in a
// compressed log before publishing them in order. It returns the number of
// events published.
func replay(ctx context.Context, r io.Reader, batch int, publish publishFunc) (int, error) {
	if batch <= 0 {
		batch = config.DefaultReplayBatchSize
	}
	log := events.NewDefaultLog()

	published := 0
	drain := func() error {
		snap, err := log.Purge()
		if err != nil {
			return err
		}
		it := snap.Iter()
		defer it.Close()
		for it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := publish(it.Event()); err != nil {
				return err
			}
			published++
		}
		return it.Err()
	}

	ar := archive.NewReader(r)
	for ar.Next() {
		if err := log.Append(ar.Entry().Event); err != nil {
			return published, err
		}
		if log.Len() >= batch {
			if err := drain(); err != nil {
				return published, err
			}
		}
	}
	if err := ar.Err(); err != nil {
		return published, err
	}
	return published, drain()
}
