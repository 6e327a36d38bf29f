// Package bus defines the message bus the archiver listens on.
//
// A bus carries opaque payloads on named channels. The archiver only joins
// channels and reads payloads; feed bots send them. Memory is an in-process
// bus for tests and single-binary setups; natsbus provides NATS.
package bus

import (
	"context"
	"strings"
	"unicode"

	"github.com/xtxerr/archivist/internal/errors"
)

// Bus is a publish/subscribe transport keyed by channel name.
type Bus interface {
	// Join subscribes to a channel. The subscription ends when it is
	// closed, when ctx is cancelled or when the bus is closed.
	Join(ctx context.Context, channel string) (Subscription, error)

	// Send publishes a payload to every current subscriber of a channel.
	Send(ctx context.Context, channel string, payload []byte) error

	// Close ends every subscription and releases the bus.
	Close() error
}

// Subscription delivers the payloads of one joined channel.
type Subscription interface {
	// Messages is closed when the subscription ends.
	Messages() <-chan []byte
	Close() error
}

// ValidateChannel rejects names that cannot be used as channel names:
// empty names and names with whitespace, control characters or wildcards.
func ValidateChannel(name string) error {
	if name == "" {
		return errors.Wrap(errors.ErrInvalidName, "empty channel name")
	}
	if strings.ContainsAny(name, "*>") {
		return errors.Wrapf(errors.ErrInvalidName, "channel %q contains a wildcard", name)
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return errors.Wrapf(errors.ErrInvalidName, "channel %q contains whitespace", name)
		}
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") || strings.Contains(name, "..") {
		return errors.Wrapf(errors.ErrInvalidName, "channel %q has an empty token", name)
	}
	return nil
}
