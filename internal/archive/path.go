package archive

import (
	"path"
	"strings"
	"time"

	"github.com/xtxerr/archivist/internal/events"
)

// PathFunc selects the archive for an event. now is the processing time and
// channel the key of the channel the event arrived on.
type PathFunc func(now time.Time, channel string, e *events.Event) string

// ChannelPath archives every event of a channel under the channel name.
func ChannelPath(_ time.Time, channel string, _ *events.Event) string {
	return channel
}

// DailyPath starts a new archive per channel and UTC day:
// "<channel>/<YYYY-MM-DD>".
func DailyPath(now time.Time, channel string, _ *events.Event) string {
	return path.Join(channel, now.UTC().Format(time.DateOnly))
}

// AttributePath partitions a channel by the first sorted value of key:
// "<channel>/<value>". Events without the key go where fallback puts them.
// Values are sanitized so that they always form a single path element.
func AttributePath(key string, fallback PathFunc) PathFunc {
	if fallback == nil {
		fallback = ChannelPath
	}
	return func(now time.Time, channel string, e *events.Event) string {
		values := e.Values(key)
		if len(values) == 0 {
			return fallback(now, channel, e)
		}
		elem := sanitize(values[0])
		if elem == "" {
			return fallback(now, channel, e)
		}
		return path.Join(channel, elem)
	}
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.' || r == '@':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), ".")
}

// PathFuncFor returns the path strategy named by a partition setting.
func PathFuncFor(partition, key string) (PathFunc, bool) {
	switch partition {
	case "", "channel":
		return ChannelPath, true
	case "daily":
		return DailyPath, true
	case "attribute":
		if key == "" {
			return nil, false
		}
		return AttributePath(key, ChannelPath), true
	default:
		return nil, false
	}
}
