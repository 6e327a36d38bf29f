package natsbus

import (
	"os"
	"sync"

	natsgo "github.com/nats-io/nats.go"
)

type closeFunc = func()

// Connector returns a connection and the function that releases it.
type Connector func() (nc *natsgo.Conn, close closeFunc, err error)

// ReuseConnection shares one connection between all callers. The connection
// is closed when the last lease is released and reopened on the next call.
func ReuseConnection(connect Connector) Connector {
	var mu sync.Mutex
	var nc *natsgo.Conn
	var closeConn closeFunc
	var leased int

	release := func() {
		mu.Lock()
		defer mu.Unlock()
		leased--
		if leased == 0 && nc != nil {
			closeConn()
			nc = nil
		}
	}

	return func() (*natsgo.Conn, closeFunc, error) {
		mu.Lock()
		defer mu.Unlock()
		if nc == nil {
			conn, c, err := connect()
			if err != nil {
				return nil, nil, err
			}
			nc, closeConn = conn, c
		}
		leased++
		var once sync.Once
		return nc, func() { once.Do(release) }, nil
	}
}

// ConnectURL connects to the given server.
func ConnectURL(url string, opts ...natsgo.Option) Connector {
	return func() (*natsgo.Conn, closeFunc, error) {
		nc, err := natsgo.Connect(url, append([]natsgo.Option{
			natsgo.Name("archivist"),
			natsgo.MaxReconnects(-1),
		}, opts...)...)
		if err != nil {
			return nil, nil, err
		}
		return nc, func() { nc.Close() }, nil
	}
}

// ConnectDefault connects to $NATS_URL, or the NATS default URL.
func ConnectDefault() Connector {
	if url := os.Getenv("NATS_URL"); url != "" {
		return ConnectURL(url)
	}
	return ConnectURL(natsgo.DefaultURL)
}
