package conn

import (
	"context"

	"github.com/coder/websocket"
)

// Transport is one ordered, bidirectional frame stream.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, frame []byte) error
	Close() error
}

type DialFunc func(ctx context.Context) (Transport, error)

const readLimit = 1 << 20

type wsTransport struct {
	c *websocket.Conn
}

func (w wsTransport) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	return data, err
}

func (w wsTransport) Write(ctx context.Context, frame []byte) error {
	return w.c.Write(ctx, websocket.MessageText, frame)
}

func (w wsTransport) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "bye")
}

// WebSocket dials the authority's websocket endpoint.
func WebSocket(url string) DialFunc {
	return func(ctx context.Context) (Transport, error) {
		c, _, err := websocket.Dial(ctx, url, nil)
		if err != nil {
			return nil, err
		}
		c.SetReadLimit(readLimit)
		return wsTransport{c: c}, nil
	}
}

// WrapWebSocket adapts an already-accepted connection, used on the
// authority side.
func WrapWebSocket(c *websocket.Conn) Transport {
	c.SetReadLimit(readLimit)
	return wsTransport{c: c}
}
