package transport

import (
	"context"
	"errors"
	"evsim/internal"
	"evsim/types"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	handshakeTimeout = 45 * time.Second
)

var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrSubProtocol      = errors.New("sub-protocol not negotiated")
)

// Client is a websocket connection to the central system. It knows nothing about OCPP framing.
type Client struct {
	logger internal.LogHandler

	mutex     sync.Mutex
	conn      *websocket.Conn
	done      chan struct{}
	onMessage func(data []byte)
	onClose   func(err error)

	writeMutex sync.Mutex
}

func NewClient(logger internal.LogHandler) *Client {
	return &Client{logger: logger}
}

func (c *Client) SetMessageHandler(handler func(data []byte)) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.onMessage = handler
}

func (c *Client) SetCloseHandler(handler func(err error)) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.onClose = handler
}

func (c *Client) IsConnected() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.conn != nil
}

// Connect dials url with the ocpp1.6 sub-protocol and returns once the handshake is complete.
// Pings are sent every pingInterval; zero disables them.
func (c *Client) Connect(ctx context.Context, url string, pingInterval time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.conn != nil {
		return ErrAlreadyConnected
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
		Subprotocols:     []string{types.SubProtocol16},
	}
	conn, response, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if response != nil {
			return fmt.Errorf("dial %s: %w (status %d)", url, err, response.StatusCode)
		}
		return fmt.Errorf("dial %s: %w", url, err)
	}
	if conn.Subprotocol() != types.SubProtocol16 {
		_ = conn.Close()
		return fmt.Errorf("%w: server selected %q", ErrSubProtocol, conn.Subprotocol())
	}

	conn.SetPongHandler(func(string) error {
		c.logger.RawDataEvent("IN", "pong")
		return nil
	})

	stop := make(chan struct{})
	done := make(chan struct{})
	c.conn = conn
	c.done = done

	if pingInterval > 0 {
		go c.pingLoop(conn, pingInterval, stop)
	}
	go c.readLoop(conn, stop, done)

	c.logger.Debug(fmt.Sprintf("connected to %s", url))
	return nil
}

// Send writes one text frame.
func (c *Client) Send(data []byte) error {
	c.mutex.Lock()
	conn := c.conn
	c.mutex.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	c.logger.RawDataEvent("OUT", string(data))
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Disconnect sends a close frame and waits until the peer acknowledges it and the reader has exited.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mutex.Lock()
	conn, done := c.conn, c.done
	c.mutex.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait)); err != nil {
		_ = conn.Close()
		<-done
		return fmt.Errorf("write close frame: %w", err)
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		_ = conn.Close()
		<-done
		return fmt.Errorf("waiting for close acknowledgment: %w", ctx.Err())
	}
}

func (c *Client) readLoop(conn *websocket.Conn, stop chan struct{}, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			close(stop)
			c.release(conn)
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("connection closed by peer")
			} else {
				c.logger.Warn(fmt.Sprintf("connection lost: %s", err))
			}
			c.mutex.Lock()
			onClose := c.onClose
			c.mutex.Unlock()
			if onClose != nil {
				onClose(err)
			}
			return
		}
		c.logger.RawDataEvent("IN", string(data))
		c.mutex.Lock()
		onMessage := c.onMessage
		c.mutex.Unlock()
		if onMessage != nil {
			onMessage(data)
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Warn(fmt.Sprintf("ping failed: %s", err))
			}
		}
	}
}

// release drops the connection handles if conn is still the current connection
func (c *Client) release(conn *websocket.Conn) {
	c.mutex.Lock()
	if c.conn == conn {
		c.conn = nil
		c.done = nil
	}
	c.mutex.Unlock()
	_ = conn.Close()
}
