package nats

import (
	"encoding/json"
	"evsim/internal"
	"fmt"
	"time"

	natsio "github.com/nats-io/nats.go"
)

const clientName = "evsim"

type publisher interface {
	Publish(subject string, data []byte) error
}

// Notifier publishes each message as JSON on <subject>.<message type>.
type Notifier struct {
	conn    *natsio.Conn
	pub     publisher
	subject string
}

func Connect(url, subject string, logger internal.LogHandler) (*Notifier, error) {
	conn, err := natsio.Connect(url,
		natsio.Name(clientName),
		natsio.MaxReconnects(-1),
		natsio.ReconnectWait(2*time.Second),
		natsio.DisconnectErrHandler(func(_ *natsio.Conn, err error) {
			if err != nil {
				logger.Warn(fmt.Sprintf("nats: disconnected: %s", err))
			}
		}),
		natsio.ReconnectHandler(func(nc *natsio.Conn) {
			logger.Debug(fmt.Sprintf("nats: reconnected to %s", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats: connect %s: %w", url, err)
	}
	n := newNotifier(conn, subject)
	n.conn = conn
	return n, nil
}

func newNotifier(pub publisher, subject string) *Notifier {
	return &Notifier{pub: pub, subject: subject}
}

func (n *Notifier) Send(message internal.Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("nats: encoding %s: %w", message.MessageType(), err)
	}
	subject := n.subject + "." + message.MessageType()
	if err = n.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("nats: publish %s: %w", subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (n *Notifier) Close() {
	if n.conn != nil {
		_ = n.conn.Drain()
	}
}
