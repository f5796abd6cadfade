package mqtt

import (
	"encoding/json"
	"evsim/internal"
	"evsim/internal/config"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	publishTimeout = 5 * time.Second
	quiesce        = 250
)

// Notifier publishes each message as JSON on <topic>/<message type>.
type Notifier struct {
	client paho.Client
	topic  string
	logger internal.LogHandler
}

func NewNotifier(conf *config.Config, logger internal.LogHandler) *Notifier {
	n := &Notifier{
		topic:  conf.Mqtt.Topic,
		logger: logger,
	}
	opts := paho.NewClientOptions()
	opts.AddBroker(conf.Mqtt.Broker)
	opts.SetClientID(conf.Mqtt.ClientId)
	opts.SetUsername(conf.Mqtt.Username)
	opts.SetPassword(conf.Mqtt.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn(fmt.Sprintf("mqtt: connection lost: %s", err))
	})
	opts.SetOnConnectHandler(func(_ paho.Client) {
		logger.Debug(fmt.Sprintf("mqtt: connected to %s", conf.Mqtt.Broker))
	})
	n.client = paho.NewClient(opts)
	return n
}

func (n *Notifier) Connect() error {
	token := n.client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		// connect retries in the background
		n.logger.Warn("mqtt: broker not reachable yet, retrying")
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: connect: %w", err)
	}
	return nil
}

func (n *Notifier) Send(message internal.Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("mqtt: encoding %s: %w", message.MessageType(), err)
	}
	topic := n.topic + "/" + message.MessageType()
	token := n.client.Publish(topic, 0, false, data)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt: publish %s: timed out", topic)
	}
	if err = token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", topic, err)
	}
	return nil
}

func (n *Notifier) Close() {
	n.client.Disconnect(quiesce)
}
