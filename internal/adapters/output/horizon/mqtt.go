package horizon

import (
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// pahoBroker wraps the paho client behind the broker interface. The vendor
// broker speaks MQTT over websocket and authenticates with household id and
// access token.
type pahoBroker struct {
	cli mqtt.Client
}

func newPahoBroker(url, clientID, username, password string) broker {
	opts := mqtt.NewClientOptions().
		AddBroker(url).
		SetClientID(clientID).
		SetUsername(username).
		SetPassword(password).
		SetKeepAlive(30 * time.Second).
		SetConnectTimeout(10 * time.Second).
		SetAutoReconnect(false)
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		log.Warn().Err(err).Msg("broker connection lost")
	}

	return &pahoBroker{cli: mqtt.NewClient(opts)}
}

func (b *pahoBroker) connect() error {
	t := b.cli.Connect()
	if t.Wait() && t.Error() != nil {
		return t.Error()
	}
	return nil
}

func (b *pahoBroker) disconnect() {
	b.cli.Disconnect(250)
}

func (b *pahoBroker) subscribe(topic string, handler func(topic string, payload []byte)) error {
	t := b.cli.Subscribe(topic, 0, func(c mqtt.Client, m mqtt.Message) {
		handler(m.Topic(), m.Payload())
	})
	if t.Wait() && t.Error() != nil {
		return t.Error()
	}
	log.Debug().Str("topic", topic).Msg("broker subscription active")
	return nil
}

func (b *pahoBroker) publish(topic string, payload []byte) error {
	t := b.cli.Publish(topic, 0, false, payload)
	if t.Wait() && t.Error() != nil {
		return t.Error()
	}
	return nil
}
