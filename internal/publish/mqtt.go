package publish

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// MQTTOptions configures the MQTT transport.
type MQTTOptions struct {
	Broker    string // e.g. tls://io.adafruit.com:8883
	ClientID  string
	Username  string // Adafruit IO username
	Key       string // AIO key, used as the MQTT password
	Feed      string
	ErrorFeed string
}

// MQTTPublisher publishes to Adafruit IO over MQTT.
type MQTTPublisher struct {
	client paho.Client
	opts   MQTTOptions
}

// NewMQTTPublisher connects to the broker. Connection failures are returned
// rather than retried forever: the caller decides whether this cycle can
// proceed without a transport.
func NewMQTTPublisher(o MQTTOptions) (*MQTTPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetUsername(o.Username).
		SetPassword(o.Key).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("%w: connection timeout", ErrNetwork)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: connect to broker: %v", ErrNetwork, err)
	}

	return &MQTTPublisher{client: client, opts: o}, nil
}

// Publish sends the fill value to the data feed.
func (p *MQTTPublisher) Publish(ctx context.Context, r Report) error {
	return p.send(ctx, p.opts.Feed, FormatValue(r))
}

// PublishError sends a fault description to the error feed.
func (p *MQTTPublisher) PublishError(ctx context.Context, msg string) error {
	if p.opts.ErrorFeed == "" {
		return nil
	}
	return p.send(ctx, p.opts.ErrorFeed, clip(msg, 250))
}

func (p *MQTTPublisher) send(ctx context.Context, feed, value string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	// QoS 1 (at-least-once): reports are sparse, each one matters.
	token := p.client.Publish(Topic(p.opts.Username, feed), 1, false, []byte(value))
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("%w: publish timeout", ErrNetwork)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: publish: %v", ErrNetwork, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
