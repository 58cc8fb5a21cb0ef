// Package realtime pushes monitor events to connected clients. Each
// user has a private channel; the transport is MQTT, with one topic per
// channel under a configurable prefix.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"coldtrace/internal/logger"
)

// ErrPublishTimeout is returned when the broker does not acknowledge in time
var ErrPublishTimeout = errors.New("mqtt publish timeout")

const publishTimeout = 5 * time.Second

// Config holds MQTT connection configuration
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// TopicPrefix namespaces all channel topics; defaults to "coldtrace"
	TopicPrefix string
}

// MQTTPublisher delivers events to per-user MQTT topics
type MQTTPublisher struct {
	client      mqtt.Client
	topicPrefix string
}

// envelope is the wire shape of one realtime event
type envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// NewMQTTPublisher connects to the broker and returns a publisher
func NewMQTTPublisher(cfg Config) (*MQTTPublisher, error) {
	log := logger.WithComponent("realtime")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info().Str("broker", cfg.Broker).Msg("mqtt connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("mqtt connection lost")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker: %w", token.Error())
	}

	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = "coldtrace"
	}

	return &MQTTPublisher{client: client, topicPrefix: prefix}, nil
}

// Publish sends one event to the channel's topic. Delivery is
// best-effort at QoS 0; callers treat failures as fire-and-forget.
func (p *MQTTPublisher) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	data, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	topic := fmt.Sprintf("%s/users/%s/events", p.topicPrefix, channel)
	token := p.client.Publish(topic, 0, false, data)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	case <-time.After(publishTimeout):
		return ErrPublishTimeout
	}
}

// Close disconnects from the broker
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
	log := logger.WithComponent("realtime")
	log.Info().Msg("mqtt disconnected")
}
