// Package mqtt wraps the MQTT client for station cabinet telemetry.
package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Config is the MQTT connection configuration.
type Config struct {
	Broker        string `mapstructure:"broker"`
	Port          int    `mapstructure:"port"`
	ClientID      string `mapstructure:"client_id"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	CleanSession  bool   `mapstructure:"clean_session"`
	QoS           byte   `mapstructure:"qos"`
	KeepAlive     int    `mapstructure:"keep_alive"`
	AutoReconnect bool   `mapstructure:"auto_reconnect"`
}

// Client is the MQTT client wrapper.
type Client struct {
	config   *Config
	client   mqtt.Client
	handlers map[string]MessageHandler
	mu       sync.RWMutex
}

// MessageHandler handles one inbound message.
type MessageHandler func(topic string, payload []byte)

// NewClient creates an MQTT client.
func NewClient(config *Config) *Client {
	return &Client{
		config:   config,
		handlers: make(map[string]MessageHandler),
	}
}

// Connect connects to the broker.
func (c *Client) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", c.config.Broker, c.config.Port))
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(c.config.CleanSession)
	opts.SetKeepAlive(time.Duration(c.config.KeepAlive) * time.Second)
	opts.SetAutoReconnect(c.config.AutoReconnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetOnConnectHandler(c.onConnect)

	c.client = mqtt.NewClient(opts)

	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect error: %w", token.Error())
	}

	log.Printf("[MQTT] Connected to broker: %s:%d", c.config.Broker, c.config.Port)
	return nil
}

// Disconnect closes the connection.
func (c *Client) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
		log.Println("[MQTT] Disconnected from broker")
	}
}

// IsConnected reports the connection state.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// Subscribe subscribes to a topic.
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	c.mu.Lock()
	c.handlers[topic] = handler
	c.mu.Unlock()

	token := c.client.Subscribe(topic, c.config.QoS, func(client mqtt.Client, msg mqtt.Message) {
		c.dispatch(msg)
	})

	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt subscribe error: %w", token.Error())
	}

	log.Printf("[MQTT] Subscribed to topic: %s", topic)
	return nil
}

// SubscribeMultiple subscribes to several topics at once.
func (c *Client) SubscribeMultiple(topics map[string]MessageHandler) error {
	filters := make(map[string]byte)
	for topic := range topics {
		filters[topic] = c.config.QoS
	}

	c.mu.Lock()
	for topic, handler := range topics {
		c.handlers[topic] = handler
	}
	c.mu.Unlock()

	token := c.client.SubscribeMultiple(filters, func(client mqtt.Client, msg mqtt.Message) {
		c.dispatch(msg)
	})

	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt subscribe multiple error: %w", token.Error())
	}

	log.Printf("[MQTT] Subscribed to %d topics", len(topics))
	return nil
}

// dispatch routes a message to the matching handler. Wildcard subscriptions
// are matched segment by segment.
func (c *Client) dispatch(msg mqtt.Message) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if h, ok := c.handlers[msg.Topic()]; ok {
		h(msg.Topic(), msg.Payload())
		return
	}
	for pattern, h := range c.handlers {
		if topicMatches(pattern, msg.Topic()) {
			h(msg.Topic(), msg.Payload())
			return
		}
	}
}

// Unsubscribe removes subscriptions.
func (c *Client) Unsubscribe(topics ...string) error {
	token := c.client.Unsubscribe(topics...)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt unsubscribe error: %w", token.Error())
	}

	c.mu.Lock()
	for _, topic := range topics {
		delete(c.handlers, topic)
	}
	c.mu.Unlock()

	return nil
}

// Publish sends a message.
func (c *Client) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, c.config.QoS, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt publish error: %w", token.Error())
	}
	return nil
}

func (c *Client) onConnect(client mqtt.Client) {
	log.Println("[MQTT] Connection established")

	// re-subscribe after reconnect
	c.mu.RLock()
	defer c.mu.RUnlock()
	for topic := range c.handlers {
		client.Subscribe(topic, c.config.QoS, func(client mqtt.Client, msg mqtt.Message) {
			c.dispatch(msg)
		})
	}
}

func (c *Client) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("[MQTT] Connection lost: %v", err)
}

// topicMatches reports whether topic matches an MQTT pattern with + and #
// wildcards.
func topicMatches(pattern, topic string) bool {
	pp := splitTopic(pattern)
	tp := splitTopic(topic)

	for i, segment := range pp {
		if segment == "#" {
			return true
		}
		if i >= len(tp) {
			return false
		}
		if segment != "+" && segment != tp[i] {
			return false
		}
	}
	return len(pp) == len(tp)
}

func splitTopic(topic string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(topic); i++ {
		if topic[i] == '/' {
			parts = append(parts, topic[start:i])
			start = i + 1
		}
	}
	return append(parts, topic[start:])
}
