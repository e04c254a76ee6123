package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/button-sensor/internal/logic"
)

const (
	defaultBufferSize     = 100
	defaultConnectTimeout = 10 * time.Second
	publishTimeout        = 5 * time.Second
)

// Options configures a RealPublisher.
type Options struct {
	Broker         string
	Name           string        // button name used in topics
	ClientID       string        // defaults to "button-sensor-<name>"
	BufferSize     int           // messages kept while disconnected
	ConnectTimeout time.Duration // initial connect wait before falling back to buffering
}

// client is the subset of paho.Client used for publishing.
type client interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// RealPublisher publishes to an actual MQTT broker.
// Messages published while the connection is down are queued and replayed,
// oldest first, when the client reconnects.
type RealPublisher struct {
	client      client
	topic       string
	topicSystem string
	logger      *zap.SugaredLogger

	mu            sync.Mutex
	queue         *offlineQueue
	connectedOnce bool
	replaying     bool
	now           func() time.Time
}

// NewRealPublisher creates a publisher for the given broker and starts connecting.
// If the broker is not reachable within the connect timeout the publisher is
// still returned; paho keeps retrying and messages are buffered meanwhile.
func NewRealPublisher(o Options, logger *zap.SugaredLogger) (*RealPublisher, error) {
	if o.Broker == "" {
		return nil, fmt.Errorf("mqtt: broker address is required")
	}
	if o.Name == "" {
		o.Name = DefaultName
	}
	if o.ClientID == "" {
		o.ClientID = "button-sensor-" + o.Name
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}

	p := newPublisher(nil, o, logger)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(p.topicSystem, string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.logger.Warnw("Connection lost", "error", err)
		})

	c := paho.NewClient(opts)
	p.client = c

	token := c.Connect()
	if !token.WaitTimeout(o.ConnectTimeout) {
		p.logger.Warnw("Broker not reachable yet, buffering until connected",
			"broker", o.Broker, "timeout", o.ConnectTimeout)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

func newPublisher(c client, o Options, logger *zap.SugaredLogger) *RealPublisher {
	size := o.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	logger = logger.Named("mqtt")
	return &RealPublisher{
		client:      c,
		topic:       Topic(o.Name),
		topicSystem: TopicSystem(o.Name),
		logger:      logger,
		queue:       newOfflineQueue(size, logger),
		now:         time.Now,
	}
}

// Publish sends a button event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	if err := p.send(bufferedMsg{topic: p.topic, payload: payload}); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	msg := bufferedMsg{topic: p.topicSystem, payload: payload, qos: 1, retained: event.Retained}
	if err := p.send(msg); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// IsConnected reports whether the broker connection is currently open.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.len()
}

// Dropped returns how many queued messages were evicted because the queue
// was full.
func (p *RealPublisher) Dropped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.dropped
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	if n := p.Buffered(); n > 0 {
		p.logger.Warnw("Discarding buffered messages on close", "count", n)
	}
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

// send publishes msg, or queues it behind older messages. While anything is
// queued or being replayed, new messages join the queue so the broker sees
// them oldest first.
func (p *RealPublisher) send(msg bufferedMsg) error {
	connected := p.client.IsConnectionOpen()

	p.mu.Lock()
	if connected && p.queue.len() == 0 && !p.replaying {
		p.mu.Unlock()
		return p.publishNow(msg)
	}
	p.queue.push(msg)
	p.mu.Unlock()

	if !connected {
		p.logger.Debugw("Not connected, buffered message", "topic", msg.topic)
		return nil
	}
	p.replay()
	return nil
}

func (p *RealPublisher) publishNow(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timeout")
	}
	return token.Error()
}

// onConnect runs on every successful (re)connect.
func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	reconnect := p.connectedOnce
	p.connectedOnce = true
	pending := p.queue.len()
	p.mu.Unlock()

	if reconnect {
		p.logger.Infow("Reconnected to broker", "buffered", pending)
		payload, err := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"})
		if err == nil {
			if err := p.publishNow(bufferedMsg{topic: p.topicSystem, payload: payload, qos: 1}); err != nil {
				p.logger.Warnw("Failed to publish reconnect event", "error", err)
			}
		}
	} else {
		p.logger.Infow("Connected to broker", "buffered", pending)
	}

	p.replay()
}

// replay sends queued messages until the queue is empty or a send fails.
// A failed message goes back to the front and is retried on the next
// publish or reconnect. Only one replay runs at a time; a caller that finds
// one running leaves its message to it.
func (p *RealPublisher) replay() {
	p.mu.Lock()
	if p.replaying {
		p.mu.Unlock()
		return
	}
	p.replaying = true
	p.mu.Unlock()

	for {
		p.mu.Lock()
		msg, ok := p.queue.pop()
		if !ok {
			p.replaying = false
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		if err := p.publishNow(msg); err != nil {
			p.mu.Lock()
			p.queue.requeue(msg)
			left := p.queue.len()
			p.replaying = false
			p.mu.Unlock()
			p.logger.Warnw("Failed to replay buffered message, will retry",
				"topic", msg.topic, "remaining", left, "error", err)
			return
		}
	}
}
