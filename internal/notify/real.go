package notify

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/step-tracker/internal/logic"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	bufferCapacity = 64
)

// RealPublisher publishes to an actual MQTT broker and subscribes to the
// command topic. While disconnected, outbound messages are held in a
// ring buffer and replayed on reconnect.
type RealPublisher struct {
	client paho.Client

	mu     sync.Mutex
	buffer *ringBuffer
}

// NewRealPublisher connects to the broker and subscribes to the command
// topic, delivering parsed commands to the commands channel. Malformed
// command payloads are logged and dropped.
func NewRealPublisher(broker string, commands chan<- Command) (*RealPublisher, error) {
	p := &RealPublisher{buffer: newRingBuffer(bufferCapacity)}

	onMessage := func(_ paho.Client, msg paho.Message) {
		cmd, err := ParseCommand(msg.Payload())
		if err != nil {
			log.Printf("notify: %v", err)
			return
		}
		select {
		case commands <- cmd:
		default:
			log.Printf("notify: command channel full, dropping %s", cmd)
		}
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("step-tracker").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("notify: connection lost: %v", err)
		}).
		SetOnConnectHandler(func(c paho.Client) {
			// Subscription does not survive a clean-session reconnect,
			// so it is re-established here every time.
			token := c.Subscribe(TopicCommands, 1, onMessage)
			if token.WaitTimeout(publishTimeout) && token.Error() != nil {
				log.Printf("notify: subscribe %s: %v", TopicCommands, token.Error())
			}
			p.replayBuffered(c)
		})

	client := paho.NewClient(opts)
	p.client = client

	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// Render publishes the retained progress notification payload.
func (p *RealPublisher) Render(u logic.Update, now time.Time) error {
	payload, err := FormatStatePayload(u, now)
	if err != nil {
		return fmt.Errorf("format state payload: %w", err)
	}
	// Retained so late subscribers (widget, UI) see the latest progress.
	return p.publish(outMsg{topic: TopicState, payload: payload, qos: 0, retained: true})
}

// RequestRefresh publishes a fire-and-forget widget refresh trigger.
func (p *RealPublisher) RequestRefresh(now time.Time) error {
	payload, err := FormatWidgetPayload(now)
	if err != nil {
		return fmt.Errorf("format widget payload: %w", err)
	}
	return p.publish(outMsg{topic: TopicWidget, payload: payload, qos: 0})
}

// PublishSystem sends a system lifecycle event to the broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events - we want delivery.
	return p.publish(outMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// publish sends the message, buffering it instead when the broker is
// unreachable.
func (p *RealPublisher) publish(msg outMsg) error {
	if !p.client.IsConnected() {
		p.mu.Lock()
		p.buffer.push(msg)
		p.mu.Unlock()
		return fmt.Errorf("not connected, buffered message for %s", msg.topic)
	}

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout on %s", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}
	return nil
}

// replayBuffered drains the offline buffer after a (re)connect.
func (p *RealPublisher) replayBuffered(c paho.Client) {
	p.mu.Lock()
	msgs := p.buffer.drainAll()
	p.mu.Unlock()
	if len(msgs) == 0 {
		return
	}

	log.Printf("notify: replaying %d buffered messages", len(msgs))
	for _, msg := range msgs {
		token := c.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
		if token.WaitTimeout(publishTimeout) && token.Error() != nil {
			log.Printf("notify: replay to %s: %v", msg.topic, token.Error())
		}
	}
}

// IsConnected reports whether the broker connection is active.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
