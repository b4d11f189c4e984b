// Package rosbridge is a client for the rosbridge v2 JSON protocol spoken by
// the planning middleware over a websocket.
package rosbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/open-teleop/scenebridge/pkg/log"
	"github.com/open-teleop/scenebridge/pkg/msgs"
)

// Common errors
var (
	ErrNotConnected = errors.New("rosbridge client is not connected")
	ErrClosed       = errors.New("rosbridge connection closed")
)

// Options configures a Client.
type Options struct {
	URL              string
	CallTimeout      time.Duration
	HandshakeTimeout time.Duration
	Metrics          *Metrics
}

// DefaultOptions returns options for a local rosbridge server.
func DefaultOptions() Options {
	return Options{
		URL:              "ws://localhost:9090",
		CallTimeout:      10 * time.Second,
		HandshakeTimeout: 5 * time.Second,
	}
}

// MessageHandler receives the raw msg field of a published message.
type MessageHandler func(msg json.RawMessage)

type callResult struct {
	values json.RawMessage
	err    error
}

type subscription struct {
	id      string
	handler MessageHandler
}

// Client is a connection to a rosbridge server. It is safe for concurrent use.
type Client struct {
	opts   Options
	logger log.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu          sync.Mutex
	connected   bool
	pending     map[string]chan callResult
	subscribers map[string][]*subscription
	advertised  map[string]string

	closeOnce sync.Once
	closeCh   chan struct{}
	done      chan struct{}
}

// NewClient creates a client. Connect must be called before use.
func NewClient(opts Options, logger log.Logger) *Client {
	defaults := DefaultOptions()
	if opts.URL == "" {
		opts.URL = defaults.URL
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaults.CallTimeout
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaults.HandshakeTimeout
	}
	return &Client{
		opts:        opts,
		logger:      logger.WithField("component", "rosbridge"),
		pending:     make(map[string]chan callResult),
		subscribers: make(map[string][]*subscription),
		advertised:  make(map[string]string),
		closeCh:     make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Connect dials the server and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: c.opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.opts.URL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.logger.Infof("Connected to rosbridge at %s", c.opts.URL)
	go c.readLoop()
	return nil
}

// IsConnected reports whether the connection is open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close shuts the connection down and fails outstanding calls. It is safe
// to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		c.mu.Lock()
		conn := c.conn
		wasConnected := c.connected
		c.mu.Unlock()
		if conn == nil {
			close(c.done)
			return
		}
		c.writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = conn.Close()
		if wasConnected {
			<-c.done
		}
		c.logger.Infof("Disconnected from rosbridge")
	})
	return err
}

func (c *Client) send(frame outgoing) error {
	c.mu.Lock()
	conn, connected := c.conn, c.connected
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("failed to send %s: %w", frame.Op, err)
	}
	c.opts.Metrics.opSent(frame.Op)
	return nil
}

// CallService calls a service and returns the raw values of its response.
func (c *Client) CallService(ctx context.Context, service, serviceType string, args interface{}) (json.RawMessage, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	id := newRequestID(OpCallService, service)
	ch := make(chan callResult, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	started := time.Now()
	if err := c.send(outgoing{Op: OpCallService, ID: id, Service: service, Type: serviceType, Args: args}); err != nil {
		c.opts.Metrics.callDone(service, "error", started)
		return nil, err
	}

	timer := time.NewTimer(c.opts.CallTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		outcome := "ok"
		if res.err != nil {
			outcome = "error"
		}
		c.opts.Metrics.callDone(service, outcome, started)
		return res.values, res.err
	case <-ctx.Done():
		c.opts.Metrics.callDone(service, "cancelled", started)
		return nil, ctx.Err()
	case <-timer.C:
		c.opts.Metrics.callDone(service, "timeout", started)
		return nil, fmt.Errorf("service %s timed out after %v: %w", service, c.opts.CallTimeout, context.DeadlineExceeded)
	case <-c.closeCh:
		return nil, ErrClosed
	}
}

// GetParam reads a parameter through rosapi and decodes its value into out.
func (c *Client) GetParam(ctx context.Context, name string, out interface{}) error {
	values, err := c.CallService(ctx, "/rosapi/get_param", "rosapi/GetParam", map[string]interface{}{"name": name})
	if err != nil {
		return fmt.Errorf("failed to get param %s: %w", name, err)
	}
	var resp struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(values, &resp); err != nil {
		return fmt.Errorf("invalid get_param response for %s: %w", name, err)
	}
	if resp.Value == "" {
		return fmt.Errorf("param %s is not set", name)
	}
	if err := json.Unmarshal([]byte(resp.Value), out); err != nil {
		return fmt.Errorf("failed to decode param %s: %w", name, err)
	}
	return nil
}

// Publish sends msg on topic, advertising the topic on first use.
func (c *Client) Publish(topic string, msg msgs.WireCodec) error {
	msgType := msg.MessageType()

	c.mu.Lock()
	advertisedType, ok := c.advertised[topic]
	c.mu.Unlock()

	if !ok || advertisedType != msgType {
		id := newRequestID(OpAdvertise, topic)
		if err := c.send(outgoing{Op: OpAdvertise, ID: id, Topic: topic, Type: msgType}); err != nil {
			return err
		}
		c.mu.Lock()
		c.advertised[topic] = msgType
		c.mu.Unlock()
		c.logger.Debugf("Advertised %s as %s", topic, msgType)
	}

	return c.send(outgoing{Op: OpPublish, Topic: topic, Msg: msg.ToMap()})
}

// Unadvertise withdraws a topic advertised by Publish.
func (c *Client) Unadvertise(topic string) error {
	c.mu.Lock()
	_, ok := c.advertised[topic]
	delete(c.advertised, topic)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return c.send(outgoing{Op: OpUnadvertise, ID: newRequestID(OpUnadvertise, topic), Topic: topic})
}

// Subscribe registers handler for messages on topic. The returned function
// removes the subscription.
func (c *Client) Subscribe(topic, msgType string, handler MessageHandler) (func() error, error) {
	sub := &subscription{id: newRequestID(OpSubscribe, topic), handler: handler}
	if err := c.send(outgoing{Op: OpSubscribe, ID: sub.id, Topic: topic, Type: msgType}); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.subscribers[topic] = append(c.subscribers[topic], sub)
	c.mu.Unlock()

	return func() error {
		c.mu.Lock()
		subs := c.subscribers[topic]
		for i, s := range subs {
			if s == sub {
				c.subscribers[topic] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(c.subscribers[topic]) == 0 {
			delete(c.subscribers, topic)
		}
		c.mu.Unlock()
		return c.send(outgoing{Op: OpUnsubscribe, ID: sub.id, Topic: topic})
	}, nil
}

func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		for id, ch := range c.pending {
			ch <- callResult{err: ErrClosed}
			delete(c.pending, id)
		}
		c.mu.Unlock()
		close(c.done)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closeCh:
			default:
				c.logger.Warnf("Read loop stopped: %v", err)
			}
			return
		}

		var frame incoming
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Warnf("Discarding malformed frame (%d bytes): %v", len(data), err)
			continue
		}
		c.dispatch(frame)
	}
}

func (c *Client) dispatch(frame incoming) {
	switch frame.Op {
	case OpServiceResponse:
		c.mu.Lock()
		ch, ok := c.pending[frame.ID]
		delete(c.pending, frame.ID)
		c.mu.Unlock()
		if !ok {
			c.logger.Debugf("No pending call for response %s", frame.ID)
			return
		}
		if frame.Result != nil && !*frame.Result {
			ch <- callResult{err: serviceFailure(frame.Service, frame.Values)}
			return
		}
		ch <- callResult{values: frame.Values}

	case OpPublish:
		c.mu.Lock()
		subs := append([]*subscription(nil), c.subscribers[frame.Topic]...)
		c.mu.Unlock()
		for _, s := range subs {
			s.handler(frame.Msg)
		}

	case OpStatus:
		var text string
		if err := json.Unmarshal(frame.Msg, &text); err != nil {
			text = string(frame.Msg)
		}
		if frame.Level == "error" {
			c.logger.Errorf("Server status for %s: %s", frame.ID, text)
		} else {
			c.logger.Infof("Server status (%s): %s", frame.Level, text)
		}

	default:
		c.logger.Debugf("Ignoring op %q", frame.Op)
	}
}
