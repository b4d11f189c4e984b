// Package zeromq exposes the planning scene to gateway clients: a REP socket
// accepts scene commands and a PUB socket streams scene events.
package zeromq

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pebbe/zmq4"

	"github.com/open-teleop/scenebridge/pkg/config"
	"github.com/open-teleop/scenebridge/pkg/flatbuffers/scenebridge/event"
	"github.com/open-teleop/scenebridge/pkg/log"
)

// Common errors
var (
	ErrServiceClosed      = errors.New("zeromq service is closed")
	ErrInvalidMessage     = errors.New("invalid message format")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Message types
const (
	MsgTypeAppendCollisionMesh = "APPEND_COLLISION_MESH"
	MsgTypeAddCollisionMesh    = "ADD_COLLISION_MESH"
	MsgTypeRemoveCollisionMesh = "REMOVE_COLLISION_MESH"
	MsgTypeSceneRequest        = "SCENE_REQUEST"
	MsgTypeSceneResponse       = "SCENE_RESPONSE"
	MsgTypeAck                 = "ACK"
	MsgTypeError               = "ERROR"
)

// ZeroMQMessage represents a generic message structure for ZeroMQ communication
type ZeroMQMessage struct {
	Type      string      `json:"type"`
	Timestamp float64     `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// ErrorResponse represents an error response message
type ErrorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// MessageHandler defines the interface for handlers that process specific message types
type MessageHandler interface {
	HandleMessage(data []byte) ([]byte, error)
}

// HandlerFunc is a function type that implements MessageHandler
type HandlerFunc func(data []byte) ([]byte, error)

// HandleMessage calls the function
func (f HandlerFunc) HandleMessage(data []byte) ([]byte, error) {
	return f(data)
}

func newMessage(messageType string, data interface{}) ZeroMQMessage {
	return ZeroMQMessage{
		Type:      messageType,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		Data:      data,
	}
}

func errorReply(err error, code int) []byte {
	errData, _ := json.Marshal(newMessage(MsgTypeError, ErrorResponse{Message: err.Error(), Code: code}))
	return errData
}

// MessageReceiver handles receiving messages from a ZeroMQ socket
type MessageReceiver struct {
	socket     *zmq4.Socket
	dispatcher *MessageDispatcher
	poller     *zmq4.Poller
	logger     log.Logger
	running    bool
	mu         sync.Mutex
	wg         *sync.WaitGroup
}

// newMessageReceiver creates a new MessageReceiver
func newMessageReceiver(ctx *zmq4.Context, address string, dispatcher *MessageDispatcher, logger log.Logger, wg *sync.WaitGroup) (*MessageReceiver, error) {
	socket, err := ctx.NewSocket(zmq4.REP)
	if err != nil {
		return nil, fmt.Errorf("failed to create REP socket: %w", err)
	}

	if err := socket.Bind(address); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind to %s: %w", address, err)
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}

	// Timeouts keep shutdown from blocking on a half finished exchange
	const socketTimeout = 1 * time.Second
	if err := socket.SetRcvtimeo(socketTimeout); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set receive timeout: %w", err)
	}
	if err := socket.SetSndtimeo(socketTimeout); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set send timeout: %w", err)
	}

	poller := zmq4.NewPoller()
	poller.Add(socket, zmq4.POLLIN)

	logger.Infof("MessageReceiver initialized on %s", address)

	return &MessageReceiver{
		socket:     socket,
		dispatcher: dispatcher,
		poller:     poller,
		logger:     logger,
		wg:         wg,
	}, nil
}

func (r *MessageReceiver) isRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Start begins the message receiving loop
func (r *MessageReceiver) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		defer r.socket.Close()
		r.logger.Infof("MessageReceiver started")

		for r.isRunning() {
			// Poll with a timeout so Stop is noticed
			sockets, err := r.poller.Poll(200 * time.Millisecond)
			if err != nil {
				if r.isRunning() {
					r.logger.Warnf("Error polling socket: %v", err)
				}
				continue
			}
			if len(sockets) == 0 {
				continue
			}

			msg, err := r.socket.RecvBytes(0)
			if err != nil {
				if r.isRunning() {
					r.logger.Warnf("Error receiving message: %v", err)
				}
				continue
			}

			r.logger.Debugf("Received message (%d bytes)", len(msg))

			response, err := r.dispatcher.Dispatch(msg)
			if err != nil {
				r.logger.Errorf("Error dispatching message: %v", err)
				code := 500
				if errors.Is(err, ErrUnknownMessageType) || errors.Is(err, ErrInvalidMessage) {
					code = 400
				}
				response = errorReply(err, code)
			}

			// REP sockets must answer every request
			if _, err := r.socket.SendBytes(response, 0); err != nil && r.isRunning() {
				r.logger.Errorf("Error sending response: %v", err)
			}
		}
		r.logger.Infof("MessageReceiver stopped")
	}()
}

// Stop halts the message receiving loop; the loop closes the socket on exit
func (r *MessageReceiver) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = false
}

// MessageSender handles sending messages to ZeroMQ sockets
type MessageSender struct {
	socket      *zmq4.Socket
	logger      log.Logger
	contentType event.ContentType
	running     bool
	mu          sync.Mutex
}

// newMessageSender creates a new MessageSender
func newMessageSender(ctx *zmq4.Context, address string, contentType event.ContentType, logger log.Logger) (*MessageSender, error) {
	socket, err := ctx.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}

	if err := socket.Bind(address); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind to %s: %w", address, err)
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}

	logger.Infof("MessageSender initialized on %s (%s payloads)", address, contentType)

	return &MessageSender{
		socket:      socket,
		logger:      logger,
		contentType: contentType,
		running:     true,
	}, nil
}

// PublishMessage sends a message with the given topic
func (s *MessageSender) PublishMessage(topic string, message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrServiceClosed
	}

	// Topic frame first so subscribers can filter on it
	if _, err := s.socket.Send(topic, zmq4.SNDMORE); err != nil {
		return fmt.Errorf("failed to send topic: %w", err)
	}
	if _, err := s.socket.SendBytes(message, 0); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// PublishEvent encodes data with the configured content type and publishes
// it as a SceneEvent on topic
func (s *MessageSender) PublishEvent(topic string, timestampNs int64, data interface{}) error {
	payload, err := EncodePayload(s.contentType, data)
	if err != nil {
		return fmt.Errorf("failed to encode event payload: %w", err)
	}
	if timestampNs == 0 {
		timestampNs = time.Now().UnixNano()
	}
	return s.PublishMessage(topic, EncodeSceneEvent(topic, timestampNs, s.contentType, payload))
}

// Close cleans up resources
func (s *MessageSender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	if s.socket != nil {
		s.socket.Close()
		s.socket = nil
	}
}

// MessageDispatcher routes messages to the appropriate handlers
type MessageDispatcher struct {
	handlers map[string]MessageHandler
	logger   log.Logger
	mu       sync.RWMutex
}

// NewMessageDispatcher creates a new message dispatcher
func NewMessageDispatcher(logger log.Logger) *MessageDispatcher {
	return &MessageDispatcher{
		handlers: make(map[string]MessageHandler),
		logger:   logger,
	}
}

// RegisterHandler adds a handler for a specific message type
func (d *MessageDispatcher) RegisterHandler(messageType string, handler MessageHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[messageType] = handler
	d.logger.Debugf("Registered handler for message type: %s", messageType)
}

// MessageTypes returns the registered message types
func (d *MessageDispatcher) MessageTypes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	types := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		types = append(types, t)
	}
	return types
}

// Dispatch routes a JSON envelope, or a SceneEvent flatbuffer whose topic
// names a message type, to its handler
func (d *MessageDispatcher) Dispatch(data []byte) ([]byte, error) {
	var msg ZeroMQMessage
	if err := json.Unmarshal(data, &msg); err == nil {
		d.logger.Debugf("Dispatching JSON message of type: %s", msg.Type)
		return d.dispatchEnvelope(msg.Type, data)
	}

	d.logger.Debugf("JSON parse failed, attempting to handle as SceneEvent flatbuffer (%d bytes)", len(data))
	return d.handleSceneEvent(data)
}

func (d *MessageDispatcher) dispatchEnvelope(messageType string, data []byte) ([]byte, error) {
	if messageType == "" {
		return nil, fmt.Errorf("%w: missing message type", ErrInvalidMessage)
	}

	d.mu.RLock()
	handler, exists := d.handlers[messageType]
	d.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, messageType)
	}
	return handler.HandleMessage(data)
}

// handleSceneEvent unwraps a SceneEvent, decodes its payload and hands it to
// the handler as a JSON envelope
func (d *MessageDispatcher) handleSceneEvent(data []byte) ([]byte, error) {
	ev, err := DecodeSceneEvent(data)
	if err != nil {
		return nil, err
	}

	var payload interface{}
	if err := ev.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: failed to decode %s payload for %s: %v", ErrInvalidMessage, ev.ContentType, ev.Topic, err)
	}

	envelope, err := json.Marshal(ZeroMQMessage{
		Type:      ev.Topic,
		Timestamp: float64(ev.TimestampNs) / float64(time.Second),
		Data:      normalize(payload),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode %s payload: %w", ev.Topic, err)
	}

	d.logger.Debugf("Parsed SceneEvent: Topic='%s', Type=%s, PayloadSize=%d", ev.Topic, ev.ContentType, len(ev.Payload))
	return d.dispatchEnvelope(ev.Topic, envelope)
}

// normalize converts msgpack maps with interface keys into string keyed maps
// so they can be encoded as JSON
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case map[string]interface{}:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case []interface{}:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	default:
		return v
	}
}

// ZeroMQService coordinates ZeroMQ communications for the gateway
type ZeroMQService struct {
	config     config.ZeroMQConfig
	ctx        *zmq4.Context
	receiver   *MessageReceiver
	sender     *MessageSender
	dispatcher *MessageDispatcher
	logger     log.Logger
	running    bool
	mu         sync.Mutex
	wg         sync.WaitGroup
}

// NewZeroMQService creates a new ZeroMQ service
func NewZeroMQService(cfg config.ZeroMQConfig, logger log.Logger) (*ZeroMQService, error) {
	contentType, err := ParseContentType(cfg.PayloadEncoding)
	if err != nil {
		return nil, err
	}

	ctx, err := zmq4.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create ZMQ context: %w", err)
	}

	logger = logger.WithField("component", "zeromq")
	s := &ZeroMQService{
		config:     cfg,
		ctx:        ctx,
		dispatcher: NewMessageDispatcher(logger),
		logger:     logger,
	}

	s.receiver, err = newMessageReceiver(ctx, cfg.RequestBindAddress, s.dispatcher, logger, &s.wg)
	if err != nil {
		ctx.Term()
		return nil, err
	}

	s.sender, err = newMessageSender(ctx, cfg.PublishBindAddress, contentType, logger)
	if err != nil {
		s.receiver.socket.Close()
		ctx.Term()
		return nil, err
	}

	return s, nil
}

// RegisterHandler adds a handler for a specific message type
func (s *ZeroMQService) RegisterHandler(messageType string, handler MessageHandler) {
	s.dispatcher.RegisterHandler(messageType, handler)
}

// RegisterHandlerFunc adds a handler function for a specific message type
func (s *ZeroMQService) RegisterHandlerFunc(messageType string, handler func([]byte) ([]byte, error)) {
	s.dispatcher.RegisterHandler(messageType, HandlerFunc(handler))
}

// Start begins the ZeroMQ service
func (s *ZeroMQService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.running = true
	s.logger.Infof("Starting ZeroMQ service")
	s.receiver.Start()
	return nil
}

// Stop halts the ZeroMQ service
func (s *ZeroMQService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Infof("Stopping ZeroMQ service")

	s.receiver.Stop()
	s.sender.Close()

	s.logger.Debugf("Waiting for receiver goroutine to finish...")
	s.wg.Wait()

	if s.ctx != nil {
		s.ctx.Term()
		s.ctx = nil
	}

	s.logger.Infof("ZeroMQ service stopped")
}

func (s *ZeroMQService) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// PublishMessage sends a message with the given topic
func (s *ZeroMQService) PublishMessage(topic string, message []byte) error {
	if !s.isRunning() {
		return ErrServiceClosed
	}
	return s.sender.PublishMessage(topic, message)
}

// PublishEvent publishes data as a SceneEvent on topic
func (s *ZeroMQService) PublishEvent(topic string, timestampNs int64, data interface{}) error {
	if !s.isRunning() {
		return ErrServiceClosed
	}
	return s.sender.PublishEvent(topic, timestampNs, data)
}
