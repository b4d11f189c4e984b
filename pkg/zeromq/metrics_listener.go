package zeromq

import (
	"fmt"
	"strings"
	"sync"
	"time"

	zmq "github.com/pebbe/zmq4"

	"github.com/open-teleop/scenebridge/pkg/log"
)

// ConnectAddress turns a wildcard bind address into one a local socket
// can connect to
func ConnectAddress(bindAddress string) string {
	return strings.Replace(bindAddress, "://*:", "://127.0.0.1:", 1)
}

// EventCallback receives every decoded scene event
type EventCallback func(ev *SceneEventMessage)

// EventListener subscribes to a scene event stream
type EventListener struct {
	socket   *zmq.Socket
	callback EventCallback
	logger   log.Logger
	running  bool
	mu       sync.Mutex
	done     chan struct{}
}

// NewEventListener creates a SUB socket filtered on topicPrefix
func NewEventListener(topicPrefix string, callback EventCallback, logger log.Logger) (*EventListener, error) {
	socket, err := zmq.NewSocket(zmq.SUB)
	if err != nil {
		return nil, err
	}

	if err := socket.SetSubscribe(topicPrefix); err != nil {
		socket.Close()
		return nil, err
	}
	if err := socket.SetRcvtimeo(200 * time.Millisecond); err != nil {
		socket.Close()
		return nil, err
	}

	return &EventListener{
		socket:   socket,
		callback: callback,
		logger:   logger,
	}, nil
}

// Start connects to address and begins receiving events
func (l *EventListener) Start(address string) error {
	if err := l.socket.Connect(address); err != nil {
		l.socket.Close()
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	l.mu.Lock()
	l.running = true
	l.done = make(chan struct{})
	l.mu.Unlock()

	go l.receiveLoop()

	l.logger.Infof("Event listener connected to %s", address)
	return nil
}

// Stop stops the listener and closes its socket
func (l *EventListener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	done := l.done
	l.mu.Unlock()

	<-done
	l.socket.Close()
}

func (l *EventListener) isRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// receiveLoop continuously receives topic and event frames
func (l *EventListener) receiveLoop() {
	defer close(l.done)

	for l.isRunning() {
		frames, err := l.socket.RecvMessageBytes(0)
		if err != nil {
			// Receive timeouts let the loop notice Stop
			continue
		}
		if len(frames) != 2 {
			l.logger.Warnf("Discarding event with %d frames", len(frames))
			continue
		}

		ev, err := DecodeSceneEvent(frames[1])
		if err != nil {
			l.logger.Warnf("Discarding malformed event on '%s': %v", string(frames[0]), err)
			continue
		}

		l.logger.Debugf("Received %s event on '%s' (%d bytes)", ev.ContentType, ev.Topic, len(ev.Payload))
		l.callback(ev)
	}
}
