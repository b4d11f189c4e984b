package processing

import (
	"encoding/json"

	customlog "github.com/open-teleop/scenebridge/pkg/log"
)

// ErrorTopic carries results of commands that failed
const ErrorTopic = "scene.error"

// EventPublisher publishes scene events to gateway subscribers
type EventPublisher interface {
	PublishEvent(topic string, timestampNs int64, data interface{}) error
}

// Broadcaster fans a JSON encoded event out to connected clients
type Broadcaster interface {
	Broadcast(topic string, data []byte)
}

// Event is the body of every published scene event
type Event struct {
	Topic     string                 `json:"topic" msgpack:"topic"`
	Timestamp int64                  `json:"timestamp" msgpack:"timestamp"`
	Kind      string                 `json:"kind" msgpack:"kind"`
	ID        string                 `json:"id" msgpack:"id"`
	Data      map[string]interface{} `json:"data,omitempty" msgpack:"data,omitempty"`
	Error     string                 `json:"error,omitempty" msgpack:"error,omitempty"`
}

// NewEvent describes a processed result
func NewEvent(result *ProcessResult) Event {
	ev := Event{
		Topic:     result.Topic,
		Timestamp: result.Timestamp,
		Data:      result.Data,
	}
	if result.Command != nil {
		ev.Kind = result.Command.Kind
		ev.ID = result.Command.ID
	}
	if result.Error != nil {
		ev.Topic = ErrorTopic
		ev.Error = result.Error.Error()
	}
	return ev
}

// EventResultHandler logs processing results and publishes them as events
type EventResultHandler struct {
	logger      customlog.Logger
	publisher   EventPublisher
	broadcaster Broadcaster
}

// NewEventResultHandler creates a new event result handler. Either sink may be nil.
func NewEventResultHandler(logger customlog.Logger, publisher EventPublisher, broadcaster Broadcaster) *EventResultHandler {
	return &EventResultHandler{
		logger:      logger,
		publisher:   publisher,
		broadcaster: broadcaster,
	}
}

// HandleResult handles a processed command result
func (h *EventResultHandler) HandleResult(result *ProcessResult) {
	if result.Error != nil {
		h.logger.Errorf("Error processing command for topic '%s': %v", result.Topic, result.Error)
	} else {
		h.logger.Debugf("Successfully processed command for topic '%s' (timestamp: %d)",
			result.Topic, result.Timestamp)
	}

	ev := NewEvent(result)

	if h.publisher != nil {
		if err := h.publisher.PublishEvent(ev.Topic, ev.Timestamp, ev); err != nil {
			h.logger.Errorf("Failed to publish event for topic '%s': %v", ev.Topic, err)
		} else {
			h.logger.Debugf("Published event for topic '%s'", ev.Topic)
		}
	}

	if h.broadcaster != nil {
		jsonData, err := json.Marshal(ev)
		if err != nil {
			h.logger.Errorf("Failed to encode event for topic '%s': %v", ev.Topic, err)
			return
		}
		h.broadcaster.Broadcast(ev.Topic, jsonData)
	}
}

// CreateHandlerFunc creates a ResultHandler function for the ProcessingPool
func (h *EventResultHandler) CreateHandlerFunc() ResultHandler {
	return func(processResult *ProcessResult) {
		if processResult == nil {
			h.logger.Errorf("Received nil ProcessResult")
			return
		}
		h.HandleResult(processResult)
	}
}
