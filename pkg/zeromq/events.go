package zeromq

import (
	"encoding/json"
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/open-teleop/scenebridge/pkg/flatbuffers/scenebridge/event"
)

// SceneEventMessage is a decoded SceneEvent envelope
type SceneEventMessage struct {
	Topic       string
	TimestampNs int64
	ContentType event.ContentType
	Payload     []byte
}

// Decode unmarshals the payload into v according to its content type
func (m *SceneEventMessage) Decode(v interface{}) error {
	return DecodePayload(m.ContentType, m.Payload, v)
}

// ParseContentType maps a configured payload encoding to a content type
func ParseContentType(encoding string) (event.ContentType, error) {
	switch encoding {
	case "", "json":
		return event.ContentTypeJSON, nil
	case "msgpack":
		return event.ContentTypeMSGPACK, nil
	default:
		return 0, fmt.Errorf("unsupported payload encoding %q", encoding)
	}
}

// EncodePayload serializes v with the given content type
func EncodePayload(contentType event.ContentType, v interface{}) ([]byte, error) {
	switch contentType {
	case event.ContentTypeJSON:
		return json.Marshal(v)
	case event.ContentTypeMSGPACK:
		return msgpack.Marshal(v)
	default:
		return nil, fmt.Errorf("unsupported content type %s", contentType)
	}
}

// DecodePayload deserializes data with the given content type
func DecodePayload(contentType event.ContentType, data []byte, v interface{}) error {
	switch contentType {
	case event.ContentTypeJSON:
		return json.Unmarshal(data, v)
	case event.ContentTypeMSGPACK:
		return msgpack.Unmarshal(data, v)
	default:
		return fmt.Errorf("unsupported content type %s", contentType)
	}
}

// EncodeSceneEvent builds a SceneEvent flatbuffer
func EncodeSceneEvent(topic string, timestampNs int64, contentType event.ContentType, payload []byte) []byte {
	builder := flatbuffers.NewBuilder(len(payload) + len(topic) + 64)

	topicOffset := builder.CreateString(topic)
	payloadOffset := builder.CreateByteVector(payload)

	event.SceneEventStart(builder)
	event.SceneEventAddTopic(builder, topicOffset)
	event.SceneEventAddTimestampNs(builder, timestampNs)
	event.SceneEventAddContentType(builder, contentType)
	event.SceneEventAddPayload(builder, payloadOffset)
	root := event.SceneEventEnd(builder)
	event.FinishSceneEventBuffer(builder, root)

	return builder.FinishedBytes()
}

// DecodeSceneEvent parses a SceneEvent flatbuffer. The payload is copied out
// of data.
func DecodeSceneEvent(data []byte) (msg *SceneEventMessage, err error) {
	if len(data) < flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("%w: %d bytes is too short for a scene event", ErrInvalidMessage, len(data))
	}
	// Accessors panic on out of range offsets in corrupt buffers.
	defer func() {
		if r := recover(); r != nil {
			msg = nil
			err = fmt.Errorf("%w: corrupt scene event: %v", ErrInvalidMessage, r)
		}
	}()

	ev := event.GetRootAsSceneEvent(data, 0)
	payload := ev.PayloadBytes()
	return &SceneEventMessage{
		Topic:       string(ev.Topic()),
		TimestampNs: ev.TimestampNs(),
		ContentType: ev.ContentType(),
		Payload:     append([]byte(nil), payload...),
	}, nil
}
