package zeromq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/open-teleop/scenebridge/pkg/log"
	"github.com/open-teleop/scenebridge/pkg/processing"
	"github.com/open-teleop/scenebridge/pkg/scene"
)

// CommandSubmitter applies scene commands in order
type CommandSubmitter interface {
	SubmitAndWait(ctx context.Context, cmd *processing.Command) (*processing.ProcessResult, error)
}

// SceneSource lists the collision objects currently in the scene
type SceneSource interface {
	Objects() []scene.ObjectInfo
}

// SceneCommandData is the Data field of collision mesh requests
type SceneCommandData struct {
	ID   string          `json:"id"`
	Mesh *scene.MeshSpec `json:"mesh,omitempty"`
}

// AckData is the Data field of an ACK reply
type AckData struct {
	ID     string                 `json:"id"`
	Result map[string]interface{} `json:"result,omitempty"`
}

type rawMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

var commandKinds = map[string]string{
	MsgTypeAddCollisionMesh:    processing.CommandAdd,
	MsgTypeAppendCollisionMesh: processing.CommandAppend,
	MsgTypeRemoveCollisionMesh: processing.CommandRemove,
}

// SceneHandler turns collision mesh requests into scene commands
type SceneHandler struct {
	submitter CommandSubmitter
	source    SceneSource
	timeout   time.Duration
	logger    log.Logger
}

// NewSceneHandler creates a new handler for scene requests
func NewSceneHandler(submitter CommandSubmitter, source SceneSource, timeout time.Duration, logger log.Logger) *SceneHandler {
	return &SceneHandler{
		submitter: submitter,
		source:    source,
		timeout:   timeout,
		logger:    logger,
	}
}

// HandleMessage processes a scene request and returns an ACK or SCENE_RESPONSE
// A request that times out before a worker picks it up is not applied.
func (h *SceneHandler) HandleMessage(data []byte) ([]byte, error) {
	var msg rawMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse message: %v", ErrInvalidMessage, err)
	}

	if msg.Type == MsgTypeSceneRequest {
		h.logger.Debugf("Processing scene request")
		return json.Marshal(newMessage(MsgTypeSceneResponse, h.source.Objects()))
	}

	kind, ok := commandKinds[msg.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.Type)
	}

	var body SceneCommandData
	if len(msg.Data) == 0 {
		return nil, fmt.Errorf("%w: %s without data", ErrInvalidMessage, msg.Type)
	}
	if err := json.Unmarshal(msg.Data, &body); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s data: %v", ErrInvalidMessage, msg.Type, err)
	}

	cmd := &processing.Command{
		Kind:      kind,
		ID:        body.ID,
		Source:    "zeromq",
		Timestamp: time.Now().UnixNano(),
	}
	if kind != processing.CommandRemove {
		if body.Mesh == nil {
			return nil, fmt.Errorf("%w: %s for '%s' without mesh", ErrInvalidMessage, msg.Type, body.ID)
		}
		cm, err := body.Mesh.CollisionMesh(body.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		cmd.Mesh = &cm
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.logger.Infof("Processing %s for '%s'", msg.Type, body.ID)
	result, err := h.submitter.SubmitAndWait(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("%s for '%s' failed: %w", msg.Type, body.ID, err)
	}

	return json.Marshal(newMessage(MsgTypeAck, AckData{ID: body.ID, Result: result.Data}))
}
