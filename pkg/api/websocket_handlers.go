package api

import (
	"encoding/json"
	"errors"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"

	customlog "github.com/open-teleop/scenebridge/pkg/log"
	"github.com/open-teleop/scenebridge/pkg/processing"
	"github.com/open-teleop/scenebridge/pkg/scene"
)

// CommandQueue accepts scene commands without waiting for them
type CommandQueue interface {
	Submit(cmd *processing.Command) error
}

var wsCommandKinds = map[string]string{
	"add":    processing.CommandAdd,
	"append": processing.CommandAppend,
	"remove": processing.CommandRemove,
}

// SceneWebSocketHandler streams scene events to the client and queues the
// scene commands it sends.
func SceneWebSocketHandler(conn *websocket.Conn, logger customlog.Logger, hub *Hub, queue CommandQueue) {
	logger.Infof("Scene WebSocket connected: %s", conn.RemoteAddr())

	c := hub.register(conn)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(logger)
	}()

	var (
		mt  int
		msg []byte
		err error
	)
	for {
		if mt, msg, err = conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Errorf("Scene WS read error: %v", err)
			} else if err != websocket.ErrCloseSent && !errors.Is(err, syscall.EPIPE) && !errors.Is(err, syscall.ECONNRESET) {
				logger.Infof("Scene WS connection closed: %v", err)
			} else {
				logger.Infof("Scene WS connection closed normally.")
			}
			break
		}

		if mt != websocket.TextMessage {
			logger.Infof("Ignoring non-text Scene WS message type: %d", mt)
			continue
		}

		var sc SceneCommandMsg
		if err := json.Unmarshal(msg, &sc); err != nil {
			logger.Warnf("Failed to unmarshal scene command from WS: %v. Message: %s", err, string(msg))
			continue
		}

		if err := queueCommand(queue, sc); err != nil {
			logger.Warnf("Rejected %s command for '%s' from WS: %v", sc.Op, sc.ID, err)
			reply, _ := json.Marshal(CommandRejectedMsg{Topic: processing.ErrorTopic, Op: sc.Op, ID: sc.ID, Error: err.Error()})
			select {
			case c.send <- reply:
			default:
			}
		}
	}

	hub.unregister(c)
	<-writerDone
	logger.Infof("Scene WebSocket disconnected: %s", conn.RemoteAddr())
}

func queueCommand(queue CommandQueue, sc SceneCommandMsg) error {
	kind, ok := wsCommandKinds[sc.Op]
	if !ok {
		return errors.New("op must be add, append or remove")
	}
	if sc.ID == "" {
		return scene.ErrEmptyID
	}

	cmd := &processing.Command{
		Kind:      kind,
		ID:        sc.ID,
		Source:    "websocket",
		Timestamp: time.Now().UnixNano(),
	}
	if kind != processing.CommandRemove {
		if sc.Mesh == nil {
			return errors.New("mesh is required")
		}
		cm, err := sc.Mesh.CollisionMesh(sc.ID)
		if err != nil {
			return err
		}
		cmd.Mesh = &cm
	}
	return queue.Submit(cmd)
}
