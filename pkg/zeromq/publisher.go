package zeromq

import (
	"time"

	"github.com/open-teleop/scenebridge/pkg/log"
)

// SnapshotTopic carries the full list of collision objects
const SnapshotTopic = "scene.snapshot"

// ScenePublisher publishes scene snapshots to gateways
type ScenePublisher struct {
	service *ZeroMQService
	source  SceneSource
	logger  log.Logger
}

// NewScenePublisher creates a new publisher for scene snapshots
func NewScenePublisher(service *ZeroMQService, source SceneSource, logger log.Logger) *ScenePublisher {
	return &ScenePublisher{
		service: service,
		source:  source,
		logger:  logger,
	}
}

// PublishSnapshot publishes the current collision objects to all subscribed gateways
func (p *ScenePublisher) PublishSnapshot() error {
	objects := p.source.Objects()
	p.logger.Debugf("Publishing scene snapshot (%d objects)", len(objects))
	return p.service.PublishEvent(SnapshotTopic, time.Now().UnixNano(), objects)
}

// RegisterSceneHandlers registers the scene request handlers and returns a
// snapshot publisher
func RegisterSceneHandlers(service *ZeroMQService, submitter CommandSubmitter, source SceneSource, timeout time.Duration, logger log.Logger) *ScenePublisher {
	handler := NewSceneHandler(submitter, source, timeout, logger)
	for _, msgType := range []string{
		MsgTypeAddCollisionMesh,
		MsgTypeAppendCollisionMesh,
		MsgTypeRemoveCollisionMesh,
		MsgTypeSceneRequest,
	} {
		service.RegisterHandler(msgType, handler)
	}

	logger.Infof("Registered scene handlers and publisher")
	return NewScenePublisher(service, source, logger)
}
