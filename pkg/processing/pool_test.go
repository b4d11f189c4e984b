package processing

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/scenebridge/pkg/log"
	"github.com/open-teleop/scenebridge/pkg/scene"
	"github.com/open-teleop/scenebridge/pkg/spatial"
)

type fakeScene struct {
	mu  sync.Mutex
	ops []string
	err error
}

func (s *fakeScene) record(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.ops = append(s.ops, op)
	return nil
}

func (s *fakeScene) AddCollisionMesh(cm scene.CollisionMesh) error {
	return s.record("add:" + cm.ID)
}

func (s *fakeScene) AppendCollisionMesh(cm scene.CollisionMesh) error {
	return s.record("append:" + cm.ID)
}

func (s *fakeScene) RemoveCollisionMesh(id string) error {
	return s.record("remove:" + id)
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []Event
}

func (p *recordingPublisher) PublishEvent(topic string, ts int64, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, data.(Event))
	return nil
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (b *recordingBroadcaster) Broadcast(topic string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads = append(b.payloads, data)
}

func testMesh() *scene.CollisionMesh {
	box := spatial.BoxFromWidthHeightDepth(1, 1, 1)
	cm := scene.NewCollisionMesh(spatial.MeshFromVerticesAndFaces(box.Vertices(), box.Faces()), "")
	return &cm
}

func newTestPool(s SceneMutator, pub EventPublisher, b Broadcaster) *ProcessingPool {
	logger := log.NewNopLogger()
	pool := NewProcessingPool("scene", 1, 16, logger)
	pool.SetProcessor(NewSceneCommandProcessor(logger, s).CreateProcessorFunc())
	pool.SetResultHandler(NewEventResultHandler(logger, pub, b).CreateHandlerFunc())
	return pool
}

func TestPoolAppliesCommandsInOrder(t *testing.T) {
	s := &fakeScene{}
	pub := &recordingPublisher{}
	pool := newTestPool(s, pub, nil)
	pool.Start()

	for i := 0; i < 4; i++ {
		require.NoError(t, pool.Submit(&Command{Kind: CommandAppend, ID: "brick", Mesh: testMesh(), Source: "test"}))
	}
	require.NoError(t, pool.Submit(&Command{Kind: CommandRemove, ID: "brick", Source: "test"}))
	pool.Stop()

	assert.Equal(t, []string{
		"append:brick", "append:brick", "append:brick", "append:brick", "remove:brick",
	}, s.ops)
	assert.Equal(t, []string{
		"scene.append", "scene.append", "scene.append", "scene.append", "scene.remove",
	}, pub.topics)

	m := pool.GetMetrics()
	assert.Equal(t, int64(5), m.ProcessedCount)
	assert.Equal(t, int64(5), m.QueuedCount)
	assert.Equal(t, int64(0), m.ErrorCount)
}

func TestSubmitAndWait(t *testing.T) {
	s := &fakeScene{}
	b := &recordingBroadcaster{}
	pool := newTestPool(s, nil, b)
	pool.Start()
	defer pool.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := pool.SubmitAndWait(ctx, &Command{Kind: CommandAdd, ID: "wall", Mesh: testMesh()})
	require.NoError(t, err)
	assert.Equal(t, "scene.add", result.Topic)
	assert.Equal(t, "wall", result.Data["id"])
	assert.Equal(t, 1, result.Data["mesh_count"])

	require.Len(t, b.payloads, 1)
	var ev Event
	require.NoError(t, json.Unmarshal(b.payloads[0], &ev))
	assert.Equal(t, "add", ev.Kind)
	assert.Equal(t, "wall", ev.ID)
}

func TestFailedCommandPublishesErrorEvent(t *testing.T) {
	s := &fakeScene{err: errors.New("rosbridge client is not connected")}
	pub := &recordingPublisher{}
	pool := newTestPool(s, pub, nil)
	pool.Start()
	defer pool.Stop()

	_, err := pool.SubmitAndWait(context.Background(), &Command{Kind: CommandRemove, ID: "brick"})
	assert.ErrorContains(t, err, "not connected")

	require.Len(t, pub.events, 1)
	assert.Equal(t, ErrorTopic, pub.topics[0])
	assert.Equal(t, "remove", pub.events[0].Kind)
	assert.Equal(t, "rosbridge client is not connected", pub.events[0].Error)
	assert.Equal(t, int64(1), pool.GetMetrics().ErrorCount)
}

func TestInvalidCommands(t *testing.T) {
	pool := newTestPool(&fakeScene{}, nil, nil)
	pool.Start()
	defer pool.Stop()

	ctx := context.Background()
	_, err := pool.SubmitAndWait(ctx, &Command{Kind: CommandAdd, ID: "x"})
	assert.ErrorContains(t, err, "carries no mesh")
	_, err = pool.SubmitAndWait(ctx, &Command{Kind: "rotate", ID: "x"})
	assert.ErrorContains(t, err, "unknown command kind")
	_, err = pool.SubmitAndWait(ctx, &Command{Kind: CommandRemove})
	assert.ErrorIs(t, err, scene.ErrEmptyID)
}

func TestSubmitWhenStopped(t *testing.T) {
	pool := newTestPool(&fakeScene{}, nil, nil)
	assert.ErrorIs(t, pool.Submit(&Command{Kind: CommandRemove, ID: "x"}), ErrPoolStopped)

	pool.Start()
	pool.Stop()
	assert.ErrorIs(t, pool.Submit(&Command{Kind: CommandRemove, ID: "x"}), ErrPoolStopped)
}

func TestQueueFull(t *testing.T) {
	release := make(chan struct{})
	logger := log.NewNopLogger()
	pool := NewProcessingPool("scene", 1, 1, logger)
	pool.SetProcessor(func(cmd *Command) (map[string]interface{}, error) {
		<-release
		return nil, nil
	})
	pool.Start()

	// The first command occupies the worker, the second fills the queue.
	require.NoError(t, pool.Submit(&Command{Kind: CommandRemove, ID: "a"}))
	require.Eventually(t, func() bool { return pool.GetQueueLength() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, pool.Submit(&Command{Kind: CommandRemove, ID: "b"}))
	assert.ErrorIs(t, pool.Submit(&Command{Kind: CommandRemove, ID: "c"}), ErrQueueFull)
	assert.Equal(t, int64(1), pool.GetMetrics().DroppedCount)

	close(release)
	pool.Stop()
	assert.Equal(t, int64(2), pool.GetMetrics().ProcessedCount)
	assert.Equal(t, 1, pool.GetQueueCapacity())
}

func TestExpiredCommandIsDropped(t *testing.T) {
	release := make(chan struct{})
	var (
		mu      sync.Mutex
		applied []string
	)
	logger := log.NewNopLogger()
	pool := NewProcessingPool("scene", 1, 4, logger)
	pool.SetProcessor(func(cmd *Command) (map[string]interface{}, error) {
		if cmd.ID == "a" {
			<-release
		}
		mu.Lock()
		applied = append(applied, cmd.ID)
		mu.Unlock()
		return nil, nil
	})
	pool.Start()

	require.NoError(t, pool.Submit(&Command{Kind: CommandRemove, ID: "a"}))
	require.Eventually(t, func() bool { return pool.GetQueueLength() == 0 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := pool.SubmitAndWait(ctx, &Command{Kind: CommandRemove, ID: "b"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, pool.Submit(&Command{Kind: CommandRemove, ID: "c"}))
	close(release)
	pool.Stop()

	assert.Equal(t, []string{"a", "c"}, applied)
	assert.Equal(t, int64(1), pool.GetMetrics().DroppedCount)
	assert.Equal(t, int64(2), pool.GetMetrics().ProcessedCount)
}
