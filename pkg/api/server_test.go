package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/scenebridge/domain/diagnostic"
	domainscene "github.com/open-teleop/scenebridge/domain/scene"
	"github.com/open-teleop/scenebridge/domain/teleop"
	"github.com/open-teleop/scenebridge/pkg/config"
	"github.com/open-teleop/scenebridge/pkg/log"
	"github.com/open-teleop/scenebridge/pkg/msgs"
	"github.com/open-teleop/scenebridge/pkg/processing"
	"github.com/open-teleop/scenebridge/pkg/robot"
	"github.com/open-teleop/scenebridge/pkg/scene"
)

const testURDF = `<robot name="ur5">
  <link name="world"/>
  <link name="base_link">
    <visual><geometry><mesh filename="package://ur_description/meshes/base.dae"/></geometry></visual>
  </link>
  <link name="shoulder_link"/>
  <joint name="world_joint" type="fixed">
    <parent link="world"/><child link="base_link"/>
  </joint>
  <joint name="shoulder_pan_joint" type="revolute">
    <parent link="base_link"/><child link="shoulder_link"/>
  </joint>
</robot>`

type fakeQueue struct {
	mu       sync.Mutex
	commands []*processing.Command
	registry *scene.Registry
	err      error
}

func (q *fakeQueue) Submit(cmd *processing.Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.commands = append(q.commands, cmd)
	return nil
}

func (q *fakeQueue) SubmitAndWait(ctx context.Context, cmd *processing.Command) (*processing.ProcessResult, error) {
	if err := q.Submit(cmd); err != nil {
		return nil, err
	}
	op := msgs.CollisionObjectAdd
	switch cmd.Kind {
	case processing.CommandAppend:
		op = msgs.CollisionObjectAppend
	case processing.CommandRemove:
		op = msgs.CollisionObjectRemove
	}
	q.registry.Record(cmd.ID, op, 1, cmd.Timestamp)
	return &processing.ProcessResult{
		Topic:   cmd.Topic(),
		Command: cmd,
		Data:    map[string]interface{}{"id": cmd.ID, "operation": cmd.Kind},
	}, nil
}

type fakeTopicPublisher struct {
	topic string
	msg   msgs.WireCodec
}

func (p *fakeTopicPublisher) Publish(topic string, msg msgs.WireCodec) error {
	p.topic = topic
	p.msg = msg
	return nil
}

type testEnv struct {
	queue    *fakeQueue
	registry *scene.Registry
	teleop   *fakeTopicPublisher
	do       func(req *http.Request) *http.Response
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := log.NewNopLogger()

	model, err := robot.ParseURDF(testURDF)
	require.NoError(t, err)
	r := &robot.Robot{
		Name:      model.Name,
		Model:     model,
		Semantics: &robot.Semantics{Groups: []robot.Group{{Name: "manipulator"}, {Name: "endeffector"}}},
		RootName:  "world",
	}

	reg := prometheus.NewRegistry()
	registry := scene.NewRegistry(logger, reg)
	queue := &fakeQueue{registry: registry}
	pub := &fakeTopicPublisher{}

	app := NewServer(Services{
		Scene:       domainscene.NewSceneService(queue, registry, r, time.Second, logger),
		Teleop:      teleop.NewTeleopService(pub, "", 1.0, 2.0, logger),
		Diagnostics: diagnostic.NewDiagnosticService(processing.NewProcessingPool("scene", 1, 4, logger), nil, registry, logger),
		Hub:         NewHub(logger),
		Queue:       queue,
		Config:      &config.BootstrapConfig{Server: config.ServerConfig{HTTPPort: 8080}},
		Gatherer:    reg,
	}, logger, false)

	return &testEnv{
		queue:    queue,
		registry: registry,
		teleop:   pub,
		do: func(req *http.Request) *http.Response {
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			return resp
		},
	}
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func boxBody(t *testing.T, id string) string {
	t.Helper()
	b, err := json.Marshal(domainscene.CollisionMeshRequest{ID: id, Mesh: scene.BoxSpec(0.2, 0.1, 0.3)})
	require.NoError(t, err)
	return string(b)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", decodeBody(t, resp)["status"])
}

func TestGetRobot(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/robot", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	info := decodeBody(t, resp)["robot"].(map[string]interface{})
	assert.Equal(t, "ur5", info["name"])
	assert.Equal(t, "world", info["root_link"])
	assert.Equal(t, "manipulator", info["main_group"])
	assert.Equal(t, []interface{}{"shoulder_pan_joint"}, info["joints"])
	assert.Equal(t, []interface{}{"package://ur_description/meshes/base.dae"}, info["mesh_filenames"])
}

func TestCollisionMeshLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(jsonRequest(http.MethodPost, "/api/v1/scene/collision_meshes?mode=append", boxBody(t, "brick")))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = env.do(jsonRequest(http.MethodPost, "/api/v1/scene/collision_meshes?mode=append", boxBody(t, "brick")))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/scene/collision_meshes/brick", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	info := decodeBody(t, resp)
	assert.Equal(t, float64(2), info["mesh_count"])
	assert.Equal(t, "append", info["last_operation"])

	resp = env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/scene/collision_meshes/brick", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/scene", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeBody(t, resp)["objects"])

	require.Len(t, env.queue.commands, 3)
	assert.Equal(t, processing.CommandAppend, env.queue.commands[0].Kind)
	assert.Equal(t, "http", env.queue.commands[0].Source)
	assert.Equal(t, processing.CommandRemove, env.queue.commands[2].Kind)
}

func TestRemoveCommandOwnsItsID(t *testing.T) {
	env := newTestEnv(t)

	for _, id := range []string{"wall-1", "wall-2", "wall-3"} {
		resp := env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/scene/collision_meshes/"+id, nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	require.Len(t, env.queue.commands, 3)
	assert.Equal(t, "wall-1", env.queue.commands[0].ID)
	assert.Equal(t, "wall-2", env.queue.commands[1].ID)
	assert.Equal(t, "wall-3", env.queue.commands[2].ID)
}

func TestCollisionMeshRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(jsonRequest(http.MethodPost, "/api/v1/scene/collision_meshes?mode=move", boxBody(t, "brick")))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeBody(t, resp)["error"], "mode")

	resp = env.do(jsonRequest(http.MethodPost, "/api/v1/scene/collision_meshes", boxBody(t, "")))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(jsonRequest(http.MethodPost, "/api/v1/scene/collision_meshes", `{"id":"brick","mesh":{"vertices":[],"faces":[]}}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/scene/collision_meshes/ghost", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	assert.Empty(t, env.queue.commands)
}

func TestCollisionMeshQueueFull(t *testing.T) {
	env := newTestEnv(t)
	env.queue.err = processing.ErrQueueFull

	resp := env.do(jsonRequest(http.MethodPost, "/api/v1/scene/collision_meshes", boxBody(t, "brick")))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

func TestTeleopVelocity(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(jsonRequest(http.MethodPost, "/api/v1/teleop/velocity", `{"linear_x":0.5,"angular_z":-1.5}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	assert.Equal(t, teleop.DefaultVelocityTopic, env.teleop.topic)
	twist, ok := env.teleop.msg.(msgs.Twist)
	require.True(t, ok)
	assert.Equal(t, 0.5, twist.Linear.X)
	assert.Equal(t, -1.5, twist.Angular.Z)

	resp = env.do(jsonRequest(http.MethodPost, "/api/v1/teleop/velocity", `{"linear_x":3}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestDiagnostics(t *testing.T) {
	env := newTestEnv(t)
	env.registry.Record("brick", msgs.CollisionObjectAdd, 1, 1)

	resp := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/diagnostics", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	m := decodeBody(t, resp)["metrics"].(map[string]interface{})
	assert.Equal(t, false, m["rosbridge_connected"])
	pool := m["pool"].(map[string]interface{})
	assert.Equal(t, "scene", pool["name"])
	assert.Equal(t, float64(4), pool["queue_capacity"])
	assert.Contains(t, m["objects"], "brick")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.registry.Record("brick", msgs.CollisionObjectAdd, 1, 1)

	resp := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "scenebridge_scene_collision_objects 1")
	assert.Contains(t, string(body), `scenebridge_scene_operations_total{operation="add"} 1`)
}

func TestGetConfig(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-yaml", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "http_port: 8080")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/config", nil)
	req.Header.Set("Accept", "application/json")
	resp = env.do(req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	server := decodeBody(t, resp)["server"].(map[string]interface{})
	assert.Equal(t, float64(8080), server["http_port"])
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(httptest.NewRequest(http.MethodGet, "/ws/scene", nil))
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
	resp.Body.Close()
}

func TestUnknownRouteReturnsJSONError(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/nothing", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, decodeBody(t, resp)["error"])
}

func TestQueueCommand(t *testing.T) {
	q := &fakeQueue{}
	spec := scene.BoxSpec(1, 1, 1)

	require.NoError(t, queueCommand(q, SceneCommandMsg{Op: "append", ID: "brick", Mesh: &spec}))
	require.NoError(t, queueCommand(q, SceneCommandMsg{Op: "remove", ID: "brick"}))
	assert.Error(t, queueCommand(q, SceneCommandMsg{Op: "move", ID: "brick"}))
	assert.ErrorIs(t, queueCommand(q, SceneCommandMsg{Op: "remove"}), scene.ErrEmptyID)
	assert.Error(t, queueCommand(q, SceneCommandMsg{Op: "add", ID: "brick"}))

	require.Len(t, q.commands, 2)
	assert.Equal(t, "websocket", q.commands[0].Source)
	assert.NotNil(t, q.commands[0].Mesh)
	assert.Nil(t, q.commands[1].Mesh)
}

func TestHubBroadcastWithoutClients(t *testing.T) {
	hub := NewHub(log.NewNopLogger())
	hub.Broadcast("scene.add", []byte(`{}`))
	assert.Equal(t, 0, hub.ClientCount())
}
