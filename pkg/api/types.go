package api

import "github.com/open-teleop/scenebridge/pkg/scene"

// --- Data Structures for WebSocket Messages ---

// SceneCommandMsg is a scene command sent by a WebSocket client.
type SceneCommandMsg struct {
	Op   string          `json:"op"` // "add", "append" or "remove"
	ID   string          `json:"id"`
	Mesh *scene.MeshSpec `json:"mesh,omitempty"`
}

// CommandRejectedMsg is sent back to a client whose command was not queued.
// Accepted commands are answered by the scene event broadcast.
type CommandRejectedMsg struct {
	Topic string `json:"topic"`
	Op    string `json:"op"`
	ID    string `json:"id"`
	Error string `json:"error"`
}
