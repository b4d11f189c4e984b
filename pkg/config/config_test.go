package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeBootstrap(t *testing.T, content string) string {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "bootstrap-config-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	configPath := filepath.Join(tempDir, BootstrapFilename)
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test bootstrap config: %v", err)
	}
	return tempDir
}

func TestLoadBootstrapConfig(t *testing.T) {
	t.Setenv(EnvRosbridgeURL, "")

	bootstrapContent := `
logging:
  level: "debug"
  log_path: "/var/log/scenebridge"
server:
  http_port: 9090
zeromq:
  request_bind_address: "tcp://*:6666"
  publish_bind_address: "tcp://*:7777"
  payload_encoding: "msgpack"
rosbridge:
  url: "ws://robot:9090"
  call_timeout_ms: 2500
data:
  directory: "/data/robot_description"
  cache_robot_files: true
processing:
  workers: 1
  queue_size: 32
`
	tempDir := writeBootstrap(t, bootstrapContent)

	bootstrapCfg, err := LoadBootstrapConfig(tempDir)
	if err != nil {
		t.Fatalf("LoadBootstrapConfig failed: %v", err)
	}

	if bootstrapCfg.Logging.Level != "debug" {
		t.Errorf("Expected logging level 'debug', got '%s'", bootstrapCfg.Logging.Level)
	}
	if bootstrapCfg.Logging.LogPath != "/var/log/scenebridge" {
		t.Errorf("Expected log path '/var/log/scenebridge', got '%s'", bootstrapCfg.Logging.LogPath)
	}
	if bootstrapCfg.Server.HTTPPort != 9090 {
		t.Errorf("Expected server http_port 9090, got %d", bootstrapCfg.Server.HTTPPort)
	}
	if bootstrapCfg.ZeroMQ.RequestBindAddress != "tcp://*:6666" {
		t.Errorf("Expected zeromq request_bind_address 'tcp://*:6666', got '%s'", bootstrapCfg.ZeroMQ.RequestBindAddress)
	}
	if bootstrapCfg.ZeroMQ.PublishBindAddress != "tcp://*:7777" {
		t.Errorf("Expected zeromq publish_bind_address 'tcp://*:7777', got '%s'", bootstrapCfg.ZeroMQ.PublishBindAddress)
	}
	if bootstrapCfg.ZeroMQ.PayloadEncoding != "msgpack" {
		t.Errorf("Expected zeromq payload_encoding 'msgpack', got '%s'", bootstrapCfg.ZeroMQ.PayloadEncoding)
	}
	if bootstrapCfg.Rosbridge.URL != "ws://robot:9090" {
		t.Errorf("Expected rosbridge url 'ws://robot:9090', got '%s'", bootstrapCfg.Rosbridge.URL)
	}
	if bootstrapCfg.Rosbridge.CallTimeoutMs != 2500 {
		t.Errorf("Expected rosbridge call_timeout_ms 2500, got %d", bootstrapCfg.Rosbridge.CallTimeoutMs)
	}
	if bootstrapCfg.Rosbridge.HandshakeTimeoutMs != 5000 {
		t.Errorf("Expected default rosbridge handshake_timeout_ms 5000, got %d", bootstrapCfg.Rosbridge.HandshakeTimeoutMs)
	}
	if bootstrapCfg.Data.Directory != "/data/robot_description" {
		t.Errorf("Expected data directory '/data/robot_description', got '%s'", bootstrapCfg.Data.Directory)
	}
	if !bootstrapCfg.Data.CacheRobotFiles {
		t.Errorf("Expected data cache_robot_files true")
	}
	if bootstrapCfg.Processing.Workers != 1 {
		t.Errorf("Expected processing workers 1, got %d", bootstrapCfg.Processing.Workers)
	}
	if bootstrapCfg.Processing.QueueSize != 32 {
		t.Errorf("Expected processing queue_size 32, got %d", bootstrapCfg.Processing.QueueSize)
	}
}

func TestLoadBootstrapConfigDefaults(t *testing.T) {
	t.Setenv(EnvRosbridgeURL, "")

	tempDir := writeBootstrap(t, `
zeromq:
  request_bind_address: "tcp://*:6666"
  publish_bind_address: "tcp://*:7777"
rosbridge:
  url: "ws://localhost:9090"
`)
	bootstrapCfg, err := LoadBootstrapConfig(tempDir)
	if err != nil {
		t.Fatalf("LoadBootstrapConfig failed: %v", err)
	}
	if bootstrapCfg.Logging.Level != "info" {
		t.Errorf("Expected default logging level 'info', got '%s'", bootstrapCfg.Logging.Level)
	}
	if bootstrapCfg.Server.HTTPPort != 8080 {
		t.Errorf("Expected default http_port 8080, got %d", bootstrapCfg.Server.HTTPPort)
	}
	if bootstrapCfg.ZeroMQ.PayloadEncoding != "json" {
		t.Errorf("Expected default payload_encoding 'json', got '%s'", bootstrapCfg.ZeroMQ.PayloadEncoding)
	}
	if bootstrapCfg.Rosbridge.CallTimeoutMs != 10000 {
		t.Errorf("Expected default call_timeout_ms 10000, got %d", bootstrapCfg.Rosbridge.CallTimeoutMs)
	}
	if bootstrapCfg.Processing.Workers != 1 || bootstrapCfg.Processing.QueueSize != 100 {
		t.Errorf("Expected default processing 1/100, got %d/%d",
			bootstrapCfg.Processing.Workers, bootstrapCfg.Processing.QueueSize)
	}
	if bootstrapCfg.Teleop.VelocityTopic != "/cmd_vel" {
		t.Errorf("Expected default velocity_topic '/cmd_vel', got '%s'", bootstrapCfg.Teleop.VelocityTopic)
	}
}

func TestLoadBootstrapConfigEnvOverride(t *testing.T) {
	t.Setenv(EnvRosbridgeURL, "ws://override:9090")

	tempDir := writeBootstrap(t, `
zeromq:
  request_bind_address: "tcp://*:6666"
  publish_bind_address: "tcp://*:7777"
`)
	bootstrapCfg, err := LoadBootstrapConfig(tempDir)
	if err != nil {
		t.Fatalf("LoadBootstrapConfig failed: %v", err)
	}
	if bootstrapCfg.Rosbridge.URL != "ws://override:9090" {
		t.Errorf("Expected rosbridge url from environment, got '%s'", bootstrapCfg.Rosbridge.URL)
	}
}

// Test case for missing required fields validation in LoadBootstrapConfig
func TestLoadBootstrapConfigMissingRequired(t *testing.T) {
	t.Setenv(EnvRosbridgeURL, "")

	cases := map[string]string{
		"missing required field in bootstrap config: zeromq.request_bind_address": `
zeromq:
  publish_bind_address: "tcp://*:7777"
rosbridge:
  url: "ws://localhost:9090"
`,
		"missing required field in bootstrap config: rosbridge.url": `
zeromq:
  request_bind_address: "tcp://*:6666"
  publish_bind_address: "tcp://*:7777"
`,
		"missing required field in bootstrap config: data.directory": `
zeromq:
  request_bind_address: "tcp://*:6666"
  publish_bind_address: "tcp://*:7777"
rosbridge:
  url: "ws://localhost:9090"
data:
  cache_robot_files: true
`,
		"invalid value in bootstrap config: processing.workers=4": `
zeromq:
  request_bind_address: "tcp://*:6666"
  publish_bind_address: "tcp://*:7777"
rosbridge:
  url: "ws://localhost:9090"
processing:
  workers: 4
`,
		"invalid value in bootstrap config: processing.workers=-1": `
zeromq:
  request_bind_address: "tcp://*:6666"
  publish_bind_address: "tcp://*:7777"
rosbridge:
  url: "ws://localhost:9090"
processing:
  workers: -1
`,
		"zeromq.payload_encoding": `
zeromq:
  request_bind_address: "tcp://*:6666"
  publish_bind_address: "tcp://*:7777"
  payload_encoding: "protobuf"
rosbridge:
  url: "ws://localhost:9090"
`,
	}

	for expectedErrorSubstr, content := range cases {
		tempDir := writeBootstrap(t, content)
		_, err := LoadBootstrapConfig(tempDir)
		if err == nil {
			t.Errorf("Expected error containing '%s', but got nil", expectedErrorSubstr)
			continue
		}
		if !strings.Contains(err.Error(), expectedErrorSubstr) {
			t.Errorf("Expected error message to contain '%s', but got: %v", expectedErrorSubstr, err)
		}
	}
}

func TestResolveConfigDir(t *testing.T) {
	t.Setenv(EnvConfigDir, "")
	if dir := ResolveConfigDir(""); dir != "config" {
		t.Errorf("Expected default config dir 'config', got '%s'", dir)
	}
	t.Setenv(EnvConfigDir, "/etc/scenebridge")
	if dir := ResolveConfigDir(""); dir != "/etc/scenebridge" {
		t.Errorf("Expected config dir from environment, got '%s'", dir)
	}
	if dir := ResolveConfigDir("./local"); dir != "./local" {
		t.Errorf("Expected explicit config dir, got '%s'", dir)
	}
}

func TestLoadTasksConfig(t *testing.T) {
	tempDir := t.TempDir()

	cfg, err := LoadTasksConfig(filepath.Join(tempDir, TasksFilename))
	if err != nil {
		t.Fatalf("LoadTasksConfig without file failed: %v", err)
	}
	if cfg.Package != "compas_fab" {
		t.Errorf("Expected default package 'compas_fab', got '%s'", cfg.Package)
	}
	if cfg.Tools.IronPython != "ipy" {
		t.Errorf("Expected default ironpython 'ipy', got '%s'", cfg.Tools.IronPython)
	}

	content := `
package: my_pkg
tools:
  python: python3
docs:
  deploy_subdir: my_pkg/latest
`
	path := filepath.Join(tempDir, TasksFilename)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write tasks config: %v", err)
	}
	cfg, err = LoadTasksConfig(path)
	if err != nil {
		t.Fatalf("LoadTasksConfig failed: %v", err)
	}
	if cfg.Package != "my_pkg" {
		t.Errorf("Expected package 'my_pkg', got '%s'", cfg.Package)
	}
	if cfg.Tools.Python != "python3" {
		t.Errorf("Expected python 'python3', got '%s'", cfg.Tools.Python)
	}
	if cfg.Tools.Pytest != "pytest" {
		t.Errorf("Expected untouched pytest default, got '%s'", cfg.Tools.Pytest)
	}
	if cfg.Docs.DeploySubdir != "my_pkg/latest" {
		t.Errorf("Expected deploy_subdir 'my_pkg/latest', got '%s'", cfg.Docs.DeploySubdir)
	}
	if cfg.Docs.BuildDir != "dist/docs" {
		t.Errorf("Expected untouched build_dir default, got '%s'", cfg.Docs.BuildDir)
	}

	if err := os.WriteFile(path, []byte("package: [unterminated"), 0644); err != nil {
		t.Fatalf("Failed to write tasks config: %v", err)
	}
	if _, err := LoadTasksConfig(path); err == nil {
		t.Errorf("Expected parse error for malformed tasks config")
	}
}
