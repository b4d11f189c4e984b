package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BootstrapFilename is the name of the gateway configuration file
const BootstrapFilename = "scenebridge_config.yaml"

// Environment overrides
const (
	EnvConfigDir    = "SCENEBRIDGE_CONFIG_DIR"
	EnvRosbridgeURL = "ROSBRIDGE_URL"
)

// BootstrapConfig holds the configuration loaded from scenebridge_config.yaml
type BootstrapConfig struct {
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	ZeroMQ     ZeroMQConfig     `yaml:"zeromq" json:"zeromq"`
	Rosbridge  RosbridgeConfig  `yaml:"rosbridge" json:"rosbridge"`
	Processing ProcessingConfig `yaml:"processing" json:"processing"`
	Teleop     TeleopConfig     `yaml:"teleop" json:"teleop"`
	Data       DataConfig       `yaml:"data" json:"data"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	LogPath string `yaml:"log_path,omitempty" json:"log_path,omitempty"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	HTTPPort       int `yaml:"http_port" json:"http_port"`
	RequestTimeout int `yaml:"request_timeout" json:"request_timeout"`
}

// ZeroMQConfig holds ZeroMQ settings
type ZeroMQConfig struct {
	RequestBindAddress string `yaml:"request_bind_address" json:"request_bind_address"`
	PublishBindAddress string `yaml:"publish_bind_address" json:"publish_bind_address"`
	// PayloadEncoding selects the event payload format: json or msgpack
	PayloadEncoding string `yaml:"payload_encoding" json:"payload_encoding"`
}

// RosbridgeConfig holds the middleware connection settings
type RosbridgeConfig struct {
	URL                string `yaml:"url" json:"url"`
	CallTimeoutMs      int    `yaml:"call_timeout_ms" json:"call_timeout_ms"`
	HandshakeTimeoutMs int    `yaml:"handshake_timeout_ms" json:"handshake_timeout_ms"`
	URDFParam          string `yaml:"urdf_param" json:"urdf_param"`
	SRDFParam          string `yaml:"srdf_param" json:"srdf_param"`
}

// ProcessingConfig holds scene command pool settings
type ProcessingConfig struct {
	// Workers must be 1 so commands are applied in arrival order
	Workers   int `yaml:"workers" json:"workers"`
	QueueSize int `yaml:"queue_size" json:"queue_size"`
}

// TeleopConfig holds velocity command settings
type TeleopConfig struct {
	VelocityTopic string  `yaml:"velocity_topic" json:"velocity_topic"`
	MaxLinear     float64 `yaml:"max_linear" json:"max_linear"`
	MaxAngular    float64 `yaml:"max_angular" json:"max_angular"`
}

// DataConfig holds data directory settings
type DataConfig struct {
	Directory string `yaml:"directory" json:"directory"`
	// CacheRobotFiles keeps robot descriptions and meshes under Directory
	CacheRobotFiles bool `yaml:"cache_robot_files" json:"cache_robot_files"`
}

// ResolveConfigDir returns dir, or the directory named by SCENEBRIDGE_CONFIG_DIR
// when dir is empty, or "config"
func ResolveConfigDir(dir string) string {
	if dir != "" {
		return dir
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return env
	}
	return "config"
}

// LoadBootstrapConfig loads the gateway configuration from scenebridge_config.yaml
func LoadBootstrapConfig(configDir string) (*BootstrapConfig, error) {
	bootstrapConfigPath := filepath.Join(configDir, BootstrapFilename)

	data, err := os.ReadFile(bootstrapConfigPath)
	if err != nil {
		return nil, fmt.Errorf("error reading bootstrap config file '%s': %w", bootstrapConfigPath, err)
	}

	var bootstrapCfg BootstrapConfig
	if err := yaml.Unmarshal(data, &bootstrapCfg); err != nil {
		return nil, fmt.Errorf("error parsing bootstrap config file '%s': %w", bootstrapConfigPath, err)
	}

	if url := os.Getenv(EnvRosbridgeURL); url != "" {
		bootstrapCfg.Rosbridge.URL = url
	}
	bootstrapCfg.applyDefaults()

	if bootstrapCfg.ZeroMQ.RequestBindAddress == "" {
		return nil, fmt.Errorf("missing required field in bootstrap config: zeromq.request_bind_address")
	}
	if bootstrapCfg.ZeroMQ.PublishBindAddress == "" {
		return nil, fmt.Errorf("missing required field in bootstrap config: zeromq.publish_bind_address")
	}
	if bootstrapCfg.Rosbridge.URL == "" {
		return nil, fmt.Errorf("missing required field in bootstrap config: rosbridge.url")
	}
	if bootstrapCfg.Data.CacheRobotFiles && bootstrapCfg.Data.Directory == "" {
		return nil, fmt.Errorf("missing required field in bootstrap config: data.directory")
	}
	if bootstrapCfg.Processing.Workers != 1 {
		return nil, fmt.Errorf("invalid value in bootstrap config: processing.workers=%d (must be 1)",
			bootstrapCfg.Processing.Workers)
	}
	switch bootstrapCfg.ZeroMQ.PayloadEncoding {
	case "json", "msgpack":
	default:
		return nil, fmt.Errorf("invalid value in bootstrap config: zeromq.payload_encoding=%q (must be json or msgpack)",
			bootstrapCfg.ZeroMQ.PayloadEncoding)
	}

	return &bootstrapCfg, nil
}

func (c *BootstrapConfig) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8080
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 30
	}
	if c.ZeroMQ.PayloadEncoding == "" {
		c.ZeroMQ.PayloadEncoding = "json"
	}
	if c.Rosbridge.CallTimeoutMs == 0 {
		c.Rosbridge.CallTimeoutMs = 10000
	}
	if c.Rosbridge.HandshakeTimeoutMs == 0 {
		c.Rosbridge.HandshakeTimeoutMs = 5000
	}
	if c.Processing.Workers == 0 {
		c.Processing.Workers = 1
	}
	if c.Processing.QueueSize == 0 {
		c.Processing.QueueSize = 100
	}
	if c.Teleop.VelocityTopic == "" {
		c.Teleop.VelocityTopic = "/cmd_vel"
	}
}
