package robot

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/open-teleop/scenebridge/pkg/log"
)

// Parameters and services read by the loader.
const (
	DefaultURDFParam  = "/robot_description"
	DefaultSRDFParam  = "/robot_description_semantic"
	FileServerService = "/file_server/get_file"
	FileServerType    = "file_server/GetBinaryFile"
	PackageScheme     = "package://"
)

// ErrRobotNameUnknown is returned when a cache path is needed before the
// URDF has been loaded.
var ErrRobotNameUnknown = errors.New("robot name is not assigned, load the URDF first")

// ErrOutsideCache is returned for robot names and mesh urls that resolve
// outside the cache directory.
var ErrOutsideCache = errors.New("path resolves outside the cache directory")

var colladaNamespaces = [][]byte{
	[]byte(`xmlns="http://www.collada.org/2005/11/COLLADASchema"`),
	[]byte(`xmlns="https://www.collada.org/2005/11/COLLADASchema"`),
}

// Backend is the part of the middleware client the loader needs.
type Backend interface {
	GetParam(ctx context.Context, name string, out interface{}) error
	CallService(ctx context.Context, service, serviceType string, args interface{}) (json.RawMessage, error)
}

// FileServerLoader fetches the robot description and its mesh files from
// the middleware. With a cache directory set, files are kept under
// <cache>/<robot>/ and reused on later loads.
type FileServerLoader struct {
	backend  Backend
	cacheDir string
	logger   log.Logger

	mu        sync.Mutex
	robotName string
}

// NewFileServerLoader creates a loader. An empty cacheDir disables caching.
func NewFileServerLoader(backend Backend, cacheDir string, logger log.Logger) *FileServerLoader {
	return &FileServerLoader{
		backend:  backend,
		cacheDir: cacheDir,
		logger:   logger.WithField("component", "fileserver_loader"),
	}
}

// RobotName returns the name read from the last loaded URDF.
func (l *FileServerLoader) RobotName() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.robotName
}

// SetRobotName presets the robot name so a cached URDF can be used without
// contacting the middleware.
func (l *FileServerLoader) SetRobotName(name string) {
	l.mu.Lock()
	l.robotName = name
	l.mu.Unlock()
}

func (l *FileServerLoader) resourcePath() (string, error) {
	name := l.RobotName()
	if name == "" {
		return "", ErrRobotNameUnknown
	}
	if l.cacheDir == "" {
		return "", fmt.Errorf("cache directory not set")
	}
	return cachePath(l.cacheDir, name)
}

// cachePath joins rel onto base and fails when the result leaves base.
func cachePath(base, rel string) (string, error) {
	joined := filepath.Join(base, rel)
	r, err := filepath.Rel(base, joined)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideCache, rel)
	}
	return joined, nil
}

func (l *FileServerLoader) urdfFilename() (string, error) {
	base, err := l.resourcePath()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "urdf", "robot_description.urdf"), nil
}

func (l *FileServerLoader) srdfFilename() (string, error) {
	base, err := l.resourcePath()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "robot_description_semantic.srdf"), nil
}

func (l *FileServerLoader) cached(filename func() (string, error)) (string, bool) {
	if l.cacheDir == "" || l.RobotName() == "" {
		return "", false
	}
	name, err := filename()
	if err != nil {
		return "", false
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return "", false
	}
	l.logger.Debugf("Loading file %s from local cache dir", name)
	return string(data), true
}

// LoadURDF returns the URDF stored in param, or DefaultURDFParam when param
// is empty. Loading the URDF assigns the robot name.
func (l *FileServerLoader) LoadURDF(ctx context.Context, param string) (string, error) {
	if doc, ok := l.cached(l.urdfFilename); ok {
		return doc, nil
	}
	if param == "" {
		param = DefaultURDFParam
	}

	var urdf string
	if err := l.backend.GetParam(ctx, param, &urdf); err != nil {
		return "", err
	}
	name, err := RobotName(urdf)
	if err != nil {
		return "", err
	}
	l.SetRobotName(name)

	if l.cacheDir != "" {
		filename, err := l.urdfFilename()
		if err != nil {
			return "", err
		}
		if err := writeFile(filename, []byte(urdf)); err != nil {
			return "", err
		}
		l.logger.Debugf("Saved URDF to %s", filename)
	}
	return urdf, nil
}

// LoadSRDF returns the SRDF stored in param, or DefaultSRDFParam when param
// is empty.
func (l *FileServerLoader) LoadSRDF(ctx context.Context, param string) (string, error) {
	if doc, ok := l.cached(l.srdfFilename); ok {
		return doc, nil
	}
	if param == "" {
		param = DefaultSRDFParam
	}

	var srdf string
	if err := l.backend.GetParam(ctx, param, &srdf); err != nil {
		return "", err
	}

	if l.cacheDir != "" {
		filename, err := l.srdfFilename()
		if err != nil {
			return "", err
		}
		if err := writeFile(filename, []byte(srdf)); err != nil {
			return "", err
		}
	}
	return srdf, nil
}

// CanLoadMesh reports whether url is served by the file server.
func (l *FileServerLoader) CanLoadMesh(url string) bool {
	return strings.HasPrefix(url, PackageScheme)
}

// LoadMesh fetches the mesh file behind url and returns the path of a local
// copy. Without a cache directory the copy is a temporary file owned by the
// caller.
func (l *FileServerLoader) LoadMesh(ctx context.Context, url string) (string, error) {
	if !l.CanLoadMesh(url) {
		return "", fmt.Errorf("unsupported mesh url %q", url)
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(url), "."))

	var local string
	if l.cacheDir != "" {
		base, err := l.resourcePath()
		if err != nil {
			return "", err
		}
		local, err = cachePath(base, filepath.FromSlash(strings.TrimPrefix(url, PackageScheme)))
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(local); err == nil {
			l.logger.Debugf("Loading mesh file %s from local cache dir", local)
			return local, nil
		}
	}

	values, err := l.backend.CallService(ctx, FileServerService, FileServerType, map[string]interface{}{"name": url})
	if err != nil {
		return "", fmt.Errorf("failed to fetch mesh %s: %w", url, err)
	}
	var resp struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(values, &resp); err != nil {
		return "", fmt.Errorf("invalid file server response for %s: %w", url, err)
	}
	content, err := base64.StdEncoding.DecodeString(resp.Value)
	if err != nil {
		return "", fmt.Errorf("invalid file content for %s: %w", url, err)
	}
	if ext == "dae" {
		content = stripColladaNamespace(content)
	}

	if local == "" {
		f, err := os.CreateTemp("", "ros_fileserver_*."+ext)
		if err != nil {
			return "", fmt.Errorf("failed to create temp file: %w", err)
		}
		local = f.Name()
		f.Close()
	}
	if err := writeFile(local, content); err != nil {
		return "", err
	}
	return local, nil
}

func stripColladaNamespace(content []byte) []byte {
	for _, ns := range colladaNamespaces {
		content = bytes.ReplaceAll(content, ns, nil)
	}
	return content
}

func writeFile(filename string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(filename), err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return nil
}
