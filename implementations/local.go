package implementations

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jitsucom/spout/base/errorj"
	"github.com/jitsucom/spout/types"
	"go.uber.org/atomic"
)

const LocalFileAdapterTypeId = "file"

// LocalDirConfig is a dto for local filesystem destination config deserialization
type LocalDirConfig struct {
	FileConfig `mapstructure:",squash" json:",inline" yaml:",inline"`
	Directory  string `mapstructure:"directory,omitempty" json:"directory,omitempty" yaml:"directory,omitempty"`
}

// Validate returns err if invalid
func (lc *LocalDirConfig) Validate() error {
	if lc == nil {
		return errors.New("Local file config is required")
	}
	if lc.Directory == "" {
		return errors.New("Local file directory is required parameter")
	}
	return nil
}

// LocalDir writes batch artifacts to a local directory. An artifact appears
// in the directory only as a complete file: payload is first written to a
// hidden temp file on the same filesystem and renamed into place.
type LocalDir struct {
	AbstractFileAdapter
	config *LocalDirConfig

	closed *atomic.Bool
}

// NewLocalDir returns configured LocalDir adapter
func NewLocalDir(config *LocalDirConfig) (*LocalDir, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Format == "" {
		config.Format = types.FileFormatNDJSON
	}
	if err := os.MkdirAll(config.Directory, 0o755); err != nil {
		return nil, errorj.WriteError.Wrap(err, "failed to create destination directory")
	}
	return &LocalDir{AbstractFileAdapter: AbstractFileAdapter{config: &config.FileConfig}, config: config, closed: atomic.NewBool(false)}, nil
}

func (a *LocalDir) UploadBytes(fileName string, fileBytes []byte) error {
	tmp, err := os.CreateTemp(a.config.Directory, ".spout_*")
	if err != nil {
		return errorj.WriteError.Wrap(err, "failed to create temp file in destination directory")
	}
	if _, err = tmp.Write(fileBytes); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return errorj.WriteError.Wrap(err, "failed to write file payload")
	}
	return a.publish(tmp, fileName)
}

// Upload writes payload to a temp file and atomically renames it to the final name
func (a *LocalDir) Upload(fileName string, fileReader io.ReadSeeker) error {
	if a.closed.Load() {
		return fmt.Errorf("attempt to use closed LocalDir instance")
	}
	tmp, err := os.CreateTemp(a.config.Directory, ".spout_*")
	if err != nil {
		return errorj.WriteError.Wrap(err, "failed to create temp file in destination directory")
	}
	if _, err = io.Copy(tmp, fileReader); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return errorj.WriteError.Wrap(err, "failed to write file payload")
	}
	return a.publish(tmp, fileName)
}

func (a *LocalDir) publish(tmp *os.File, fileName string) error {
	targetPath := filepath.Join(a.config.Directory, a.Path(fileName))
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return errorj.WriteError.Wrap(err, "failed to create destination folder")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return errorj.WriteError.Wrap(err, "failed to sync file payload")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return errorj.WriteError.Wrap(err, "failed to close temp file")
	}
	if err := os.Rename(tmp.Name(), targetPath); err != nil {
		_ = os.Remove(tmp.Name())
		return errorj.WriteError.Wrap(err, "failed to publish file").
			WithProperty(errorj.DBInfo, &types.ErrorPayload{
				Statement: fmt.Sprintf("file: %s", targetPath),
			})
	}
	return nil
}

// Download reads a previously published artifact
func (a *LocalDir) Download(fileName string) ([]byte, error) {
	if a.closed.Load() {
		return nil, fmt.Errorf("attempt to use closed LocalDir instance")
	}
	data, err := os.ReadFile(filepath.Join(a.config.Directory, a.Path(fileName)))
	if err != nil {
		return nil, errorj.WriteError.Wrap(err, "failed to read file")
	}
	return data, nil
}

// DeleteObject removes a published artifact by name
func (a *LocalDir) DeleteObject(key string) error {
	if a.closed.Load() {
		return fmt.Errorf("attempt to use closed LocalDir instance")
	}
	if err := os.Remove(filepath.Join(a.config.Directory, a.Path(key))); err != nil {
		return errorj.WriteError.Wrap(err, "failed to delete file")
	}
	return nil
}

// Close returns nil
func (a *LocalDir) Close() error {
	a.closed.Store(true)
	return nil
}
