package implementations

import (
	"fmt"
	"io"
	"strings"

	"github.com/jitsucom/spout/base/timestamp"
	"github.com/jitsucom/spout/types"
)

var folderMacro = map[string]func() string{
	"[DATE]": func() string {
		return timestamp.Now().Format("2006-01-02")
	},
	"[TIMESTAMP]": func() string {
		return fmt.Sprintf("%d", timestamp.Now().Unix())
	},
}

// FileAdapter is a destination for batch artifacts: a local directory or an
// object store bucket. Upload publishes a complete artifact as a unit.
type FileAdapter interface {
	io.Closer
	UploadBytes(fileName string, fileBytes []byte) error
	Upload(fileName string, fileReader io.ReadSeeker) error
	Download(fileName string) ([]byte, error)
	DeleteObject(key string) error
	Path(fileName string) string
	AddFileExtension(fileName string) string
	Format() types.FileFormat
	Compression() types.FileCompression
}

type FileConfig struct {
	Folder      string                `mapstructure:"folder,omitempty" json:"folder,omitempty" yaml:"folder,omitempty"`
	Format      types.FileFormat      `mapstructure:"format,omitempty" json:"format,omitempty" yaml:"format,omitempty"`
	Compression types.FileCompression `mapstructure:"compression,omitempty" json:"compression,omitempty" yaml:"compression,omitempty"`
}

type AbstractFileAdapter struct {
	config *FileConfig
}

func (a *AbstractFileAdapter) Format() types.FileFormat {
	return a.config.Format
}

func (a *AbstractFileAdapter) Compression() types.FileCompression {
	return a.config.Compression
}

func (a *AbstractFileAdapter) AddFileExtension(fileName string) string {
	gz := ""
	ext := ""
	switch a.config.Format {
	case types.FileFormatCSV:
		ext = ".csv"
	case types.FileFormatNDJSON:
		ext = ".ndjson"
	}
	switch a.config.Compression {
	case types.FileCompressionGZIP:
		gz += ".gz"
	}
	if strings.HasSuffix(fileName, ext) {
		return fileName + gz
	} else if strings.HasSuffix(fileName, ext+gz) {
		return fileName
	} else {
		return fileName + ext + gz
	}
}

func (a *AbstractFileAdapter) Path(fileName string) string {
	folder := a.config.Folder
	if folder != "" {
		folder = replaceMacro(folder)
		if !strings.HasSuffix(folder, "/") {
			folder += "/"
		}
	}
	return fmt.Sprintf("%s%s", folder, fileName)
}

func replaceMacro(folder string) string {
	for macro, fn := range folderMacro {
		folder = strings.ReplaceAll(folder, macro, fn())
	}
	return folder
}
