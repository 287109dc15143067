package app

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/hjson/hjson-go/v4"
	"gopkg.in/yaml.v3"

	"github.com/jitsucom/spout/base/errorj"
	"github.com/jitsucom/spout/base/utils"
	"github.com/jitsucom/spout/spout"
)

// RunConfig is the definition of one extraction run: the source to connect to,
// what to extract from it and where to publish the batch artifact.
type RunConfig struct {
	//Id of the run. Defaults to the file name without extension
	Id string `mapstructure:"id,omitempty" json:"id,omitempty" yaml:"id,omitempty"`

	//Source - source system connection: type plus vendor connection parameters
	Source SourceConfig `mapstructure:"source" json:"source" yaml:"source"`

	//Extract - what to pull from the source
	Extract spout.ExtractSpec `mapstructure:"extract" json:"extract" yaml:"extract"`

	//Options - extraction options by name: limit, timeout, columns, parameters
	Options map[string]any `mapstructure:"options,omitempty" json:"options,omitempty" yaml:"options,omitempty"`

	//Destination - where the batch artifact is published
	Destination DestinationConfig `mapstructure:"destination" json:"destination" yaml:"destination"`

	//ArtifactName - base name of the published artifact, without extension.
	//Defaults to the run id
	ArtifactName string `mapstructure:"artifactName,omitempty" json:"artifactName,omitempty" yaml:"artifactName,omitempty"`
}

type SourceConfig struct {
	Type       string         `mapstructure:"type" json:"type" yaml:"type"`
	Connection map[string]any `mapstructure:"connection" json:"connection" yaml:"connection"`
}

type DestinationConfig struct {
	Type   string         `mapstructure:"type" json:"type" yaml:"type"`
	Config map[string]any `mapstructure:"config" json:"config" yaml:"config"`
}

func (rc *RunConfig) Validate() error {
	if rc.Source.Type == "" {
		return errorj.ConfigError.New("source.type is required parameter")
	}
	if rc.Destination.Type == "" {
		return errorj.ConfigError.New("destination.type is required parameter")
	}
	return rc.Extract.Validate()
}

// LoadRunConfig reads a run definition from a yaml, json or hjson file
func LoadRunConfig(path string) (*RunConfig, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, errorj.ConfigError.Wrap(err, "failed to read run config file")
	}
	runConfig := &RunConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(payload, runConfig)
	default:
		err = hjson.Unmarshal(payload, runConfig)
	}
	if err != nil {
		return nil, errorj.ConfigError.Wrap(err, "failed to parse run config file")
	}
	base := filepath.Base(path)
	runConfig.Id = utils.NvlString(runConfig.Id, strings.TrimSuffix(base, filepath.Ext(base)))
	runConfig.ArtifactName = utils.NvlString(runConfig.ArtifactName, runConfig.Id)
	if err = runConfig.Validate(); err != nil {
		return nil, err
	}
	return runConfig, nil
}
