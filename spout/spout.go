package spout

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/jitsucom/spout/base/errorj"
	"github.com/jitsucom/spout/types"
)

type InitFunction func(Config) (Spout, error)

// SpoutRegistry registry of init functions for spout implementations. Used by CreateSpout factory method
var SpoutRegistry = make(map[string]InitFunction)

// Spout is a connector to one external database. Creating a Spout establishes
// a session with the source system (or fails with a connection or auth error).
// The session is owned by the Spout and is released by Close regardless of how
// the extraction went.
type Spout interface {
	io.Closer
	//Extract opens a lazy record stream for the provided extraction spec.
	//The stream is finite and non-restartable: records come in whatever order
	//the underlying query returns them and each record is produced exactly once.
	Extract(ctx context.Context, extract ExtractSpec, options ...ExtractOption) (RecordStream, error)
	//Ping verifies that the session is still usable
	Ping(ctx context.Context) error
	Type() string
}

// RecordStream is a lazy, finite, non-restartable sequence of extracted records.
type RecordStream interface {
	io.Closer
	//Next returns the next record or io.EOF when the source is drained.
	//A connection drop mid scan surfaces as PartialReadError, an exceeded
	//deadline as TimeoutError.
	Next(ctx context.Context) (types.Record, error)
	//Header - schema of the current run. For strictly typed sources it is
	//known before the first record, for document sources it grows as records
	//reveal fields
	Header() *types.BatchHeader
}

// ExtractSpec tells a spout what to pull: either a native query or a full
// scan of a table / collection / key pattern. Exactly one of Query and Table
// should be set.
type ExtractSpec struct {
	Query string `mapstructure:"query,omitempty" json:"query,omitempty" yaml:"query,omitempty"`
	Table string `mapstructure:"table,omitempty" json:"table,omitempty" yaml:"table,omitempty"`
}

func (es *ExtractSpec) Validate() error {
	if es.Query == "" && es.Table == "" {
		return errorj.ConfigError.New("either query or table is required in extraction spec")
	}
	if es.Query != "" && es.Table != "" {
		return errorj.ConfigError.New("query and table are mutually exclusive in extraction spec")
	}
	return nil
}

type Config struct {
	//id of Spout instance for logging and errors
	Id string `mapstructure:"id" json:"id"`
	//spoutType - type of the source system this spout connects to
	SpoutType string `mapstructure:"type" json:"type"`
	//connectionConfig - connection parameters of the source - may be a struct type
	//supported by the implementation, map[string]any or a json/yaml string
	ConnectionConfig any `mapstructure:"connection" json:"connection"`
	LogLevel         LogLevel
}

// RegisterSpout registers function to create new spout instance
func RegisterSpout(spoutType string, initFunc InitFunction) {
	SpoutRegistry[spoutType] = initFunc
}

func CreateSpout(config Config) (Spout, error) {
	initFunc, ok := SpoutRegistry[config.SpoutType]
	if !ok {
		return nil, errorj.ConfigError.New("unknown spout implementation type: %s", config.SpoutType)
	}
	return initFunc(config)
}

type Status string

const (
	//Completed - run was completed successfully, artifact is published
	Completed Status = "COMPLETED"
	//Aborted - run was aborted by the caller, no artifact is left behind
	Aborted Status = "ABORTED"
	//Failed - run failed, no artifact is left behind
	Failed Status = "FAILED"
	//Active - run is in progress
	Active Status = "ACTIVE"
)

// State is the result of one extraction run
type State struct {
	Status        Status `json:"status"`
	LastError     error  `json:"-"`
	LastErrorText string `json:"error,omitempty"`
	//ProcessedRows - number of records read from the source
	ProcessedRows int `json:"processedRows"`
	//SuccessfulRows - number of records written to the batch artifact
	SuccessfulRows int `json:"successfulRows"`
	BytesProcessed int `json:"bytesProcessed,omitempty"`
	//ArtifactPath - destination path of the published batch artifact. Empty unless Completed
	ArtifactPath string `json:"artifactPath,omitempty"`
}

// SetError sets error to the state
func (s *State) SetError(err error) {
	s.LastError = err
	s.LastErrorText = err.Error()
}

func (s *State) String() string {
	// print non-zero values
	var sb strings.Builder
	countersValue := reflect.ValueOf(*s)
	countersType := countersValue.Type()
	for i := 0; i < countersValue.NumField(); i++ {
		value := fmt.Sprintf("%v", countersValue.Field(i).Interface())
		if value != "" && value != "0" && value != "<nil>" {
			sb.WriteString(fmt.Sprintf("%s: %s ", countersType.Field(i).Name, value))
		}
	}
	return sb.String()
}

type LogLevel int

const (
	Off LogLevel = iota
	Default
	Verbose
	Full
)
