package app

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/jitsucom/spout/base/errorj"
	"github.com/jitsucom/spout/base/logging"
	"github.com/jitsucom/spout/base/objects"
	"github.com/jitsucom/spout/implementations"
	"github.com/jitsucom/spout/spout"
)

// Runner executes one extraction run end to end: create the spout, create the
// destination adapter, pump records through a batch writer, publish.
type Runner struct {
	objects.ServiceBase
	appConfig *AppConfig
}

func NewRunner(appConfig *AppConfig) *Runner {
	return &Runner{
		ServiceBase: objects.NewServiceBase("runner"),
		appConfig:   appConfig,
	}
}

func (r *Runner) Execute(ctx context.Context, runConfig *RunConfig) (spout.State, error) {
	source, err := spout.CreateSpout(spout.Config{
		Id:               runConfig.Id,
		SpoutType:        runConfig.Source.Type,
		ConnectionConfig: runConfig.Source.Connection,
		LogLevel:         parseLogLevel(r.appConfig.LogLevel),
	})
	if err != nil {
		state := spout.State{Status: spout.Failed}
		state.SetError(err)
		return state, err
	}
	defer func() {
		if closeErr := source.Close(); closeErr != nil {
			r.Errorf("failed to close source: %v", closeErr)
		}
	}()

	fileAdapter, err := implementations.CreateFileAdapter(runConfig.Destination.Type, runConfig.Destination.Config)
	if err != nil {
		state := spout.State{Status: spout.Failed}
		state.SetError(err)
		return state, err
	}
	defer func() {
		if closeErr := fileAdapter.Close(); closeErr != nil {
			r.Errorf("failed to close destination: %v", closeErr)
		}
	}()

	options, err := parseOptions(runConfig.Options)
	if err != nil {
		state := spout.State{Status: spout.Failed}
		state.SetError(err)
		return state, err
	}

	writer := implementations.NewBatchWriter(runConfig.Id, fileAdapter, runConfig.ArtifactName)
	state, err := spout.Run(ctx, source, runConfig.Extract, writer, options...)
	if err != nil {
		logging.Errorf("[%s] run finished with status %s: %v", runConfig.Id, state.Status, err)
	} else {
		logging.Infof("[%s] run finished: %s", runConfig.Id, state.String())
	}
	return state, err
}

func parseOptions(serialized map[string]any) ([]spout.ExtractOption, error) {
	var multiErr error
	options := make([]spout.ExtractOption, 0, len(serialized))
	for name, value := range serialized {
		option, err := spout.ParseOption(name, value)
		if err != nil {
			multiErr = multierror.Append(multiErr, err)
			continue
		}
		options = append(options, option)
	}
	if multiErr != nil {
		return nil, errorj.ConfigError.Wrap(multiErr, "failed to parse extraction options")
	}
	return options, nil
}

func parseLogLevel(level string) spout.LogLevel {
	switch level {
	case "off":
		return spout.Off
	case "verbose":
		return spout.Verbose
	case "full":
		return spout.Full
	default:
		return spout.Default
	}
}
