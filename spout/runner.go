package spout

import (
	"context"
	"errors"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/jitsucom/spout/base/errorj"
	"github.com/jitsucom/spout/types"
	"github.com/joomcode/errorx"
)

// Writer consumes the record stream of one run and publishes it as a single
// batch artifact. The whole artifact becomes visible on Complete or nothing
// is left at the destination on Abort.
type Writer interface {
	Consume(ctx context.Context, record types.Record) error
	//Complete publishes the batch artifact and returns run statistics.
	//Writer cannot be used after Complete call.
	Complete(ctx context.Context) (State, error)
	//Abort discards everything written so far. Writer cannot be used after Abort call.
	Abort(ctx context.Context) (State, error)
}

// Run executes one extraction run as a single linear pass:
// extract -> write -> publish. There are no retries: the first failure aborts
// the run, discards the partial artifact and is returned as a run-level error.
func Run(ctx context.Context, s Spout, extract ExtractSpec, writer Writer, options ...ExtractOption) (State, error) {
	if err := extract.Validate(); err != nil {
		state, _ := writer.Abort(ctx)
		state.Status = Failed
		state.SetError(err)
		return state, err
	}
	extractOptions := &ExtractOptions{}
	for _, option := range options {
		extractOptions.Add(option)
	}
	if timeout := TimeoutOption.Get(extractOptions); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	stream, err := s.Extract(ctx, extract, options...)
	if err != nil {
		state, _ := writer.Abort(ctx)
		err = classifyExtractError(err)
		state.Status = failureStatus(err)
		state.SetError(err)
		return state, err
	}
	if hw, ok := writer.(interface{ SetHeader(*types.BatchHeader) }); ok {
		hw.SetHeader(stream.Header())
	}

	for {
		record, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			err = classifyStreamError(err)
			state := abort(ctx, writer, stream)
			state.Status = failureStatus(err)
			state.SetError(err)
			return state, err
		}
		if err = writer.Consume(ctx, record); err != nil {
			if errorj.Kind(err) == nil {
				err = errorj.WriteError.Wrap(err, "failed to write record to batch")
			}
			state := abort(ctx, writer, stream)
			state.Status = Failed
			state.SetError(err)
			return state, err
		}
	}

	if err = stream.Close(); err != nil {
		err = classifyStreamError(err)
		state, _ := writer.Abort(ctx)
		state.Status = Failed
		state.SetError(err)
		return state, err
	}
	return writer.Complete(ctx)
}

func abort(ctx context.Context, writer Writer, stream RecordStream) State {
	state, abortErr := writer.Abort(ctx)
	closeErr := stream.Close()
	if merr := multierror.Append(nil, abortErr, closeErr).ErrorOrNil(); merr != nil {
		state.SetError(merr)
	}
	return state
}

// failureStatus distinguishes a caller driven abort from a run failure
func failureStatus(err error) Status {
	if errors.Is(err, context.Canceled) {
		return Aborted
	}
	return Failed
}

// classifyStreamError maps a mid-scan failure to the taxonomy: an exceeded
// deadline is a timeout, everything else untyped means the source connection
// dropped and partial results must be discarded.
func classifyStreamError(err error) error {
	if errorj.Kind(err) != nil {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return errorj.TimeoutError.Wrap(err, "extraction exceeded configured deadline")
	}
	return errorj.PartialReadError.Wrap(err, "source connection dropped mid scan. Partial results are discarded")
}

func classifyExtractError(err error) error {
	if errorj.Kind(err) != nil {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return errorj.TimeoutError.Wrap(err, "extraction exceeded configured deadline")
	}
	return errorj.QueryError.Wrap(err, "source rejected extraction spec")
}

func isTimeout(err error) bool {
	if errorx.HasTrait(err, errorx.Timeout()) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
