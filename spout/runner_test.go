package spout

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/require"

	"github.com/jitsucom/spout/base/errorj"
	"github.com/jitsucom/spout/types"
)

type fakeStream struct {
	records []types.Record
	header  *types.BatchHeader
	//failAfter - index after which Next returns failErr. Negative means never
	failAfter int
	failErr   error
	//delay - artificial per record latency to trigger deadlines
	delay  time.Duration
	pos    int
	closed bool
}

func (fs *fakeStream) Next(ctx context.Context) (types.Record, error) {
	if fs.delay > 0 {
		select {
		case <-time.After(fs.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fs.failAfter >= 0 && fs.pos >= fs.failAfter {
		return nil, fs.failErr
	}
	if fs.pos >= len(fs.records) {
		return nil, io.EOF
	}
	record := fs.records[fs.pos]
	fs.pos++
	return record, nil
}

func (fs *fakeStream) Header() *types.BatchHeader {
	return fs.header
}

func (fs *fakeStream) Close() error {
	fs.closed = true
	return nil
}

type fakeSpout struct {
	stream     *fakeStream
	extractErr error
}

func (f *fakeSpout) Extract(_ context.Context, _ ExtractSpec, _ ...ExtractOption) (RecordStream, error) {
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	return f.stream, nil
}

func (f *fakeSpout) Ping(_ context.Context) error { return nil }
func (f *fakeSpout) Type() string                 { return "fake" }
func (f *fakeSpout) Close() error                 { return nil }

type recordingWriter struct {
	consumed   []types.Record
	header     *types.BatchHeader
	consumeErr error
	completed  bool
	aborted    bool
}

func (rw *recordingWriter) SetHeader(header *types.BatchHeader) {
	rw.header = header
}

func (rw *recordingWriter) Consume(_ context.Context, record types.Record) error {
	if rw.consumeErr != nil {
		return rw.consumeErr
	}
	rw.consumed = append(rw.consumed, record)
	return nil
}

func (rw *recordingWriter) Complete(_ context.Context) (State, error) {
	rw.completed = true
	return State{Status: Completed, ProcessedRows: len(rw.consumed), SuccessfulRows: len(rw.consumed)}, nil
}

func (rw *recordingWriter) Abort(_ context.Context) (State, error) {
	rw.aborted = true
	return State{Status: Aborted}, nil
}

func threeRecords() []types.Record {
	return []types.Record{
		{"id": 1, "name": "a"},
		{"id": 2, "name": "b"},
		{"id": 3, "name": "c"},
	}
}

func TestRunHappyPath(t *testing.T) {
	stream := &fakeStream{
		records:   threeRecords(),
		header:    &types.BatchHeader{Fields: []string{"id", "name"}},
		failAfter: -1,
	}
	writer := &recordingWriter{}
	state, err := Run(context.Background(), &fakeSpout{stream: stream}, ExtractSpec{Table: "users"}, writer)
	require.NoError(t, err)
	require.Equal(t, Completed, state.Status)
	require.Equal(t, 3, state.SuccessfulRows)
	require.Equal(t, threeRecords(), writer.consumed)
	require.True(t, writer.completed)
	require.False(t, writer.aborted)
	require.True(t, stream.closed)
	require.Equal(t, []string{"id", "name"}, writer.header.Fields)
}

func TestRunInvalidSpec(t *testing.T) {
	writer := &recordingWriter{}
	state, err := Run(context.Background(), &fakeSpout{}, ExtractSpec{}, writer)
	require.Error(t, err)
	require.Equal(t, Failed, state.Status)
	require.True(t, errorx.IsOfType(err, errorj.ConfigError))
	require.Empty(t, writer.consumed)
}

func TestRunExtractFailure(t *testing.T) {
	writer := &recordingWriter{}
	s := &fakeSpout{extractErr: errors.New("relation does not exist")}
	state, err := Run(context.Background(), s, ExtractSpec{Table: "missing"}, writer)
	require.Error(t, err)
	require.Equal(t, Failed, state.Status)
	require.True(t, errorx.IsOfType(err, errorj.QueryError))
	require.True(t, writer.aborted)
	require.False(t, writer.completed)
}

func TestRunStreamFailureDiscardsPartialResults(t *testing.T) {
	stream := &fakeStream{
		records:   threeRecords(),
		header:    &types.BatchHeader{Fields: []string{"id", "name"}},
		failAfter: 2,
		failErr:   errors.New("connection reset by peer"),
	}
	writer := &recordingWriter{}
	state, err := Run(context.Background(), &fakeSpout{stream: stream}, ExtractSpec{Table: "users"}, writer)
	require.Error(t, err)
	require.Equal(t, Failed, state.Status)
	require.True(t, errorx.IsOfType(err, errorj.PartialReadError))
	require.True(t, writer.aborted)
	require.False(t, writer.completed)
	require.True(t, stream.closed)
	//two records made it to the writer before the failure, all were discarded by abort
	require.Len(t, writer.consumed, 2)
}

func TestRunTypedStreamErrorPassesThrough(t *testing.T) {
	stream := &fakeStream{
		failAfter: 0,
		failErr:   errorj.AuthError.New("token expired mid scan"),
	}
	writer := &recordingWriter{}
	_, err := Run(context.Background(), &fakeSpout{stream: stream}, ExtractSpec{Table: "users"}, writer)
	require.Error(t, err)
	require.True(t, errorx.IsOfType(err, errorj.AuthError))
}

func TestRunWriteFailure(t *testing.T) {
	stream := &fakeStream{
		records:   threeRecords(),
		header:    &types.BatchHeader{Fields: []string{"id", "name"}},
		failAfter: -1,
	}
	writer := &recordingWriter{consumeErr: errors.New("disk full")}
	state, err := Run(context.Background(), &fakeSpout{stream: stream}, ExtractSpec{Table: "users"}, writer)
	require.Error(t, err)
	require.Equal(t, Failed, state.Status)
	require.True(t, errorx.IsOfType(err, errorj.WriteError))
	require.True(t, writer.aborted)
}

func TestRunTimeoutOption(t *testing.T) {
	stream := &fakeStream{
		records:   threeRecords(),
		header:    &types.BatchHeader{Fields: []string{"id", "name"}},
		failAfter: -1,
		delay:     100 * time.Millisecond,
	}
	writer := &recordingWriter{}
	state, err := Run(context.Background(), &fakeSpout{stream: stream}, ExtractSpec{Table: "users"}, writer, WithTimeout(20*time.Millisecond))
	require.Error(t, err)
	require.Equal(t, Failed, state.Status)
	require.True(t, errorj.IsTimeout(err))
	require.True(t, writer.aborted)
}

func TestRunCallerCancellation(t *testing.T) {
	stream := &fakeStream{
		records:   threeRecords(),
		header:    &types.BatchHeader{Fields: []string{"id", "name"}},
		failAfter: -1,
		delay:     50 * time.Millisecond,
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	writer := &recordingWriter{}
	state, err := Run(ctx, &fakeSpout{stream: stream}, ExtractSpec{Table: "users"}, writer)
	require.Error(t, err)
	require.Equal(t, Aborted, state.Status)
	require.True(t, writer.aborted)
	require.False(t, writer.completed)
}
