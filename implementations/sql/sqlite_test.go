package sql

import (
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/require"

	"github.com/jitsucom/spout/base/errorj"
	"github.com/jitsucom/spout/implementations"
	"github.com/jitsucom/spout/spout"
	"github.com/jitsucom/spout/types"
)

func seedSqliteDb(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "source.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO users (id, name) VALUES (1, 'a'), (2, 'b'), (3, 'c')`)
	require.NoError(t, err)
	return dbPath
}

func newSqliteSpout(t *testing.T, dbPath string) spout.Spout {
	t.Helper()
	source, err := spout.CreateSpout(spout.Config{
		Id:               "sqlite_test",
		SpoutType:        SQLiteSpoutTypeId,
		ConnectionConfig: map[string]any{"path": dbPath},
	})
	require.NoError(t, err)
	return source
}

func TestSqliteEndToEnd(t *testing.T) {
	dbPath := seedSqliteDb(t)
	source := newSqliteSpout(t, dbPath)
	defer source.Close()

	destDir := t.TempDir()
	adapter, err := implementations.CreateFileAdapter(implementations.LocalFileAdapterTypeId, map[string]any{"directory": destDir})
	require.NoError(t, err)
	writer := implementations.NewBatchWriter("sqlite_test", adapter, "users")

	state, err := spout.Run(context.Background(), source, spout.ExtractSpec{Table: "users"}, writer)
	require.NoError(t, err)
	require.Equal(t, spout.Completed, state.Status)
	require.Equal(t, 3, state.ProcessedRows)
	require.Equal(t, 3, state.SuccessfulRows)

	payload, err := os.ReadFile(filepath.Join(destDir, "users.ndjson"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 3)
	require.JSONEq(t, `{"id":1,"name":"a"}`, lines[0])
	require.JSONEq(t, `{"id":2,"name":"b"}`, lines[1])
	require.JSONEq(t, `{"id":3,"name":"c"}`, lines[2])
}

func TestSqliteCsvArtifactColumnOrder(t *testing.T) {
	dbPath := seedSqliteDb(t)
	source := newSqliteSpout(t, dbPath)
	defer source.Close()

	destDir := t.TempDir()
	adapter, err := implementations.CreateFileAdapter(implementations.LocalFileAdapterTypeId, map[string]any{
		"directory": destDir,
		"format":    string(types.FileFormatCSV),
	})
	require.NoError(t, err)
	writer := implementations.NewBatchWriter("sqlite_test", adapter, "users")

	state, err := spout.Run(context.Background(), source, spout.ExtractSpec{Table: "users"}, writer)
	require.NoError(t, err)
	require.Equal(t, spout.Completed, state.Status)

	payload, err := os.ReadFile(filepath.Join(destDir, "users.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Equal(t, []string{"id,name", "1,a", "2,b", "3,c"}, lines)
}

func TestSqliteQueryWithParametersAndLimit(t *testing.T) {
	dbPath := seedSqliteDb(t)
	source := newSqliteSpout(t, dbPath)
	defer source.Close()

	stream, err := source.Extract(context.Background(), spout.ExtractSpec{Query: "SELECT id, name FROM users WHERE id > ? ORDER BY id"},
		spout.WithParameters(1), spout.WithLimit(1))
	require.NoError(t, err)
	defer stream.Close()

	record, err := stream.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, "b", record["name"])
	//limit is enforced client side
	_, err = stream.Next(context.Background())
	require.ErrorIs(t, err, io.EOF)
}

func TestSqliteColumnsOption(t *testing.T) {
	dbPath := seedSqliteDb(t)
	source := newSqliteSpout(t, dbPath)
	defer source.Close()

	stream, err := source.Extract(context.Background(), spout.ExtractSpec{Table: "users"}, spout.WithColumns("name"))
	require.NoError(t, err)
	defer stream.Close()

	require.Equal(t, []string{"name"}, stream.Header().Fields)
	record, err := stream.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, types.Record{"name": "a"}, record)
}

func TestSqliteBadQueryFailsRunWithoutArtifact(t *testing.T) {
	dbPath := seedSqliteDb(t)
	source := newSqliteSpout(t, dbPath)
	defer source.Close()

	destDir := t.TempDir()
	adapter, err := implementations.CreateFileAdapter(implementations.LocalFileAdapterTypeId, map[string]any{"directory": destDir})
	require.NoError(t, err)
	writer := implementations.NewBatchWriter("sqlite_test", adapter, "missing")

	state, err := spout.Run(context.Background(), source, spout.ExtractSpec{Table: "missing"}, writer)
	require.Error(t, err)
	require.Equal(t, spout.Failed, state.Status)
	require.True(t, errorx.IsOfType(err, errorj.QueryError))
	entries, err := os.ReadDir(destDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestSqlitePing(t *testing.T) {
	dbPath := seedSqliteDb(t)
	source := newSqliteSpout(t, dbPath)
	defer source.Close()
	require.NoError(t, source.Ping(context.Background()))
}

func TestSqliteFullLogLevelTracesRecords(t *testing.T) {
	dbPath := seedSqliteDb(t)
	source, err := spout.CreateSpout(spout.Config{
		Id:               "sqlite_trace_test",
		SpoutType:        SQLiteSpoutTypeId,
		ConnectionConfig: map[string]any{"path": dbPath},
		LogLevel:         spout.Full,
	})
	require.NoError(t, err)
	defer source.Close()

	stream, err := source.Extract(context.Background(), spout.ExtractSpec{Table: "users"})
	require.NoError(t, err)
	defer stream.Close()

	rs, ok := stream.(*rowsStream)
	require.True(t, ok)
	require.NotNil(t, rs.trace)
	traced := 0
	rs.trace = func(format string, v ...any) { traced++ }
	for {
		_, err = stream.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	require.Equal(t, 3, traced)
}

func TestSqliteDefaultLogLevelDoesNotTrace(t *testing.T) {
	dbPath := seedSqliteDb(t)
	source := newSqliteSpout(t, dbPath)
	defer source.Close()

	stream, err := source.Extract(context.Background(), spout.ExtractSpec{Table: "users"})
	require.NoError(t, err)
	defer stream.Close()
	require.Nil(t, stream.(*rowsStream).trace)
}

func TestSqliteConfigValidation(t *testing.T) {
	_, err := spout.CreateSpout(spout.Config{
		Id:               "sqlite_test",
		SpoutType:        SQLiteSpoutTypeId,
		ConnectionConfig: map[string]any{},
	})
	require.Error(t, err)
	require.True(t, errorx.IsOfType(err, errorj.ConfigError))
}
