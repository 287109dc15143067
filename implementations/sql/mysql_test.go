package sql

import (
	"errors"
	"os"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/require"

	"github.com/jitsucom/spout/base/errorj"
	"github.com/jitsucom/spout/implementations"
	"github.com/jitsucom/spout/spout"
)

func TestMySQLDriverConnectionString(t *testing.T) {
	config := &DataSourceConfig{
		Host:     "db.example.com",
		Port:     3306,
		Db:       "analytics",
		Username: "reader",
		Password: "secret",
	}
	require.Equal(t, "reader:secret@tcp(db.example.com:3306)/analytics", mySQLDriverConnectionString(config))

	config.Parameters = map[string]string{"parseTime": "true"}
	require.Equal(t, "reader:secret@tcp(db.example.com:3306)/analytics?parseTime=true", mySQLDriverConnectionString(config))
}

func TestMySQLErrorMap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected *errorx.Type
	}{
		{"access_denied", &mysql.MySQLError{Number: 1045, Message: "Access denied for user"}, errorj.AuthError},
		{"unknown_column", &mysql.MySQLError{Number: 1054, Message: "Unknown column"}, errorj.QueryError},
		{"unknown_table", &mysql.MySQLError{Number: 1146, Message: "Table doesn't exist"}, errorj.QueryError},
		{"syntax", &mysql.MySQLError{Number: 1064, Message: "You have an error in your SQL syntax"}, errorj.QueryError},
		{"other", &mysql.MySQLError{Number: 1040, Message: "Too many connections"}, errorj.ConnectionError},
		{"untyped", errors.New("dial tcp: connection refused"), errorj.ConnectionError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := mySQLErrorMap(tt.err)
			require.True(t, errorx.IsOfType(mapped, tt.expected), "expected %s got %v", tt.expected, mapped)
		})
	}
}

func TestMySQLUnreachableHostLeavesNoArtifact(t *testing.T) {
	destDir := t.TempDir()
	_, err := spout.CreateSpout(spout.Config{
		Id:        "mysql_test",
		SpoutType: MySQLSpoutTypeId,
		ConnectionConfig: map[string]any{
			"host":     "127.0.0.1",
			"port":     1,
			"database": "analytics",
			"username": "reader",
			"parameters": map[string]string{
				"timeout": "1s",
			},
		},
	})
	require.Error(t, err)
	require.True(t, errorx.IsOfType(err, errorj.ConnectionError), "expected ConnectionError got %v", err)
	//spout creation failed, nothing ever reached the destination
	adapter, aerr := implementations.CreateFileAdapter(implementations.LocalFileAdapterTypeId, map[string]any{"directory": destDir})
	require.NoError(t, aerr)
	defer adapter.Close()
	entries, rerr := os.ReadDir(destDir)
	require.NoError(t, rerr)
	require.Empty(t, entries)
}
