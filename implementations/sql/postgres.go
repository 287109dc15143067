package sql

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/Kount/pq-timeouts"
	"github.com/jitsucom/spout/base/errorj"
	"github.com/jitsucom/spout/base/logging"
	"github.com/jitsucom/spout/base/utils"
	"github.com/jitsucom/spout/spout"
	"github.com/jitsucom/spout/types"
	"github.com/lib/pq"
)

func init() {
	spout.RegisterSpout(PostgresSpoutTypeId, NewPostgres)
	spout.RegisterSpout(RedshiftSpoutTypeId, NewRedshift)
}

const (
	PostgresSpoutTypeId = "postgres"
	//RedshiftSpoutTypeId - Redshift speaks the postgres protocol, only defaults differ
	RedshiftSpoutTypeId = "redshift"
)

// Postgres is a spout extracting rows from a Postgres (or Redshift) database
type Postgres struct {
	*SQLSource
}

// NewPostgres returns configured Postgres spout.Spout instance
func NewPostgres(spoutConfig spout.Config) (spout.Spout, error) {
	return newPostgresLike(spoutConfig, PostgresSpoutTypeId, 5432)
}

// NewRedshift returns configured Redshift spout.Spout instance
func NewRedshift(spoutConfig spout.Config) (spout.Spout, error) {
	return newPostgresLike(spoutConfig, RedshiftSpoutTypeId, 5439)
}

func newPostgresLike(spoutConfig spout.Config, typeId string, defaultPort int) (spout.Spout, error) {
	config := &DataSourceConfig{}
	if err := utils.ParseObject(spoutConfig.ConnectionConfig, config); err != nil {
		return nil, errorj.ConfigError.Wrap(err, "failed to parse connection config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Port == 0 {
		config.Port = defaultPort
	}

	connectionString := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s",
		config.Host, config.Port, config.Db, config.Username, config.Password)
	if config.Schema != "" {
		connectionString += " search_path=" + config.Schema
	}
	//concat provided connection parameters
	for k, v := range config.Parameters {
		connectionString += " " + k + "=" + v
	}
	logging.Infof("[%s] connecting to %s: %s@%s:%d/%s", spoutConfig.Id, typeId, config.Username, config.Host, config.Port, config.Db)

	dataSource, err := sql.Open("pq-timeouts", connectionString)
	if err != nil {
		return nil, errorj.ConnectionError.Wrap(err, "failed to open connection")
	}
	if err = dataSource.Ping(); err != nil {
		_ = dataSource.Close()
		return nil, pgErrorMap(err)
	}
	dataSource.SetConnMaxIdleTime(3 * time.Minute)

	source := newSQLSource(spoutConfig.Id, typeId, config, dataSource, doubleQuote, pgErrorMap, true)
	source.logLevel = spoutConfig.LogLevel
	return &Postgres{SQLSource: source}, nil
}

// pgErrorMap maps pq error codes to the run failure taxonomy:
// class 28 is authorization, classes 3D/3F/42 are query problems,
// 57014 is statement_timeout
func pgErrorMap(err error) error {
	if err == nil {
		return nil
	}
	if pgErr, ok := err.(*pq.Error); ok {
		msgParts := []string{"pq:"}
		if pgErr.Code != "" {
			msgParts = append(msgParts, string(pgErr.Code))
		}
		if pgErr.Message != "" {
			msgParts = append(msgParts, pgErr.Message)
		}
		if pgErr.Detail != "" {
			msgParts = append(msgParts, pgErr.Detail)
		}
		msg := strings.Join(msgParts, " ")
		payload := &types.ErrorPayload{Schema: pgErr.Schema, Table: pgErr.Table}
		switch {
		case strings.HasPrefix(string(pgErr.Code), "28"):
			return errorj.AuthError.New(msg).WithProperty(errorj.DBInfo, payload)
		case strings.HasPrefix(string(pgErr.Code), "3D"),
			strings.HasPrefix(string(pgErr.Code), "3F"),
			strings.HasPrefix(string(pgErr.Code), "42"):
			return errorj.QueryError.New(msg).WithProperty(errorj.DBInfo, payload)
		case pgErr.Code == "57014":
			return errorj.TimeoutError.New(msg).WithProperty(errorj.DBInfo, payload)
		default:
			return errorj.ConnectionError.New(msg).WithProperty(errorj.DBInfo, payload)
		}
	}
	if errorj.Kind(err) != nil {
		return err
	}
	return errorj.ConnectionError.Wrap(err, "postgres connection failed")
}
