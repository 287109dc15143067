package sql

import (
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/jitsucom/spout/base/errorj"
	"github.com/jitsucom/spout/base/logging"
	"github.com/jitsucom/spout/base/utils"
	"github.com/jitsucom/spout/spout"
)

func init() {
	spout.RegisterSpout(SQLiteSpoutTypeId, NewSQLite)
}

const SQLiteSpoutTypeId = "sqlite"

// SQLiteConfig dto for deserialized sqlite connection config
type SQLiteConfig struct {
	Path       string            `mapstructure:"path,omitempty" json:"path,omitempty" yaml:"path,omitempty"`
	Parameters map[string]string `mapstructure:"parameters,omitempty" json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

func (sc *SQLiteConfig) Validate() error {
	if sc == nil {
		return errorj.ConfigError.New("sqlite config is required")
	}
	if sc.Path == "" {
		return errorj.ConfigError.New("path is required parameter")
	}
	return nil
}

// SQLite is a spout extracting rows from a local SQLite database file
type SQLite struct {
	*SQLSource
}

// NewSQLite returns configured SQLite spout.Spout instance
func NewSQLite(spoutConfig spout.Config) (spout.Spout, error) {
	config := &SQLiteConfig{}
	if err := utils.ParseObject(spoutConfig.ConnectionConfig, config); err != nil {
		return nil, errorj.ConfigError.Wrap(err, "failed to parse connection config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	dsn := config.Path
	if len(config.Parameters) > 0 {
		params := make([]string, 0, len(config.Parameters))
		for k, v := range config.Parameters {
			params = append(params, k+"="+v)
		}
		dsn += "?" + strings.Join(params, "&")
	}
	logging.Infof("[%s] opening sqlite database: %s", spoutConfig.Id, config.Path)

	dataSource, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errorj.ConnectionError.Wrap(err, "failed to open database")
	}
	if err = dataSource.Ping(); err != nil {
		_ = dataSource.Close()
		return nil, sqliteErrorMap(err)
	}

	dsConfig := &DataSourceConfig{Db: config.Path}
	source := newSQLSource(spoutConfig.Id, SQLiteSpoutTypeId, dsConfig, dataSource, doubleQuote, sqliteErrorMap, true)
	source.logLevel = spoutConfig.LogLevel
	return &SQLite{SQLSource: source}, nil
}

func sqliteErrorMap(err error) error {
	if err == nil {
		return nil
	}
	if errorj.Kind(err) != nil {
		return err
	}
	msg := err.Error()
	if strings.Contains(msg, "no such table") || strings.Contains(msg, "no such column") || strings.Contains(msg, "syntax error") {
		return errorj.QueryError.Wrap(err, "sqlite query failed")
	}
	if strings.Contains(msg, "unable to open database") {
		return errorj.ConnectionError.Wrap(err, "failed to open sqlite database")
	}
	return errorj.ConnectionError.Wrap(err, "sqlite error")
}
