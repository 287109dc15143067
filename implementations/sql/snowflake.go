package sql

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jitsucom/spout/base/errorj"
	"github.com/jitsucom/spout/base/logging"
	"github.com/jitsucom/spout/base/utils"
	"github.com/jitsucom/spout/spout"
	sf "github.com/snowflakedb/gosnowflake"
)

func init() {
	spout.RegisterSpout(SnowflakeSpoutTypeId, NewSnowflake)
}

const SnowflakeSpoutTypeId = "snowflake"

// SnowflakeConfig dto for deserialized snowflake connection config
type SnowflakeConfig struct {
	Account    string            `mapstructure:"account,omitempty" json:"account,omitempty" yaml:"account,omitempty"`
	Warehouse  string            `mapstructure:"warehouse,omitempty" json:"warehouse,omitempty" yaml:"warehouse,omitempty"`
	Db         string            `mapstructure:"database,omitempty" json:"database,omitempty" yaml:"database,omitempty"`
	Schema     string            `mapstructure:"defaultSchema,omitempty" json:"defaultSchema,omitempty" yaml:"defaultSchema,omitempty"`
	Username   string            `mapstructure:"username,omitempty" json:"username,omitempty" yaml:"username,omitempty"`
	Password   string            `mapstructure:"password,omitempty" json:"password,omitempty" yaml:"password,omitempty"`
	Parameters map[string]string `mapstructure:"parameters,omitempty" json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

func (sc *SnowflakeConfig) Validate() error {
	if sc == nil {
		return errorj.ConfigError.New("snowflake config is required")
	}
	if sc.Account == "" {
		return errorj.ConfigError.New("account is required parameter")
	}
	if sc.Db == "" {
		return errorj.ConfigError.New("database is required parameter")
	}
	if sc.Username == "" {
		return errorj.ConfigError.New("username is required parameter")
	}
	if sc.Schema == "" {
		sc.Schema = "PUBLIC"
	}
	return nil
}

// Snowflake is a spout extracting rows from a Snowflake warehouse
type Snowflake struct {
	*SQLSource
}

// NewSnowflake returns configured Snowflake spout.Spout instance
func NewSnowflake(spoutConfig spout.Config) (spout.Spout, error) {
	config := &SnowflakeConfig{}
	if err := utils.ParseObject(spoutConfig.ConnectionConfig, config); err != nil {
		return nil, errorj.ConfigError.Wrap(err, "failed to parse connection config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	cfg := &sf.Config{
		Account:   config.Account,
		User:      config.Username,
		Password:  config.Password,
		Database:  config.Db,
		Schema:    config.Schema,
		Warehouse: config.Warehouse,
		Params:    map[string]*string{},
	}
	for k, v := range config.Parameters {
		v := v
		cfg.Params[k] = &v
	}
	dsn, err := sf.DSN(cfg)
	if err != nil {
		return nil, errorj.ConfigError.Wrap(err, "failed to build dsn")
	}
	logging.Infof("[%s] connecting to snowflake: %s@%s/%s", spoutConfig.Id, config.Username, config.Account, config.Db)

	dataSource, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, errorj.ConnectionError.Wrap(err, "failed to open connection")
	}
	if err = dataSource.Ping(); err != nil {
		_ = dataSource.Close()
		return nil, snowflakeErrorMap(err)
	}
	dataSource.SetConnMaxIdleTime(3 * time.Minute)

	dsConfig := &DataSourceConfig{
		Host:     config.Account,
		Db:       config.Db,
		Schema:   config.Schema,
		Username: config.Username,
		Password: config.Password,
	}
	source := newSQLSource(spoutConfig.Id, SnowflakeSpoutTypeId, dsConfig, dataSource, doubleQuote, snowflakeErrorMap, true)
	source.logLevel = spoutConfig.LogLevel
	return &Snowflake{SQLSource: source}, nil
}

func snowflakeErrorMap(err error) error {
	if err == nil {
		return nil
	}
	var sfErr *sf.SnowflakeError
	if errors.As(err, &sfErr) {
		switch sfErr.Number {
		case 390100, 390101, 390102, 390103:
			return errorj.AuthError.New("snowflake: %d %s", sfErr.Number, sfErr.Message)
		case 2003, 2043, 1003:
			return errorj.QueryError.New("snowflake: %d %s", sfErr.Number, sfErr.Message)
		case 604:
			return errorj.TimeoutError.New("snowflake: %d %s", sfErr.Number, sfErr.Message)
		default:
			return errorj.ConnectionError.New("snowflake: %d %s", sfErr.Number, sfErr.Message)
		}
	}
	if errorj.Kind(err) != nil {
		return err
	}
	return errorj.ConnectionError.Wrap(err, "snowflake connection failed")
}
