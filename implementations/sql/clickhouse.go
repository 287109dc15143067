package sql

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jitsucom/spout/base/errorj"
	"github.com/jitsucom/spout/base/logging"
	"github.com/jitsucom/spout/base/utils"
	"github.com/jitsucom/spout/spout"
)

func init() {
	spout.RegisterSpout(ClickHouseSpoutTypeId, NewClickHouse)
}

const (
	ClickHouseSpoutTypeId = "clickhouse"

	ClickHouseProtocolNative = "clickhouse"
	ClickHouseProtocolSecure = "clickhouse-secure"
	ClickHouseProtocolHTTP   = "http"
	ClickHouseProtocolHTTPS  = "https"
)

// ClickHouseConfig dto for deserialized clickhouse connection config
type ClickHouseConfig struct {
	DataSourceConfig `mapstructure:",squash" json:",inline" yaml:",inline"`
	Protocol         string `mapstructure:"protocol,omitempty" json:"protocol,omitempty" yaml:"protocol,omitempty"`
}

// ClickHouse is a spout extracting rows from a ClickHouse database
type ClickHouse struct {
	*SQLSource
}

// NewClickHouse returns configured ClickHouse spout.Spout instance
func NewClickHouse(spoutConfig spout.Config) (spout.Spout, error) {
	config := &ClickHouseConfig{}
	if err := utils.ParseObject(spoutConfig.ConnectionConfig, config); err != nil {
		return nil, errorj.ConfigError.Wrap(err, "failed to parse connection config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Protocol == "" {
		config.Protocol = ClickHouseProtocolNative
	}
	if config.Port == 0 {
		switch config.Protocol {
		case ClickHouseProtocolHTTP:
			config.Port = 8123
		case ClickHouseProtocolHTTPS:
			config.Port = 8443
		case ClickHouseProtocolSecure:
			config.Port = 9440
		default:
			config.Port = 9000
		}
	}

	dsn := clickhouseDriverConnectionString(config)
	logging.Infof("[%s] connecting to clickhouse: %s@%s:%d/%s", spoutConfig.Id, config.Username, config.Host, config.Port, config.Db)

	dataSource, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, errorj.ConnectionError.Wrap(err, "failed to open connection")
	}
	if err = dataSource.Ping(); err != nil {
		_ = dataSource.Close()
		return nil, clickHouseErrorMap(err)
	}

	source := newSQLSource(spoutConfig.Id, ClickHouseSpoutTypeId, &config.DataSourceConfig, dataSource, backQuote, clickHouseErrorMap, true)
	source.logLevel = spoutConfig.LogLevel
	return &ClickHouse{SQLSource: source}, nil
}

func clickhouseDriverConnectionString(config *ClickHouseConfig) string {
	protocol := "clickhouse"
	secure := false
	switch config.Protocol {
	case ClickHouseProtocolSecure:
		secure = true
	case ClickHouseProtocolHTTP, ClickHouseProtocolHTTPS:
		protocol = config.Protocol
	}
	// protocol://[user[:password]@][host:port]/dbname[?param1=value1&paramN=valueN]
	connectionString := fmt.Sprintf("%s://%s:%s@%s:%d/%s", protocol,
		url.QueryEscape(config.Username), url.QueryEscape(config.Password), config.Host, config.Port, config.Db)
	params := make([]string, 0, len(config.Parameters)+1)
	if secure {
		params = append(params, "secure=true")
	}
	//concat provided connection parameters
	for k, v := range config.Parameters {
		params = append(params, k+"="+v)
	}
	if len(params) > 0 {
		connectionString += "?" + strings.Join(params, "&")
	}
	return connectionString
}

// clickHouseErrorMap maps clickhouse exception codes to the run failure taxonomy:
// 516 is authentication, 60/81 unknown table or database, 62 syntax, 159 timeout
func clickHouseErrorMap(err error) error {
	if err == nil {
		return nil
	}
	if chErr, ok := err.(*clickhouse.Exception); ok {
		switch chErr.Code {
		case 516:
			return errorj.AuthError.New("clickhouse: %d %s", chErr.Code, chErr.Message)
		case 60, 62, 81:
			return errorj.QueryError.New("clickhouse: %d %s", chErr.Code, chErr.Message)
		case 159:
			return errorj.TimeoutError.New("clickhouse: %d %s", chErr.Code, chErr.Message)
		default:
			return errorj.ConnectionError.New("clickhouse: %d %s", chErr.Code, chErr.Message)
		}
	}
	if errorj.Kind(err) != nil {
		return err
	}
	return errorj.ConnectionError.Wrap(err, "clickhouse connection failed")
}
