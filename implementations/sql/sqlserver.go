package sql

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/jitsucom/spout/base/errorj"
	"github.com/jitsucom/spout/base/logging"
	"github.com/jitsucom/spout/base/utils"
	"github.com/jitsucom/spout/spout"
)

func init() {
	spout.RegisterSpout(SQLServerSpoutTypeId, NewSQLServer)
}

const SQLServerSpoutTypeId = "sqlserver"

// SQLServer is a spout extracting rows from a Microsoft SQL Server database
type SQLServer struct {
	*SQLSource
}

// NewSQLServer returns configured SQLServer spout.Spout instance
func NewSQLServer(spoutConfig spout.Config) (spout.Spout, error) {
	config := &DataSourceConfig{}
	if err := utils.ParseObject(spoutConfig.ConnectionConfig, config); err != nil {
		return nil, errorj.ConfigError.Wrap(err, "failed to parse connection config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Port == 0 {
		config.Port = 1433
	}
	if config.Schema == "" {
		config.Schema = "dbo"
	}

	dsn := sqlServerDriverConnectionString(config)
	logging.Infof("[%s] connecting to sqlserver: %s@%s:%d/%s", spoutConfig.Id, config.Username, config.Host, config.Port, config.Db)

	dataSource, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, errorj.ConnectionError.Wrap(err, "failed to open connection")
	}
	if err = dataSource.Ping(); err != nil {
		_ = dataSource.Close()
		return nil, sqlServerErrorMap(err)
	}
	dataSource.SetConnMaxIdleTime(3 * time.Minute)

	// T-SQL has no trailing LIMIT clause so row limits are enforced client side
	source := newSQLSource(spoutConfig.Id, SQLServerSpoutTypeId, config, dataSource, doubleQuote, sqlServerErrorMap, false)
	source.logLevel = spoutConfig.LogLevel
	return &SQLServer{SQLSource: source}, nil
}

func sqlServerDriverConnectionString(config *DataSourceConfig) string {
	query := url.Values{}
	query.Add("database", config.Db)
	for k, v := range config.Parameters {
		query.Add(k, v)
	}
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(config.Username, config.Password),
		Host:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}

// sqlServerErrorMap maps mssql error numbers to the run failure taxonomy:
// 18456/18452 login failures, 102/207/208 syntax or unknown object, 1222 lock timeout
func sqlServerErrorMap(err error) error {
	if err == nil {
		return nil
	}
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		switch msErr.Number {
		case 18456, 18452:
			return errorj.AuthError.New("sqlserver: %d %s", msErr.Number, msErr.Message)
		case 102, 207, 208, 2812:
			return errorj.QueryError.New("sqlserver: %d %s", msErr.Number, msErr.Message)
		case 1222:
			return errorj.TimeoutError.New("sqlserver: %d %s", msErr.Number, msErr.Message)
		default:
			return errorj.ConnectionError.New("sqlserver: %d %s", msErr.Number, msErr.Message)
		}
	}
	if errorj.Kind(err) != nil {
		return err
	}
	if strings.Contains(err.Error(), "Login failed") {
		return errorj.AuthError.Wrap(err, "sqlserver authentication failed")
	}
	return errorj.ConnectionError.Wrap(err, "sqlserver connection failed")
}
