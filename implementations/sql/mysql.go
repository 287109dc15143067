package sql

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jitsucom/spout/base/errorj"
	"github.com/jitsucom/spout/base/logging"
	"github.com/jitsucom/spout/base/utils"
	"github.com/jitsucom/spout/spout"
)

func init() {
	spout.RegisterSpout(MySQLSpoutTypeId, NewMySQL)
}

const MySQLSpoutTypeId = "mysql"

// MySQL is a spout extracting rows from a MySQL database
type MySQL struct {
	*SQLSource
}

// NewMySQL returns configured MySQL spout.Spout instance
func NewMySQL(spoutConfig spout.Config) (spout.Spout, error) {
	config := &DataSourceConfig{}
	if err := utils.ParseObject(spoutConfig.ConnectionConfig, config); err != nil {
		return nil, errorj.ConfigError.Wrap(err, "failed to parse connection config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Port == 0 {
		config.Port = 3306
	}
	if _, ok := config.Parameters["parseTime"]; !ok {
		config.Parameters["parseTime"] = "true"
	}

	connectionString := mySQLDriverConnectionString(config)
	logging.Infof("[%s] connecting to mysql: %s@%s:%d/%s", spoutConfig.Id, config.Username, config.Host, config.Port, config.Db)

	dataSource, err := sql.Open("mysql", connectionString)
	if err != nil {
		return nil, errorj.ConnectionError.Wrap(err, "failed to open connection")
	}
	if err = dataSource.Ping(); err != nil {
		_ = dataSource.Close()
		return nil, mySQLErrorMap(err)
	}
	dataSource.SetConnMaxIdleTime(3 * time.Minute)

	source := newSQLSource(spoutConfig.Id, MySQLSpoutTypeId, config, dataSource, backQuote, mySQLErrorMap, true)
	source.logLevel = spoutConfig.LogLevel
	return &MySQL{SQLSource: source}, nil
}

func mySQLDriverConnectionString(config *DataSourceConfig) string {
	// [user[:password]@][net[(addr)]]/dbname[?param1=value1&paramN=valueN]
	connectionString := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
		config.Username, config.Password, config.Host, config.Port, config.Db)
	if len(config.Parameters) > 0 {
		connectionString += "?"
		paramList := make([]string, 0, len(config.Parameters))
		//concat provided connection parameters
		for k, v := range config.Parameters {
			paramList = append(paramList, k+"="+v)
		}
		connectionString += strings.Join(paramList, "&")
	}
	return connectionString
}

// mySQLErrorMap maps mysql error numbers to the run failure taxonomy:
// 1044/1045 are access problems, 1064/1146/1054 are query problems
func mySQLErrorMap(err error) error {
	if err == nil {
		return nil
	}
	if mysqlErr, ok := err.(*mysql.MySQLError); ok {
		switch mysqlErr.Number {
		case 1044, 1045:
			return errorj.AuthError.New("mysql: %d %s", mysqlErr.Number, mysqlErr.Message)
		case 1054, 1064, 1146:
			return errorj.QueryError.New("mysql: %d %s", mysqlErr.Number, mysqlErr.Message)
		default:
			return errorj.ConnectionError.New("mysql: %d %s", mysqlErr.Number, mysqlErr.Message)
		}
	}
	if errorj.Kind(err) != nil {
		return err
	}
	return errorj.ConnectionError.Wrap(err, "mysql connection failed")
}
