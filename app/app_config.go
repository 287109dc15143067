package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/jitsucom/spout/base/logging"
	"github.com/jitsucom/spout/base/uuid"
)

const instanceIdFilePath = "~/.spout/instance_id"

type AppConfig struct {
	InstanceId string `mapstructure:"INSTANCE_ID"`

	LogFormat string `mapstructure:"LOG_FORMAT"`
	LogLevel  string `mapstructure:"LOG_LEVEL" default:"default"`

	//LogFileDir enables logging to size rotated files in that directory instead of stderr
	LogFileDir     string `mapstructure:"LOG_FILE_DIR"`
	LogRotationMib int    `mapstructure:"LOG_ROTATION_MIB" default:"100"`
	LogMaxBackups  int    `mapstructure:"LOG_MAX_BACKUPS" default:"20"`

	// RunConfigPath points to the extraction run definition file. May be
	// overridden by the first command line argument.
	RunConfigPath string `mapstructure:"RUN_CONFIG"`

	//Timeout that gives a running extraction time to abort cleanly during shutdown.
	ShutdownTimeoutSec int `mapstructure:"SHUTDOWN_TIMEOUT_SEC" default:"10"`
}

func init() {
	initViperVariables()
}

func initViperVariables() {
	elem := reflect.TypeOf(AppConfig{})
	fieldsCount := elem.NumField()
	for i := 0; i < fieldsCount; i++ {
		field := elem.Field(i)
		variable := field.Tag.Get("mapstructure")
		if variable != "" {
			defaultValue := field.Tag.Get("default")
			if defaultValue != "" {
				viper.SetDefault(variable, defaultValue)
			} else {
				_ = viper.BindEnv(variable)
			}
		}
	}
}

func InitAppConfig() (*AppConfig, error) {
	appConfig := AppConfig{}
	configPath := os.Getenv("SPOUT_CONFIG_PATH")
	if configPath == "" {
		configPath = "."
	}
	viper.AddConfigPath(configPath)
	viper.SetConfigName("spout")
	viper.SetConfigType("env")
	viper.SetEnvPrefix("SPOUT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		//it is ok to not have config file
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %s", err)
		}
	}
	err := viper.Unmarshal(&appConfig)
	if err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %s", err)
	}
	if appConfig.LogFormat == "json" {
		logging.SetJsonFormatter()
	} else {
		logging.SetTextFormatter()
	}
	var logsWriter io.Writer = os.Stderr
	if appConfig.LogFileDir != "" {
		logConfig := logging.Config{
			FileName:    "spout",
			FileDir:     appConfig.LogFileDir,
			RotationMib: appConfig.LogRotationMib,
			MaxBackups:  appConfig.LogMaxBackups,
			Compress:    true,
		}
		if err := logConfig.Validate(); err != nil {
			return nil, fmt.Errorf("invalid logging config: %s", err)
		}
		logsWriter = logging.NewRollingWriter(logConfig)
	}
	if err := logging.InitGlobalLogger(logsWriter, logrusLevel(appConfig.LogLevel)); err != nil {
		return nil, fmt.Errorf("error initializing logger: %s", err)
	}
	if appConfig.InstanceId == "" {
		instId, _ := os.ReadFile(instanceIdFilePath)
		if len(instId) > 0 {
			appConfig.InstanceId = string(instId)
			logging.Infof("Loaded instance id from file: %s", appConfig.InstanceId)
		} else {
			appConfig.InstanceId = uuid.New()
			_ = os.MkdirAll(filepath.Dir(instanceIdFilePath), 0755)
			err = os.WriteFile(instanceIdFilePath, []byte(appConfig.InstanceId), 0644)
			if err != nil {
				logging.Errorf("error persisting instance id file: %s", err)
			}
		}
	} else if strings.HasPrefix(appConfig.InstanceId, "env://") {
		env := appConfig.InstanceId[len("env://"):]
		appConfig.InstanceId = os.Getenv(env)
		logging.Infof("Loading instance id from env %s: %s", env, appConfig.InstanceId)
	}
	return &appConfig, nil
}

// logrusLevel maps spout log levels to the backend logger levels
func logrusLevel(level string) string {
	switch strings.ToLower(level) {
	case "off":
		return "error"
	case "verbose", "full":
		return "debug"
	default:
		return "info"
	}
}
