package logging

import (
	"errors"
	"fmt"
	"io"

	"github.com/jitsucom/spout/base/timestamp"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	GlobalType = "global"
)

var GlobalLogsWriter io.Writer
var ConfigErr string
var ConfigWarn string

type Config struct {
	FileName    string
	FileDir     string
	RotationMib int
	MaxBackups  int
	Compress    bool
}

func (c Config) Validate() error {
	if c.FileName == "" {
		return errors.New("Logger file name can't be empty")
	}
	if c.FileDir == "" {
		return errors.New("Logger file dir can't be empty")
	}

	return nil
}

// InitGlobalLogger initializes main logger
func InitGlobalLogger(writer io.Writer, levelStr string) error {
	GlobalLogsWriter = writer
	log.SetOutput(writer)
	level, err := log.ParseLevel(levelStr)
	if err == nil {
		log.SetLevel(level)
	} else {
		Error(err)
	}
	if ConfigErr != "" {
		Error(ConfigErr)
	}

	if ConfigWarn != "" {
		Warn(ConfigWarn)
	}
	return nil
}

// NewRollingWriter returns a file writer that rotates by size
func NewRollingWriter(config Config) io.Writer {
	return &lumberjack.Logger{
		Filename:   fmt.Sprintf("%s/%s.log", config.FileDir, config.FileName),
		MaxSize:    config.RotationMib,
		MaxBackups: config.MaxBackups,
		Compress:   config.Compress,
	}
}

func SetJsonFormatter() {
	log.SetFormatter(&log.JSONFormatter{})
}

func SetTextFormatter() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: timestamp.LogsLayout,
	})
}

func SystemErrorf(format string, v ...any) {
	SystemError(fmt.Sprintf(format, v...))
}

func SystemError(v ...any) {
	msg := []any{"System error:"}
	msg = append(msg, v...)
	Error(msg...)
}

func Errorf(format string, v ...any) {
	log.Errorf(format, v...)
}

func Error(v ...any) {
	log.Errorln(v...)
}

func Infof(format string, v ...any) {
	log.Infof(format, v...)
}

func Info(v ...any) {
	log.Infoln(v...)
}

func Debugf(format string, v ...any) {
	log.Debugf(format, v...)
}

func Debug(v ...any) {
	log.Debug(v...)
}

func Warnf(format string, v ...any) {
	log.Warnf(format, v...)
}

func Warn(v ...any) {
	log.Warnln(v...)
}

func Fatal(v ...any) {
	log.Fatal(v...)
}

func Fatalf(format string, v ...any) {
	log.Fatalf(format, v...)
}
