package implementations

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/jitsucom/spout/base/errorj"
	"github.com/jitsucom/spout/base/objects"
	"github.com/jitsucom/spout/base/utils"
	"github.com/jitsucom/spout/spout"
	"github.com/jitsucom/spout/types"
)

func init() {
	spout.RegisterSpout(RedisSpoutTypeId, NewRedis)
}

const RedisSpoutTypeId = "redis"

const redisScanBatchSize = 1000

// RedisConfig dto for deserialized redis connection config.
// Url takes precedence over host/port when set.
type RedisConfig struct {
	Url      string `mapstructure:"url,omitempty" json:"url,omitempty" yaml:"url,omitempty"`
	Host     string `mapstructure:"host,omitempty" json:"host,omitempty" yaml:"host,omitempty"`
	Port     int    `mapstructure:"port,omitempty" json:"port,omitempty" yaml:"port,omitempty"`
	Password string `mapstructure:"password,omitempty" json:"password,omitempty" yaml:"password,omitempty"`
	Db       int    `mapstructure:"database,omitempty" json:"database,omitempty" yaml:"database,omitempty"`
}

func (rc *RedisConfig) Validate() error {
	if rc == nil {
		return errorj.ConfigError.New("redis config is required")
	}
	if rc.Url == "" && rc.Host == "" {
		return errorj.ConfigError.New("url or host is required parameter")
	}
	return nil
}

func (rc *RedisConfig) redisURL() string {
	if rc.Url != "" {
		return rc.Url
	}
	port := rc.Port
	if port == 0 {
		port = 6379
	}
	u := "redis://"
	if rc.Password != "" {
		u += ":" + rc.Password + "@"
	}
	u += rc.Host + ":" + strconv.Itoa(port)
	if rc.Db > 0 {
		u += "/" + strconv.Itoa(rc.Db)
	}
	return u
}

// Redis is a spout extracting keys and values matching a pattern via SCAN
type Redis struct {
	objects.ServiceBase
	config   *RedisConfig
	pool     *redis.Pool
	logLevel spout.LogLevel
}

// NewRedis returns configured Redis spout.Spout instance
func NewRedis(spoutConfig spout.Config) (spout.Spout, error) {
	config := &RedisConfig{}
	if err := utils.ParseObject(spoutConfig.ConnectionConfig, config); err != nil {
		return nil, errorj.ConfigError.Wrap(err, "failed to parse connection config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	redisURL := config.redisURL()
	pool := &redis.Pool{
		MaxIdle:     3,
		IdleTimeout: 240 * time.Second,
		Dial:        func() (redis.Conn, error) { return redis.DialURL(redisURL) },
	}
	conn := pool.Get()
	defer conn.Close()
	if _, err := conn.Do("PING"); err != nil {
		_ = pool.Close()
		return nil, redisErrorMap(err)
	}
	return &Redis{
		ServiceBase: objects.NewServiceBase(spoutConfig.Id),
		config:      config,
		pool:        pool,
		logLevel:    spoutConfig.LogLevel,
	}, nil
}

func (r *Redis) Type() string {
	return RedisSpoutTypeId
}

func (r *Redis) Ping(ctx context.Context) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return redisErrorMap(err)
	}
	defer conn.Close()
	if _, err = conn.Do("PING"); err != nil {
		return redisErrorMap(err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.pool.Close()
}

// Extract scans keys matching the pattern given as the table part of the spec
// and fetches each value according to its redis type. Records have a fixed
// key/type/value shape.
func (r *Redis) Extract(ctx context.Context, extract spout.ExtractSpec, options ...spout.ExtractOption) (spout.RecordStream, error) {
	if err := extract.Validate(); err != nil {
		return nil, err
	}
	if extract.Table == "" {
		return nil, errorj.ConfigError.New("redis spout requires a key pattern in the table field")
	}
	extractOptions := &spout.ExtractOptions{}
	for _, option := range options {
		extractOptions.Add(option)
	}
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, errorj.Decorate(redisErrorMap(err), "failed to get connection").
			WithProperty(errorj.DBInfo, &types.ErrorPayload{Host: r.config.Host})
	}
	if r.logLevel >= spout.Verbose {
		r.Infof("SCAN pattern: %s", extract.Table)
	}
	stream := &redisStream{
		conn:    conn,
		pattern: extract.Table,
		header:  &types.BatchHeader{Fields: []string{"key", "type", "value"}},
		limit:   spout.LimitOption.Get(extractOptions),
		cursor:  0,
	}
	if r.logLevel >= spout.Full {
		stream.trace = r.Infof
	}
	return stream, nil
}

// redisStream walks the keyspace with SCAN, buffering one batch of keys at a
// time. done is set when SCAN returns cursor 0.
type redisStream struct {
	conn    redis.Conn
	pattern string
	header  *types.BatchHeader
	trace   func(format string, v ...any)
	limit   int
	keys    []string
	cursor  int64
	done    bool
	read    int
	closed  bool
}

func (rs *redisStream) Next(ctx context.Context) (types.Record, error) {
	if rs.closed {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rs.limit > 0 && rs.read >= rs.limit {
		return nil, io.EOF
	}
	for len(rs.keys) == 0 {
		if rs.done {
			return nil, io.EOF
		}
		if err := rs.scanBatch(); err != nil {
			return nil, errorj.PartialReadError.Wrap(redisErrorMap(err), "scan failed mid run").
				WithProperty(errorj.DBInfo, &types.ErrorPayload{ReadRows: rs.read})
		}
	}
	key := rs.keys[0]
	rs.keys = rs.keys[1:]
	record, err := rs.fetchKey(key)
	if err != nil {
		return nil, errorj.PartialReadError.Wrap(redisErrorMap(err), "failed to fetch key value").
			WithProperty(errorj.DBInfo, &types.ErrorPayload{ReadRows: rs.read, Statement: key})
	}
	rs.read++
	if rs.trace != nil {
		rs.trace("record #%d: %+v", rs.read, record)
	}
	return record, nil
}

func (rs *redisStream) scanBatch() error {
	values, err := redis.Values(rs.conn.Do("SCAN", rs.cursor, "MATCH", rs.pattern, "COUNT", redisScanBatchSize))
	if err != nil {
		return err
	}
	cursor, err := redis.Int64(values[0], nil)
	if err != nil {
		return err
	}
	keys, err := redis.Strings(values[1], nil)
	if err != nil {
		return err
	}
	rs.cursor = cursor
	rs.keys = keys
	if cursor == 0 {
		rs.done = true
	}
	return nil
}

func (rs *redisStream) fetchKey(key string) (types.Record, error) {
	keyType, err := redis.String(rs.conn.Do("TYPE", key))
	if err != nil {
		return nil, err
	}
	var value any
	switch keyType {
	case "string":
		value, err = redis.String(rs.conn.Do("GET", key))
	case "hash":
		value, err = redis.StringMap(rs.conn.Do("HGETALL", key))
	case "list":
		value, err = redis.Strings(rs.conn.Do("LRANGE", key, 0, -1))
	case "set":
		value, err = redis.Strings(rs.conn.Do("SMEMBERS", key))
	case "zset":
		value, err = redis.StringMap(rs.conn.Do("ZRANGE", key, 0, -1, "WITHSCORES"))
	case "none":
		// key expired between SCAN and fetch
		value = nil
	default:
		value = keyType
	}
	if err != nil {
		return nil, err
	}
	return types.Record{"key": key, "type": keyType, "value": value}, nil
}

func (rs *redisStream) Header() *types.BatchHeader {
	return rs.header
}

func (rs *redisStream) Close() error {
	if rs.closed {
		return nil
	}
	rs.closed = true
	return rs.conn.Close()
}

func redisErrorMap(err error) error {
	if err == nil {
		return nil
	}
	if errorj.Kind(err) != nil {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "NOAUTH") || strings.Contains(msg, "WRONGPASS") || strings.Contains(msg, "invalid password"):
		return errorj.AuthError.Wrap(err, "redis authentication failed")
	case strings.Contains(msg, "i/o timeout"):
		return errorj.TimeoutError.Wrap(err, "redis operation timed out")
	default:
		return errorj.ConnectionError.Wrap(err, "redis connection failed")
	}
}
