package implementations

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/jitsucom/spout/base/errorj"
	"github.com/jitsucom/spout/base/objects"
	"github.com/jitsucom/spout/base/timestamp"
	"github.com/jitsucom/spout/base/utils"
	"github.com/jitsucom/spout/spout"
	"github.com/jitsucom/spout/types"
)

func init() {
	spout.RegisterSpout(MongoDBSpoutTypeId, NewMongoDB)
}

const MongoDBSpoutTypeId = "mongodb"

// MongoDBConfig dto for deserialized mongodb connection config.
// Url takes precedence over host/port when set.
type MongoDBConfig struct {
	Url        string            `mapstructure:"url,omitempty" json:"url,omitempty" yaml:"url,omitempty"`
	Host       string            `mapstructure:"host,omitempty" json:"host,omitempty" yaml:"host,omitempty"`
	Port       int               `mapstructure:"port,omitempty" json:"port,omitempty" yaml:"port,omitempty"`
	Db         string            `mapstructure:"database,omitempty" json:"database,omitempty" yaml:"database,omitempty"`
	Username   string            `mapstructure:"username,omitempty" json:"username,omitempty" yaml:"username,omitempty"`
	Password   string            `mapstructure:"password,omitempty" json:"password,omitempty" yaml:"password,omitempty"`
	Parameters map[string]string `mapstructure:"parameters,omitempty" json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

func (mc *MongoDBConfig) Validate() error {
	if mc == nil {
		return errorj.ConfigError.New("mongodb config is required")
	}
	if mc.Url == "" && mc.Host == "" {
		return errorj.ConfigError.New("url or host is required parameter")
	}
	if mc.Db == "" {
		return errorj.ConfigError.New("database is required parameter")
	}
	return nil
}

func (mc *MongoDBConfig) connectionString() string {
	if mc.Url != "" {
		return mc.Url
	}
	port := mc.Port
	if port == 0 {
		port = 27017
	}
	auth := ""
	if mc.Username != "" {
		auth = url.QueryEscape(mc.Username) + ":" + url.QueryEscape(mc.Password) + "@"
	}
	connectionString := fmt.Sprintf("mongodb://%s%s:%d/%s", auth, mc.Host, port, mc.Db)
	if len(mc.Parameters) > 0 {
		params := make([]string, 0, len(mc.Parameters))
		for k, v := range mc.Parameters {
			params = append(params, k+"="+v)
		}
		connectionString += "?" + strings.Join(params, "&")
	}
	return connectionString
}

// MongoDB is a spout extracting documents from mongodb collections
type MongoDB struct {
	objects.ServiceBase
	config   *MongoDBConfig
	client   *mongo.Client
	logLevel spout.LogLevel
}

// NewMongoDB returns configured MongoDB spout.Spout instance
func NewMongoDB(spoutConfig spout.Config) (spout.Spout, error) {
	config := &MongoDBConfig{}
	if err := utils.ParseObject(spoutConfig.ConnectionConfig, config); err != nil {
		return nil, errorj.ConfigError.Wrap(err, "failed to parse connection config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(config.connectionString()))
	if err != nil {
		return nil, errorj.ConnectionError.Wrap(err, "failed to create mongodb client")
	}
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err = client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, mongoErrorMap(err)
	}
	return &MongoDB{
		ServiceBase: objects.NewServiceBase(spoutConfig.Id),
		config:      config,
		client:      client,
		logLevel:    spoutConfig.LogLevel,
	}, nil
}

func (m *MongoDB) Type() string {
	return MongoDBSpoutTypeId
}

func (m *MongoDB) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
		return mongoErrorMap(err)
	}
	return nil
}

func (m *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// Extract runs a find over the collection named by the table part of the spec.
// A non empty query is treated as an extended json filter document.
func (m *MongoDB) Extract(ctx context.Context, extract spout.ExtractSpec, options ...spout.ExtractOption) (spout.RecordStream, error) {
	if err := extract.Validate(); err != nil {
		return nil, err
	}
	if extract.Table == "" {
		return nil, errorj.ConfigError.New("mongodb spout requires a collection name in the table field")
	}
	extractOptions := &spout.ExtractOptions{}
	for _, option := range options {
		extractOptions.Add(option)
	}
	limit := spout.LimitOption.Get(extractOptions)

	filter := bson.D{}
	if extract.Query != "" {
		if err := bson.UnmarshalExtJSON([]byte(extract.Query), true, &filter); err != nil {
			return nil, errorj.QueryError.Wrap(err, "failed to parse filter document").
				WithProperty(errorj.DBInfo, &types.ErrorPayload{
					Database:   m.config.Db,
					Collection: extract.Table,
					Statement:  extract.Query,
				})
		}
	}
	findOptions := mongooptions.Find()
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}
	if columns := spout.ColumnsOption.Get(extractOptions); len(columns) > 0 {
		projection := bson.D{}
		for _, c := range columns {
			projection = append(projection, bson.E{Key: c, Value: 1})
		}
		findOptions.SetProjection(projection)
	}
	if m.logLevel >= spout.Verbose {
		m.Infof("find in collection %s filter: %s", extract.Table, extract.Query)
	}
	cursor, err := m.client.Database(m.config.Db).Collection(extract.Table).Find(ctx, filter, findOptions)
	if err != nil {
		return nil, errorj.Decorate(mongoErrorMap(err), "failed to run find").
			WithProperty(errorj.DBInfo, &types.ErrorPayload{
				Host:       m.config.Host,
				Database:   m.config.Db,
				Collection: extract.Table,
				Statement:  extract.Query,
			})
	}
	stream := &mongoStream{cursor: cursor, header: &types.BatchHeader{}}
	if m.logLevel >= spout.Full {
		stream.trace = m.Infof
	}
	return stream, nil
}

// mongoStream adapts a mongo cursor to a lazy record stream. Collections are
// schemaless so the header accumulates field names as documents are read.
type mongoStream struct {
	cursor *mongo.Cursor
	header *types.BatchHeader
	trace  func(format string, v ...any)
	read   int
	closed bool
}

func (ms *mongoStream) Next(ctx context.Context) (types.Record, error) {
	if ms.closed {
		return nil, io.EOF
	}
	if !ms.cursor.Next(ctx) {
		if err := ms.cursor.Err(); err != nil {
			return nil, errorj.PartialReadError.Wrap(mongoErrorMap(err), "cursor failed mid scan").
				WithProperty(errorj.DBInfo, &types.ErrorPayload{ReadRows: ms.read})
		}
		return nil, io.EOF
	}
	doc := bson.M{}
	if err := ms.cursor.Decode(&doc); err != nil {
		return nil, errorj.PartialReadError.Wrap(err, "failed to decode document").
			WithProperty(errorj.DBInfo, &types.ErrorPayload{ReadRows: ms.read})
	}
	record := make(types.Record, len(doc))
	for k, v := range doc {
		record[k] = normalizeBsonValue(v)
	}
	ms.header.Merge(types.RecordHeader(record))
	ms.read++
	if ms.trace != nil {
		ms.trace("record #%d: %+v", ms.read, record)
	}
	return record, nil
}

func (ms *mongoStream) Header() *types.BatchHeader {
	return ms.header
}

func (ms *mongoStream) Close() error {
	if ms.closed {
		return nil
	}
	ms.closed = true
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ms.cursor.Close(ctx); err != nil {
		return errorj.PartialReadError.Wrap(err, "failed to close cursor")
	}
	return nil
}

// normalizeBsonValue converts bson driver types into plain go values that
// marshal cleanly to ndjson and csv
func normalizeBsonValue(v any) any {
	switch i := v.(type) {
	case primitive.ObjectID:
		return i.Hex()
	case primitive.DateTime:
		return timestamp.ToISOFormat(i.Time().UTC())
	case primitive.Decimal128:
		return i.String()
	case primitive.A:
		arr := make([]any, len(i))
		for n, el := range i {
			arr[n] = normalizeBsonValue(el)
		}
		return arr
	case bson.M:
		obj := make(map[string]any, len(i))
		for k, el := range i {
			obj[k] = normalizeBsonValue(el)
		}
		return obj
	case bson.D:
		obj := make(map[string]any, len(i))
		for _, el := range i {
			obj[el.Key] = normalizeBsonValue(el.Value)
		}
		return obj
	default:
		return v
	}
}

func mongoErrorMap(err error) error {
	if err == nil {
		return nil
	}
	if errorj.Kind(err) != nil {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "auth error") || strings.Contains(msg, "Authentication failed"):
		return errorj.AuthError.Wrap(err, "mongodb authentication failed")
	case mongo.IsTimeout(err):
		return errorj.TimeoutError.Wrap(err, "mongodb operation timed out")
	default:
		return errorj.ConnectionError.Wrap(err, "mongodb connection failed")
	}
}
