package implementations

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/jitsucom/spout/base/errorj"
	"github.com/jitsucom/spout/base/objects"
	"github.com/jitsucom/spout/base/timestamp"
	"github.com/jitsucom/spout/base/utils"
	"github.com/jitsucom/spout/spout"
	"github.com/jitsucom/spout/types"
)

func init() {
	spout.RegisterSpout(BigQuerySpoutTypeId, NewBigQuery)
}

const BigQuerySpoutTypeId = "bigquery"

// BigQueryConfig dto for deserialized bigquery connection config
type BigQueryConfig struct {
	GoogleCredentials `mapstructure:",squash" json:",inline" yaml:",inline"`
	Dataset           string `mapstructure:"bqDataset,omitempty" json:"bqDataset,omitempty" yaml:"bqDataset,omitempty"`
}

func (bc *BigQueryConfig) Validate() error {
	if bc == nil {
		return errorj.ConfigError.New("bigquery config is required")
	}
	if bc.Dataset == "" {
		return errorj.ConfigError.New("bqDataset is required parameter")
	}
	return bc.GoogleCredentials.Validate()
}

// BigQuery is a spout extracting rows from BigQuery tables via query jobs
type BigQuery struct {
	objects.ServiceBase
	config   *BigQueryConfig
	client   *bigquery.Client
	logLevel spout.LogLevel
}

// NewBigQuery returns configured BigQuery spout.Spout instance
func NewBigQuery(spoutConfig spout.Config) (spout.Spout, error) {
	config := &BigQueryConfig{}
	if err := utils.ParseObject(spoutConfig.ConnectionConfig, config); err != nil {
		return nil, errorj.ConfigError.Wrap(err, "failed to parse connection config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()
	var client *bigquery.Client
	var err error
	if config.Credentials == nil {
		client, err = bigquery.NewClient(ctx, config.Project)
	} else {
		client, err = bigquery.NewClient(ctx, config.Project, config.Credentials)
	}
	if err != nil {
		return nil, bigQueryErrorMap(err)
	}
	return &BigQuery{
		ServiceBase: objects.NewServiceBase(spoutConfig.Id),
		config:      config,
		client:      client,
		logLevel:    spoutConfig.LogLevel,
	}, nil
}

func (bq *BigQuery) Type() string {
	return BigQuerySpoutTypeId
}

func (bq *BigQuery) Ping(ctx context.Context) error {
	if _, err := bq.client.Query("SELECT 1;").Read(ctx); err != nil {
		return bigQueryErrorMap(err)
	}
	return nil
}

func (bq *BigQuery) Close() error {
	return bq.client.Close()
}

func (bq *BigQuery) Extract(ctx context.Context, extract spout.ExtractSpec, options ...spout.ExtractOption) (spout.RecordStream, error) {
	if err := extract.Validate(); err != nil {
		return nil, err
	}
	extractOptions := &spout.ExtractOptions{}
	for _, option := range options {
		extractOptions.Add(option)
	}
	limit := spout.LimitOption.Get(extractOptions)

	queryString := extract.Query
	if queryString == "" {
		queryString = bq.buildScanQuery(extract.Table, spout.ColumnsOption.Get(extractOptions), limit)
	}
	if bq.logLevel >= spout.Verbose {
		bq.Infof("SQL: %s", queryString)
	}
	query := bq.client.Query(queryString)
	for _, p := range spout.ParametersOption.Get(extractOptions) {
		query.Parameters = append(query.Parameters, bigquery.QueryParameter{Value: p})
	}
	it, err := query.Read(ctx)
	if err != nil {
		return nil, errorj.Decorate(bigQueryErrorMap(err), "failed to run extraction query").
			WithProperty(errorj.DBInfo, &types.ErrorPayload{
				Database:  bq.config.Project,
				Schema:    bq.config.Dataset,
				Table:     extract.Table,
				Statement: queryString,
			})
	}
	stream := &bigQueryStream{it: it, header: &types.BatchHeader{}, limit: limit}
	if bq.logLevel >= spout.Full {
		stream.trace = bq.Infof
	}
	return stream, nil
}

func (bq *BigQuery) buildScanQuery(table string, columns []string, limit int) string {
	selectList := "*"
	if len(columns) > 0 {
		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = "`" + c + "`"
		}
		selectList = strings.Join(quoted, ", ")
	}
	query := fmt.Sprintf("SELECT %s FROM `%s`.`%s`", selectList, bq.config.Dataset, table)
	if limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, limit)
	}
	return query
}

// bigQueryStream adapts a bigquery.RowIterator to a lazy record stream.
// Rows are scanned positionally so the header keeps the result column order.
type bigQueryStream struct {
	it     *bigquery.RowIterator
	header *types.BatchHeader
	trace  func(format string, v ...any)
	limit  int
	read   int
	closed bool
}

func (bs *bigQueryStream) Next(ctx context.Context) (types.Record, error) {
	if bs.closed {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if bs.limit > 0 && bs.read >= bs.limit {
		return nil, io.EOF
	}
	var row []bigquery.Value
	err := bs.it.Next(&row)
	if err == iterator.Done {
		return nil, io.EOF
	}
	if err != nil {
		return nil, errorj.PartialReadError.Wrap(bigQueryErrorMap(err), "failed to read query result").
			WithProperty(errorj.DBInfo, &types.ErrorPayload{ReadRows: bs.read})
	}
	bs.syncHeader()
	schema := bs.it.Schema
	record := make(types.Record, len(schema))
	for i, field := range schema {
		if i >= len(row) {
			break
		}
		record[field.Name] = normalizeBigQueryValue(row[i])
	}
	bs.read++
	if bs.trace != nil {
		bs.trace("record #%d: %+v", bs.read, record)
	}
	return record, nil
}

// syncHeader fills the shared header once the iterator schema becomes known.
// RowIterator.Schema is populated on the first Next call, after the stream
// header pointer was already handed out.
func (bs *bigQueryStream) syncHeader() {
	if !bs.header.Exists() && len(bs.it.Schema) > 0 {
		fields := make([]string, len(bs.it.Schema))
		for i, field := range bs.it.Schema {
			fields[i] = field.Name
		}
		bs.header.Fields = fields
	}
}

func (bs *bigQueryStream) Header() *types.BatchHeader {
	bs.syncHeader()
	return bs.header
}

func (bs *bigQueryStream) Close() error {
	bs.closed = true
	return nil
}

func normalizeBigQueryValue(v bigquery.Value) any {
	switch i := v.(type) {
	case civil.Date:
		return i.String()
	case time.Time:
		return timestamp.ToISOFormat(i.UTC())
	case int64:
		return int(i)
	default:
		return v
	}
}

func bigQueryErrorMap(err error) error {
	if err == nil {
		return nil
	}
	if errorj.Kind(err) != nil {
		return err
	}
	if gerr, ok := err.(*googleapi.Error); ok {
		switch gerr.Code {
		case 401, 403:
			return errorj.AuthError.Wrap(err, "bigquery authorization failed")
		case 400, 404:
			return errorj.QueryError.Wrap(err, "bigquery query failed")
		default:
			return errorj.ConnectionError.Wrap(err, "bigquery request failed")
		}
	}
	return errorj.ConnectionError.Wrap(err, "bigquery request failed")
}
