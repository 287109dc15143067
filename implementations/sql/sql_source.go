package sql

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/jitsucom/spout/base/errorj"
	"github.com/jitsucom/spout/base/objects"
	"github.com/jitsucom/spout/spout"
	"github.com/jitsucom/spout/types"
)

// IdentifierQuoteFunc quotes a single identifier in the dialect of the source
type IdentifierQuoteFunc func(identifier string) string

// ErrorMapFunc maps a raw driver error to the run failure taxonomy
type ErrorMapFunc func(err error) error

var doubleQuote IdentifierQuoteFunc = func(identifier string) string {
	return `"` + identifier + `"`
}

var backQuote IdentifierQuoteFunc = func(identifier string) string {
	return "`" + identifier + "`"
}

// SQLSource is the shared part of all database/sql backed spouts: it owns the
// connection pool, builds scan queries and turns sql.Rows into a record stream.
// Driver specifics (dsn, identifier quoting, error codes) come from each spout.
type SQLSource struct {
	objects.ServiceBase
	typeId     string
	config     *DataSourceConfig
	dataSource *sql.DB
	quoteFunc  IdentifierQuoteFunc
	errorMap   ErrorMapFunc
	//limitInQuery - whether the dialect supports a trailing LIMIT clause
	limitInQuery bool
	logLevel     spout.LogLevel
}

func newSQLSource(id, typeId string, config *DataSourceConfig, dataSource *sql.DB, quoteFunc IdentifierQuoteFunc, errorMap ErrorMapFunc, limitInQuery bool) *SQLSource {
	return &SQLSource{
		ServiceBase:  objects.NewServiceBase(id),
		typeId:       typeId,
		config:       config,
		dataSource:   dataSource,
		quoteFunc:    quoteFunc,
		errorMap:     errorMap,
		limitInQuery: limitInQuery,
	}
}

func (s *SQLSource) Type() string {
	return s.typeId
}

func (s *SQLSource) Ping(ctx context.Context) error {
	if err := s.dataSource.PingContext(ctx); err != nil {
		return s.errorMap(err)
	}
	return nil
}

// Close releases the connection pool of the source session
func (s *SQLSource) Close() error {
	return s.dataSource.Close()
}

func (s *SQLSource) Extract(ctx context.Context, extract spout.ExtractSpec, options ...spout.ExtractOption) (spout.RecordStream, error) {
	if err := extract.Validate(); err != nil {
		return nil, err
	}
	extractOptions := &spout.ExtractOptions{}
	for _, option := range options {
		extractOptions.Add(option)
	}
	limit := spout.LimitOption.Get(extractOptions)
	parameters := spout.ParametersOption.Get(extractOptions)

	query := extract.Query
	if query == "" {
		query = s.buildScanQuery(extract.Table, spout.ColumnsOption.Get(extractOptions), limit)
	}
	if s.logLevel >= spout.Verbose {
		s.Infof("SQL: %s", query)
	}
	rows, err := s.dataSource.QueryContext(ctx, query, parameters...)
	if err != nil {
		return nil, errorj.Decorate(s.errorMap(err), "failed to run extraction query").
			WithProperty(errorj.DBInfo, &types.ErrorPayload{
				Host:      s.config.Host,
				Database:  s.config.Db,
				Schema:    s.config.Schema,
				Table:     extract.Table,
				Statement: query,
			})
	}
	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, s.errorMap(err)
	}
	stream := &rowsStream{
		rows:     rows,
		header:   &types.BatchHeader{Fields: columns},
		errorMap: s.errorMap,
		limit:    limit,
	}
	if s.logLevel >= spout.Full {
		stream.trace = s.Infof
	}
	return stream, nil
}

// buildScanQuery renders a full table scan in the source dialect
func (s *SQLSource) buildScanQuery(table string, columns []string, limit int) string {
	selectList := "*"
	if len(columns) > 0 {
		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = s.quoteFunc(c)
		}
		selectList = strings.Join(quoted, ", ")
	}
	query := fmt.Sprintf("SELECT %s FROM %s", selectList, s.quoteTableName(table))
	if limit > 0 && s.limitInQuery {
		query = fmt.Sprintf("%s LIMIT %d", query, limit)
	}
	return query
}

// quoteTableName quotes a possibly schema qualified table name segment by segment
func (s *SQLSource) quoteTableName(table string) string {
	parts := strings.Split(table, ".")
	if len(parts) == 1 && s.config.Schema != "" {
		parts = []string{s.config.Schema, table}
	}
	for i, p := range parts {
		parts[i] = s.quoteFunc(p)
	}
	return strings.Join(parts, ".")
}

// rowsStream adapts sql.Rows to a lazy record stream. It is finite and
// non-restartable: once drained or failed it cannot be rewound.
type rowsStream struct {
	rows     *sql.Rows
	header   *types.BatchHeader
	errorMap ErrorMapFunc
	//trace logs every extracted record when the Full log level is enabled
	trace    func(format string, v ...any)
	limit    int
	read     int
	closed   bool
}

func (rs *rowsStream) Next(ctx context.Context) (types.Record, error) {
	if rs.closed {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rs.limit > 0 && rs.read >= rs.limit {
		return nil, io.EOF
	}
	if !rs.rows.Next() {
		if err := rs.rows.Err(); err != nil {
			return nil, errorj.PartialReadError.Wrap(rs.errorMap(err), "source connection failed mid scan").
				WithProperty(errorj.DBInfo, &types.ErrorPayload{ReadRows: rs.read})
		}
		return nil, io.EOF
	}
	record, err := rs.scanRecord()
	if err != nil {
		return nil, errorj.PartialReadError.Wrap(err, "failed to scan row").
			WithProperty(errorj.DBInfo, &types.ErrorPayload{ReadRows: rs.read})
	}
	rs.read++
	if rs.trace != nil {
		rs.trace("record #%d: %+v", rs.read, record)
	}
	return record, nil
}

func (rs *rowsStream) scanRecord() (types.Record, error) {
	columnTypes, err := rs.rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	data := make([]any, len(rs.header.Fields))
	for i := range data {
		data[i] = &ColumnScanner{ColumnType: columnTypes[i]}
	}
	if err = rs.rows.Scan(data...); err != nil {
		return nil, err
	}
	record := make(types.Record, len(rs.header.Fields))
	for i, field := range rs.header.Fields {
		record[field] = data[i].(*ColumnScanner).Get()
	}
	return record, nil
}

func (rs *rowsStream) Header() *types.BatchHeader {
	return rs.header
}

func (rs *rowsStream) Close() error {
	if rs.closed {
		return nil
	}
	rs.closed = true
	closeErr := rs.rows.Close()
	if err := rs.rows.Err(); err != nil {
		return errorj.PartialReadError.Wrap(rs.errorMap(err), "source connection failed mid scan").
			WithProperty(errorj.DBInfo, &types.ErrorPayload{ReadRows: rs.read})
	}
	if closeErr != nil {
		return errorj.PartialReadError.Wrap(closeErr, "failed to release source cursor")
	}
	return nil
}
