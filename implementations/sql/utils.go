package sql

import (
	"database/sql"
	"math/big"
	"time"

	"github.com/jitsucom/spout/base/timestamp"
)

// ColumnScanner normalizes driver specific scan values into plain Go values
// suitable for batch artifacts
type ColumnScanner struct {
	ColumnType *sql.ColumnType
	value      any
}

func (s *ColumnScanner) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		s.value = string(v)
	case int64:
		if s.ColumnType.DatabaseTypeName() == "TINYINT" && (v == 1 || v == 0) {
			//hack for mysql where boolean is represented as tinyint(1)
			s.value = v == 1
		} else {
			s.value = int(v)
		}
	case uint8:
		if s.ColumnType.DatabaseTypeName() == "UInt8" && (v == 1 || v == 0) {
			//hack for ClickHouse where boolean is represented as UInt8
			s.value = v == 1
		} else {
			s.value = int(v)
		}
	case time.Time:
		//one timestamp layout for all batch artifacts regardless of the source
		s.value = timestamp.ToISOFormat(v.UTC())
	case big.Int:
		s.value = int(v.Int64())
	case big.Float:
		s.value, _ = v.Float64()
	default:
		s.value = src
	}
	return nil
}

func (s *ColumnScanner) Get() any {
	return s.value
}
