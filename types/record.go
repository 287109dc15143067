package types

import "github.com/jitsucom/spout/base/utils"

// Record is a single row, document or entry extracted from a source system.
// Values are scalars or nested maps/arrays as produced by the vendor driver.
type Record map[string]any

// BatchHeader describes the single schema all records of one extraction run
// conform to. Field order follows the order of the source result set.
type BatchHeader struct {
	Fields []string
}

func (bh *BatchHeader) Exists() bool {
	return bh != nil && len(bh.Fields) > 0
}

// Merge adds fields of other that are not yet present, preserving order of
// first appearance. Sources with loose schemas (documents, key-value scans)
// may reveal fields gradually.
func (bh *BatchHeader) Merge(other *BatchHeader) {
	if other == nil {
		return
	}
	known := utils.NewSet(bh.Fields...)
	for _, f := range other.Fields {
		if !known.Contains(f) {
			bh.Fields = append(bh.Fields, f)
			known.Put(f)
		}
	}
}

// RecordHeader builds a BatchHeader from a single record. Map iteration order
// is not stable so callers that need strict ordering must pass an explicit
// field list instead.
func RecordHeader(record Record) *BatchHeader {
	fields := make([]string, 0, len(record))
	for f := range record {
		fields = append(fields, f)
	}
	return &BatchHeader{Fields: fields}
}
