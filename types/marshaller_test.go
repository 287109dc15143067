package types

import (
	"bytes"
	"compress/gzip"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONMarshaller(t *testing.T) {
	m, err := NewMarshaller(FileFormatNDJSON, FileCompressionNONE)
	require.NoError(t, err)
	require.False(t, m.NeedHeader())
	require.Equal(t, ".ndjson", m.FileExtension())

	buf := &bytes.Buffer{}
	require.NoError(t, m.Init(buf, nil))
	require.NoError(t, m.Marshal(Record{"id": 1, "name": "a"}))
	require.NoError(t, m.Marshal(Record{"id": 2, "name": "b"}))
	require.NoError(t, m.Flush())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.JSONEq(t, `{"id":1,"name":"a"}`, lines[0])
	require.JSONEq(t, `{"id":2,"name":"b"}`, lines[1])
}

func TestJSONMarshallerGzip(t *testing.T) {
	m, err := NewMarshaller(FileFormatNDJSON, FileCompressionGZIP)
	require.NoError(t, err)
	require.Equal(t, ".ndjson.gz", m.FileExtension())

	buf := &bytes.Buffer{}
	require.NoError(t, m.Init(buf, nil))
	require.NoError(t, m.Marshal(Record{"id": 1}))
	require.NoError(t, m.Flush())

	gz, err := gzip.NewReader(buf)
	require.NoError(t, err)
	payload, err := io.ReadAll(gz)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":1}`, strings.TrimSpace(string(payload)))
}

func TestCSVMarshaller(t *testing.T) {
	m, err := NewMarshaller(FileFormatCSV, FileCompressionNONE)
	require.NoError(t, err)
	require.True(t, m.NeedHeader())
	require.Equal(t, ".csv", m.FileExtension())

	buf := &bytes.Buffer{}
	require.NoError(t, m.Init(buf, []string{"id", "name", "active", "tags", "missing"}))
	require.NoError(t, m.Marshal(Record{"id": 1, "name": "a", "active": true, "tags": []string{"x", "y"}}))
	require.NoError(t, m.Marshal(Record{"id": 2, "name": "b", "active": false}))
	require.NoError(t, m.Flush())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "id,name,active,tags,missing", lines[0])
	require.Equal(t, `1,a,1,"[""x"",""y""]",\N`, lines[1])
	require.Equal(t, `2,b,0,\N,\N`, lines[2])
}

func TestCSVMarshallerRequiresInit(t *testing.T) {
	m, err := NewMarshaller(FileFormatCSV, FileCompressionNONE)
	require.NoError(t, err)
	require.Error(t, m.Marshal(Record{"id": 1}))
	require.Error(t, m.Flush())
}

func TestNewMarshallerUnknownFormat(t *testing.T) {
	_, err := NewMarshaller("parquet", FileCompressionNONE)
	require.Error(t, err)
}

func TestMarshallerEqual(t *testing.T) {
	a, _ := NewMarshaller(FileFormatNDJSON, FileCompressionNONE)
	b, _ := NewMarshaller(FileFormatNDJSON, FileCompressionNONE)
	c, _ := NewMarshaller(FileFormatCSV, FileCompressionNONE)
	d, _ := NewMarshaller(FileFormatNDJSON, FileCompressionGZIP)
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
	require.False(t, a.Equal(d))
}

func TestBatchHeaderMerge(t *testing.T) {
	header := &BatchHeader{}
	require.False(t, header.Exists())
	header.Merge(&BatchHeader{Fields: []string{"id", "name"}})
	header.Merge(&BatchHeader{Fields: []string{"name", "email"}})
	header.Merge(nil)
	require.True(t, header.Exists())
	require.Equal(t, []string{"id", "name", "email"}, header.Fields)
}
