package implementations

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path"
	"strings"
	"time"

	"github.com/jitsucom/spout/base/errorj"
	"github.com/jitsucom/spout/base/objects"
	"github.com/jitsucom/spout/base/timestamp"
	"github.com/jitsucom/spout/base/utils"
	"github.com/jitsucom/spout/spout"
	"github.com/jitsucom/spout/types"
	jsoniter "github.com/json-iterator/go"
)

// CreateFileAdapter creates a batch artifact destination by type id.
// config may be a typed config struct, map[string]any or a json/yaml string
func CreateFileAdapter(typeId string, config any) (FileAdapter, error) {
	switch typeId {
	case LocalFileAdapterTypeId:
		localConfig := &LocalDirConfig{}
		if err := utils.ParseObject(config, localConfig); err != nil {
			return nil, errorj.ConfigError.Wrap(err, "failed to parse local file config")
		}
		return NewLocalDir(localConfig)
	case S3FileAdapterTypeId:
		s3Config := &S3Config{}
		if err := utils.ParseObject(config, s3Config); err != nil {
			return nil, errorj.ConfigError.Wrap(err, "failed to parse s3 config")
		}
		return NewS3(s3Config)
	case GCSFileAdapterTypeId:
		googleConfig := &GoogleConfig{}
		if err := utils.ParseObject(config, googleConfig); err != nil {
			return nil, errorj.ConfigError.Wrap(err, "failed to parse gcs config")
		}
		return NewGoogleCloudStorage(googleConfig)
	default:
		return nil, errorj.ConfigError.New("unknown destination type: %s", typeId)
	}
}

// BatchWriter spools extracted records to a local temp file and publishes
// them to the destination as one batch artifact on Complete. Nothing is
// visible at the destination until Complete succeeds, Abort and failures
// leave the destination untouched.
type BatchWriter struct {
	objects.ServiceBase
	fileAdapter  FileAdapter
	artifactName string

	batchFile        *os.File
	marshaller       types.Marshaller
	targetMarshaller types.Marshaller
	header           *types.BatchHeader
	recordsInBatch   int

	state  spout.State
	inited bool

	startTime time.Time
}

// NewBatchWriter returns a BatchWriter publishing to fileAdapter under artifactName
// (file extension of the configured format is appended automatically).
// A [DATETIME] macro in artifactName is replaced with the run start time.
func NewBatchWriter(id string, fileAdapter FileAdapter, artifactName string) *BatchWriter {
	return &BatchWriter{
		ServiceBase:  objects.NewServiceBase(id),
		fileAdapter:  fileAdapter,
		artifactName: artifactName,
		header:       &types.BatchHeader{},
		state:        spout.State{Status: spout.Active},
		startTime:    timestamp.Now(),
	}
}

// SetHeader supplies the run schema. When set, field order of the schema is
// used for csv artifacts instead of order of first appearance in records
func (bw *BatchWriter) SetHeader(header *types.BatchHeader) {
	if header != nil {
		bw.header = header
	}
}

func (bw *BatchWriter) init() error {
	if bw.inited {
		return nil
	}
	batchFile, err := os.CreateTemp("", "spout_"+utils.SanitizeString(bw.ID))
	if err != nil {
		return errorj.WriteError.Wrap(err, "failed to create batch file")
	}
	bw.batchFile = batchFile
	bw.marshaller, _ = types.NewMarshaller(types.FileFormatNDJSON, types.FileCompressionNONE)
	bw.targetMarshaller, err = types.NewMarshaller(bw.fileAdapter.Format(), bw.fileAdapter.Compression())
	if err != nil {
		return errorj.WriteError.Wrap(err, "failed to create marshaller")
	}
	if bw.fileAdapter.Format() == types.FileFormatNDJSON {
		//no conversion needed - spool directly in the target format
		bw.marshaller = bw.targetMarshaller
	}
	bw.inited = true
	return nil
}

func (bw *BatchWriter) Consume(_ context.Context, record types.Record) error {
	if bw.state.Status != spout.Active {
		return errorj.WriteError.New("attempt to consume record after %s", bw.state.Status)
	}
	if err := bw.init(); err != nil {
		bw.state.SetError(err)
		return err
	}
	bw.state.ProcessedRows++
	bw.header.Merge(types.RecordHeader(record))
	if err := bw.marshaller.Init(bw.batchFile, bw.header.Fields); err != nil {
		err = errorj.WriteError.Wrap(err, "failed to init marshaller")
		bw.state.SetError(err)
		return err
	}
	if err := bw.marshaller.Marshal(record); err != nil {
		err = errorj.WriteError.Wrap(err, "failed to marshal record")
		bw.state.SetError(err)
		return err
	}
	bw.recordsInBatch++
	bw.state.SuccessfulRows++
	return nil
}

// Complete publishes the batch artifact. On any failure the temp file is
// removed and the destination stays untouched
func (bw *BatchWriter) Complete(_ context.Context) (spout.State, error) {
	if bw.state.Status != spout.Active {
		return bw.state, errorj.WriteError.New("attempt to complete writer in %s state", bw.state.Status)
	}
	if err := bw.init(); err != nil {
		return bw.fail(err)
	}
	defer bw.cleanup()

	//zero records consumed is a valid run: publish an empty artifact
	if err := bw.marshaller.Init(bw.batchFile, bw.header.Fields); err != nil {
		return bw.fail(errorj.WriteError.Wrap(err, "failed to init marshaller"))
	}
	if err := bw.marshaller.Flush(); err != nil {
		return bw.fail(errorj.WriteError.Wrap(err, "failed to flush marshaller"))
	}
	if err := bw.batchFile.Sync(); err != nil {
		return bw.fail(errorj.WriteError.Wrap(err, "failed to sync batch file"))
	}

	workingFile := bw.batchFile
	if !bw.targetMarshaller.Equal(bw.marshaller) {
		var err error
		workingFile, err = bw.convert()
		if err != nil {
			return bw.fail(err)
		}
		defer func() {
			_ = workingFile.Close()
			_ = os.Remove(workingFile.Name())
		}()
	}

	if stat, err := workingFile.Stat(); err == nil {
		bw.state.BytesProcessed = int(stat.Size())
	}
	file, err := os.Open(workingFile.Name())
	if err != nil {
		return bw.fail(errorj.WriteError.Wrap(err, "failed to open batch file for upload"))
	}
	defer func() {
		_ = file.Close()
	}()

	artifactName := strings.ReplaceAll(bw.artifactName, "[DATETIME]", bw.startTime.Format(timestamp.FileNameLayout))
	artifactName = bw.fileAdapter.AddFileExtension(artifactName)
	if err = bw.fileAdapter.Upload(artifactName, file); err != nil {
		return bw.fail(err)
	}
	sec := time.Since(bw.startTime).Seconds()
	bw.Infof("Published batch artifact %s with %d records in %.2f s.", bw.fileAdapter.Path(artifactName), bw.recordsInBatch, sec)
	bw.state.Status = spout.Completed
	bw.state.ArtifactPath = bw.fileAdapter.Path(artifactName)
	return bw.state, nil
}

// Abort discards the spooled batch. Nothing reaches the destination
func (bw *BatchWriter) Abort(_ context.Context) (spout.State, error) {
	if bw.state.Status != spout.Active {
		return bw.state, nil
	}
	bw.cleanup()
	bw.state.Status = spout.Aborted
	return bw.state, nil
}

// convert rewrites the ndjson spool file into the target format. Used for
// csv artifacts where the full schema must be known before the first row
func (bw *BatchWriter) convert() (*os.File, error) {
	workingFile, err := os.CreateTemp("", path.Base(bw.batchFile.Name())+"_2")
	if err != nil {
		return nil, errorj.WriteError.Wrap(err, "failed to create tmp file for format conversion")
	}
	if err = bw.targetMarshaller.Init(workingFile, bw.header.Fields); err != nil {
		_ = workingFile.Close()
		_ = os.Remove(workingFile.Name())
		return nil, errorj.WriteError.Wrap(err, "failed to write header for converted batch file")
	}
	file, err := os.Open(bw.batchFile.Name())
	if err != nil {
		_ = workingFile.Close()
		_ = os.Remove(workingFile.Name())
		return nil, errorj.WriteError.Wrap(err, "failed to open batch file")
	}
	defer func() {
		_ = file.Close()
	}()
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*100), 1024*1024*10)
	for scanner.Scan() {
		dec := jsoniter.NewDecoder(bytes.NewReader(scanner.Bytes()))
		dec.UseNumber()
		record := make(types.Record)
		if err = dec.Decode(&record); err != nil {
			_ = workingFile.Close()
			_ = os.Remove(workingFile.Name())
			return nil, errorj.WriteError.Wrap(err, "failed to decode json record from batch file")
		}
		if err = bw.targetMarshaller.Marshal(record); err != nil {
			_ = workingFile.Close()
			_ = os.Remove(workingFile.Name())
			return nil, errorj.WriteError.Wrap(err, "failed to marshal record to target format")
		}
	}
	if err = scanner.Err(); err != nil {
		_ = workingFile.Close()
		_ = os.Remove(workingFile.Name())
		return nil, errorj.WriteError.Wrap(err, "failed to read batch file")
	}
	if err = bw.targetMarshaller.Flush(); err != nil {
		_ = workingFile.Close()
		_ = os.Remove(workingFile.Name())
		return nil, errorj.WriteError.Wrap(err, "failed to flush target marshaller")
	}
	_ = workingFile.Sync()
	return workingFile, nil
}

func (bw *BatchWriter) fail(err error) (spout.State, error) {
	bw.cleanup()
	bw.state.SetError(err)
	bw.state.Status = spout.Failed
	return bw.state, err
}

func (bw *BatchWriter) cleanup() {
	if bw.batchFile != nil {
		_ = bw.batchFile.Close()
		_ = os.Remove(bw.batchFile.Name())
		bw.batchFile = nil
	}
}
