package implementations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/jitsucom/spout/base/errorj"
	"github.com/jitsucom/spout/base/logging"
	"github.com/jitsucom/spout/types"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/atomic"
	"google.golang.org/api/option"
)

const GCSFileAdapterTypeId = "gcs"

// GoogleCredentials is the shared part of the google backed adapters config:
// project plus keyFile that can be a path, a json string or a json object
type GoogleCredentials struct {
	Project string `mapstructure:"project,omitempty" json:"project,omitempty" yaml:"project,omitempty"`
	KeyFile any    `mapstructure:"keyFile,omitempty" json:"keyFile,omitempty" yaml:"keyFile,omitempty"`

	//will be set on validation
	Credentials option.ClientOption
}

type GoogleConfig struct {
	FileConfig        `mapstructure:",squash" json:",inline" yaml:",inline"`
	GoogleCredentials `mapstructure:",squash" json:",inline" yaml:",inline"`
	Bucket            string `mapstructure:"gcsBucket,omitempty" json:"gcsBucket,omitempty" yaml:"gcsBucket,omitempty"`
}

func (gc *GoogleCredentials) Validate() error {
	if gc == nil {
		return errors.New("Google config is required")
	}

	switch gc.KeyFile.(type) {
	case map[string]any:
		keyFileObject := gc.KeyFile.(map[string]any)
		if len(keyFileObject) == 0 {
			return errors.New("Google keyFile is required parameter")
		}
		b, err := jsoniter.Marshal(keyFileObject)
		if err != nil {
			return fmt.Errorf("Malformed google keyFile: %v", err)
		}
		gc.Credentials = option.WithCredentialsJSON(b)
	case string:
		keyFile := gc.KeyFile.(string)
		if keyFile == "workload_identity" {
			return nil
		}
		if keyFile == "" {
			return errors.New("Google keyFile is required parameter")
		}
		if strings.Contains(keyFile, "{") {
			gc.Credentials = option.WithCredentialsJSON([]byte(keyFile))
		} else {
			gc.Credentials = option.WithCredentialsFile(keyFile)
		}
	default:
		return errors.New("Google keyFile must be string or json object")
	}

	return nil
}

type GoogleCloudStorage struct {
	AbstractFileAdapter
	config *GoogleConfig
	client *storage.Client

	closed *atomic.Bool
}

func NewGoogleCloudStorage(config *GoogleConfig) (*GoogleCloudStorage, error) {
	var client *storage.Client
	var err error
	if err = config.Validate(); err != nil {
		return nil, err
	}
	if config.Credentials == nil {
		client, err = storage.NewClient(context.Background())
	} else {
		client, err = storage.NewClient(context.Background(), config.Credentials)
	}
	if err != nil {
		return nil, fmt.Errorf("Error creating google cloud storage client: %v", err)
	}

	if config.Format == "" {
		config.Format = types.FileFormatNDJSON
	}

	return &GoogleCloudStorage{AbstractFileAdapter: AbstractFileAdapter{config: &config.FileConfig}, client: client, config: config, closed: atomic.NewBool(false)}, nil
}

func (gcs *GoogleCloudStorage) UploadBytes(fileName string, fileBytes []byte) error {
	return gcs.Upload(fileName, bytes.NewReader(fileBytes))
}

// Upload creates named file on google cloud storage with payload
func (gcs *GoogleCloudStorage) Upload(fileName string, fileReader io.ReadSeeker) (err error) {
	fileName = gcs.Path(fileName)

	//panic handler
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while uploading file: %s to GCS project: %s bucket: %s : %v", fileName, gcs.config.Project, gcs.config.Bucket, r)
			logging.SystemErrorf(err.Error())
		}
	}()
	if gcs.closed.Load() {
		return fmt.Errorf("attempt to use closed GoogleCloudStorage instance")
	}
	bucket := gcs.client.Bucket(gcs.config.Bucket)
	object := bucket.Object(fileName)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute*5)
	defer cancel()
	w := object.NewWriter(ctx)

	if _, err := io.Copy(w, fileReader); err != nil {
		return errorj.WriteError.Wrap(err, "failed to write file to google cloud storage").
			WithProperty(errorj.DBInfo, &types.ErrorPayload{
				Bucket:    gcs.config.Bucket,
				Statement: fmt.Sprintf("file: %s", fileName),
			})
	}

	if err := w.Close(); err != nil {
		return errorj.WriteError.Wrap(err, "failed to close google cloud writer").
			WithProperty(errorj.DBInfo, &types.ErrorPayload{
				Bucket:    gcs.config.Bucket,
				Statement: fmt.Sprintf("file: %s", fileName),
			})
	}
	metadata := storage.ObjectAttrsToUpdate{}
	if gcs.config.Compression == types.FileCompressionGZIP {
		metadata.ContentType = "application/gzip"
	} else {
		if gcs.config.Format == types.FileFormatCSV {
			metadata.ContentType = "text/csv"
		} else if gcs.config.Format == types.FileFormatNDJSON {
			metadata.ContentType = "application/x-ndjson"
		}
	}
	if _, err := object.Update(context.Background(), metadata); err != nil {
		return errorj.WriteError.Wrap(err, "failed to set Content-Type metadata").
			WithProperty(errorj.DBInfo, &types.ErrorPayload{
				Bucket:    gcs.config.Bucket,
				Statement: fmt.Sprintf("file: %s", fileName),
			})
	}

	return nil
}

// Download downloads file from google cloud storage bucket
func (gcs *GoogleCloudStorage) Download(key string) (fileBytes []byte, err error) {
	key = gcs.Path(key)
	//panic handler
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while downloading file: %s from GCS project: %s bucket: %s : %v", key, gcs.config.Project, gcs.config.Bucket, r)
			logging.SystemErrorf(err.Error())
		}
	}()
	if gcs.closed.Load() {
		return nil, fmt.Errorf("attempt to use closed GoogleCloudStorage instance")
	}
	bucket := gcs.client.Bucket(gcs.config.Bucket)
	obj := bucket.Object(key)

	r, err := obj.NewReader(context.Background())
	if err != nil {
		return nil, errorj.WriteError.Wrap(err, "failed to read file from google cloud storage").
			WithProperty(errorj.DBInfo, &types.ErrorPayload{
				Bucket:    gcs.config.Bucket,
				Statement: fmt.Sprintf("file: %s", key),
			})
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errorj.WriteError.Wrap(err, "failed to read file from google cloud storage").
			WithProperty(errorj.DBInfo, &types.ErrorPayload{
				Bucket:    gcs.config.Bucket,
				Statement: fmt.Sprintf("file: %s", key),
			})
	}
	return data, nil
}

// DeleteObject deletes object from google cloud storage bucket
func (gcs *GoogleCloudStorage) DeleteObject(key string) error {
	key = gcs.Path(key)
	if gcs.closed.Load() {
		return fmt.Errorf("attempt to use closed GoogleCloudStorage instance")
	}
	bucket := gcs.client.Bucket(gcs.config.Bucket)
	obj := bucket.Object(key)

	if err := obj.Delete(context.Background()); err != nil {
		return errorj.WriteError.Wrap(err, "failed to delete from google cloud storage").
			WithProperty(errorj.DBInfo, &types.ErrorPayload{
				Bucket:    gcs.config.Bucket,
				Statement: fmt.Sprintf("file: %s", key),
			})
	}
	return nil
}

func (gcs *GoogleCloudStorage) Close() error {
	gcs.closed.Store(true)
	if err := gcs.client.Close(); err != nil {
		return fmt.Errorf("Error closing google cloud storage client: %v", err)
	}
	return nil
}
