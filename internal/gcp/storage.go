package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// SaveToGCSAtomically writes content to a GCS object only if it doesn't already exist.
// An existing object is not a failure: exports are written once per session.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName, contentType, content string) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, strings.NewReader(content)); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			return nil
		}
		return remoteError("write gs object "+objectName, err)
	}

	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			return nil
		}
		return remoteError("finalize gs object "+objectName, err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

// ExportArchive stores the JSON export of completed sessions in a bucket.
type ExportArchive struct {
	client *storage.Client
	bucket string
}

// NewExportArchive creates the storage client for bucketName.
func NewExportArchive(ctx context.Context, bucketName string, opts ...option.ClientOption) (*ExportArchive, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("bucket name must be provided: %w", ErrConfigurationMissing)
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &ExportArchive{client: client, bucket: bucketName}, nil
}

// Save writes exports/<sessionID>.json once.
func (a *ExportArchive) Save(ctx context.Context, sessionID string, payload []byte) (string, error) {
	objectName := fmt.Sprintf("exports/%s.json", sessionID)
	if err := SaveToGCSAtomically(ctx, a.client.Bucket(a.bucket), objectName, "application/json", string(payload)); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", a.bucket, objectName), nil
}

func (a *ExportArchive) Close() error {
	return a.client.Close()
}
