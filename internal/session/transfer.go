package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// StorageAPI is the slice of the S3 API a transfer uses. The upload and download
// halves are the manager package's own client contracts.
type StorageAPI interface {
	manager.UploadAPIClient
	manager.DownloadAPIClient
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Transfer moves files between the local host and a session's instance through a
// staging bucket. The instance pulls and pushes its side with the AWS CLI, so its
// role needs read and write on the staging prefix.
type Transfer struct {
	Bucket string
	Prefix string

	session *Session
	storage StorageAPI

	// now is swapped out in tests to pin staging keys.
	now func() time.Time
}

func NewTransfer(session *Session, storage StorageAPI, bucket, prefix string) *Transfer {
	return &Transfer{
		Bucket:  bucket,
		Prefix:  prefix,
		session: session,
		storage: storage,
		now:     time.Now,
	}
}

// Push copies a local file onto the instance. The file is staged in the bucket,
// copied down by the instance, then removed from the bucket regardless of outcome.
func (t *Transfer) Push(ctx context.Context, localPath, remotePath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer file.Close()

	key := t.stagingKey(localPath)
	uploader := manager.NewUploader(t.storage)
	if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(t.Bucket),
		Key:    aws.String(key),
		Body:   file,
	}); err != nil {
		return fmt.Errorf("failed to stage %s in s3://%s/%s: %w", localPath, t.Bucket, key, err)
	}
	defer t.cleanup(ctx, key)

	slog.Debug("file staged", "bucket", t.Bucket, "key", key)

	result, err := t.session.Exec(ctx, fmt.Sprintf(
		"aws s3 cp %s %s", quote(t.s3URI(key)), quote(remotePath),
	))
	if err != nil {
		return err
	}
	if result.Failed() {
		return fmt.Errorf("remote copy to %s failed (%s): %s", remotePath, result.Status, result.Stderr)
	}
	return nil
}

// Pull copies a file off the instance. The instance uploads it to the staging
// bucket, the local side downloads it, then the staged object is removed.
func (t *Transfer) Pull(ctx context.Context, remotePath, localPath string) error {
	key := t.stagingKey(remotePath)

	result, err := t.session.Exec(ctx, fmt.Sprintf(
		"aws s3 cp %s %s", quote(remotePath), quote(t.s3URI(key)),
	))
	if err != nil {
		return err
	}
	if result.Failed() {
		return fmt.Errorf("remote copy from %s failed (%s): %s", remotePath, result.Status, result.Stderr)
	}
	defer t.cleanup(ctx, key)

	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	defer file.Close()

	downloader := manager.NewDownloader(t.storage)
	if _, err := downloader.Download(ctx, file, &s3.GetObjectInput{
		Bucket: aws.String(t.Bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("failed to download s3://%s/%s: %w", t.Bucket, key, err)
	}
	return nil
}

func (t *Transfer) stagingKey(path string) string {
	key := fmt.Sprintf("%s-%d-%s", t.session.InstanceID, t.now().UnixNano(), filepath.Base(path))
	if t.Prefix != "" {
		return t.Prefix + "/" + key
	}
	return key
}

func (t *Transfer) s3URI(key string) string {
	return fmt.Sprintf("s3://%s/%s", t.Bucket, key)
}

func (t *Transfer) cleanup(ctx context.Context, key string) {
	if _, err := t.storage.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(t.Bucket),
		Key:    aws.String(key),
	}); err != nil {
		slog.Warn("failed to remove staged object", "bucket", t.Bucket, "key", key, "error", err)
	}
}

func quote(s string) string {
	return "'" + s + "'"
}
