// internal/chat/storage.go
// Attachment storage: S3 in production, local disk for development

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/google/uuid"
)

var ErrFileTooLarge = errors.New("file exceeds the upload size limit")

// Uploader stores a message attachment and returns its public URL
type Uploader interface {
	Upload(ctx context.Context, file multipart.File, header *multipart.FileHeader) (string, error)
}

// ===== S3 =====

type s3Uploader struct {
	uploader *s3manager.Uploader
	bucket   string
	region   string
	maxSize  int64
}

// NewS3Uploader creates an S3-backed attachment uploader
func NewS3Uploader(region, bucket string, maxSize int64) (Uploader, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &s3Uploader{
		uploader: s3manager.NewUploader(sess),
		bucket:   bucket,
		region:   region,
		maxSize:  maxSize,
	}, nil
}

func (u *s3Uploader) Upload(ctx context.Context, file multipart.File, header *multipart.FileHeader) (string, error) {
	if header.Size > u.maxSize {
		return "", ErrFileTooLarge
	}

	key := objectKey(header.Filename)

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	result, err := u.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return result.Location, nil
}

// ===== Local disk =====

type localUploader struct {
	dir     string
	baseURL string
	maxSize int64
}

// NewLocalUploader stores attachments on local disk; used in development
func NewLocalUploader(dir, baseURL string, maxSize int64) (Uploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	return &localUploader{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		maxSize: maxSize,
	}, nil
}

func (u *localUploader) Upload(_ context.Context, file multipart.File, header *multipart.FileHeader) (string, error) {
	if header.Size > u.maxSize {
		return "", ErrFileTooLarge
	}

	key := objectKey(header.Filename)
	path := filepath.Join(u.dir, key)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return u.baseURL + "/uploads/" + key, nil
}

// objectKey builds a collision-free storage key that keeps the original
// extension so content type survives the round trip.
func objectKey(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("chat/%s%s", uuid.New().String(), ext)
}
