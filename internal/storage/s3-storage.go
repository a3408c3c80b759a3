package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/BerylCAtieno/invoice-chat-api/internal/config"
	"github.com/BerylCAtieno/invoice-chat-api/internal/models"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Storage archives uploaded documents under documents/<invoiceID>/.
type Storage interface {
	ArchiveDocument(ctx context.Context, invoiceID string, pages []models.Page, original *File) ([]string, error)
	RemoveDocument(ctx context.Context, invoiceID string) error
}

// File is an original upload kept alongside its rendered pages.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type s3Storage struct {
	client     *minio.Client
	bucketName string
}

func NewS3Storage(ctx context.Context, cfg *config.Config) (Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		Secure: cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.S3BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.S3BucketName, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &s3Storage{
		client:     client,
		bucketName: cfg.S3BucketName,
	}, nil
}

func documentPrefix(invoiceID string) string {
	return "documents/" + invoiceID + "/"
}

// PageKey is the object key of page i (zero based) of a document.
func PageKey(invoiceID string, i int, mimeType string) string {
	ext := strings.TrimPrefix(mimeType, "image/")
	if ext == "" || ext == mimeType {
		ext = "bin"
	}
	return fmt.Sprintf("%spage-%03d.%s", documentPrefix(invoiceID), i+1, ext)
}

// OriginalKey is the object key of the original upload.
func OriginalKey(invoiceID, name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "original"
	}
	return documentPrefix(invoiceID) + "original/" + name
}

func (s *s3Storage) ArchiveDocument(ctx context.Context, invoiceID string, pages []models.Page, original *File) ([]string, error) {
	var keys []string

	for i, p := range pages {
		key := PageKey(invoiceID, i, p.MIMEType)
		if err := s.upload(ctx, key, p.Data, p.MIMEType); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}

	if original != nil && len(original.Data) > 0 {
		key := OriginalKey(invoiceID, original.Name)
		if err := s.upload(ctx, key, original.Data, original.ContentType); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}

	return keys, nil
}

func (s *s3Storage) upload(ctx context.Context, key string, data []byte, contentType string) error {
	reader := bytes.NewReader(data)

	_, err := s.client.PutObject(
		ctx,
		s.bucketName,
		key,
		reader,
		int64(len(data)),
		minio.PutObjectOptions{
			ContentType: contentType,
		},
	)

	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	return nil
}

// RemoveDocument deletes every object stored for invoiceID.
func (s *s3Storage) RemoveDocument(ctx context.Context, invoiceID string) error {
	objects := s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    documentPrefix(invoiceID),
		Recursive: true,
	})

	for obj := range objects {
		if obj.Err != nil {
			return fmt.Errorf("failed to list S3 objects: %w", obj.Err)
		}
		err := s.client.RemoveObject(ctx, s.bucketName, obj.Key, minio.RemoveObjectOptions{})
		if err != nil {
			return fmt.Errorf("failed to delete from S3: %w", err)
		}
	}

	return nil
}
