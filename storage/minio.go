package storage

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"

	"consult-worker/apperrors"
)

// minioStore serves both bucket layouts. The folder variant keeps the
// "/" hierarchy as-is; the flat variant maps every key to a single-level
// object name so buckets without prefix listing support stay usable.
type minioStore struct {
	client *minio.Client
	bucket string
	flat   bool
}

func NewMinIOStore(client *minio.Client, bucket string) Store {
	return &minioStore{client: client, bucket: bucket}
}

func NewFlatMinIOStore(client *minio.Client, bucket string) Store {
	return &minioStore{client: client, bucket: bucket, flat: true}
}

const flatSep = "__"

func (s *minioStore) objectName(key string) string {
	if s.flat {
		return strings.ReplaceAll(key, "/", flatSep)
	}
	return key
}

func (s *minioStore) keyName(objectName string) string {
	if s.flat {
		return strings.ReplaceAll(objectName, flatSep, "/")
	}
	return objectName
}

func (s *minioStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.objectName(key), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (s *minioStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *minioStore) List(ctx context.Context, prefix string) ([]Entry, error) {
	var entries []Entry
	objPrefix := s.objectName(prefix)
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    objPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		entries = append(entries, Entry{Key: s.keyName(obj.Key), Size: obj.Size})
	}
	return entries, nil
}

func (s *minioStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, s.objectName(key), minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *minioStore) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, s.objectName(key), minio.RemoveObjectOptions{})
}

func (s *minioStore) DeleteFolder(ctx context.Context, prefix string) error {
	prefix = strings.TrimSuffix(prefix, "/")

	// A plain object stored at exactly this key means the caller is
	// pointing the folder-delete path at a non-folder. Refuse rather
	// than risk destroying unrelated data on an identifier collision.
	exact, err := s.Exists(ctx, prefix)
	if err != nil {
		return err
	}
	if exact {
		zerolog.Ctx(ctx).Warn().Str("prefix", prefix).Msg("refusing folder delete of non-folder object")
		return nil
	}

	entries, err := s.List(ctx, prefix+"/")
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := s.Delete(ctx, entry.Key); err != nil {
			return err
		}
	}
	return nil
}
