// Package storage is the blob store adapter. All durable artifacts live
// under recording-id-prefixed keys; the Store interface hides whether the
// bucket is laid out hierarchically or flat.
package storage

import (
	"context"
	"fmt"
	"time"

	"consult-worker/constant"
)

type Entry struct {
	Key  string
	Size int64
}

type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]Entry, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	// DeleteFolder removes everything under prefix. It refuses to delete
	// when prefix names a plain object rather than a folder.
	DeleteFolder(ctx context.Context, prefix string) error
}

func RecordingPrefix(recordingId string) string {
	return recordingId
}

func ChunksPrefix(recordingId string) string {
	return fmt.Sprintf("%s/%s", recordingId, constant.CategoryChunks)
}

func ChunkKey(recordingId string, sequence int) string {
	return fmt.Sprintf("%s/%s/chunk-%06d.wav", recordingId, constant.CategoryChunks, sequence)
}

func AudioKey(recordingId string) string {
	return fmt.Sprintf("%s/%s/combined.wav", recordingId, constant.CategoryAudio)
}

// StagingKey embeds a timestamp so two attempts of the same job never
// collide on the staging object.
func StagingKey(recordingId string, ts time.Time) string {
	return fmt.Sprintf("%s/%s/%d.flac", constant.CategoryStaging, recordingId, ts.UnixNano())
}

func StagingPrefix(recordingId string) string {
	return fmt.Sprintf("%s/%s", constant.CategoryStaging, recordingId)
}

func ResultsPrefix(recordingId string) string {
	return fmt.Sprintf("%s/%s", recordingId, constant.CategoryResults)
}

// ResultKey builds one of the four result object keys. kind is
// "transcript" or "summary", ext "txt" or "html". The shared ts keeps a
// run's plain/HTML pair retrievable as a matched set; the fixed-width
// nanosecond fraction keeps keys lexicographically ordered by time and
// stops two runs in the same second from overwriting each other.
func ResultKey(recordingId, kind string, ts time.Time, ext string) string {
	return fmt.Sprintf("%s/%s/%s-%s.%s", recordingId, constant.CategoryResults, kind, ts.UTC().Format("20060102T150405.000000000Z"), ext)
}
