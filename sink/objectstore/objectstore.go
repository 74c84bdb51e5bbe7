// Package objectstore implements a sink that uploads each batch as one
// JSON-lines object to an S3-compatible bucket through minio-go.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sync"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/poiesic/datajobs/core"
	"github.com/poiesic/datajobs/sink"
)

// Client is the subset of *minio.Client used by the sink.
type Client interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

// Config holds connection settings for an S3-compatible endpoint.
type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Region        string
	UseSSL        bool
	DefaultBucket string // used when a destination has no target
	CreateBucket  bool   // create missing buckets on first use
	Prefix        string // prepended to every object key
}

// Sink uploads batches to an object store.
type Sink struct {
	client Client
	cfg    Config

	mu      sync.Mutex
	checked map[string]bool
}

var _ sink.Sink = (*Sink)(nil)

// New creates a sink using client.
func New(client Client, cfg Config) (*Sink, error) {
	if client == nil {
		return nil, sink.ErrSinkRequired
	}
	return &Sink{client: client, cfg: cfg, checked: make(map[string]bool)}, nil
}

// Dial creates a minio client for cfg and wraps it in a sink.
func Dial(cfg Config) (*Sink, error) {
	if cfg.Endpoint == "" {
		return nil, core.ConfigError(fmt.Errorf("objectstore sink: endpoint required"))
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, core.ConfigError(fmt.Errorf("objectstore sink: %w", err))
	}
	return New(client, cfg)
}

// Factory returns a sink.Factory that dials cfg on first use.
func Factory(cfg Config) sink.Factory {
	return func(context.Context) (sink.Sink, error) {
		return Dial(cfg)
	}
}

// ObjectKey returns the key a new batch object is written under.
func (s *Sink) ObjectKey(dest core.Destination) string {
	return path.Join(s.cfg.Prefix,
		sink.SanitizeSegment(dest.Table, "default"),
		sink.SanitizeSegment(dest.CollectionID, "default"),
		uuid.NewString()+".jsonl")
}

func (s *Sink) bucket(dest core.Destination) (string, error) {
	if dest.Target != "" {
		return dest.Target, nil
	}
	if s.cfg.DefaultBucket != "" {
		return s.cfg.DefaultBucket, nil
	}
	return "", core.ConfigError(fmt.Errorf("objectstore sink: no bucket for destination %q", dest.Table))
}

func (s *Sink) ensureBucket(ctx context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.checked[bucket] {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return classify(err)
	}
	if !exists {
		if !s.cfg.CreateBucket {
			return core.ConfigError(fmt.Errorf("objectstore sink: bucket %q does not exist", bucket))
		}
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return classify(err)
		}
	}
	s.checked[bucket] = true
	return nil
}

// Ingest uploads the batch as one object and records its key in the metadata.
func (s *Sink) Ingest(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata) (core.Metadata, error) {
	bucket, err := s.bucket(dest)
	if err != nil {
		return md, err
	}
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return md, err
	}

	data, err := sink.EncodeJSONLines(payloads)
	if err != nil {
		return md, err
	}

	key := s.ObjectKey(dest)
	_, err = s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/x-ndjson",
		UserMetadata: map[string]string{
			"collection": dest.CollectionID,
			"table":      dest.Table,
		},
	})
	if err != nil {
		return md, classify(err)
	}

	md.Set(sink.MetaObjectKey, bucket+"/"+key)
	return md, nil
}

// classify maps S3 error codes to failure categories.
func classify(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "NoSuchBucket", "InvalidBucketName":
		return core.ConfigError(err)
	default:
		return core.PlatformError(err)
	}
}
