// Package storage provides a thin gateway over an S3-compatible object store.
// It carries no retry or caching policy; callers own both.
package storage

import "context"

// Location identifies a single object in the store.
type Location struct {
	Bucket string
	Key    string
}

// Gateway exposes the object-store operations used by the submission flow.
// Exists treats a missing object as (false, nil); every other failure is an
// error. Close releases client resources for gateways built per request and
// is a no-op for the shared process-wide gateway.
type Gateway interface {
	Put(ctx context.Context, loc Location, data []byte, contentType string) error
	Get(ctx context.Context, loc Location) ([]byte, error)
	Exists(ctx context.Context, loc Location) (bool, error)
	Close() error
}

// Config holds the identity and addressing for one gateway instance.
type Config struct {
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string

	// Endpoint overrides the AWS endpoint for MinIO or other S3-compatible
	// stores. PathStyle must be set for MinIO.
	Endpoint  string
	PathStyle bool
}

func (c Config) validate() error {
	if c.AccessKey == "" || c.SecretKey == "" || c.Region == "" || c.Bucket == "" {
		return ErrInvalidConfig
	}
	return nil
}
