package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Gateway implements Gateway against S3 or any S3-compatible store.
// It is safe for concurrent use; the underlying client is stateless apart
// from its credentials.
type S3Gateway struct {
	client *s3.Client
	cfg    Config
}

// New builds a gateway with a static identity. Both the process-wide default
// gateway and per-request custom gateways are constructed through here.
func New(cfg Config) (*S3Gateway, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) {
			o.Region = cfg.Region
			o.Credentials = credentials.NewStaticCredentialsProvider(
				cfg.AccessKey,
				cfg.SecretKey,
				"",
			)
		},
	}

	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.PathStyle
		})
	}

	return &S3Gateway{client: s3.New(s3.Options{}, opts...), cfg: cfg}, nil
}

// Bucket returns the bucket this gateway was configured for.
func (g *S3Gateway) Bucket() string {
	return g.cfg.Bucket
}

// Put uploads data under loc with the given content type.
func (g *S3Gateway) Put(ctx context.Context, loc Location, data []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(loc.Bucket),
		Key:           aws.String(loc.Key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	}

	if _, err := g.client.PutObject(ctx, input); err != nil {
		return wrapS3Error(err, ErrUnexpected)
	}
	return nil
}

// Get retrieves the object at loc.
func (g *S3Gateway) Get(ctx context.Context, loc Location) ([]byte, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	}

	output, err := g.client.GetObject(ctx, input)
	if err != nil {
		return nil, wrapS3Error(err, ErrUnexpected)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read object body: %v", ErrUnexpected, err)
	}
	return data, nil
}

// Exists reports whether an object is present at loc. A missing object is
// (false, nil); any other failure propagates.
func (g *S3Gateway) Exists(ctx context.Context, loc Location) (bool, error) {
	input := &s3.HeadObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	}

	if _, err := g.client.HeadObject(ctx, input); err != nil {
		wrapped := wrapS3Error(err, ErrUnexpected)
		if errors.Is(wrapped, ErrNotFound) {
			return false, nil
		}
		return false, wrapped
	}
	return true, nil
}

// Close releases the gateway. The S3 client holds no connections of its own
// beyond the shared HTTP transport, so there is nothing to tear down.
func (g *S3Gateway) Close() error {
	return nil
}

// Ensure S3Gateway implements Gateway.
var _ Gateway = (*S3Gateway)(nil)
