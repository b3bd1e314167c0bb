package storage

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Sentinel errors for gateway operations. Callers classify failures with
// errors.Is rather than inspecting AWS types directly.
var (
	ErrInvalidConfig      = errors.New("storage: invalid configuration")
	ErrNotFound           = errors.New("storage: object not found")
	ErrNoSuchBucket       = errors.New("storage: bucket does not exist")
	ErrAccessDenied       = errors.New("storage: access denied")
	ErrInvalidCredentials = errors.New("storage: credentials rejected")
	ErrUnexpected         = errors.New("storage: operation failed")
)

// wrapS3Error maps S3 errors onto the sentinel set. The original error is
// formatted with %v, not %w, so callers match sentinels and never AWS types.
func wrapS3Error(err error, fallback error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case "NoSuchBucket":
			return fmt.Errorf("%w: %v", ErrNoSuchBucket, err)
		case "AccessDenied", "Forbidden":
			return fmt.Errorf("%w: %v", ErrAccessDenied, err)
		case "InvalidAccessKeyId", "SignatureDoesNotMatch", "AuthorizationHeaderMalformed":
			return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
	}

	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return fmt.Errorf("%w: %v", ErrNoSuchBucket, err)
	}

	return fmt.Errorf("%w: %v", fallback, err)
}
