package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/image-analysis/internal/logging"
	"github.com/example/image-analysis/internal/repository"
	"github.com/example/image-analysis/internal/storage"
)

// AnalysisRequest describes one inbound submission. Credentials selects the
// identity for this request's storage calls; nil means the process-wide
// default identity and bucket.
type AnalysisRequest struct {
	Filename    string
	ContentType string
	Image       []byte
	Credentials *CredentialScope
}

// CredentialScope is a caller-supplied identity and destination bucket used
// for a single request. All four fields are required.
type CredentialScope struct {
	AccessKeyID string
	SecretKey   string
	Region      string
	Bucket      string
}

// AnalysisRepository defines the persistence operations needed by the use case.
type AnalysisRepository interface {
	SaveLog(ctx context.Context, log *repository.AnalysisLog) error
	FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*repository.AnalysisLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// Config tunes the submission flow. Zero fields fall back to defaults.
type Config struct {
	DefaultBucket  string
	MaxAttempts    int
	PollInterval   time.Duration
	MaxUploadBytes int64
	AllowedTypes   []string
}

// Defaults for the poll budget and upload policy.
const (
	DefaultMaxAttempts    = 15
	DefaultPollInterval   = time.Second
	DefaultMaxUploadBytes = 10 << 20 // 10 MiB
)

func (c *Config) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if len(c.AllowedTypes) == 0 {
		c.AllowedTypes = []string{"image/jpeg", "image/png"}
	}
}

// AnalysisUseCase orchestrates one submission: validate, upload the image,
// then poll the store until the out-of-band worker deposits the result
// object at the derived key.
type AnalysisUseCase struct {
	gateway    storage.Gateway
	newGateway func(cfg storage.Config) (storage.Gateway, error)
	repo       AnalysisRepository
	cache      Cache
	logger     *zap.Logger
	cfg        Config

	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewAnalysisUseCase constructs a new use case instance. gateway is the
// process-wide default gateway, shared across concurrent submissions.
func NewAnalysisUseCase(gateway storage.Gateway, repo AnalysisRepository, cache Cache, logger *zap.Logger, cfg Config) *AnalysisUseCase {
	cfg.applyDefaults()
	return &AnalysisUseCase{
		gateway: gateway,
		newGateway: func(c storage.Config) (storage.Gateway, error) {
			return storage.New(c)
		},
		repo:           repo,
		cache:          cache,
		logger:         logger.Named("analysis_usecase"),
		cfg:            cfg,
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// SubmitImage runs the full submission flow and resolves to exactly one
// outcome. It blocks the calling request until the result is found, the poll
// budget is exhausted, or a storage call fails; other submissions are
// unaffected.
func (uc *AnalysisUseCase) SubmitImage(ctx context.Context, userID string, req AnalysisRequest) (string, Outcome) {
	requestID := uuid.NewString()
	started := time.Now()
	opLogger := logging.WithOperation(uc.logger, "usecase.submit_image", requestID)

	outcome, attempts := uc.submit(ctx, req, opLogger)

	opLogger.Info("submission resolved",
		zap.String("outcome", string(outcome.Kind)),
		zap.Int("poll_attempts", attempts),
		zap.Duration("elapsed", time.Since(started)))

	uc.record(ctx, requestID, userID, req, outcome, attempts, time.Since(started), opLogger)
	return requestID, outcome
}

func (uc *AnalysisUseCase) submit(ctx context.Context, req AnalysisRequest, opLogger *zap.Logger) (Outcome, int) {
	if reason := uc.validateRequest(req); reason != "" {
		return invalidOutcome(reason), 0
	}

	gateway, bucket, perRequest, outcome := uc.resolveScope(req)
	if outcome != nil {
		return *outcome, 0
	}
	if perRequest {
		// Per-request gateway: released exactly once, on every exit path.
		defer func() {
			if err := gateway.Close(); err != nil {
				opLogger.Warn("failed to release request-scoped gateway", zap.Error(err))
			}
		}()
	}

	inputLoc := storage.Location{Bucket: bucket, Key: req.Filename}
	resultLoc := storage.Location{Bucket: bucket, Key: deriveResultKey(req.Filename)}

	if err := gateway.Put(ctx, inputLoc, req.Image, req.ContentType); err != nil {
		opLogger.Error("image upload failed", zap.Error(err), zap.String("key", inputLoc.Key))
		return storageOutcome("upload failed", err), 0
	}
	opLogger.Info("image uploaded", zap.String("key", inputLoc.Key), zap.Int("bytes", len(req.Image)))

	return uc.awaitResult(ctx, gateway, resultLoc, opLogger)
}

// awaitResult is the bounded poll loop: from Polling(n), a positive existence
// check moves to Found, a storage failure terminates, and a miss either sleeps
// one interval and continues with n-1 or exhausts the budget. Cancellation is
// checked before every suspend.
func (uc *AnalysisUseCase) awaitResult(ctx context.Context, gateway storage.Gateway, resultLoc storage.Location, opLogger *zap.Logger) (Outcome, int) {
	attempts := 0
	for remaining := uc.cfg.MaxAttempts; remaining > 0; remaining-- {
		attempts++

		found, err := gateway.Exists(ctx, resultLoc)
		if err != nil {
			opLogger.Error("result existence check failed", zap.Error(err), zap.Int("attempt", attempts))
			return storageOutcome("result check failed", err), attempts
		}

		if found {
			data, err := gateway.Get(ctx, resultLoc)
			if err != nil {
				opLogger.Error("result fetch failed", zap.Error(err), zap.Int("attempt", attempts))
				return storageOutcome("result fetch failed", err), attempts
			}

			var result any
			if err := json.Unmarshal(data, &result); err != nil {
				opLogger.Error("result document is not valid JSON", zap.Error(err), zap.String("key", resultLoc.Key))
				return failureOutcome(OutcomeError, "analysis result could not be decoded", err), attempts
			}
			return successOutcome(result), attempts
		}

		if remaining > 1 {
			select {
			case <-ctx.Done():
				opLogger.Warn("submission cancelled while waiting for result", zap.Int("attempt", attempts))
				return failureOutcome(OutcomeError, "submission cancelled", ctx.Err()), attempts
			case <-time.After(uc.cfg.PollInterval):
			}
		}
	}

	opLogger.Warn("poll budget exhausted", zap.Int("attempts", attempts))
	return timeoutOutcome(), attempts
}

func (uc *AnalysisUseCase) validateRequest(req AnalysisRequest) string {
	if req.Filename == "" {
		return "filename is required"
	}
	allowed := false
	for _, t := range uc.cfg.AllowedTypes {
		if req.ContentType == t {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Sprintf("unsupported content type %q, expected one of %s", req.ContentType, strings.Join(uc.cfg.AllowedTypes, ", "))
	}
	if len(req.Image) == 0 {
		return "image payload is empty"
	}
	if int64(len(req.Image)) > uc.cfg.MaxUploadBytes {
		return fmt.Sprintf("image exceeds the %d byte upload limit", uc.cfg.MaxUploadBytes)
	}
	return ""
}

// resolveScope picks the gateway and bucket for this request. perRequest
// marks a gateway the caller must release. A non-nil outcome means the scope
// itself was rejected and no storage call was made.
func (uc *AnalysisUseCase) resolveScope(req AnalysisRequest) (gateway storage.Gateway, bucket string, perRequest bool, rejected *Outcome) {
	if req.Credentials == nil {
		return uc.gateway, uc.cfg.DefaultBucket, false, nil
	}

	scope := req.Credentials
	if scope.AccessKeyID == "" || scope.SecretKey == "" || scope.Region == "" || scope.Bucket == "" {
		o := invalidOutcome("custom credentials require access key id, secret key, region, and bucket")
		return nil, "", false, &o
	}

	gateway, err := uc.newGateway(storage.Config{
		AccessKey: scope.AccessKeyID,
		SecretKey: scope.SecretKey,
		Region:    scope.Region,
		Bucket:    scope.Bucket,
	})
	if err != nil {
		o := failureOutcome(OutcomeError, "could not build a storage client for the supplied credentials", err)
		return nil, "", false, &o
	}
	return gateway, scope.Bucket, true, nil
}

// deriveResultKey strips the final extension from the input key and appends
// the result suffix the worker writes to. "my.photo.jpeg" becomes
// "my.photo.result.json"; a key with no extension keeps its full name.
func deriveResultKey(inputKey string) string {
	return strings.TrimSuffix(inputKey, path.Ext(inputKey)) + ".result.json"
}

func storageOutcome(reason string, err error) Outcome {
	switch {
	case errors.Is(err, storage.ErrInvalidCredentials):
		return failureOutcome(OutcomeCredential, "storage credentials were rejected", err)
	case errors.Is(err, storage.ErrAccessDenied):
		return failureOutcome(OutcomePermission, "access to the storage bucket was denied", err)
	case errors.Is(err, storage.ErrNoSuchBucket):
		return failureOutcome(OutcomeBucketMissing, "storage bucket does not exist", err)
	default:
		return failureOutcome(OutcomeError, reason, err)
	}
}
