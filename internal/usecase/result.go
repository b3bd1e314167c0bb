package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/image-analysis/internal/logging"
	"github.com/example/image-analysis/internal/repository"
)

const resultCacheTTL = 5 * time.Minute

type cachedAnalysis struct {
	RequestID string          `json:"request_id"`
	UserID    string          `json:"user_id"`
	Outcome   string          `json:"outcome"`
	Success   bool            `json:"success"`
	Filename  string          `json:"filename"`
	Result    json.RawMessage `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func analysisCacheKey(requestID string) string {
	return "analysis:" + requestID
}

// record persists the audit row and caches successful results. Both are best
// effort: a persistence or cache failure never changes the outcome already
// resolved for the caller.
func (uc *AnalysisUseCase) record(ctx context.Context, requestID, userID string, req AnalysisRequest, outcome Outcome, attempts int, elapsed time.Duration, opLogger *zap.Logger) {
	var resultJSON string
	if outcome.Kind == OutcomeSuccess {
		data, err := json.Marshal(outcome.Result)
		if err != nil {
			opLogger.Warn("failed to serialize result for audit", zap.Error(err))
		} else {
			resultJSON = string(data)
		}
	}

	log := &repository.AnalysisLog{
		RequestID:    requestID,
		UserID:       userID,
		Filename:     req.Filename,
		InputKey:     req.Filename,
		Outcome:      string(outcome.Kind),
		Success:      outcome.Kind == OutcomeSuccess,
		PollAttempts: attempts,
		LatencyMs:    elapsed.Milliseconds(),
		Result:       resultJSON,
		CreatedAt:    time.Now().UTC(),
	}
	if err := uc.repo.SaveLog(ctx, log); err != nil {
		opLogger.Warn("failed to persist analysis log", zap.Error(err))
	}

	if outcome.Kind != OutcomeSuccess {
		return
	}

	cached := cachedAnalysis{
		RequestID: requestID,
		UserID:    userID,
		Outcome:   string(outcome.Kind),
		Success:   true,
		Filename:  req.Filename,
		Result:    json.RawMessage(resultJSON),
		CreatedAt: log.CreatedAt,
	}
	serialized, err := json.Marshal(cached)
	if err != nil {
		opLogger.Warn("failed to serialize result for cache", zap.Error(err))
		return
	}
	// withRedisRetry already logs the failure; nothing else to do with it.
	_ = uc.withRedisRetry(ctx, requestID, "cache.set.result", func() error {
		return uc.cache.Set(ctx, analysisCacheKey(requestID), string(serialized), resultCacheTTL)
	})
}

// GetResult retrieves a completed submission's record, serving from cache
// when possible and falling back to persistence.
func (uc *AnalysisUseCase) GetResult(ctx context.Context, userID, requestID string) (*repository.AnalysisLog, error) {
	cacheKey := analysisCacheKey(requestID)
	if cached, err := uc.withRedisGet(ctx, requestID, "cache.get.result", cacheKey); err == nil {
		var payload cachedAnalysis
		if err := json.Unmarshal([]byte(cached), &payload); err != nil {
			logging.WithOperation(uc.logger, "usecase.get_result", requestID).Warn("failed to decode cached result", zap.Error(err))
		} else if payload.UserID == userID {
			return &repository.AnalysisLog{
				RequestID: payload.RequestID,
				UserID:    payload.UserID,
				Filename:  payload.Filename,
				InputKey:  payload.Filename,
				Outcome:   payload.Outcome,
				Success:   payload.Success,
				Result:    string(payload.Result),
				CreatedAt: payload.CreatedAt,
			}, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logging.WithOperation(uc.logger, "usecase.get_result", requestID).Warn("failed to read cache", zap.Error(err))
	}

	return uc.repo.FindByRequestIDAndUser(ctx, requestID, userID)
}
