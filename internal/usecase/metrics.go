package usecase

import "context"

// MetricsSummary represents aggregated submission insights.
type MetricsSummary struct {
	TotalRequests       int64   `json:"total_requests"`
	SuccessfulRequests  int64   `json:"successful_requests"`
	SuccessRate         float64 `json:"success_rate"`
	AverageLatencyMs    float64 `json:"average_latency_ms"`
	AveragePollAttempts float64 `json:"average_poll_attempts"`
}

// GetMetricsSummary aggregates submission metrics from persisted audit records.
func (uc *AnalysisUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, err := uc.repo.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalRequests:       aggregation.TotalCount,
		SuccessfulRequests:  aggregation.SuccessCount,
		AverageLatencyMs:    aggregation.AverageLatencyMs,
		AveragePollAttempts: aggregation.AveragePollAttempts,
	}

	if aggregation.TotalCount > 0 {
		summary.SuccessRate = float64(aggregation.SuccessCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}
