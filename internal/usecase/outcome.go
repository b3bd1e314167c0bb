package usecase

import "net/http"

// OutcomeKind enumerates the terminal results of a submission. Every call to
// SubmitImage resolves to exactly one kind; there are no partial outcomes.
type OutcomeKind string

const (
	// OutcomeSuccess carries the parsed result document from the worker.
	OutcomeSuccess OutcomeKind = "success"
	// OutcomeInvalid means the request was rejected before any storage call.
	OutcomeInvalid OutcomeKind = "invalid"
	// OutcomeCredential means the store rejected the identity itself.
	OutcomeCredential OutcomeKind = "credential_rejected"
	// OutcomePermission means the identity is valid but unauthorized.
	OutcomePermission OutcomeKind = "permission_denied"
	// OutcomeBucketMissing means the target bucket does not exist.
	OutcomeBucketMissing OutcomeKind = "bucket_missing"
	// OutcomeTimeout means the worker produced no result within the poll budget.
	OutcomeTimeout OutcomeKind = "timeout"
	// OutcomeError covers everything else, wrapping the cause for diagnostics.
	OutcomeError OutcomeKind = "error"
)

// Outcome is the tagged result of one submission.
type Outcome struct {
	Kind OutcomeKind

	// Result holds the decoded result JSON. Set only for OutcomeSuccess.
	Result any

	// Reason is a user-renderable explanation for non-success outcomes.
	Reason string

	// Err carries the underlying cause for logging. Never rendered to callers.
	Err error
}

// HTTPStatus maps the outcome onto a status class for the handler layer.
func (o Outcome) HTTPStatus() int {
	switch o.Kind {
	case OutcomeSuccess:
		return http.StatusOK
	case OutcomeInvalid:
		return http.StatusBadRequest
	case OutcomeCredential:
		return http.StatusUnauthorized
	case OutcomePermission:
		return http.StatusForbidden
	case OutcomeBucketMissing:
		return http.StatusNotFound
	case OutcomeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func successOutcome(result any) Outcome {
	return Outcome{Kind: OutcomeSuccess, Result: result}
}

func invalidOutcome(reason string) Outcome {
	return Outcome{Kind: OutcomeInvalid, Reason: reason}
}

func timeoutOutcome() Outcome {
	return Outcome{Kind: OutcomeTimeout, Reason: "analysis result not available yet, try again later"}
}

func failureOutcome(kind OutcomeKind, reason string, err error) Outcome {
	return Outcome{Kind: kind, Reason: reason, Err: err}
}
