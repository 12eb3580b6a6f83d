// Package apperrors defines the sentinel error taxonomy the HTTP layer and
// worker map to status codes and retry decisions (SPEC_FULL §10).
package apperrors

import "errors"

// Sentinel errors. Wrap with fmt.Errorf("...: %w", ErrX) to preserve Kind()
// while adding context.
var (
	// ErrPreconditionFailed marks a state-machine violation: the caller asked
	// for a transition the resource's current status does not allow (e.g.
	// exporting a non-terminal job). Maps to HTTP 409.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrUploadNotFound marks a CompleteUpload call where the preflight HEAD
	// check against the BlobStore came back empty. Maps to HTTP 404; the job
	// itself transitions to failed.
	ErrUploadNotFound = errors.New("uploaded object not found")

	// ErrValidation marks a malformed or out-of-range request. Maps to HTTP 400.
	ErrValidation = errors.New("validation failed")

	// ErrTransient marks a failure the caller should retry: a dependency
	// timeout, a throttled API, a dropped connection. Never surfaced as a
	// terminal job failure on the first occurrence.
	ErrTransient = errors.New("transient failure")

	// ErrArtifactMissing marks an attempt to persist a terminal job state
	// without both findings and a report already computed (spec's
	// persistence guardrail).
	ErrArtifactMissing = errors.New("required artifact missing")

	// ErrDeadlineExceeded marks a job that ran past its configured hard
	// deadline and was force-failed by the worker.
	ErrDeadlineExceeded = errors.New("job deadline exceeded")

	// ErrNotFound marks a lookup that found nothing with the given ID.
	ErrNotFound = errors.New("not found")

	// ErrForbidden marks an AuthorizationContext check that rejected a
	// caller's access to a resource they do not own.
	ErrForbidden = errors.New("forbidden")
)

// Kind identifies which sentinel an error wraps, for status-code and retry
// mapping at the call boundary.
type Kind int

const (
	KindUnknown Kind = iota
	KindPreconditionFailed
	KindUploadNotFound
	KindValidation
	KindTransient
	KindArtifactMissing
	KindDeadlineExceeded
	KindNotFound
	KindForbidden
)

// Kind classifies err by the sentinel it wraps (errors.Is), or KindUnknown
// if it doesn't match any of this package's sentinels.
func Kind(err error) Kind {
	switch {
	case errors.Is(err, ErrPreconditionFailed):
		return KindPreconditionFailed
	case errors.Is(err, ErrUploadNotFound):
		return KindUploadNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrTransient):
		return KindTransient
	case errors.Is(err, ErrArtifactMissing):
		return KindArtifactMissing
	case errors.Is(err, ErrDeadlineExceeded):
		return KindDeadlineExceeded
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	default:
		return KindUnknown
	}
}

// HTTPStatus maps a Kind to the status code the server handlers should
// return (spec §6, §7).
func (k Kind) HTTPStatus() int {
	switch k {
	case KindPreconditionFailed:
		return 409
	case KindUploadNotFound:
		return 404
	case KindValidation:
		return 400
	case KindNotFound:
		return 404
	case KindForbidden:
		return 403
	case KindTransient, KindDeadlineExceeded, KindArtifactMissing:
		return 500
	default:
		return 500
	}
}

// Retryable reports whether a worker should requeue the job instead of
// marking it permanently failed (spec §4.3 retry policy).
func (k Kind) Retryable() bool {
	return k == KindTransient
}
