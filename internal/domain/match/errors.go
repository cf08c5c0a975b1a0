package match

import "errors"

// Sentinel kinds for matching errors.
var (
	// ErrInvalidSignature marks a malformed detection vector. The caller
	// logs and drops the detection; it is not retried.
	ErrInvalidSignature = errors.New("invalid signature vector")

	// ErrMatchTimeout marks a match that exceeded its deadline. Distinct
	// from "no match"; the caller may retry or log per its policy.
	ErrMatchTimeout = errors.New("match timed out")

	// ErrIndexFailure marks a candidate index lookup that failed for a
	// reason other than a malformed vector.
	ErrIndexFailure = errors.New("candidate index lookup failed")
)
