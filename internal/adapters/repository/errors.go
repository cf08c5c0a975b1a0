package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrIdentityNotFound  = errors.New("identity not found")
	ErrRecordNotFound    = errors.New("attendance record not found")
	ErrReviewNotFound    = errors.New("review candidate not found")
	ErrEmptySignature    = errors.New("empty signature sample")
	ErrDimensionMismatch = errors.New("signature dimension mismatch")
)
