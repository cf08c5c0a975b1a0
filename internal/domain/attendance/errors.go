package attendance

import "errors"

var (
	// ErrInvalidAction indicates a review approval with an unknown action.
	ErrInvalidAction = errors.New("invalid review action")
)
