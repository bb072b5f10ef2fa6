// Package channels holds the errors shared by chat channel implementations.
package channels

import "github.com/pkg/errors"

// ErrInvalidPayload reports a webhook body that could not be parsed.
var ErrInvalidPayload = errors.New("invalid webhook payload")
