package signaling

import (
	"context"
	"errors"
	"fmt"

	"ws-class-server/pkg/types"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrMediaEngine  = errors.New("media engine failure")
	ErrMediaTimeout = errors.New("media engine call timed out")
	ErrDirectory    = errors.New("class directory failure")
	ErrStorage      = errors.New("whiteboard storage failure")
	ErrBadRequest   = errors.New("bad request")
)

const (
	CodeNotFound     = "not_found"
	CodeInvalidState = "invalid_state"
	CodeMediaEngine  = "media_engine_failure"
	CodeMediaTimeout = "media_timeout"
	CodeDirectory    = "directory_failure"
	CodeStorage      = "storage_failure"
	CodeBadRequest   = "bad_request"
	CodeInternal     = "internal_error"
)

// ErrorPayload is sent as signaling-error to the connection whose event failed.
type ErrorPayload struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrBadRequest):
		return CodeBadRequest
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState
	case errors.Is(err, ErrMediaTimeout):
		return CodeMediaTimeout
	case errors.Is(err, ErrMediaEngine):
		return CodeMediaEngine
	case errors.Is(err, ErrDirectory):
		return CodeDirectory
	case errors.Is(err, ErrStorage):
		return CodeStorage
	default:
		return CodeInternal
	}
}

func notFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func invalidState(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

func mediaError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrMediaTimeout, op)
	}
	return fmt.Errorf("%w: %s: %w", ErrMediaEngine, op, err)
}

func directoryError(classID string, err error) error {
	if errors.Is(err, types.ErrClassNotFound) {
		return notFound("class %s", classID)
	}
	return fmt.Errorf("%w: %w", ErrDirectory, err)
}

func storageError(classID string, err error) error {
	return fmt.Errorf("%w: class %s: %w", ErrStorage, classID, err)
}
