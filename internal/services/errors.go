package services

import (
	"errors"
	"net/http"

	"support-chat/internal/repository"
	chat_errors "support-chat/pkg/errors"
)

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, chat_errors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, chat_errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, chat_errors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, chat_errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat_errors.ErrAlreadyExists), errors.Is(err, chat_errors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, chat_errors.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, chat_errors.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// retryable reports whether a failed append may succeed on a second attempt.
func retryable(err error) bool {
	return errors.Is(err, chat_errors.ErrConflict) || repository.IsRetryable(err)
}
