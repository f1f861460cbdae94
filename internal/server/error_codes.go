package server

import "github.com/georgegoldman/mothrbox-walrus-layer/internal/api"

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return api.ErrCodeInvalidArgument
	case 401:
		return api.ErrCodeUnauthorized
	case 403:
		return api.ErrCodeForbidden
	case 404:
		return api.ErrCodeBlobNotFound
	case 413:
		return api.ErrCodeRequestTooLarge
	case 429:
		return api.ErrCodeResourceExhausted
	case 500:
		return api.ErrCodeInternal
	case 501:
		return api.ErrCodeNotImplemented
	default:
		return 0
	}
}
