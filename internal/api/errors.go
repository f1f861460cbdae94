package api

import (
	"fmt"
	"net/http"
)

// Numeric error codes carried in ErrorResponse.ErrorCode.
const (
	// Validation (1xxx)
	ErrCodeInvalidArgument  = 1000
	ErrCodeInvalidMultipart = 1001
	ErrCodeRequestTooLarge  = 1002
	ErrCodeInvalidQuery     = 1003
	ErrCodeInvalidAddress   = 1004
	ErrCodeEmptyPayload     = 1005
	ErrCodeInvalidEpochs    = 1006
	ErrCodeInvalidSize      = 1007
	ErrCodeInvalidBlobID    = 1008
	ErrCodeMissingRequired  = 1009

	// Domain state (2xxx)
	ErrCodeBlobNotFound  = 2001
	ErrCodeEmptyBlob     = 2002
	ErrCodeMultipleFiles = 2003

	// Auth & limits (3xxx)
	ErrCodeUnauthorized      = 3001
	ErrCodeForbidden         = 3002
	ErrCodeResourceExhausted = 3003

	// Internal/downstream (4xxx)
	ErrCodeInternal          = 4001
	ErrCodeStoreFailure      = 4002
	ErrCodeMintFailure       = 4003
	ErrCodeIndexFailure      = 4004
	ErrCodeIndexUnconfigured = 4005
	ErrCodeNotImplemented    = 4006
)

// Stage names the step of the storage pipeline an error came from.
type Stage string

const (
	StageNone  Stage = ""
	StageStore Stage = "blob store"
	StageMint  Stage = "receipt mint"
	StageIndex Stage = "file index"
)

// APIError is a failed response from a mothrbox server, decoded from the
// success:false body when the server sent one.
type APIError struct {
	Status    int
	Code      string
	ErrorCode int
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("api error: %d", e.Status)
	}
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.RequestID != "" {
		msg += " (request " + e.RequestID + ")"
	}
	return msg
}

// FromServer reports whether the body was a mothrbox error envelope. A
// bare status usually means a proxy or some other service answered.
func (e *APIError) FromServer() bool {
	return e != nil && e.ErrorCode != 0
}

// Stage reports which downstream step failed, or StageNone when the
// request itself was rejected.
func (e *APIError) Stage() Stage {
	if e == nil {
		return StageNone
	}
	switch e.ErrorCode {
	case ErrCodeStoreFailure, ErrCodeEmptyBlob, ErrCodeMultipleFiles:
		return StageStore
	case ErrCodeMintFailure:
		return StageMint
	case ErrCodeIndexFailure, ErrCodeIndexUnconfigured:
		return StageIndex
	default:
		return StageNone
	}
}

// Downstream reports whether the server failed because a service behind
// it did.
func (e *APIError) Downstream() bool {
	return e != nil && e.Status >= http.StatusInternalServerError && e.Code == "unavailable"
}

// Retryable reports whether sending the same request again may succeed.
// Upload rate limits and downstream outages qualify. A mint failure does
// not, since the blob has already been stored and paid for.
func (e *APIError) Retryable() bool {
	if e == nil {
		return false
	}
	if e.Status == http.StatusTooManyRequests || e.ErrorCode == ErrCodeResourceExhausted {
		return true
	}
	if e.ErrorCode == ErrCodeIndexUnconfigured {
		return false
	}
	return e.Downstream() && e.Stage() != StageMint
}
